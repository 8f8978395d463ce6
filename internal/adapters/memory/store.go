package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"busboard/internal/domain"
	"busboard/internal/ports"
	"busboard/internal/services/quality"
)

// Store is an in-memory implementation of the repository ports. It backs
// unit tests and database-free local runs with the same guard semantics as
// the postgres adapter: optimistic status transitions and a unique route
// key.
type Store struct {
	mu sync.Mutex

	routes    map[string]domain.RouteContribution
	images    map[string]domain.ImageContribution
	locations map[string]domain.Location
	canonical map[string]domain.Route // keyed by bus|from|to
}

var (
	_ ports.ContributionRepository = (*Store)(nil)
	_ ports.CanonicalRepository    = (*Store)(nil)
	_ ports.TxRunner               = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		routes:    make(map[string]domain.RouteContribution),
		images:    make(map[string]domain.ImageContribution),
		locations: make(map[string]domain.Location),
		canonical: make(map[string]domain.Route),
	}
}

func (s *Store) SaveRoute(ctx context.Context, c domain.RouteContribution) (domain.RouteContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.routes[c.ID] = c
	return c, nil
}

func (s *Store) SaveImage(ctx context.Context, c domain.ImageContribution) (domain.ImageContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.images[c.ID] = c
	return c, nil
}

func (s *Store) RouteByID(ctx context.Context, id string) (domain.RouteContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.routes[id]
	if !ok {
		return domain.RouteContribution{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) ImageByID(ctx context.Context, id string) (domain.ImageContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.images[id]
	if !ok {
		return domain.ImageContribution{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) PendingRoutes(ctx context.Context) ([]domain.RouteContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RouteContribution
	for _, c := range s.routes {
		if c.Status == domain.StatusPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) PendingImages(ctx context.Context) ([]domain.ImageContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImageContribution
	for _, c := range s.images {
		if c.Status == domain.StatusPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) BySubmitter(ctx context.Context, submitterID string) ([]domain.RouteContribution, []domain.ImageContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var routes []domain.RouteContribution
	var images []domain.ImageContribution
	for _, c := range s.routes {
		if c.SubmittedBy == submitterID {
			routes = append(routes, c)
		}
	}
	for _, c := range s.images {
		if c.SubmittedBy == submitterID {
			images = append(images, c)
		}
	}
	return routes, images, nil
}

func (s *Store) TransitionRoute(ctx context.Context, id string, from, to domain.Status, message string) (domain.RouteContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.routes[id]
	if !ok {
		return domain.RouteContribution{}, domain.ErrNotFound
	}
	if !from.CanTransitionTo(to) {
		return domain.RouteContribution{}, fmt.Errorf("transition %s -> %s: %w", from, to, domain.ErrInvalidState)
	}
	if c.Status != from {
		return domain.RouteContribution{}, domain.ErrStatusConflict
	}
	updated := c.WithStatus(to, message, time.Now())
	s.routes[id] = updated
	return updated, nil
}

func (s *Store) TransitionImage(ctx context.Context, id string, from, to domain.Status, message string) (domain.ImageContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.images[id]
	if !ok {
		return domain.ImageContribution{}, domain.ErrNotFound
	}
	if !from.CanTransitionTo(to) {
		return domain.ImageContribution{}, fmt.Errorf("transition %s -> %s: %w", from, to, domain.ErrInvalidState)
	}
	if c.Status != from {
		return domain.ImageContribution{}, domain.ErrStatusConflict
	}
	updated := c.WithStatus(to, message, time.Now())
	s.images[id] = updated
	return updated, nil
}

func (s *Store) SetImageExtraction(ctx context.Context, id, text, derivedRouteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.images[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.images[id] = c.WithExtraction(text, derivedRouteID)
	return nil
}

func (s *Store) ApprovedImageDigestSince(ctx context.Context, digest string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.images {
		if c.Digest != digest || c.Status != domain.StatusApproved {
			continue
		}
		if c.ProcessedDate != nil && !c.ProcessedDate.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountByTypeAndStatus(ctx context.Context) (map[domain.ContributionType]map[domain.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[domain.ContributionType]map[domain.Status]int{
		domain.TypeRoute: {},
		domain.TypeImage: {},
	}
	for _, c := range s.routes {
		out[domain.TypeRoute][c.Status]++
	}
	for _, c := range s.images {
		out[domain.TypeImage][c.Status]++
	}
	return out, nil
}

func (s *Store) RouteExists(ctx context.Context, busNumber, fromName, toName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.canonical[routeKey(busNumber, fromName, toName)]
	return ok, nil
}

func (s *Store) WriteRoute(ctx context.Context, route domain.Route) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(route.BusNumber, route.FromLocation.Name, route.ToLocation.Name)
	if _, ok := s.canonical[key]; ok {
		return "", domain.ErrDuplicateRoute
	}
	route.ID = uuid.NewString()
	s.canonical[key] = route
	return route.ID, nil
}

func (s *Store) LocationByName(ctx context.Context, name string) (domain.Location, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[quality.NormalizeName(name)]
	return loc, ok, nil
}

func (s *Store) LocationNear(ctx context.Context, lat, lng, radiusKm float64) (domain.Location, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Approximate: one degree is ~111 km, close enough for a ~1 km radius.
	radiusDeg := radiusKm / 111.0
	for _, loc := range s.locations {
		if loc.Latitude == nil || loc.Longitude == nil {
			continue
		}
		dLat := *loc.Latitude - lat
		dLng := *loc.Longitude - lng
		if dLat*dLat+dLng*dLng <= radiusDeg*radiusDeg {
			return loc, true, nil
		}
	}
	return domain.Location{}, false, nil
}

func (s *Store) CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc.ID = uuid.NewString()
	s.locations[quality.NormalizeName(loc.Name)] = loc
	return loc, nil
}

// InTx runs fn directly; the in-memory store has no transactions, which is
// acceptable for tests as each method is individually consistent.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// CanonicalRouteCount reports how many canonical routes exist, for tests.
func (s *Store) CanonicalRouteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.canonical)
}

// routeKey normalizes all parts so cosmetic variants of the same route
// collide, mirroring the unique index in the postgres adapter.
func routeKey(busNumber, fromName, toName string) string {
	return strings.ToUpper(strings.TrimSpace(busNumber)) + "|" +
		quality.NormalizeName(fromName) + "|" + quality.NormalizeName(toName)
}
