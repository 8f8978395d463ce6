package publish

import (
	"context"
	"fmt"
	"strings"

	"busboard/internal/domain"
	"busboard/internal/ports"
	"busboard/internal/services/quality"
)

// Locations closer than this to a submitted coordinate are reused instead
// of creating a near-duplicate record.
const nearbyRadiusKm = 1.0

// Publisher turns an accepted route contribution into canonical route data:
// it resolves every named place to a location record and writes the route
// with its stops. It is shared by the scheduled orchestrator and manual
// moderation so both approval paths produce identical canonical records.
type Publisher struct {
	canonical ports.CanonicalRepository
}

func New(canonical ports.CanonicalRepository) *Publisher {
	return &Publisher{canonical: canonical}
}

// Publish writes the canonical route for the contribution and returns the
// new route id. A collision with an existing route surfaces as
// domain.ErrDuplicateRoute from the underlying store.
func (p *Publisher) Publish(ctx context.Context, c domain.RouteContribution) (string, error) {
	from, err := p.resolveLocation(ctx, c.FromName, c.FromLatitude, c.FromLongitude)
	if err != nil {
		return "", fmt.Errorf("resolve origin %q: %w", c.FromName, err)
	}
	to, err := p.resolveLocation(ctx, c.ToName, c.ToLatitude, c.ToLongitude)
	if err != nil {
		return "", fmt.Errorf("resolve destination %q: %w", c.ToName, err)
	}

	route := domain.Route{
		BusNumber:     strings.ToUpper(strings.TrimSpace(c.BusNumber)),
		BusName:       c.BusName,
		FromLocation:  from,
		ToLocation:    to,
		DepartureTime: c.DepartureTime,
		ArrivalTime:   c.ArrivalTime,
	}
	for _, stop := range c.Stops {
		loc, err := p.resolveLocation(ctx, stop.Name, stop.Latitude, stop.Longitude)
		if err != nil {
			return "", fmt.Errorf("resolve stop %q: %w", stop.Name, err)
		}
		route.Stops = append(route.Stops, domain.RouteStop{
			Location:      loc,
			ArrivalTime:   stop.ArrivalTime,
			DepartureTime: stop.DepartureTime,
			Order:         stop.Order,
		})
	}
	return p.canonical.WriteRoute(ctx, route)
}

// resolveLocation finds an existing location by normalized name, then by
// coordinate proximity, and creates a new record only when both miss.
func (p *Publisher) resolveLocation(ctx context.Context, name string, lat, lng *float64) (domain.Location, error) {
	loc, ok, err := p.canonical.LocationByName(ctx, name)
	if err != nil {
		return domain.Location{}, err
	}
	if ok {
		return loc, nil
	}

	if lat != nil && lng != nil {
		loc, ok, err = p.canonical.LocationNear(ctx, *lat, *lng, nearbyRadiusKm)
		if err != nil {
			return domain.Location{}, err
		}
		if ok {
			return loc, nil
		}
	}

	return p.canonical.CreateLocation(ctx, domain.Location{
		Name:      DisplayName(name),
		Latitude:  lat,
		Longitude: lng,
	})
}

// DisplayName converts a submitted place name to its canonical display
// form: normalized, then title-cased word by word.
func DisplayName(name string) string {
	words := strings.Fields(quality.NormalizeName(name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
