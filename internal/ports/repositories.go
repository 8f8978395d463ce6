package ports

import (
	"context"
	"time"

	"busboard/internal/domain"
)

// ContributionRepository stores contributions of both shapes. Transition
// methods apply the optimistic status guard: the update only succeeds when
// the stored status still equals from, otherwise domain.ErrStatusConflict.
// PROCESSING is never accepted as a persisted status.
type ContributionRepository interface {
	SaveRoute(ctx context.Context, c domain.RouteContribution) (domain.RouteContribution, error)
	SaveImage(ctx context.Context, c domain.ImageContribution) (domain.ImageContribution, error)
	RouteByID(ctx context.Context, id string) (domain.RouteContribution, error)
	ImageByID(ctx context.Context, id string) (domain.ImageContribution, error)
	PendingRoutes(ctx context.Context) ([]domain.RouteContribution, error)
	PendingImages(ctx context.Context) ([]domain.ImageContribution, error)
	BySubmitter(ctx context.Context, submitterID string) ([]domain.RouteContribution, []domain.ImageContribution, error)

	TransitionRoute(ctx context.Context, id string, from, to domain.Status, message string) (domain.RouteContribution, error)
	TransitionImage(ctx context.Context, id string, from, to domain.Status, message string) (domain.ImageContribution, error)
	SetImageExtraction(ctx context.Context, id, text, derivedRouteID string) error

	// ApprovedImageDigestSince reports whether digest belongs to an image
	// contribution approved at or after the cutoff.
	ApprovedImageDigestSince(ctx context.Context, digest string, cutoff time.Time) (bool, error)
	CountByTypeAndStatus(ctx context.Context) (map[domain.ContributionType]map[domain.Status]int, error)
}

// CanonicalRepository reads and writes the authoritative route data.
type CanonicalRepository interface {
	// RouteExists probes the exact route key (bus number, normalized origin,
	// normalized destination).
	RouteExists(ctx context.Context, busNumber, fromName, toName string) (bool, error)
	// WriteRoute persists a validated route and its stops, returning the new
	// route id. A collision with an existing route yields
	// domain.ErrDuplicateRoute.
	WriteRoute(ctx context.Context, route domain.Route) (string, error)

	LocationByName(ctx context.Context, name string) (domain.Location, bool, error)
	LocationNear(ctx context.Context, lat, lng, radiusKm float64) (domain.Location, bool, error)
	CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error)
}

// TxRunner executes fn inside one atomic unit; repository calls made with
// the ctx it passes join that unit. Moderation uses this to commit the
// status update and the canonical write together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
