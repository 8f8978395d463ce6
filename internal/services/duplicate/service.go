package duplicate

import (
	"context"
	"strings"
	"time"

	"busboard/internal/domain"
	"busboard/internal/ports"
	"busboard/internal/services/quality"
)

// DefaultFreshnessWindow bounds the image digest probe: only digests
// accepted this recently count as duplicates.
const DefaultFreshnessWindow = 24 * time.Hour

// Service answers "have we already seen this?" before expensive work runs.
type Service struct {
	canonical ports.CanonicalRepository
	contribs  ports.ContributionRepository
	window    time.Duration
	now       func() time.Time
}

func New(canonical ports.CanonicalRepository, contribs ports.ContributionRepository, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Service{canonical: canonical, contribs: contribs, window: window, now: time.Now}
}

// RouteExists probes the canonical store by the exact route key: bus number
// plus normalized origin and destination.
func (s *Service) RouteExists(ctx context.Context, c domain.RouteContribution) (bool, error) {
	return s.canonical.RouteExists(ctx,
		NormalizeBusNumber(c.BusNumber),
		quality.NormalizeName(c.FromName),
		quality.NormalizeName(c.ToName))
}

// SeenImageDigest reports whether the digest matches an image contribution
// accepted within the freshness window. Runs before OCR so duplicate uploads
// never pay for extraction.
func (s *Service) SeenImageDigest(ctx context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}
	cutoff := s.now().Add(-s.window)
	return s.contribs.ApprovedImageDigestSince(ctx, digest, cutoff)
}

// NormalizeBusNumber uppercases and trims a bus identifier for key
// comparison.
func NormalizeBusNumber(busNumber string) string {
	return strings.ToUpper(strings.TrimSpace(busNumber))
}
