package quality

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"busboard/internal/domain"
)

// Service is a pure rule engine over candidate contributions. It performs no
// I/O and returns a result for expected bad input instead of an error.
type Service struct {
	rules Rules
}

func New(rules Rules) *Service { return &Service{rules: rules} }

var timePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// ValidateRoute runs every quality rule against the contribution and
// aggregates the findings. The report passes iff no rule produced an ERROR.
func (s *Service) ValidateRoute(c domain.RouteContribution) domain.ValidationReport {
	var report domain.ValidationReport

	report.Add(s.CheckLocationsDistinct(c.FromName, c.ToName))

	if hasCoordinates(c) {
		report.Add(s.CheckCoordinates(*c.FromLatitude, *c.FromLongitude, "origin"))
		report.Add(s.CheckCoordinates(*c.ToLatitude, *c.ToLongitude, "destination"))
		report.Add(s.CheckRouteDistance(*c.FromLatitude, *c.FromLongitude, *c.ToLatitude, *c.ToLongitude))
	}

	report.Add(s.CheckTimeFormat(c.DepartureTime, "departure"))
	report.Add(s.CheckTimeFormat(c.ArrivalTime, "arrival"))

	if hasParseableTimes(c) {
		report.Add(s.CheckArrivalAfterDeparture(c.DepartureTime, c.ArrivalTime))
		if hasCoordinates(c) {
			report.Add(s.CheckJourneyDuration(c.DepartureTime, c.ArrivalTime,
				*c.FromLatitude, *c.FromLongitude, *c.ToLatitude, *c.ToLongitude))
		}
	}

	report.Add(s.CheckStops(c.Stops)...)
	return report
}

// CheckLocationsDistinct rejects identical origin/destination after
// normalization and warns when the names are suspiciously similar.
func (s *Service) CheckLocationsDistinct(origin, destination string) domain.ValidationResult {
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return domain.ValidationError("MISSING_LOCATION", "Origin and destination are required")
	}

	normOrigin := NormalizeName(origin)
	normDest := NormalizeName(destination)

	if normOrigin == normDest {
		return domain.ValidationError("SAME_ORIGIN_DESTINATION",
			"Origin and destination cannot be the same location")
	}

	if sim := Similarity(normOrigin, normDest); sim > s.rules.SimilarityThreshold {
		return domain.ValidationWarning("SIMILAR_LOCATIONS",
			fmt.Sprintf("Origin %q and destination %q are very similar. Please verify.", origin, destination))
	}

	return domain.ValidationOK()
}

// CheckCoordinates validates a point against the service area.
func (s *Service) CheckCoordinates(lat, lng float64, label string) domain.ValidationResult {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.ValidationError("INVALID_COORDINATES",
			fmt.Sprintf("Invalid coordinates for %s: %.6f, %.6f", label, lat, lng))
	}

	if s.rules.PrimaryArea.Contains(lat, lng) {
		return domain.ValidationOK()
	}

	if s.rules.ExtendedArea.Contains(lat, lng) {
		return domain.ValidationWarning("OUTSIDE_PRIMARY_AREA",
			fmt.Sprintf("Location %q appears to be outside the primary service area. Is this a cross-border route?", label))
	}

	return domain.ValidationError("OUTSIDE_SERVICE_AREA",
		fmt.Sprintf("Location %q (%.4f, %.4f) is outside the service area", label, lat, lng))
}

// CheckRouteDistance bounds the great-circle distance of the route.
func (s *Service) CheckRouteDistance(fromLat, fromLng, toLat, toLng float64) domain.ValidationResult {
	distanceKm := Haversine(fromLat, fromLng, toLat, toLng)

	if distanceKm < s.rules.MinRouteKm {
		return domain.ValidationError("ROUTE_TOO_SHORT",
			fmt.Sprintf("Route distance (%.1f km) is too short. Minimum is %.1f km.", distanceKm, s.rules.MinRouteKm))
	}
	if distanceKm > s.rules.MaxRouteKm {
		return domain.ValidationError("ROUTE_TOO_LONG",
			fmt.Sprintf("Route distance (%.1f km) exceeds maximum (%.1f km).", distanceKm, s.rules.MaxRouteKm))
	}
	if distanceKm > s.rules.LongRouteKm {
		return domain.ValidationWarning("LONG_ROUTE",
			fmt.Sprintf("This is a long-distance route (%.1f km). Please verify the information.", distanceKm))
	}

	return domain.ValidationOK()
}

// CheckTimeFormat enforces the 24-hour HH:mm format.
func (s *Service) CheckTimeFormat(value, field string) domain.ValidationResult {
	if !timePattern.MatchString(strings.TrimSpace(value)) {
		return domain.ValidationError("INVALID_TIME_FORMAT",
			fmt.Sprintf("Invalid %s time format: %q. Expected HH:mm format.", field, value))
	}
	return domain.ValidationOK()
}

// CheckArrivalAfterDeparture rejects equal times and warns on an apparent
// overnight journey. Overnight services are legitimate, so arrival before
// departure is never an error here.
func (s *Service) CheckArrivalAfterDeparture(departure, arrival string) domain.ValidationResult {
	dep, okDep := ParseClock(departure)
	arr, okArr := ParseClock(arrival)
	if !okDep || !okArr {
		return domain.ValidationError("INVALID_TIME", "Cannot parse departure or arrival time")
	}

	if arr == dep {
		return domain.ValidationError("SAME_DEPARTURE_ARRIVAL",
			"Arrival time cannot be the same as departure time")
	}
	if arr < dep {
		return domain.ValidationWarning("OVERNIGHT_JOURNEY",
			fmt.Sprintf("Arrival time (%s) is before departure (%s). Is this an overnight journey?", arrival, departure))
	}
	return domain.ValidationOK()
}

// CheckJourneyDuration compares the actual duration against the expected
// band derived from the bus speed envelope.
func (s *Service) CheckJourneyDuration(departure, arrival string, fromLat, fromLng, toLat, toLng float64) domain.ValidationResult {
	dep, okDep := ParseClock(departure)
	arr, okArr := ParseClock(arrival)
	if !okDep || !okArr {
		return domain.ValidationOK()
	}

	distanceKm := Haversine(fromLat, fromLng, toLat, toLng)
	actualMin := DurationMinutes(dep, arr)

	minExpected := int(distanceKm / s.rules.MaxSpeedKmh * 60)
	maxExpected := int(distanceKm / s.rules.MinSpeedKmh * 60)

	switch {
	case float64(actualMin) < float64(minExpected)*0.7:
		return domain.ValidationError("JOURNEY_TOO_FAST",
			fmt.Sprintf("Journey time (%d min) is too short for %.1f km. Minimum expected: %d min.",
				actualMin, distanceKm, minExpected))
	case actualMin > maxExpected*2:
		return domain.ValidationError("JOURNEY_TOO_SLOW",
			fmt.Sprintf("Journey time (%d min) is too long for %.1f km. Maximum expected: %d min.",
				actualMin, distanceKm, maxExpected*2))
	case actualMin < minExpected:
		return domain.ValidationWarning("FAST_JOURNEY",
			fmt.Sprintf("Journey time (%d min) seems fast for %.1f km. Is this an express bus?", actualMin, distanceKm))
	case actualMin > maxExpected:
		return domain.ValidationWarning("SLOW_JOURNEY",
			fmt.Sprintf("Journey time (%d min) seems slow for %.1f km. Does this bus have many stops?", actualMin, distanceKm))
	}

	return domain.ValidationOK()
}

// CheckStops validates the stop list: unique names, unique order indices, a
// monotonic time sequence (one overnight wrap tolerated), and per-stop
// coordinates.
func (s *Service) CheckStops(stops []domain.StopContribution) []domain.ValidationResult {
	if len(stops) == 0 {
		return nil
	}

	var results []domain.ValidationResult
	results = append(results, s.checkUniqueStopNames(stops))
	results = append(results, s.checkUniqueStopOrders(stops))
	results = append(results, s.checkStopTimeSequence(stops))

	for _, stop := range stops {
		if stop.Latitude != nil && stop.Longitude != nil {
			results = append(results, s.CheckCoordinates(*stop.Latitude, *stop.Longitude, "stop:"+stop.Name))
		}
	}
	return results
}

func (s *Service) checkUniqueStopNames(stops []domain.StopContribution) domain.ValidationResult {
	if len(stops) < 2 {
		return domain.ValidationOK()
	}

	seen := make(map[string]bool, len(stops))
	var duplicates []string
	for _, stop := range stops {
		norm := NormalizeName(stop.Name)
		if seen[norm] {
			duplicates = append(duplicates, stop.Name)
		}
		seen[norm] = true
	}

	if len(duplicates) > 0 {
		return domain.ValidationError("DUPLICATE_STOPS",
			"Duplicate stop names found: "+strings.Join(duplicates, ", "))
	}
	return domain.ValidationOK()
}

func (s *Service) checkUniqueStopOrders(stops []domain.StopContribution) domain.ValidationResult {
	seen := make(map[int]bool, len(stops))
	for _, stop := range stops {
		if seen[stop.Order] {
			return domain.ValidationError("DUPLICATE_STOP_ORDER",
				fmt.Sprintf("Stop order index %d appears more than once", stop.Order))
		}
		seen[stop.Order] = true
	}
	return domain.ValidationOK()
}

func (s *Service) checkStopTimeSequence(stops []domain.StopContribution) domain.ValidationResult {
	if len(stops) < 2 {
		return domain.ValidationOK()
	}

	prev := -1
	prevName := ""
	prevText := ""
	for _, stop := range stops {
		text := strings.TrimSpace(stop.ArrivalTime)
		if text == "" {
			text = strings.TrimSpace(stop.DepartureTime)
		}
		if text == "" {
			continue
		}
		cur, ok := ParseClock(text)
		if !ok {
			continue
		}

		if prev >= 0 && cur < prev {
			// Tolerate a single overnight wrap: late evening into early morning.
			overnight := prev > 20*60 && cur < 6*60
			if !overnight {
				return domain.ValidationError("STOP_TIME_SEQUENCE_ERROR",
					fmt.Sprintf("Stop %q time (%s) is before previous stop %q time (%s)",
						stop.Name, text, prevName, prevText))
			}
		}

		prev = cur
		prevName = stop.Name
		prevText = text
	}
	return domain.ValidationOK()
}

// NormalizeName lowercases a place name, collapses whitespace, and strips
// punctuation so that cosmetic variants compare equal.
func NormalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastSpace := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// ParseClock parses an HH:mm string into minutes since midnight.
func ParseClock(value string) (int, bool) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return hour*60 + minute, true
}

// DurationMinutes computes the journey length, adding 24h when arrival is
// before departure (overnight).
func DurationMinutes(departure, arrival int) int {
	if arrival < departure {
		return arrival + 24*60 - departure
	}
	return arrival - departure
}

func hasCoordinates(c domain.RouteContribution) bool {
	return c.FromLatitude != nil && c.FromLongitude != nil &&
		c.ToLatitude != nil && c.ToLongitude != nil
}

func hasParseableTimes(c domain.RouteContribution) bool {
	_, okDep := ParseClock(c.DepartureTime)
	_, okArr := ParseClock(c.ArrivalTime)
	return okDep && okArr
}
