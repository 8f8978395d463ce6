package quality

// BoundingBox is a lat/lng rectangle.
type BoundingBox struct {
	MinLatitude  float64 `yaml:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude"`
	MinLongitude float64 `yaml:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude"`
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude &&
		lng >= b.MinLongitude && lng <= b.MaxLongitude
}

// Rules holds the tunable constants behind the quality checks. The zero
// value is not usable; start from DefaultRules and override via the rules
// file.
type Rules struct {
	// PrimaryArea is the main service region; coordinates inside it pass.
	PrimaryArea BoundingBox `yaml:"primary_area"`
	// ExtendedArea covers neighboring regions; coordinates there warn.
	ExtendedArea BoundingBox `yaml:"extended_area"`

	// Assumed bus speed envelope, km/h.
	MinSpeedKmh float64 `yaml:"min_speed_kmh"`
	MaxSpeedKmh float64 `yaml:"max_speed_kmh"`

	// Route distance limits, km.
	MinRouteKm  float64 `yaml:"min_route_km"`
	MaxRouteKm  float64 `yaml:"max_route_km"`
	LongRouteKm float64 `yaml:"long_route_km"`

	// Name similarity above which origin/destination draw a warning.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// DefaultRules matches the primary service region (Tamil Nadu) with an
// extended box over the neighboring states.
func DefaultRules() Rules {
	return Rules{
		PrimaryArea: BoundingBox{
			MinLatitude: 8.0, MaxLatitude: 14.0,
			MinLongitude: 76.0, MaxLongitude: 81.0,
		},
		ExtendedArea: BoundingBox{
			MinLatitude: 7.5, MaxLatitude: 15.0,
			MinLongitude: 74.0, MaxLongitude: 82.0,
		},
		MinSpeedKmh:         20.0,
		MaxSpeedKmh:         85.0,
		MinRouteKm:          1.0,
		MaxRouteKm:          1000.0,
		LongRouteKm:         500.0,
		SimilarityThreshold: 0.85,
	}
}
