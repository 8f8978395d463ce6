package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busboard/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestCheckLocationsDistinct(t *testing.T) {
	svc := New(DefaultRules())

	tests := []struct {
		name        string
		origin      string
		destination string
		wantCode    string
	}{
		{"identical", "Madurai", "Madurai", "SAME_ORIGIN_DESTINATION"},
		{"case difference", "Madurai", "MADURAI", "SAME_ORIGIN_DESTINATION"},
		{"whitespace difference", "  Madurai ", "Madurai", "SAME_ORIGIN_DESTINATION"},
		{"punctuation difference", "Madurai.", "Madurai", "SAME_ORIGIN_DESTINATION"},
		{"very similar names", "Aruppukkottai", "Aruppukottai", "SIMILAR_LOCATIONS"},
		{"distinct names", "Chennai", "Madurai", "OK"},
		{"missing origin", "", "Madurai", "MISSING_LOCATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.CheckLocationsDistinct(tt.origin, tt.destination)
			assert.Equal(t, tt.wantCode, res.Code)
			if res.Severity == domain.SeverityError {
				assert.False(t, res.Valid)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	d1 := Haversine(9.45, 77.80, 13.08, 80.27)
	d2 := Haversine(13.08, 80.27, 9.45, 77.80)
	assert.InDelta(t, d1, d2, 1e-9)
	assert.Greater(t, d1, 0.0)
}

func TestCheckCoordinates(t *testing.T) {
	svc := New(DefaultRules())

	tests := []struct {
		name     string
		lat, lng float64
		wantCode string
	}{
		{"inside primary area", 9.45, 77.80, "OK"},
		{"extended area", 7.8, 75.0, "OUTSIDE_PRIMARY_AREA"},
		{"outside service area", 28.6, 77.2, "OUTSIDE_SERVICE_AREA"},
		{"invalid latitude", 95.0, 77.0, "INVALID_COORDINATES"},
		{"invalid longitude", 10.0, 190.0, "INVALID_COORDINATES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.CheckCoordinates(tt.lat, tt.lng, "origin")
			assert.Equal(t, tt.wantCode, res.Code)
		})
	}
}

func TestCheckRouteDistance(t *testing.T) {
	svc := New(DefaultRules())

	// ~0.5 km apart
	res := svc.CheckRouteDistance(9.4500, 77.8000, 9.4545, 77.8000)
	assert.Equal(t, "ROUTE_TOO_SHORT", res.Code)

	// Sivakasi to Chennai, ~480 km
	res = svc.CheckRouteDistance(9.45, 77.80, 13.08, 80.27)
	assert.Equal(t, "OK", res.Code)
}

func TestCheckTimeFormat(t *testing.T) {
	svc := New(DefaultRules())

	assert.Equal(t, "OK", svc.CheckTimeFormat("08:00", "departure").Code)
	assert.Equal(t, "OK", svc.CheckTimeFormat("23:59", "departure").Code)

	for _, bad := range []string{"", "8am", "25:00", "08:60", "8.30", "0800"} {
		res := svc.CheckTimeFormat(bad, "departure")
		assert.Equal(t, "INVALID_TIME_FORMAT", res.Code, "input %q", bad)
		assert.False(t, res.Valid)
	}
}

func TestCheckArrivalAfterDeparture(t *testing.T) {
	svc := New(DefaultRules())

	res := svc.CheckArrivalAfterDeparture("08:00", "08:00")
	assert.Equal(t, "SAME_DEPARTURE_ARRIVAL", res.Code)
	assert.False(t, res.Valid)

	res = svc.CheckArrivalAfterDeparture("23:30", "01:00")
	assert.Equal(t, "OVERNIGHT_JOURNEY", res.Code)
	assert.Equal(t, domain.SeverityWarning, res.Severity)
	assert.True(t, res.Valid)

	res = svc.CheckArrivalAfterDeparture("08:00", "10:30")
	assert.Equal(t, "OK", res.Code)
}

func TestDurationMinutesOvernight(t *testing.T) {
	dep, ok := ParseClock("23:30")
	require.True(t, ok)
	arr, ok := ParseClock("01:00")
	require.True(t, ok)
	assert.Equal(t, 90, DurationMinutes(dep, arr))
}

func TestCheckJourneyDuration(t *testing.T) {
	svc := New(DefaultRules())

	// ~25 km in 10 minutes is ~150 km/h, beyond the 85 km/h envelope.
	res := svc.CheckJourneyDuration("08:00", "08:10", 9.4500, 77.80, 9.6746, 77.80)
	assert.Equal(t, "JOURNEY_TOO_FAST", res.Code)
	assert.False(t, res.Valid)

	// Same distance over 8 hours is far below walking-bus pace.
	res = svc.CheckJourneyDuration("08:00", "16:00", 9.4500, 77.80, 9.6746, 77.80)
	assert.Equal(t, "JOURNEY_TOO_SLOW", res.Code)

	// ~25 km in 30 minutes, plausible.
	res = svc.CheckJourneyDuration("08:00", "08:30", 9.4500, 77.80, 9.6746, 77.80)
	assert.Equal(t, "OK", res.Code)
}

func TestCheckStops(t *testing.T) {
	svc := New(DefaultRules())

	t.Run("duplicate names", func(t *testing.T) {
		results := svc.CheckStops([]domain.StopContribution{
			{Name: "Virudhunagar", Order: 1, ArrivalTime: "08:30"},
			{Name: "virudhunagar ", Order: 2, ArrivalTime: "09:00"},
		})
		assert.True(t, hasCode(results, "DUPLICATE_STOPS"))
	})

	t.Run("duplicate order index", func(t *testing.T) {
		results := svc.CheckStops([]domain.StopContribution{
			{Name: "Virudhunagar", Order: 1, ArrivalTime: "08:30"},
			{Name: "Sattur", Order: 1, ArrivalTime: "09:00"},
		})
		assert.True(t, hasCode(results, "DUPLICATE_STOP_ORDER"))
	})

	t.Run("time sequence violation", func(t *testing.T) {
		results := svc.CheckStops([]domain.StopContribution{
			{Name: "Virudhunagar", Order: 1, ArrivalTime: "09:00"},
			{Name: "Sattur", Order: 2, ArrivalTime: "08:50"},
		})
		assert.True(t, hasCode(results, "STOP_TIME_SEQUENCE_ERROR"))
	})

	t.Run("overnight wrap tolerated", func(t *testing.T) {
		results := svc.CheckStops([]domain.StopContribution{
			{Name: "Madurai", Order: 1, ArrivalTime: "22:30"},
			{Name: "Dindigul", Order: 2, ArrivalTime: "23:45"},
			{Name: "Salem", Order: 3, ArrivalTime: "02:30"},
		})
		assert.False(t, hasCode(results, "STOP_TIME_SEQUENCE_ERROR"))
	})
}

func TestValidateRouteAggregation(t *testing.T) {
	svc := New(DefaultRules())

	c := domain.RouteContribution{
		BusNumber:     "27D",
		FromName:      "Sivakasi",
		ToName:        "Madurai",
		FromLatitude:  ptr(9.4533), FromLongitude: ptr(77.8024),
		ToLatitude: ptr(9.9252), ToLongitude: ptr(78.1198),
		DepartureTime: "08:00",
		ArrivalTime:   "09:45",
	}
	report := svc.ValidateRoute(c)
	assert.True(t, report.Passing())
	assert.Empty(t, report.ErrorText())

	// One error anywhere fails the whole report.
	c.ArrivalTime = c.DepartureTime
	report = svc.ValidateRoute(c)
	assert.False(t, report.Passing())
	assert.Contains(t, report.ErrorText(), "Arrival time cannot be the same")

	// Warnings alone never block.
	c.DepartureTime = "23:00"
	c.ArrivalTime = "01:30" // overnight warning, duration still plausible
	report = svc.ValidateRoute(c)
	assert.True(t, report.Passing())
	assert.NotEmpty(t, report.WarningText())
}

func hasCode(results []domain.ValidationResult, code string) bool {
	for _, r := range results {
		if r.Code == code {
			return true
		}
	}
	return false
}
