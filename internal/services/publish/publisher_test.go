package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busboard/internal/adapters/memory"
	"busboard/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestPublishCreatesLocationsAndRoute(t *testing.T) {
	store := memory.NewStore()
	pub := New(store)
	ctx := context.Background()

	id, err := pub.Publish(ctx, domain.RouteContribution{
		BusNumber:     "27d",
		FromName:      "sivakasi",
		FromLatitude:  ptr(9.4533),
		FromLongitude: ptr(77.8024),
		ToName:        "madurai",
		ToLatitude:    ptr(9.9252),
		ToLongitude:   ptr(78.1198),
		DepartureTime: "06:00",
		ArrivalTime:   "08:30",
		Stops: []domain.StopContribution{
			{Name: "virudhunagar", Order: 1},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, store.CanonicalRouteCount())

	// Place names are stored in display form.
	loc, ok, err := store.LocationByName(ctx, "Sivakasi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sivakasi", loc.Name)
}

func TestPublishReusesLocationByName(t *testing.T) {
	store := memory.NewStore()
	pub := New(store)
	ctx := context.Background()

	existing, err := store.CreateLocation(ctx, domain.Location{Name: "Salem"})
	require.NoError(t, err)

	_, err = pub.Publish(ctx, domain.RouteContribution{
		BusNumber: "45",
		FromName:  "  SALEM ",
		ToName:    "Erode",
	})
	require.NoError(t, err)

	got, ok, err := store.LocationByName(ctx, "salem")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, existing.ID, got.ID, "no near-duplicate location created")
}

func TestPublishReusesLocationByProximity(t *testing.T) {
	store := memory.NewStore()
	pub := New(store)
	ctx := context.Background()

	lat, lng := 11.6643, 78.1460
	existing, err := store.CreateLocation(ctx, domain.Location{Name: "Salem Junction", Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)

	_, err = pub.Publish(ctx, domain.RouteContribution{
		BusNumber:     "45",
		FromName:      "Salem New Bus Stand",
		FromLatitude:  ptr(11.6650),
		FromLongitude: ptr(78.1470),
		ToName:        "Erode",
	})
	require.NoError(t, err)

	// The differently named but co-located place resolved to the existing
	// record instead of creating a sibling a few hundred meters away.
	_, ok, err := store.LocationByName(ctx, "Salem New Bus Stand")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := store.LocationByName(ctx, "Salem Junction")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, existing.ID, got.ID)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Salem Junction", DisplayName("  salem   JUNCTION "))
	assert.Equal(t, "Sivakasi", DisplayName("sivakasi!"))
}
