package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"busboard/internal/domain"
	"busboard/internal/services/quality"
)

const uniqueViolation = "23505"

func (db *DB) RouteExists(ctx context.Context, busNumber, fromName, toName string) (bool, error) {
	var exists bool
	err := db.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM routes WHERE route_key = $1)
	`, routeKey(busNumber, fromName, toName)).Scan(&exists)
	return exists, err
}

// WriteRoute persists the route and its stops atomically. The unique index
// on route_key turns a concurrent double-write into ErrDuplicateRoute.
func (db *DB) WriteRoute(ctx context.Context, route domain.Route) (string, error) {
	if inTx(ctx) {
		return db.writeRoute(ctx, route)
	}
	var id string
	err := db.InTx(ctx, func(ctx context.Context) error {
		var err error
		id, err = db.writeRoute(ctx, route)
		return err
	})
	return id, err
}

func (db *DB) writeRoute(ctx context.Context, route domain.Route) (string, error) {
	id := uuid.NewString()
	q := db.q(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO routes (id, route_key, bus_number, bus_name, from_location_id, to_location_id, departure_time, arrival_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, id, routeKey(route.BusNumber, route.FromLocation.Name, route.ToLocation.Name),
		route.BusNumber, route.BusName, route.FromLocation.ID, route.ToLocation.ID,
		route.DepartureTime, route.ArrivalTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", domain.ErrDuplicateRoute
		}
		return "", err
	}
	for _, stop := range route.Stops {
		if _, err := q.Exec(ctx, `
			INSERT INTO route_stops (route_id, location_id, arrival_time, departure_time, stop_order)
			VALUES ($1,$2,$3,$4,$5)
		`, id, stop.Location.ID, stop.ArrivalTime, stop.DepartureTime, stop.Order); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (db *DB) LocationByName(ctx context.Context, name string) (domain.Location, bool, error) {
	var loc domain.Location
	err := db.q(ctx).QueryRow(ctx, `
		SELECT id, name, lat, lng FROM locations WHERE normalized_name = $1
	`, quality.NormalizeName(name)).Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Location{}, false, nil
	}
	if err != nil {
		return domain.Location{}, false, err
	}
	return loc, true, nil
}

func (db *DB) LocationNear(ctx context.Context, lat, lng, radiusKm float64) (domain.Location, bool, error) {
	// A degree spans roughly 111 km; a square window is close enough for the
	// small radii used in location resolution.
	radiusDeg := radiusKm / 111.0
	var loc domain.Location
	err := db.q(ctx).QueryRow(ctx, `
		SELECT id, name, lat, lng FROM locations
		WHERE lat BETWEEN $1 - $3 AND $1 + $3
		  AND lng BETWEEN $2 - $3 AND $2 + $3
		ORDER BY (lat - $1) * (lat - $1) + (lng - $2) * (lng - $2)
		LIMIT 1
	`, lat, lng, radiusDeg).Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Location{}, false, nil
	}
	if err != nil {
		return domain.Location{}, false, err
	}
	return loc, true, nil
}

func (db *DB) CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	err := db.q(ctx).QueryRow(ctx, `
		INSERT INTO locations (id, name, normalized_name, lat, lng)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (normalized_name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, uuid.NewString(), loc.Name, quality.NormalizeName(loc.Name), loc.Latitude, loc.Longitude).Scan(&loc.ID)
	if err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}

// routeKey joins the normalized parts so cosmetic variants of the same
// route collide on the unique index.
func routeKey(busNumber, fromName, toName string) string {
	return strings.ToUpper(strings.TrimSpace(busNumber)) + "|" +
		quality.NormalizeName(fromName) + "|" + quality.NormalizeName(toName)
}
