package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"busboard/internal/domain"
	"busboard/internal/ports"
)

var (
	_ ports.ContributionRepository = (*DB)(nil)
	_ ports.CanonicalRepository    = (*DB)(nil)
	_ ports.TxRunner               = (*DB)(nil)
)

const routeContributionColumns = `
	id, submitted_by, bus_number, bus_name,
	from_name, from_lat, from_lng, to_name, to_lat, to_lng,
	departure_time, arrival_time, notes,
	status, status_message, submission_date, processed_date, source_image_id`

func (db *DB) SaveRoute(ctx context.Context, c domain.RouteContribution) (domain.RouteContribution, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	q := db.q(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO route_contributions (
			id, submitted_by, bus_number, bus_name,
			from_name, from_lat, from_lng, to_name, to_lat, to_lng,
			departure_time, arrival_time, notes,
			status, status_message, submission_date, processed_date, source_image_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, c.ID, c.SubmittedBy, c.BusNumber, c.BusName,
		c.FromName, c.FromLatitude, c.FromLongitude, c.ToName, c.ToLatitude, c.ToLongitude,
		c.DepartureTime, c.ArrivalTime, c.Notes,
		c.Status, c.StatusMessage, c.SubmissionDate, c.ProcessedDate, nullable(c.SourceImageID))
	if err != nil {
		return domain.RouteContribution{}, err
	}
	for _, stop := range c.Stops {
		if _, err := q.Exec(ctx, `
			INSERT INTO route_contribution_stops (contribution_id, name, lat, lng, arrival_time, departure_time, stop_order)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, c.ID, stop.Name, stop.Latitude, stop.Longitude, stop.ArrivalTime, stop.DepartureTime, stop.Order); err != nil {
			return domain.RouteContribution{}, err
		}
	}
	return c, nil
}

func (db *DB) SaveImage(ctx context.Context, c domain.ImageContribution) (domain.ImageContribution, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := db.q(ctx).Exec(ctx, `
		INSERT INTO image_contributions (
			id, submitted_by, image_path, digest, description,
			extracted_text, derived_route_id,
			status, status_message, submission_date, processed_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, c.ID, c.SubmittedBy, c.ImagePath, c.Digest, c.Description,
		c.ExtractedText, nullable(c.DerivedRouteID),
		c.Status, c.StatusMessage, c.SubmissionDate, c.ProcessedDate)
	if err != nil {
		return domain.ImageContribution{}, err
	}
	return c, nil
}

func (db *DB) RouteByID(ctx context.Context, id string) (domain.RouteContribution, error) {
	row := db.q(ctx).QueryRow(ctx, `
		SELECT `+routeContributionColumns+`
		FROM route_contributions WHERE id = $1
	`, id)
	c, err := scanRouteContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RouteContribution{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RouteContribution{}, err
	}
	c.Stops, err = db.stopsFor(ctx, id)
	return c, err
}

func (db *DB) ImageByID(ctx context.Context, id string) (domain.ImageContribution, error) {
	row := db.q(ctx).QueryRow(ctx, `
		SELECT id, submitted_by, image_path, digest, description,
		       extracted_text, COALESCE(derived_route_id::text, ''),
		       status, status_message, submission_date, processed_date
		FROM image_contributions WHERE id = $1
	`, id)
	c, err := scanImageContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImageContribution{}, domain.ErrNotFound
	}
	return c, err
}

func (db *DB) PendingRoutes(ctx context.Context) ([]domain.RouteContribution, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT `+routeContributionColumns+`
		FROM route_contributions
		WHERE status = $1
		ORDER BY submission_date
	`, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RouteContribution
	for rows.Next() {
		c, err := scanRouteContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Stops, err = db.stopsFor(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) PendingImages(ctx context.Context) ([]domain.ImageContribution, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT id, submitted_by, image_path, digest, description,
		       extracted_text, COALESCE(derived_route_id::text, ''),
		       status, status_message, submission_date, processed_date
		FROM image_contributions
		WHERE status = $1
		ORDER BY submission_date
	`, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ImageContribution
	for rows.Next() {
		c, err := scanImageContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) BySubmitter(ctx context.Context, submitterID string) ([]domain.RouteContribution, []domain.ImageContribution, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT `+routeContributionColumns+`
		FROM route_contributions
		WHERE submitted_by = $1
		ORDER BY submission_date DESC
	`, submitterID)
	if err != nil {
		return nil, nil, err
	}
	var routes []domain.RouteContribution
	for rows.Next() {
		c, err := scanRouteContribution(rows)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		routes = append(routes, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = db.q(ctx).Query(ctx, `
		SELECT id, submitted_by, image_path, digest, description,
		       extracted_text, COALESCE(derived_route_id::text, ''),
		       status, status_message, submission_date, processed_date
		FROM image_contributions
		WHERE submitted_by = $1
		ORDER BY submission_date DESC
	`, submitterID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var images []domain.ImageContribution
	for rows.Next() {
		c, err := scanImageContribution(rows)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, c)
	}
	return routes, images, rows.Err()
}

func (db *DB) TransitionRoute(ctx context.Context, id string, from, to domain.Status, message string) (domain.RouteContribution, error) {
	if !from.CanTransitionTo(to) {
		return domain.RouteContribution{}, fmt.Errorf("transition %s -> %s: %w", from, to, domain.ErrInvalidState)
	}
	row := db.q(ctx).QueryRow(ctx, `
		UPDATE route_contributions
		SET status = $3, status_message = $4, processed_date = now()
		WHERE id = $1 AND status = $2
		RETURNING `+routeContributionColumns+`
	`, id, from, to, message)
	c, err := scanRouteContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RouteContribution{}, db.classifyRouteMiss(ctx, id)
	}
	if err != nil {
		return domain.RouteContribution{}, err
	}
	c.Stops, err = db.stopsFor(ctx, id)
	return c, err
}

func (db *DB) TransitionImage(ctx context.Context, id string, from, to domain.Status, message string) (domain.ImageContribution, error) {
	if !from.CanTransitionTo(to) {
		return domain.ImageContribution{}, fmt.Errorf("transition %s -> %s: %w", from, to, domain.ErrInvalidState)
	}
	row := db.q(ctx).QueryRow(ctx, `
		UPDATE image_contributions
		SET status = $3, status_message = $4, processed_date = now()
		WHERE id = $1 AND status = $2
		RETURNING id, submitted_by, image_path, digest, description,
		          extracted_text, COALESCE(derived_route_id::text, ''),
		          status, status_message, submission_date, processed_date
	`, id, from, to, message)
	c, err := scanImageContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImageContribution{}, db.classifyImageMiss(ctx, id)
	}
	return c, err
}

// classifyRouteMiss decides whether a guarded update missed because the row
// is gone or because its status moved underneath us.
func (db *DB) classifyRouteMiss(ctx context.Context, id string) error {
	var status string
	err := db.q(ctx).QueryRow(ctx, `SELECT status FROM route_contributions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrStatusConflict
}

func (db *DB) classifyImageMiss(ctx context.Context, id string) error {
	var status string
	err := db.q(ctx).QueryRow(ctx, `SELECT status FROM image_contributions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrStatusConflict
}

func (db *DB) SetImageExtraction(ctx context.Context, id, text, derivedRouteID string) error {
	tag, err := db.q(ctx).Exec(ctx, `
		UPDATE image_contributions SET extracted_text = $2, derived_route_id = $3 WHERE id = $1
	`, id, text, nullable(derivedRouteID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) ApprovedImageDigestSince(ctx context.Context, digest string, cutoff time.Time) (bool, error) {
	var seen bool
	err := db.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM image_contributions
			WHERE digest = $1 AND status = $2 AND processed_date >= $3
		)
	`, digest, domain.StatusApproved, cutoff).Scan(&seen)
	return seen, err
}

func (db *DB) CountByTypeAndStatus(ctx context.Context) (map[domain.ContributionType]map[domain.Status]int, error) {
	out := map[domain.ContributionType]map[domain.Status]int{
		domain.TypeRoute: {},
		domain.TypeImage: {},
	}

	rows, err := db.q(ctx).Query(ctx, `SELECT status, count(*) FROM route_contributions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	if err := collectCounts(rows, out[domain.TypeRoute]); err != nil {
		return nil, err
	}

	rows, err = db.q(ctx).Query(ctx, `SELECT status, count(*) FROM image_contributions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	if err := collectCounts(rows, out[domain.TypeImage]); err != nil {
		return nil, err
	}
	return out, nil
}

func collectCounts(rows pgx.Rows, into map[domain.Status]int) error {
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		into[domain.Status(status)] = count
	}
	return rows.Err()
}

func (db *DB) stopsFor(ctx context.Context, contributionID string) ([]domain.StopContribution, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT name, lat, lng, arrival_time, departure_time, stop_order
		FROM route_contribution_stops
		WHERE contribution_id = $1
		ORDER BY stop_order
	`, contributionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []domain.StopContribution
	for rows.Next() {
		var s domain.StopContribution
		if err := rows.Scan(&s.Name, &s.Latitude, &s.Longitude, &s.ArrivalTime, &s.DepartureTime, &s.Order); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func scanRouteContribution(row pgx.Row) (domain.RouteContribution, error) {
	var c domain.RouteContribution
	var sourceImageID *string
	err := row.Scan(&c.ID, &c.SubmittedBy, &c.BusNumber, &c.BusName,
		&c.FromName, &c.FromLatitude, &c.FromLongitude, &c.ToName, &c.ToLatitude, &c.ToLongitude,
		&c.DepartureTime, &c.ArrivalTime, &c.Notes,
		&c.Status, &c.StatusMessage, &c.SubmissionDate, &c.ProcessedDate, &sourceImageID)
	if err != nil {
		return domain.RouteContribution{}, err
	}
	if sourceImageID != nil {
		c.SourceImageID = *sourceImageID
	}
	return c, nil
}

func scanImageContribution(row pgx.Row) (domain.ImageContribution, error) {
	var c domain.ImageContribution
	err := row.Scan(&c.ID, &c.SubmittedBy, &c.ImagePath, &c.Digest, &c.Description,
		&c.ExtractedText, &c.DerivedRouteID,
		&c.Status, &c.StatusMessage, &c.SubmissionDate, &c.ProcessedDate)
	if err != nil {
		return domain.ImageContribution{}, err
	}
	return c, nil
}

// nullable maps the empty string to NULL for optional foreign keys.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
