package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/roomplanner/libs/db"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
)

// Repository reads locations, attendees and meetings for the scheduling engine.
type Repository struct {
	pool *db.Pool
}

var _ scheduling.Store = (*Repository)(nil)

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WorkingHours(ctx context.Context, res scheduling.Resource) (availability.WorkingHours, error) {
	var query string
	switch res.Kind {
	case scheduling.KindLocation:
		query = `SELECT start_minute, end_minute FROM locations WHERE id = $1`
	case scheduling.KindAttendee:
		query = `SELECT start_minute, end_minute FROM attendees WHERE id = $1`
	default:
		return availability.WorkingHours{}, fmt.Errorf("unknown resource kind %q", res.Kind)
	}

	var wh availability.WorkingHours
	err := r.pool.QueryRow(ctx, query, res.ID).Scan(&wh.StartMinute, &wh.EndMinute)
	if IsNotFound(err) {
		return availability.WorkingHours{}, fmt.Errorf("%s: %w", res, scheduling.ErrNotFound)
	}
	if err != nil {
		return availability.WorkingHours{}, err
	}
	return wh, nil
}

// BusyIntervals lists booked meetings overlapping window. Cancelled meetings do not block.
func (r *Repository) BusyIntervals(ctx context.Context, res scheduling.Resource, window availability.Interval) ([]availability.Interval, error) {
	var query string
	switch res.Kind {
	case scheduling.KindLocation:
		query = `
			SELECT m.start_time, m.end_time
			FROM meetings m
			WHERE m.location_id = $1
				AND m.status = 'booked'
				AND m.start_time < $3
				AND m.end_time > $2
			ORDER BY m.start_time ASC
		`
	case scheduling.KindAttendee:
		query = `
			SELECT m.start_time, m.end_time
			FROM meetings m
			JOIN meeting_attendees ma ON ma.meeting_id = m.id
			WHERE ma.attendee_id = $1
				AND m.status = 'booked'
				AND m.start_time < $3
				AND m.end_time > $2
			ORDER BY m.start_time ASC
		`
	default:
		return nil, fmt.Errorf("unknown resource kind %q", res.Kind)
	}

	rows, err := r.pool.Query(ctx, query, res.ID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		out = append(out, availability.Interval{
			Start: start.In(window.Start.Location()),
			End:   end.In(window.Start.Location()),
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) CandidateLocations(ctx context.Context, minCapacity *int) ([]scheduling.Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, capacity, start_minute, end_minute
		FROM locations
		WHERE $1::int IS NULL OR capacity >= $1
		ORDER BY capacity ASC, id ASC
	`, minCapacity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduling.Location
	for rows.Next() {
		var l scheduling.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Capacity, &l.Hours.StartMinute, &l.Hours.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
