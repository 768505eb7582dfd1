package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/md-rashed-zaman/roomplanner/libs/db"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
	"github.com/stretchr/testify/require"
)

const (
	smallRoom = "11111111-1111-4111-8111-111111111111"
	largeRoom = "22222222-2222-4222-8222-222222222222"
	ana       = "33333333-3333-4333-8333-333333333333"
	ben       = "44444444-4444-4444-8444-444444444444"
)

// A nil minimum capacity has to reach Postgres as NULL for "$1::int IS NULL" to list every room.
func TestCapacityFilterEncoding(t *testing.T) {
	m := pgtype.NewMap()

	buf, err := m.Encode(pgtype.Int4OID, pgx.TextFormatCode, (*int)(nil), nil)
	require.NoError(t, err)
	require.Nil(t, buf)

	capacity := 6
	buf, err = m.Encode(pgtype.Int4OID, pgx.TextFormatCode, &capacity, nil)
	require.NoError(t, err)
	require.Equal(t, "6", string(buf))
}

// openTestSchema applies the migration into a throwaway schema. Set
// ROOMPLANNER_TEST_DATABASE_URL to run the Postgres-backed tests.
func openTestSchema(t *testing.T) *db.Pool {
	t.Helper()
	url := os.Getenv("ROOMPLANNER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ROOMPLANNER_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var b [6]byte
	_, _ = rand.Read(b[:])
	schema := "roomplanner_test_" + hex.EncodeToString(b[:])

	admin, err := db.Open(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	pool, err := db.Open(ctx, url+sep+"search_path="+schema)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migration, err := os.ReadFile("../../../../migrations/0001_scheduling.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(migration))
	require.NoError(t, err)
	return pool
}

func TestRepositoryAgainstPostgres(t *testing.T) {
	pool := openTestSchema(t)
	ctx := context.Background()
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	_, err := pool.Exec(ctx, `
		INSERT INTO locations (id, name, capacity, start_minute, end_minute) VALUES
			($1, 'Booth', 2, NULL, NULL),
			($2, 'Hall', 12, 480, NULL)`, smallRoom, largeRoom)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO attendees (id, name) VALUES ($1, 'Ana'), ($2, 'Ben')`, ana, ben)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO meetings (id, location_id, start_time, end_time, status) VALUES
			('55555555-5555-4555-8555-555555555555', $1, $2, $3, 'booked'),
			('66666666-6666-4666-8666-666666666666', $1, $4, $5, 'cancelled'),
			('77777777-7777-4777-8777-777777777777', $1, $6, $7, 'booked')`,
		largeRoom, at(10, 0), at(11, 0), at(12, 0), at(13, 0), at(20, 0), at(21, 0))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO meeting_attendees (meeting_id, attendee_id) VALUES
		('55555555-5555-4555-8555-555555555555', $1)`, ana)
	require.NoError(t, err)

	repo := NewRepository(pool)

	all, err := repo.CandidateLocations(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	capacity := 6
	large, err := repo.CandidateLocations(ctx, &capacity)
	require.NoError(t, err)
	require.Len(t, large, 1)
	require.Equal(t, largeRoom, large[0].ID)
	require.NotNil(t, large[0].Hours.StartMinute)
	require.Equal(t, 480, *large[0].Hours.StartMinute)
	require.Nil(t, large[0].Hours.EndMinute)

	hours, err := repo.WorkingHours(ctx, scheduling.AttendeeResource(ben))
	require.NoError(t, err)
	require.Nil(t, hours.StartMinute)

	_, err = repo.WorkingHours(ctx, scheduling.LocationResource("88888888-8888-4888-8888-888888888888"))
	require.ErrorIs(t, err, scheduling.ErrNotFound)

	window := availability.Interval{Start: at(9, 0), End: at(17, 0)}
	busy, err := repo.BusyIntervals(ctx, scheduling.LocationResource(largeRoom), window)
	require.NoError(t, err)
	require.Len(t, busy, 1, "cancelled and out-of-window meetings must not block")
	require.True(t, busy[0].Start.Equal(at(10, 0)))

	busy, err = repo.BusyIntervals(ctx, scheduling.AttendeeResource(ana), window)
	require.NoError(t, err)
	require.Len(t, busy, 1)

	busy, err = repo.BusyIntervals(ctx, scheduling.AttendeeResource(ben), window)
	require.NoError(t, err)
	require.Empty(t, busy)
}

func TestSchemaRejectsZeroLengthHours(t *testing.T) {
	pool := openTestSchema(t)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO locations (name, capacity, start_minute, end_minute) VALUES ('Closet', 1, 600, 600)`)
	require.Error(t, err)
}
