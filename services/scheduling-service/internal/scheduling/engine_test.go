package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func iv(h1, m1, h2, m2 int) availability.Interval {
	return availability.Interval{Start: at(h1, m1), End: at(h2, m2)}
}

type fakeStore struct {
	hours         map[Resource]availability.WorkingHours
	busy          map[Resource][]availability.Interval
	locations     []Location
	locationCalls atomic.Int32
	busyErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hours: map[Resource]availability.WorkingHours{},
		busy:  map[Resource][]availability.Interval{},
	}
}

func (f *fakeStore) addAttendee(id string, busy ...availability.Interval) {
	f.hours[AttendeeResource(id)] = availability.WorkingHours{}
	f.busy[AttendeeResource(id)] = busy
}

func (f *fakeStore) addLocation(loc Location, busy ...availability.Interval) {
	f.locations = append(f.locations, loc)
	f.hours[LocationResource(loc.ID)] = loc.Hours
	f.busy[LocationResource(loc.ID)] = busy
}

func (f *fakeStore) WorkingHours(_ context.Context, r Resource) (availability.WorkingHours, error) {
	h, ok := f.hours[r]
	if !ok {
		return availability.WorkingHours{}, fmt.Errorf("%s: %w", r, ErrNotFound)
	}
	return h, nil
}

func (f *fakeStore) BusyIntervals(_ context.Context, r Resource, window availability.Interval) ([]availability.Interval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	var out []availability.Interval
	for _, b := range f.busy[r] {
		if b.Start.Before(window.End) && b.End.After(window.Start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CandidateLocations(_ context.Context, minCapacity *int) ([]Location, error) {
	f.locationCalls.Add(1)
	var out []Location
	for _, l := range f.locations {
		if minCapacity == nil || l.Capacity >= *minCapacity {
			out = append(out, l)
		}
	}
	return out, nil
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, nil, metrics.MustNew(prometheus.NewRegistry()), Config{MaxParallel: 2})
}

func describe(slots []LocationSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, fmt.Sprintf("%s %s-%s", s.Location.ID, s.Slot.Start.Format("15:04"), s.Slot.End.Format("15:04")))
	}
	return out
}

func describeIntervals(slots []availability.Interval) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.Format("15:04")+"-"+s.End.Format("15:04"))
	}
	return out
}

func TestFreeSlots_Attendee(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(10, 0, 11, 0))

	got, err := newTestEngine(store).FreeSlots(context.Background(), AttendeeResource("a"), day)
	require.NoError(t, err)
	require.Equal(t, []string{"09:00-10:00", "11:00-17:00"}, describeIntervals(got))
}

func TestFreeSlots_OvernightLocation(t *testing.T) {
	store := newFakeStore()
	next := day.AddDate(0, 0, 1)
	store.addLocation(Location{ID: "night", Capacity: 4, Hours: availability.WorkingHours{
		StartMinute: availability.Minutes(22 * 60),
		EndMinute:   availability.Minutes(6 * 60),
	}}, availability.Interval{Start: next.Add(time.Hour), End: next.Add(2 * time.Hour)})

	got, err := newTestEngine(store).FreeSlots(context.Background(), LocationResource("night"), day.Add(13*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].Equal(availability.Interval{Start: at(22, 0), End: next.Add(time.Hour)}))
	require.True(t, got[1].Equal(availability.Interval{Start: next.Add(2 * time.Hour), End: next.Add(6 * time.Hour)}))
}

func TestFreeSlots_UnknownResource(t *testing.T) {
	_, err := newTestEngine(newFakeStore()).FreeSlots(context.Background(), LocationResource("missing"), day)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCommonAvailability_TwoAttendees(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(11, 0, 14, 0), iv(16, 0, 17, 0))
	store.addAttendee("b", iv(9, 0, 10, 0), iv(12, 0, 15, 0))

	got, err := newTestEngine(store).CommonAvailability(context.Background(), []string{"b", "a", "b"}, day)
	require.NoError(t, err)
	require.Equal(t, []string{"10:00-11:00", "15:00-16:00"}, describeIntervals(got))
}

func TestCommonAvailability_Empty(t *testing.T) {
	got, err := newTestEngine(newFakeStore()).CommonAvailability(context.Background(), nil, day)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCommonAvailability_UnknownAttendeeAlwaysFails(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(9, 0, 17, 0))
	store.addAttendee("b")

	// a and b never overlap, so a lazy fold would stop before reaching "c".
	for _, ids := range [][]string{{"a", "b", "c"}, {"c", "b", "a"}, {"b", "c", "a"}} {
		_, err := newTestEngine(store).CommonAvailability(context.Background(), ids, day)
		require.ErrorIs(t, err, ErrNotFound, "ids %v", ids)
	}
}

func TestCommonAvailability_NeverGrows(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(9, 0, 10, 0))
	store.addAttendee("b", iv(12, 0, 13, 0), iv(15, 0, 15, 30))
	store.addAttendee("c", iv(9, 30, 11, 0), iv(16, 0, 17, 0))
	engine := newTestEngine(store)

	var prev time.Duration = 24 * time.Hour
	for _, ids := range [][]string{{"a"}, {"a", "b"}, {"a", "b", "c"}} {
		got, err := engine.CommonAvailability(context.Background(), ids, day)
		require.NoError(t, err)
		total := availability.Total(got)
		require.LessOrEqual(t, total, prev, "ids %v", ids)
		prev = total
	}
}

func TestCommonAvailability_PropagatesLookupError(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a")
	store.busyErr = errors.New("connection reset")

	_, err := newTestEngine(store).CommonAvailability(context.Background(), []string{"a"}, day)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestLocationAvailability_FiltersByCapacityAndDuration(t *testing.T) {
	store := newFakeStore()
	store.addLocation(Location{ID: "small", Capacity: 2}, iv(9, 30, 10, 0))
	store.addLocation(Location{ID: "large", Capacity: 12}, iv(10, 0, 10, 45), iv(12, 0, 16, 15))

	capacity := 3
	got, err := newTestEngine(store).LocationAvailability(context.Background(), day, time.Hour, &capacity)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"large 09:00-10:00", "large 10:45-12:00"}, describe(got))

	got, err = newTestEngine(store).LocationAvailability(context.Background(), day, 30*time.Minute, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"small 09:00-09:30", "small 10:00-17:00",
		"large 09:00-10:00", "large 10:45-12:00", "large 16:15-17:00",
	}, describe(got))
}

func TestLocationAvailability_CapacityNotFound(t *testing.T) {
	store := newFakeStore()
	store.addLocation(Location{ID: "room", Capacity: 10})

	capacity := 20
	_, err := newTestEngine(store).LocationAvailability(context.Background(), day, time.Hour, &capacity)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, ErrNoLocationWithCapacity)
}

func TestLocationAvailability_NoLocationsAtAll(t *testing.T) {
	got, err := newTestEngine(newFakeStore()).LocationAvailability(context.Background(), day, time.Hour, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSuggest_CrossIntersectsAttendeesAndRooms(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(12, 0, 13, 0))
	store.addAttendee("b")
	store.addLocation(Location{ID: "room1", Capacity: 2}, iv(10, 30, 11, 30))
	store.addLocation(Location{ID: "room2", Capacity: 1})
	store.addLocation(Location{ID: "room3", Capacity: 5, Hours: availability.WorkingHours{StartMinute: availability.Minutes(13 * 60)}})

	got, err := newTestEngine(store).Suggest(context.Background(), []string{"a", "b"}, time.Hour, day)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"room1 09:00-10:30", "room1 13:00-17:00", "room3 13:00-17:00"}, describe(got))
}

func TestSuggest_ShortCommonGapSkipsLocationLookup(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(9, 0, 10, 0), iv(10, 30, 17, 0))
	store.addAttendee("b")
	store.addLocation(Location{ID: "room", Capacity: 10})

	got, err := newTestEngine(store).Suggest(context.Background(), []string{"a", "b"}, time.Hour, day)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, store.locationCalls.Load())
}

func TestSuggest_NoRoomLargeEnoughIsEmpty(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a")
	store.addAttendee("b")
	store.addAttendee("c")
	store.addLocation(Location{ID: "booth", Capacity: 2})

	got, err := newTestEngine(store).Suggest(context.Background(), []string{"a", "b", "c"}, 30*time.Minute, day)
	require.NoError(t, err)
	require.Empty(t, got)
	require.EqualValues(t, 1, store.locationCalls.Load())
}

func querySeries(t *testing.T, reg *prometheus.Registry) []string {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var out []string
	for _, mf := range families {
		if mf.GetName() != "roomplanner_scheduling_query_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, labels["operation"]+"/"+labels["status"])
		}
	}
	return out
}

func TestSuggest_NoRoomLargeEnoughIsNotRecordedAsFailure(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a")
	store.addAttendee("b")
	store.addAttendee("c")
	store.addLocation(Location{ID: "booth", Capacity: 2})

	reg := prometheus.NewRegistry()
	engine := NewEngine(store, nil, metrics.MustNew(reg), Config{})

	got, err := engine.Suggest(context.Background(), []string{"a", "b", "c"}, 30*time.Minute, day)
	require.NoError(t, err)
	require.Empty(t, got)
	require.ElementsMatch(t, []string{"common_availability/ok", "suggest/ok"}, querySeries(t, reg))

	capacity := 3
	_, err = engine.LocationAvailability(context.Background(), day, 0, &capacity)
	require.ErrorIs(t, err, ErrNoLocationWithCapacity)
	require.Contains(t, querySeries(t, reg), "location_availability/error")
}

func TestSuggest_IntersectionShorterThanDurationDropped(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(9, 0, 10, 0), iv(11, 0, 17, 0))
	store.addLocation(Location{ID: "room", Capacity: 1}, iv(9, 0, 9, 30), iv(10, 30, 17, 0))

	got, err := newTestEngine(store).Suggest(context.Background(), []string{"a"}, 45*time.Minute, day)
	require.NoError(t, err)
	require.Empty(t, got, "only 30 minutes overlap: %v", describe(got))
}

func TestSuggest_DeduplicatesIdenticalPairs(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(12, 0, 13, 0))
	room := Location{ID: "room", Capacity: 3}
	store.addLocation(room)
	store.locations = append(store.locations, room)

	got, err := newTestEngine(store).Suggest(context.Background(), []string{"a"}, time.Hour, day)
	require.NoError(t, err)
	require.Equal(t, []string{"room 09:00-12:00", "room 13:00-17:00"}, describe(got))
}

func TestSuggest_UnknownAttendee(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a")
	store.addLocation(Location{ID: "room", Capacity: 3})

	_, err := newTestEngine(store).Suggest(context.Background(), []string{"a", "ghost"}, time.Hour, day)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSuggest_NonPositiveDurationKeepsAllOverlaps(t *testing.T) {
	store := newFakeStore()
	store.addAttendee("a", iv(10, 0, 16, 0))
	store.addLocation(Location{ID: "room", Capacity: 1}, iv(9, 0, 9, 50))

	got, err := newTestEngine(store).Suggest(context.Background(), []string{"a"}, 0, day)
	require.NoError(t, err)
	require.Equal(t, []string{"room 09:50-10:00", "room 16:00-17:00"}, describe(got))
}
