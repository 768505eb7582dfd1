package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Defaults apply to any resource without its own working hours.
	Defaults availability.Hours
	// Location is the server time zone every date is interpreted in.
	Location *time.Location
	// MaxParallel bounds concurrent per-resource lookups within one query.
	MaxParallel int
}

// Engine answers availability queries. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewEngine(store Store, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Engine {
	if cfg.Defaults == (availability.Hours{}) {
		cfg.Defaults = availability.DefaultHours
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("scheduling"),
	}
}

// FreeSlots returns the free slots of a single location or attendee on day.
func (e *Engine) FreeSlots(ctx context.Context, r Resource, day time.Time) (slots []availability.Interval, err error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.free_slots", trace.WithAttributes(
		attribute.String("resource.kind", string(r.Kind)),
		attribute.String("resource.id", r.ID),
	))
	defer e.finish(span, "free_slots", time.Now(), func() int { return len(slots) }, &err)

	return e.resourceFreeSlots(ctx, r, e.midnight(day))
}

// CommonAvailability intersects the free slots of every attendee. All attendees are resolved
// before folding, so an unknown ID fails with ErrNotFound regardless of set order.
func (e *Engine) CommonAvailability(ctx context.Context, attendeeIDs []string, day time.Time) (slots []availability.Interval, err error) {
	ids := distinctSorted(attendeeIDs)
	ctx, span := e.tracer.Start(ctx, "scheduling.common_availability", trace.WithAttributes(
		attribute.Int("attendees", len(ids)),
	))
	defer e.finish(span, "common_availability", time.Now(), func() int { return len(slots) }, &err)

	if len(ids) == 0 {
		return nil, nil
	}
	day = e.midnight(day)

	perAttendee := make([][]availability.Interval, len(ids))
	e.metrics.ObserveFanout(string(KindAttendee), len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			free, err := e.resourceFreeSlots(gctx, AttendeeResource(id), day)
			if err != nil {
				return err
			}
			perAttendee[i] = free
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	common := perAttendee[0]
	for _, next := range perAttendee[1:] {
		if len(common) == 0 {
			break
		}
		common = availability.Intersect(common, next)
	}
	return common, nil
}

// LocationAvailability lists free slots of at least minDuration for every location that
// satisfies minCapacity (or every location when minCapacity is nil).
func (e *Engine) LocationAvailability(ctx context.Context, day time.Time, minDuration time.Duration, minCapacity *int) (slots []LocationSlot, err error) {
	attrs := []attribute.KeyValue{attribute.Int64("min_minutes", int64(minDuration/time.Minute))}
	if minCapacity != nil {
		attrs = append(attrs, attribute.Int("min_capacity", *minCapacity))
	}
	ctx, span := e.tracer.Start(ctx, "scheduling.location_availability", trace.WithAttributes(attrs...))
	defer e.finish(span, "location_availability", time.Now(), func() int { return len(slots) }, &err)

	return e.locationAvailability(ctx, day, minDuration, minCapacity)
}

// locationAvailability is LocationAvailability without its own span and query metrics, so
// Suggest can treat ErrNoLocationWithCapacity as an empty answer rather than a failed query.
func (e *Engine) locationAvailability(ctx context.Context, day time.Time, minDuration time.Duration, minCapacity *int) ([]LocationSlot, error) {
	locations, err := e.store.CandidateLocations(ctx, minCapacity)
	if err != nil {
		return nil, fmt.Errorf("candidate locations: %w", err)
	}
	if len(locations) == 0 {
		if minCapacity != nil {
			return nil, ErrNoLocationWithCapacity
		}
		return nil, nil
	}
	day = e.midnight(day)

	perLocation := make([][]LocationSlot, len(locations))
	e.metrics.ObserveFanout(string(KindLocation), len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			window := loc.Hours.Window(day, e.cfg.Defaults)
			free, err := e.freeWithin(gctx, LocationResource(loc.ID), window)
			if err != nil {
				return err
			}
			for _, s := range availability.AtLeast(free, minDuration) {
				perLocation[i] = append(perLocation[i], LocationSlot{Location: loc, Slot: s})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var slots []LocationSlot
	for _, ls := range perLocation {
		slots = append(slots, ls...)
	}
	sortLocationSlots(slots)
	return slots, nil
}

// Suggest returns location slots lying inside both the attendees' common availability and the
// location's own availability, lasting at least minDuration, in rooms that seat every attendee.
func (e *Engine) Suggest(ctx context.Context, attendeeIDs []string, minDuration time.Duration, day time.Time) (suggestions []LocationSlot, err error) {
	ids := distinctSorted(attendeeIDs)
	ctx, span := e.tracer.Start(ctx, "scheduling.suggest", trace.WithAttributes(
		attribute.Int("attendees", len(ids)),
		attribute.Int64("min_minutes", int64(minDuration/time.Minute)),
	))
	defer e.finish(span, "suggest", time.Now(), func() int { return len(suggestions) }, &err)

	gaps, err := e.CommonAvailability(ctx, ids, day)
	if err != nil {
		return nil, err
	}
	gaps = availability.AtLeast(gaps, minDuration)
	if len(gaps) == 0 {
		e.logger.Debug("no common availability long enough", "attendees", len(ids), "min_minutes", int64(minDuration/time.Minute))
		return nil, nil
	}

	capacity := len(ids)
	locationSlots, err := e.locationAvailability(ctx, day, minDuration, &capacity)
	if errors.Is(err, ErrNoLocationWithCapacity) {
		e.logger.Debug("no location seats all attendees", "capacity", capacity)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[suggestionKey]struct{})
	for _, gap := range gaps {
		for _, ls := range locationSlots {
			ov, ok := availability.Overlap(gap, ls.Slot)
			if !ok || ov.Duration() < minDuration {
				continue
			}
			key := suggestionKey{locationID: ls.Location.ID, start: ov.Start.UnixNano(), end: ov.End.UnixNano()}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			suggestions = append(suggestions, LocationSlot{Location: ls.Location, Slot: ov})
		}
	}
	sortLocationSlots(suggestions)
	return suggestions, nil
}

type suggestionKey struct {
	locationID string
	start      int64
	end        int64
}

func (e *Engine) resourceFreeSlots(ctx context.Context, r Resource, day time.Time) ([]availability.Interval, error) {
	hours, err := e.store.WorkingHours(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("working hours for %s: %w", r, err)
	}
	return e.freeWithin(ctx, r, hours.Window(day, e.cfg.Defaults))
}

func (e *Engine) freeWithin(ctx context.Context, r Resource, window availability.Interval) ([]availability.Interval, error) {
	busy, err := e.store.BusyIntervals(ctx, r, window)
	if err != nil {
		return nil, fmt.Errorf("busy intervals for %s: %w", r, err)
	}
	return availability.FreeSlots(window, busy), nil
}

func (e *Engine) midnight(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, e.cfg.Location)
}

func (e *Engine) finish(span trace.Span, operation string, started time.Time, count func() int, errp *error) {
	err := *errp
	n := count()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("result.slots", n))
	span.End()
	e.metrics.ObserveQuery(operation, started, n, err)
}

func distinctSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortLocationSlots(in []LocationSlot) {
	sort.SliceStable(in, func(i, j int) bool {
		a, b := in[i], in[j]
		if !a.Slot.Start.Equal(b.Slot.Start) {
			return a.Slot.Start.Before(b.Slot.Start)
		}
		if a.Location.ID != b.Location.ID {
			return a.Location.ID < b.Location.ID
		}
		return a.Slot.End.Before(b.Slot.End)
	})
}
