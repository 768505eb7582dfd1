package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/events"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
)

const dateLayout = "2006-01-02"

// Engine is the subset of *scheduling.Engine the HTTP layer needs.
type Engine interface {
	FreeSlots(ctx context.Context, r scheduling.Resource, day time.Time) ([]availability.Interval, error)
	CommonAvailability(ctx context.Context, attendeeIDs []string, day time.Time) ([]availability.Interval, error)
	LocationAvailability(ctx context.Context, day time.Time, minDuration time.Duration, minCapacity *int) ([]scheduling.LocationSlot, error)
	Suggest(ctx context.Context, attendeeIDs []string, minDuration time.Duration, day time.Time) ([]scheduling.LocationSlot, error)
}

type SuggestionEvents interface {
	Enqueue(ctx context.Context, evt events.SuggestionsComputed)
}

type AvailabilityHandler struct {
	engine   Engine
	events   SuggestionEvents
	logger   *slog.Logger
	location *time.Location
}

func NewAvailabilityHandler(engine Engine, evts SuggestionEvents, logger *slog.Logger, loc *time.Location) *AvailabilityHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityHandler{engine: engine, events: evts, logger: logger, location: loc}
}

// Register mounts every availability route on mux.
func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/locations/free-slots", h.LocationFreeSlots)
	mux.HandleFunc("/api/v1/attendees/free-slots", h.AttendeeFreeSlots)
	mux.HandleFunc("/api/v1/locations/availability", h.LocationAvailability)
	mux.HandleFunc("/api/v1/attendees/common-availability", h.CommonAvailability)
	mux.HandleFunc("/api/v1/meetings/suggestions", h.Suggestions)
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type locationSlotItem struct {
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	Capacity     int    `json:"capacity"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

func (h *AvailabilityHandler) LocationFreeSlots(w http.ResponseWriter, r *http.Request) {
	h.freeSlots(w, r, "location_id", scheduling.LocationResource)
}

func (h *AvailabilityHandler) AttendeeFreeSlots(w http.ResponseWriter, r *http.Request) {
	h.freeSlots(w, r, "attendee_id", scheduling.AttendeeResource)
}

func (h *AvailabilityHandler) freeSlots(w http.ResponseWriter, r *http.Request, param string, resource func(string) scheduling.Resource) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	id := strings.TrimSpace(q.Get(param))
	if id == "" {
		http.Error(w, param+" and date are required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid "+param, http.StatusBadRequest)
		return
	}
	day, ok := h.parseDate(w, q.Get("date"))
	if !ok {
		return
	}

	slots, err := h.engine.FreeSlots(r.Context(), resource(id), day)
	if err != nil {
		h.writeError(w, r, "free slots", err)
		return
	}
	writeJSON(w, toSlotItems(slots))
}

func (h *AvailabilityHandler) CommonAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	ids, ok := parseIDs(w, q.Get("attendee_ids"))
	if !ok {
		return
	}
	day, ok := h.parseDate(w, q.Get("date"))
	if !ok {
		return
	}

	slots, err := h.engine.CommonAvailability(r.Context(), ids, day)
	if err != nil {
		h.writeError(w, r, "common availability", err)
		return
	}
	writeJSON(w, toSlotItems(slots))
}

func (h *AvailabilityHandler) LocationAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	day, ok := h.parseDate(w, q.Get("date"))
	if !ok {
		return
	}
	minMinutes, ok := parseMinutes(w, "min_minutes", q.Get("min_minutes"), false)
	if !ok {
		return
	}
	var minCapacity *int
	if raw := strings.TrimSpace(q.Get("min_capacity")); raw != "" {
		c, err := strconv.Atoi(raw)
		if err != nil || c < 1 {
			http.Error(w, "min_capacity must be a positive integer", http.StatusBadRequest)
			return
		}
		minCapacity = &c
	}

	slots, err := h.engine.LocationAvailability(r.Context(), day, time.Duration(minMinutes)*time.Minute, minCapacity)
	if err != nil {
		h.writeError(w, r, "location availability", err)
		return
	}
	writeJSON(w, toLocationSlotItems(slots))
}

func (h *AvailabilityHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	ids, ok := parseIDs(w, q.Get("attendee_ids"))
	if !ok {
		return
	}
	day, ok := h.parseDate(w, q.Get("date"))
	if !ok {
		return
	}
	minMinutes, ok := parseMinutes(w, "min_minutes", q.Get("min_minutes"), true)
	if !ok {
		return
	}
	stepMinutes, ok := parseMinutes(w, "step_minutes", q.Get("step_minutes"), false)
	if !ok {
		return
	}

	minDuration := time.Duration(minMinutes) * time.Minute
	suggestions, err := h.engine.Suggest(r.Context(), ids, minDuration, day)
	if err != nil {
		h.writeError(w, r, "suggestions", err)
		return
	}

	// With a step, hand back bookable intervals of exactly min_minutes instead of whole gaps.
	if stepMinutes > 0 && minDuration > 0 {
		var expanded []scheduling.LocationSlot
		for _, s := range suggestions {
			for _, slot := range availability.Split(s.Slot, minDuration, time.Duration(stepMinutes)*time.Minute) {
				expanded = append(expanded, scheduling.LocationSlot{Location: s.Location, Slot: slot})
			}
		}
		suggestions = expanded
	}

	if h.events != nil {
		h.events.Enqueue(r.Context(), events.SuggestionsComputed{
			EventID:     uuid.NewString(),
			AttendeeIDs: ids,
			Date:        day.Format(dateLayout),
			MinMinutes:  minMinutes,
			Suggestions: len(suggestions),
			ComputedAt:  time.Now().UTC(),
		})
	}
	writeJSON(w, toLocationSlotItems(suggestions))
}

func (h *AvailabilityHandler) parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		http.Error(w, "invalid date (expected YYYY-MM-DD)", http.StatusBadRequest)
		return time.Time{}, false
	}
	return day, true
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, scheduling.ErrNoLocationWithCapacity):
		http.Error(w, "no location with requested capacity", http.StatusNotFound)
	case errors.Is(err, scheduling.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		h.logger.Error(op+" failed", "err", err, "path", r.URL.Path)
		http.Error(w, "failed to compute "+op, http.StatusInternalServerError)
	}
}

func parseIDs(w http.ResponseWriter, raw string) ([]string, bool) {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := uuid.Parse(part); err != nil {
			http.Error(w, "invalid attendee id "+strconv.Quote(part), http.StatusBadRequest)
			return nil, false
		}
		ids = append(ids, part)
	}
	if len(ids) == 0 {
		http.Error(w, "attendee_ids is required", http.StatusBadRequest)
		return nil, false
	}
	return ids, true
}

func parseMinutes(w http.ResponseWriter, name, raw string, required bool) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			http.Error(w, name+" is required", http.StatusBadRequest)
			return 0, false
		}
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		http.Error(w, name+" must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func toSlotItems(in []availability.Interval) []slotItem {
	out := make([]slotItem, 0, len(in))
	for _, s := range in {
		out = append(out, slotItem{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.End.Format(time.RFC3339),
		})
	}
	return out
}

func toLocationSlotItems(in []scheduling.LocationSlot) []locationSlotItem {
	out := make([]locationSlotItem, 0, len(in))
	for _, s := range in {
		out = append(out, locationSlotItem{
			LocationID:   s.Location.ID,
			LocationName: s.Location.Name,
			Capacity:     s.Location.Capacity,
			StartTime:    s.Slot.Start.Format(time.RFC3339),
			EndTime:      s.Slot.End.Format(time.RFC3339),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
