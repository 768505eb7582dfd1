package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
)

var ErrNotFound = errors.New("not found")

// ErrNoLocationWithCapacity is returned when a capacity filter excludes every location.
var ErrNoLocationWithCapacity = fmt.Errorf("no location with requested capacity: %w", ErrNotFound)

type Kind string

const (
	KindLocation Kind = "location"
	KindAttendee Kind = "attendee"
)

// Resource identifies a location or attendee whose calendar is being read.
type Resource struct {
	Kind Kind
	ID   string
}

func LocationResource(id string) Resource { return Resource{Kind: KindLocation, ID: id} }

func AttendeeResource(id string) Resource { return Resource{Kind: KindAttendee, ID: id} }

func (r Resource) String() string {
	return string(r.Kind) + ":" + r.ID
}

type Location struct {
	ID       string
	Name     string
	Capacity int
	Hours    availability.WorkingHours
}

// LocationSlot pairs a free slot with the location offering it.
type LocationSlot struct {
	Location Location
	Slot     availability.Interval
}

type HoursLookup interface {
	// WorkingHours returns ErrNotFound (wrapped) when the resource does not exist.
	WorkingHours(ctx context.Context, r Resource) (availability.WorkingHours, error)
}

type BusyLookup interface {
	// BusyIntervals returns meetings overlapping window, in any order.
	BusyIntervals(ctx context.Context, r Resource, window availability.Interval) ([]availability.Interval, error)
}

type LocationLookup interface {
	// CandidateLocations returns locations with capacity >= *minCapacity, or all of them when nil.
	CandidateLocations(ctx context.Context, minCapacity *int) ([]Location, error)
}

// Store bundles the three lookups; the postgres repository implements all of them.
type Store interface {
	HoursLookup
	BusyLookup
	LocationLookup
}
