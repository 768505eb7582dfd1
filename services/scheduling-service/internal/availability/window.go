package availability

import (
	"fmt"
	"time"
)

// Hours is a pair of minute-of-day offsets.
type Hours struct {
	StartMinute int
	EndMinute   int
}

// DefaultHours is 09:00-17:00.
var DefaultHours = Hours{StartMinute: 540, EndMinute: 1020}

// WorkingHours holds a resource's optional overrides. Either bound may be nil, in which case
// the configured default is used for that bound only.
type WorkingHours struct {
	StartMinute *int
	EndMinute   *int
}

// Resolve fills missing bounds from defaults.
func (w WorkingHours) Resolve(defaults Hours) Hours {
	h := defaults
	if w.StartMinute != nil {
		h.StartMinute = *w.StartMinute
	}
	if w.EndMinute != nil {
		h.EndMinute = *w.EndMinute
	}
	return h
}

// Window returns the concrete working window on day. Bounds are wall-clock times in day's
// location, so DST transitions shift the elapsed length rather than the clock readings.
// An end earlier than the start means the shift runs past midnight and ends on the following
// date. Equal bounds give an empty window and therefore no free slots.
func (w WorkingHours) Window(day time.Time, defaults Hours) Interval {
	h := w.Resolve(defaults)
	endDay := day.Day()
	if h.EndMinute < h.StartMinute {
		endDay++
	}
	return Interval{
		Start: wallClock(day, day.Day(), h.StartMinute),
		End:   wallClock(day, endDay, h.EndMinute),
	}
}

func wallClock(day time.Time, dayOfMonth, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), dayOfMonth, minute/60, minute%60, 0, 0, day.Location())
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Minutes is a convenience for building WorkingHours literals.
func Minutes(m int) *int {
	return &m
}
