package availability

import "time"

// FreeSlots subtracts busy intervals from window and returns the remaining gaps in order.
//
// Busy intervals may be unsorted, overlapping or extend past the window; they are clipped
// to the window first. Gaps of zero length are never emitted.
func FreeSlots(window Interval, busy []Interval) []Interval {
	if window.Empty() {
		return nil
	}

	var out []Interval
	cursor := window.Start
	for _, b := range sortedCopy(busy) {
		s, e := b.Start, b.End
		if s.Before(window.Start) {
			s = window.Start
		}
		if e.After(window.End) {
			e = window.End
		}
		if !e.After(s) {
			continue
		}
		if s.After(cursor) {
			out = append(out, Interval{Start: cursor, End: s})
		}
		if e.After(cursor) {
			cursor = e
		}
	}
	if window.End.After(cursor) {
		out = append(out, Interval{Start: cursor, End: window.End})
	}
	return out
}

// Split returns every interval of length duration that starts at slot.Start + k*step and
// still fits inside slot.
func Split(slot Interval, duration, step time.Duration) []Interval {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if slot.Start.Add(duration).After(slot.End) {
		return nil
	}

	var out []Interval
	for t := slot.Start; !t.Add(duration).After(slot.End); t = t.Add(step) {
		out = append(out, Interval{Start: t, End: t.Add(duration)})
	}
	return out
}
