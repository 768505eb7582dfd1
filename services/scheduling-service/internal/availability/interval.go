package availability

import (
	"sort"
	"time"
)

// Interval is a closed-open time range [Start, End). It is used for working windows,
// busy intervals and free slots alike.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Empty reports whether the interval has no positive length.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Equal compares bounds only, ignoring monotonic readings and location pointers.
func (i Interval) Equal(o Interval) bool {
	return i.Start.Equal(o.Start) && i.End.Equal(o.End)
}

// Overlap returns the intersection of a and b. The bool is false when they only touch or are disjoint.
func Overlap(a, b Interval) (Interval, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Merge collapses overlapping and touching intervals into maximal runs.
// The input slice is not modified.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := sortedCopy(in)

	merged := make([]Interval, 0, len(sorted))
	for _, cur := range sorted {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return merged
}

// Intersect returns the common parts of two sorted, non-overlapping interval lists.
func Intersect(a, b []Interval) []Interval {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	var raw []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if ov, ok := Overlap(a[i], b[j]); ok {
			raw = append(raw, ov)
		}
		switch {
		case a[i].End.Before(b[j].End):
			i++
		case b[j].End.Before(a[i].End):
			j++
		default:
			i++
			j++
		}
	}
	return Merge(raw)
}

// AtLeast keeps intervals lasting min or longer. A non-positive min keeps everything.
func AtLeast(in []Interval, min time.Duration) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if min > 0 && iv.Duration() < min {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Total sums the lengths of the given intervals.
func Total(in []Interval) time.Duration {
	var d time.Duration
	for _, iv := range in {
		d += iv.Duration()
	}
	return d
}

func sortedCopy(in []Interval) []Interval {
	out := make([]Interval, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
