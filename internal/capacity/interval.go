package capacity

import (
	"fmt"
	"slices"
	"time"
)

// Interval is a half-open range [Start, End) of UTC midnights.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the interval covers no time.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Clip restricts i to bounds. ok is false when nothing is left.
func (i Interval) Clip(bounds Interval) (clipped Interval, ok bool) {
	clipped = Interval{Start: i.Start, End: i.End}
	if bounds.Start.After(clipped.Start) {
		clipped.Start = bounds.Start
	}
	if bounds.End.Before(clipped.End) {
		clipped.End = bounds.End
	}
	if clipped.Empty() {
		return Interval{}, false
	}
	return clipped, true
}

// BusinessDays counts Monday-Friday days inside the interval.
func (i Interval) BusinessDays() int {
	return CountBusinessDays(i.Start, i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(DateLayout), i.End.Format(DateLayout))
}

// MergeIntervals coalesces overlapping and touching intervals into the
// minimal ordered set of disjoint ones. The input does not need to be sorted
// and is left untouched.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := slices.Clone(intervals)
	slices.SortStableFunc(sorted, func(a, b Interval) int {
		return a.Start.Compare(b.Start)
	})

	merged := []Interval{sorted[0]}
	for _, next := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !next.Start.After(last.End) {
			if next.End.After(last.End) {
				last.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}
