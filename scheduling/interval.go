package scheduling

import "fmt"

// Interval is a closed time range [Start, End] in unix seconds. Both
// ends are inclusive, so a slot that touches a busy boundary conflicts
// with it.
type Interval struct {
	Start int64
	End   int64
}

// Overlaps reports whether two closed intervals share at least one point.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start <= other.End && other.Start <= i.End
}

// OverlapsAny reports whether the interval intersects any of the given
// intervals.
func (i Interval) OverlapsAny(intervals []Interval) bool {
	for _, other := range intervals {
		if i.Overlaps(other) {
			return true
		}
	}
	return false
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d]", i.Start, i.End)
}
