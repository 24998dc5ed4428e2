package fdsolver

import "fmt"

// MaxMagnitude bounds every domain endpoint. Together with MaxCoefficient it
// keeps bound arithmetic inside int64.
const (
	MaxMagnitude   int64 = 1 << 31
	MaxCoefficient int64 = 1 << 15
	MaxTerms             = 1 << 16
)

// Interval is the inclusive integer range [Lo, Hi]. Lo > Hi is empty.
type Interval struct {
	Lo, Hi int64
}

// Empty reports whether the interval holds no value.
func (d Interval) Empty() bool { return d.Lo > d.Hi }

// Fixed reports whether the interval holds exactly one value.
func (d Interval) Fixed() bool { return d.Lo == d.Hi }

// Size returns the number of values, 0 when empty.
func (d Interval) Size() uint64 {
	if d.Empty() {
		return 0
	}
	return uint64(d.Hi-d.Lo) + 1
}

// Contains reports whether v is in the interval.
func (d Interval) Contains(v int64) bool { return v >= d.Lo && v <= d.Hi }

// RemoveBelow drops values below lo.
func (d Interval) RemoveBelow(lo int64) Interval {
	if lo > d.Lo {
		d.Lo = lo
	}
	return d
}

// RemoveAbove drops values above hi.
func (d Interval) RemoveAbove(hi int64) Interval {
	if hi < d.Hi {
		d.Hi = hi
	}
	return d
}

// Split halves a non-fixed interval.
func (d Interval) Split() (Interval, Interval) {
	mid := d.Lo + (d.Hi-d.Lo)/2
	return Interval{Lo: d.Lo, Hi: mid}, Interval{Lo: mid + 1, Hi: d.Hi}
}

func (d Interval) String() string {
	if d.Empty() {
		return "{}"
	}
	if d.Fixed() {
		return fmt.Sprintf("{%d}", d.Lo)
	}
	return fmt.Sprintf("[%d..%d]", d.Lo, d.Hi)
}

// floorDiv returns floor(a/b) for b != 0.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ceilDiv returns ceil(a/b) for b != 0.
func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
