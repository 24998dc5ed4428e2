package guard

import (
	"fmt"
	"math"
)

// SamplingConsistency checks that frames/fps matches durationSec within
// tolerance·max(1, durationSec). A non-positive fps is a precondition failure.
func (c *Checker) SamplingConsistency(frames int, fps, durationSec, tolerance float64) Result {
	if !(fps > 0) {
		return Precondition("fps must be positive")
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		return Precondition("tolerance must be non-negative")
	}
	expected := float64(frames) / fps
	if math.Abs(expected-durationSec) <= tolerance*math.Max(1.0, durationSec) {
		return Pass()
	}
	return Violation(fmt.Sprintf("Inconsistent timing: frames=%d, fps=%.3f, duration=%.3fs", frames, fps, durationSec))
}
