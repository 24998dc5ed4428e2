package guard_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/guardrail/internal/domain/constraint"
	"github.com/okian/guardrail/internal/domain/constraint/fdsolver"
	"github.com/okian/guardrail/internal/domain/guard"
	. "github.com/smartystreets/goconvey/convey"
)

// checkers returns one checker per strategy; every record test runs on both.
func checkers() map[string]*guard.Checker {
	return map[string]*guard.Checker{
		"direct": guard.New(guard.WithEvaluator(constraint.Direct{})),
		"fd":     guard.New(guard.WithEvaluator(fdsolver.New())),
	}
}

func TestEventTriplet(t *testing.T) {
	for name, c := range checkers() {
		Convey("Given the "+name+" checker", t, func() {
			Convey("When the triplet is ordered and in range", func() {
				ok, msg := c.EventTriplet(0, 5, 10, 100).Unpack()

				Convey("Then it passes with OK", func() {
					So(ok, ShouldBeTrue)
					So(msg, ShouldEqual, guard.MessageOK)
				})
			})

			Convey("When onset is after apex", func() {
				r := c.EventTriplet(5, 3, 8, 100)

				Convey("Then the message embeds the literal values", func() {
					So(r.OK, ShouldBeFalse)
					So(r.Kind, ShouldEqual, guard.KindViolation)
					So(r.Message, ShouldEqual, "Violation: (onset=5, apex=3, offset=8, n=100)")
				})
			})

			Convey("When offset equals n_frames", func() {
				Convey("Then it is out of range", func() {
					So(c.EventTriplet(0, 5, 100, 100).OK, ShouldBeFalse)
					So(c.EventTriplet(0, 5, 99, 100).OK, ShouldBeTrue)
				})
			})

			Convey("When onset equals apex or apex equals offset", func() {
				Convey("Then strict ordering rejects it", func() {
					So(c.EventTriplet(5, 5, 8, 100).OK, ShouldBeFalse)
					So(c.EventTriplet(1, 8, 8, 100).OK, ShouldBeFalse)
				})
			})

			Convey("When onset is negative", func() {
				Convey("Then it is rejected", func() {
					So(c.EventTriplet(-1, 5, 8, 100).OK, ShouldBeFalse)
				})
			})
		})
	}
}

func TestWindowBounds(t *testing.T) {
	for name, c := range checkers() {
		Convey("Given the "+name+" checker", t, func() {
			Convey("When the window fits", func() {
				Convey("Then it passes", func() {
					So(c.WindowBounds(10, 20, 100).OK, ShouldBeTrue)
					So(c.WindowBounds(80, 20, 100).OK, ShouldBeTrue)
				})
			})

			Convey("When the window runs past the end", func() {
				r := c.WindowBounds(90, 20, 100)

				Convey("Then the message embeds the values", func() {
					So(r.OK, ShouldBeFalse)
					So(r.Message, ShouldEqual, "Window out of bounds: start=90, length=20, n=100")
				})
			})

			Convey("When the window is empty at the origin of an empty range", func() {
				Convey("Then it is legal", func() {
					So(c.WindowBounds(0, 0, 0).OK, ShouldBeTrue)
				})
			})

			Convey("When start or length is negative but the sum fits", func() {
				Convey("Then it is still a violation", func() {
					So(c.WindowBounds(-5, 10, 100).OK, ShouldBeFalse)
					So(c.WindowBounds(10, -5, 100).OK, ShouldBeFalse)
				})
			})
		})
	}
}

func TestRecordChecksNearIntegerLimits(t *testing.T) {
	for name, c := range checkers() {
		Convey("Given the "+name+" checker", t, func() {
			Convey("When start+length leaves the integer range", func() {
				r := c.WindowBounds(math.MaxInt, 1, 100)

				Convey("Then it is a violation, not a precondition", func() {
					So(r.OK, ShouldBeFalse)
					So(r.Kind, ShouldEqual, guard.KindViolation)
					So(r.Message, ShouldEqual, "Window out of bounds: start=9223372036854775807, length=1, n=100")
				})
			})

			Convey("When n_frames-1 leaves the integer range", func() {
				r := c.EventTriplet(0, 1, 2, math.MinInt)

				Convey("Then it is a violation, not a precondition", func() {
					So(r.OK, ShouldBeFalse)
					So(r.Kind, ShouldEqual, guard.KindViolation)
					So(r.Message, ShouldEqual, "Violation: (onset=0, apex=1, offset=2, n=-9223372036854775808)")
				})
			})

			Convey("When the clip is as long as an int allows", func() {
				Convey("Then a valid triplet still passes", func() {
					So(c.EventTriplet(0, 1, 2, math.MaxInt).OK, ShouldBeTrue)
				})
			})
		})
	}
}

func TestWindowOutsideSolverRange(t *testing.T) {
	Convey("Given the fd checker", t, func() {
		c := guard.New(guard.WithEvaluator(fdsolver.New()))

		Convey("When values exceed the solver range", func() {
			big := int(fdsolver.MaxMagnitude) * 4

			Convey("Then direct evaluation decides instead", func() {
				So(c.WindowBounds(big, 1, big+1).OK, ShouldBeTrue)
				So(c.WindowBounds(big, 2, big+1).OK, ShouldBeFalse)
			})
		})
	})
}

func TestSamplingConsistency(t *testing.T) {
	Convey("Given sampling descriptors", t, func() {
		Convey("When frames, fps and duration agree", func() {
			Convey("Then it passes", func() {
				So(guard.New().SamplingConsistency(300, 30.0, 10.0, 0.01).OK, ShouldBeTrue)
			})
		})

		Convey("When fps is zero", func() {
			r := guard.New().SamplingConsistency(300, 0.0, 10.0, guard.DefaultSamplingTolerance)

			Convey("Then it is a precondition failure", func() {
				So(r.OK, ShouldBeFalse)
				So(r.Kind, ShouldEqual, guard.KindPrecondition)
				So(r.Message, ShouldContainSubstring, "fps must be positive")
			})
		})

		Convey("When the duration is near zero", func() {
			Convey("Then a tiny mismatch is absorbed by the floor of one second", func() {
				So(guard.New().SamplingConsistency(1, 100, 0.001, guard.DefaultSamplingTolerance).OK, ShouldBeTrue)
			})
		})

		Convey("When the mismatch exceeds the tolerance", func() {
			r := guard.New().SamplingConsistency(300, 29.0, 10.0, guard.DefaultSamplingTolerance)

			Convey("Then the message uses three decimals", func() {
				So(r.Kind, ShouldEqual, guard.KindViolation)
				So(r.Message, ShouldEqual, "Inconsistent timing: frames=300, fps=29.000, duration=10.000s")
			})
		})

		Convey("When the mismatch is the same in both directions", func() {
			Convey("Then the tolerance is symmetric", func() {
				So(guard.New().SamplingConsistency(305, 30, 10, 0.02).OK, ShouldBeTrue)
				So(guard.New().SamplingConsistency(295, 30, 10, 0.02).OK, ShouldBeTrue)
				So(guard.New().SamplingConsistency(307, 30, 10, 0.02).OK, ShouldBeFalse)
				So(guard.New().SamplingConsistency(293, 30, 10, 0.02).OK, ShouldBeFalse)
			})
		})

		Convey("When the tolerance is negative", func() {
			Convey("Then it is a precondition failure", func() {
				So(guard.New().SamplingConsistency(300, 30, 10, -1).Kind, ShouldEqual, guard.KindPrecondition)
			})
		})
	})
}

func TestAssertDisjointSplits(t *testing.T) {
	Convey("Given three splits", t, func() {
		Convey("When they are disjoint", func() {
			Convey("Then nothing is returned", func() {
				So(guard.AssertDisjointSplits([]int{1, 2, 3}, []int{4, 5}, []int{6, 7}), ShouldBeNil)
			})
		})

		Convey("When a subject is in train and val", func() {
			err := guard.AssertDisjointSplits([]int{1, 2, 3}, []int{3, 4}, []int{5})

			Convey("Then the overlap set is exactly {3}", func() {
				So(errors.Is(err, guard.ErrSplitLeakage), ShouldBeTrue)
				var leak *guard.LeakageError[int]
				So(errors.As(err, &leak), ShouldBeTrue)
				So(leak.Overlap, ShouldResemble, []int{3})
				So(err.Error(), ShouldEqual, "Subject overlap across splits: {3}")
				So(guard.InvariantOf(err), ShouldEqual, guard.InvariantDisjointSplits)
			})
		})

		Convey("When string subjects leak across all three", func() {
			err := guard.AssertDisjointSplits([]string{"b", "a"}, []string{"a", "c"}, []string{"c", "b", "a"})

			Convey("Then the union of pairwise overlaps is reported sorted", func() {
				So(err.Error(), ShouldEqual, "Subject overlap across splits: {a, b, c}")
			})
		})
	})
}

func TestMinClassPresence(t *testing.T) {
	Convey("Given labels by split", t, func() {
		Convey("When every class meets the minimum", func() {
			Convey("Then nothing is returned", func() {
				So(guard.MinClassPresence(map[string][]int{"train": {0, 0, 1, 1, 1}}, 2), ShouldBeNil)
				So(guard.MinClassPresence(map[string][]int{"train": {0, 0, 0}}, 2), ShouldBeNil)
			})
		})

		Convey("When a class appears once with a minimum of two", func() {
			err := guard.MinClassPresence(map[string][]int{"test": {0}}, 2)

			Convey("Then the split and count are reported", func() {
				So(errors.Is(err, guard.ErrClassStarvation), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "test has underrepresented classes: {0: 1}")
			})
		})

		Convey("When several splits are deficient", func() {
			err := guard.MinClassPresence(map[string][]int{
				"val":   {1, 0, 0},
				"train": {0, 0, 0, 1, 2, 2},
				"test":  {0, 0, 1, 1},
			}, 2)

			Convey("Then every deficient split is reported in name order", func() {
				var starve *guard.ClassPresenceError[int]
				So(errors.As(err, &starve), ShouldBeTrue)
				So(len(starve.BySplit), ShouldEqual, 2)
				So(err.Error(), ShouldEqual,
					"train has underrepresented classes: {1: 1}; val has underrepresented classes: {1: 1}")
			})
		})

		Convey("When the population is empty", func() {
			Convey("Then nothing is returned", func() {
				So(guard.MinClassPresence(map[string][]int{}, guard.DefaultMinClassCount), ShouldBeNil)
				So(guard.MinClassPresence(map[string][]int{"train": nil}, guard.DefaultMinClassCount), ShouldBeNil)
			})
		})
	})
}

func TestAssertLabelDomain(t *testing.T) {
	Convey("Given labels", t, func() {
		Convey("When every label is allowed", func() {
			Convey("Then nothing is returned", func() {
				So(guard.AssertLabelDomain([]int{0, 1, 0, 1}, guard.DefaultAllowedLabels()), ShouldBeNil)
			})
		})

		Convey("When an unexpected label appears repeatedly", func() {
			err := guard.AssertLabelDomain([]int{0, 1, 2, 2}, []int{0, 1})

			Convey("Then duplicates collapse into the offending set", func() {
				var dom *guard.LabelDomainError[int]
				So(errors.As(err, &dom), ShouldBeTrue)
				So(dom.Unexpected, ShouldResemble, []int{2})
				So(err.Error(), ShouldEqual, "Unexpected labels detected: {2}")
			})
		})
	})
}

func TestIntegrityChecks(t *testing.T) {
	Convey("Given subject identifiers and labels", t, func() {
		Convey("When an identifier is listed twice", func() {
			err := guard.AssertUniqueIDs("train", []string{"s1", "s2", "s1"})

			Convey("Then the duplicate and its count are reported", func() {
				So(errors.Is(err, guard.ErrDuplicateIDs), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "Duplicate IDs in train: {s1: 2}")
				So(guard.AssertUniqueIDs("val", []string{"a", "b"}), ShouldBeNil)
			})
		})

		Convey("When labels fall outside the range", func() {
			err := guard.AssertLabelRange([]int{-1, 0, 3, 4, 4}, 0, 3)

			Convey("Then the out-of-range set is reported", func() {
				So(errors.Is(err, guard.ErrLabelRange), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "Labels outside [0, 3]: {-1, 4}")
				So(guard.AssertLabelRange([]int{0, 3}, 0, 3), ShouldBeNil)
			})
		})
	})
}

func TestIdempotence(t *testing.T) {
	Convey("Given every check", t, func() {
		c := guard.New(guard.WithEvaluator(fdsolver.New()))

		Convey("When each is called twice with the same input", func() {
			Convey("Then the results are identical", func() {
				So(c.EventTriplet(5, 3, 8, 100), ShouldResemble, c.EventTriplet(5, 3, 8, 100))
				So(c.WindowBounds(90, 20, 100), ShouldResemble, c.WindowBounds(90, 20, 100))
				So(c.SamplingConsistency(300, 29, 10, 0.02), ShouldResemble, c.SamplingConsistency(300, 29, 10, 0.02))
				So(guard.AssertDisjointSplits([]int{1}, []int{1}, nil).Error(), ShouldEqual,
					guard.AssertDisjointSplits([]int{1}, []int{1}, nil).Error())
				pop := map[string][]int{"a": {0}, "b": {1}}
				So(guard.MinClassPresence(pop, 2).Error(), ShouldEqual, guard.MinClassPresence(pop, 2).Error())
			})
		})
	})
}

func TestResultJSON(t *testing.T) {
	Convey("Given a violation result", t, func() {
		r := guard.Violation("bad")

		Convey("When it is encoded", func() {
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)

			Convey("Then the kind is a name and decodes back", func() {
				So(string(b), ShouldEqual, `{"ok":false,"message":"bad","kind":"violation"}`)
				var back guard.Result
				So(json.Unmarshal(b, &back), ShouldBeNil)
				So(back, ShouldResemble, r)
			})
		})
	})
}

func TestScan(t *testing.T) {
	Convey("Given many triplets", t, func() {
		type triplet struct{ o, a, f, n int }
		items := make([]triplet, 1000)
		for i := range items {
			items[i] = triplet{0, 5, 10, 100}
		}
		items[3] = triplet{5, 3, 8, 100}
		items[700] = triplet{0, 5, 100, 100}
		c := guard.New(guard.WithEvaluator(constraint.Direct{}))
		check := func(t triplet) guard.Result { return c.EventTriplet(t.o, t.a, t.f, t.n) }

		Convey("When they are scanned in parallel", func() {
			findings, tally, err := guard.Scan(context.Background(), items, 4, check)

			Convey("Then findings are ordered by index and tallied", func() {
				So(err, ShouldBeNil)
				So(len(findings), ShouldEqual, 2)
				So(findings[0].Index, ShouldEqual, 3)
				So(findings[1].Index, ShouldEqual, 700)
				So(tally.Checked, ShouldEqual, 1000)
				So(tally.Passed, ShouldEqual, 998)
				So(tally.Violations, ShouldEqual, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, _, err := guard.Scan(ctx, items, 0, check)

			Convey("Then the scan reports the cancellation", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When there is nothing to scan", func() {
			findings, tally, err := guard.Scan(context.Background(), []triplet{}, 2, check)

			Convey("Then the tally is empty", func() {
				So(err, ShouldBeNil)
				So(findings, ShouldBeEmpty)
				So(tally.Checked, ShouldEqual, 0)
			})
		})
	})
}
