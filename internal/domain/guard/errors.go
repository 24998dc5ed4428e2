package guard

import (
	"cmp"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel kinds of dataset invariant failures.
var (
	ErrSplitLeakage    = errors.New("split leakage")
	ErrClassStarvation = errors.New("class starvation")
	ErrLabelDomain     = errors.New("label outside domain")
	ErrDuplicateIDs    = errors.New("duplicate identifiers")
	ErrLabelRange      = errors.New("label outside range")
)

// Invariant names used in reports and metrics.
const (
	InvariantEventTriplet   = "event_triplet"
	InvariantWindowBounds   = "window_bounds"
	InvariantSampling       = "sampling_consistency"
	InvariantDisjointSplits = "disjoint_splits"
	InvariantClassPresence  = "min_class_presence"
	InvariantLabelDomain    = "label_domain"
	InvariantUniqueIDs      = "unique_ids"
	InvariantLabelRange     = "label_range"
)

// InvariantOf maps a dataset check error to its invariant name, or "" when
// err is not one of ours.
func InvariantOf(err error) string {
	switch {
	case errors.Is(err, ErrSplitLeakage):
		return InvariantDisjointSplits
	case errors.Is(err, ErrClassStarvation):
		return InvariantClassPresence
	case errors.Is(err, ErrLabelDomain):
		return InvariantLabelDomain
	case errors.Is(err, ErrDuplicateIDs):
		return InvariantUniqueIDs
	case errors.Is(err, ErrLabelRange):
		return InvariantLabelRange
	default:
		return ""
	}
}

// LeakageError reports identifiers found in more than one split.
type LeakageError[T cmp.Ordered] struct {
	Overlap []T
}

func (e *LeakageError[T]) Error() string {
	return "Subject overlap across splits: " + formatSet(e.Overlap)
}

func (e *LeakageError[T]) Unwrap() error { return ErrSplitLeakage }

// ClassPresenceError reports, per split, the classes below the minimum count.
type ClassPresenceError[L cmp.Ordered] struct {
	MinCount int
	BySplit  map[string]map[L]int
}

func (e *ClassPresenceError[L]) Error() string {
	splits := make([]string, 0, len(e.BySplit))
	for s := range e.BySplit {
		splits = append(splits, s)
	}
	sort.Strings(splits)
	parts := make([]string, len(splits))
	for i, s := range splits {
		parts[i] = fmt.Sprintf("%s has underrepresented classes: %s", s, formatCounts(e.BySplit[s]))
	}
	return strings.Join(parts, "; ")
}

func (e *ClassPresenceError[L]) Unwrap() error { return ErrClassStarvation }

// LabelDomainError reports labels outside the allowed set.
type LabelDomainError[L cmp.Ordered] struct {
	Unexpected []L
	Allowed    []L
}

func (e *LabelDomainError[L]) Error() string {
	return "Unexpected labels detected: " + formatSet(e.Unexpected)
}

func (e *LabelDomainError[L]) Unwrap() error { return ErrLabelDomain }

// DuplicateIDsError reports identifiers listed more than once within one collection.
type DuplicateIDsError[T cmp.Ordered] struct {
	Collection string
	Counts     map[T]int
}

func (e *DuplicateIDsError[T]) Error() string {
	return fmt.Sprintf("Duplicate IDs in %s: %s", e.Collection, formatCounts(e.Counts))
}

func (e *DuplicateIDsError[T]) Unwrap() error { return ErrDuplicateIDs }

// LabelRangeError reports labels outside [Min, Max].
type LabelRangeError[L cmp.Ordered] struct {
	Min, Max   L
	OutOfRange []L
}

func (e *LabelRangeError[L]) Error() string {
	return fmt.Sprintf("Labels outside [%v, %v]: %s", e.Min, e.Max, formatSet(e.OutOfRange))
}

func (e *LabelRangeError[L]) Unwrap() error { return ErrLabelRange }
