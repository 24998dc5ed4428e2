package guard

import (
	"cmp"
	"slices"
)

// AssertDisjointSplits fails with *LeakageError when any identifier appears
// in more than one of the three splits.
func AssertDisjointSplits[T cmp.Ordered](train, val, test []T) error {
	tr, va, te := setOf(train), setOf(val), setOf(test)
	overlap := make(map[T]struct{})
	for _, pair := range [][2]map[T]struct{}{{tr, va}, {tr, te}, {va, te}} {
		for id := range pair[0] {
			if _, ok := pair[1][id]; ok {
				overlap[id] = struct{}{}
			}
		}
	}
	if len(overlap) == 0 {
		return nil
	}
	return &LeakageError[T]{Overlap: sortedKeys(overlap)}
}

// MinClassPresence fails with *ClassPresenceError when, in any split, a
// class present in that split occurs fewer than minCount times. Every
// deficient split is reported.
func MinClassPresence[L cmp.Ordered](labelsBySplit map[string][]L, minCount int) error {
	var deficient map[string]map[L]int
	for split, labels := range labelsBySplit {
		counts := make(map[L]int)
		for _, l := range labels {
			counts[l]++
		}
		for l, n := range counts {
			if n >= minCount {
				delete(counts, l)
			}
		}
		if len(counts) == 0 {
			continue
		}
		if deficient == nil {
			deficient = make(map[string]map[L]int)
		}
		deficient[split] = counts
	}
	if deficient == nil {
		return nil
	}
	return &ClassPresenceError[L]{MinCount: minCount, BySplit: deficient}
}

// AssertLabelDomain fails with *LabelDomainError when y holds a label not in allowed.
func AssertLabelDomain[L cmp.Ordered](y, allowed []L) error {
	ok := setOf(allowed)
	bad := make(map[L]struct{})
	for _, l := range y {
		if _, in := ok[l]; !in {
			bad[l] = struct{}{}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &LabelDomainError[L]{Unexpected: sortedKeys(bad), Allowed: distinct(allowed)}
}

// AssertUniqueIDs fails with *DuplicateIDsError when ids lists an identifier twice.
func AssertUniqueIDs[T cmp.Ordered](collection string, ids []T) error {
	counts := make(map[T]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	for id, n := range counts {
		if n < 2 {
			delete(counts, id)
		}
	}
	if len(counts) == 0 {
		return nil
	}
	return &DuplicateIDsError[T]{Collection: collection, Counts: counts}
}

// AssertLabelRange fails with *LabelRangeError when a label lies outside [lo, hi].
func AssertLabelRange[L cmp.Ordered](y []L, lo, hi L) error {
	bad := make(map[L]struct{})
	for _, l := range y {
		if l < lo || l > hi {
			bad[l] = struct{}{}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &LabelRangeError[L]{Min: lo, Max: hi, OutOfRange: sortedKeys(bad)}
}

func setOf[T comparable](xs []T) map[T]struct{} {
	out := make(map[T]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

func sortedKeys[T cmp.Ordered](m map[T]struct{}) []T {
	out := make([]T, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
