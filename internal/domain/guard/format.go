package guard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// distinct returns the sorted unique values of xs.
func distinct[T cmp.Ordered](xs []T) []T {
	out := slices.Clone(xs)
	slices.Sort(out)
	return slices.Compact(out)
}

// formatSet renders sorted values as "{1, 2}".
func formatSet[T cmp.Ordered](xs []T) string {
	sorted := distinct(xs)
	parts := make([]string, len(sorted))
	for i, x := range sorted {
		parts[i] = fmt.Sprint(x)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatCounts renders a count map ordered by key as "{0: 1, 3: 2}".
func formatCounts[T cmp.Ordered](counts map[T]int) string {
	keys := make([]T, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%v: %d", k, counts[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
