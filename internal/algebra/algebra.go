// Package algebra computes derived sets from materialized member slices and
// persists results as new versions of the output set.
package algebra

import "sort"

// Union returns the identifiers present in at least one input, deduplicated
// and sorted. No inputs yields the empty set.
func Union(inputs ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, input := range inputs {
		for _, v := range input {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Intersect returns the identifiers present in every input, sorted. No
// inputs yields the empty set by policy: there is no universal set to
// intersect against.
func Intersect(inputs ...[]string) []string {
	if len(inputs) == 0 {
		return []string{}
	}
	counts := map[string]int{}
	for _, input := range inputs {
		seen := map[string]struct{}{}
		for _, v := range input {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				counts[v]++
			}
		}
	}
	out := []string{}
	for v, n := range counts {
		if n == len(inputs) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Difference returns the identifiers in base but not in subtract, sorted.
func Difference(base, subtract []string) []string {
	drop := make(map[string]struct{}, len(subtract))
	for _, v := range subtract {
		drop[v] = struct{}{}
	}
	out := []string{}
	for _, v := range base {
		if _, ok := drop[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// SymmetricDifference returns the identifiers in exactly one of a and b,
// sorted.
func SymmetricDifference(a, b []string) []string {
	return Union(Difference(a, b), Difference(b, a))
}
