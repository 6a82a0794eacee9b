package slice

import "strings"

// Contains reports whether item is in s.
func Contains[T comparable](s []T, item T) bool {
	for _, v := range s {
		if v == item {
			return true
		}
	}
	return false
}

// Unique drops repeated values, keeping first occurrences in order.
func Unique[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	out := make([]T, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitCSV splits every value on commas and drops empty, trimmed parts.
// "--package a,b --package c" and "a b,c" style inputs flatten the same way.
func SplitCSV(values ...string) []string {
	var out []string
	for _, s := range values {
		for _, part := range strings.Split(s, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
