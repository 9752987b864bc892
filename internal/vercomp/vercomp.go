package vercomp

import (
	"sort"
	"strconv"
	"strings"
)

// compare result
const (
	Less    = -1
	Equal   = 0
	Greater = 1
)

// Compare provides a total order over build incremental identifiers.
//
// The trailing dot segment is a build qualifier and never participates in
// ordering. A leading V revision marker is ignored. The remaining segments
// are compared pairwise by their leading integer, with segments lacking one
// coerced to zero and missing trailing segments treated as zero, so the
// comparison never fails regardless of input.
func Compare(a, b string) int {
	av := Parse(a)
	bv := Parse(b)
	length := len(av)
	if len(bv) > length {
		length = len(bv)
	}
	for i := 0; i < length; i++ {
		var ai, bi int
		if i < len(av) {
			ai = av[i]
		}
		if i < len(bv) {
			bi = bv[i]
		}
		if ai > bi {
			return Greater
		}
		if ai < bi {
			return Less
		}
	}
	return Equal
}

// IsNewerThan reports whether candidate orders strictly after current.
func IsNewerThan(candidate, current string) bool {
	return Compare(candidate, current) > 0
}

// Sort orders incremental identifiers ascending in place.
func Sort(incrementals []string) {
	sort.SliceStable(incrementals, func(i, j int) bool {
		return Compare(incrementals[i], incrementals[j]) == Less
	})
}

// Parse splits an incremental identifier into its ordered numeric segments.
func Parse(incremental string) []int {
	base := stripSuffix(incremental)
	if base == "" {
		return nil
	}
	parts := strings.Split(base, ".")
	segments := make([]int, len(parts))
	for i, part := range parts {
		segments[i] = parseSegment(part)
	}
	return segments
}

// parseSegment reads the leading integer of a segment, so a mixed segment
// like "3a" orders as 3. A segment without a leading integer is zero.
func parseSegment(part string) int {
	s := strings.TrimSpace(part)
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	num, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	if neg {
		return -num
	}
	return num
}

func stripSuffix(incremental string) string {
	s := strings.TrimSpace(incremental)
	if idx := strings.LastIndex(s, "."); idx != -1 {
		s = s[:idx]
	}
	if len(s) > 0 && (s[0] == 'V' || s[0] == 'v') {
		s = s[1:]
	}
	return s
}
