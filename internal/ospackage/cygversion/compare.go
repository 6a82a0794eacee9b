package cygversion

import (
	"strconv"
	"strings"
)

// Stage ranks development stages. Anything not listed is a release.
type Stage int

const (
	StageAlpha   Stage = -5
	StageBeta    Stage = -4
	StageDevel   Stage = -3
	StageRC      Stage = -2
	StageGA      Stage = -1
	StageRelease Stage = 0
)

var stageRanks = map[string]Stage{
	"alpha": StageAlpha,
	"beta":  StageBeta,
	"pr":    StageBeta,
	"pre":   StageBeta,
	"devel": StageDevel,
	"rc":    StageRC,
	"ga":    StageGA,
}

// StageOf maps a stage tag to its rank.
func StageOf(name string) Stage {
	if r, ok := stageRanks[strings.ToLower(name)]; ok {
		return r
	}
	return StageRelease
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
//
// Dates decide only when both sides carry one. Otherwise groups are compared
// pairwise and, on a common prefix, the version with more groups is newer.
func Compare(a, b Version) int {
	if a.HasDate() && b.HasDate() {
		return strings.Compare(a.Date, b.Date)
	}

	n := min(len(a.Groups), len(b.Groups))
	for i := 0; i < n; i++ {
		if c := compareGroup(a.Groups[i], b.Groups[i]); c != 0 {
			return c
		}
	}
	return sign(len(a.Groups) - len(b.Groups))
}

// CompareStrings parses both arguments and compares them.
func CompareStrings(a, b string) int {
	return Compare(Parse(a), Parse(b))
}

func compareGroup(a, b NumberGroup) int {
	for i := 0; i < Slots; i++ {
		if a.Numbers[i] != b.Numbers[i] {
			if a.Numbers[i] < b.Numbers[i] {
				return -1
			}
			return 1
		}
	}

	ra, rb := StageOf(a.Stage), StageOf(b.Stage)
	if ra != rb {
		return sign(int(ra) - int(rb))
	}
	if c := strings.Compare(a.Stage, b.Stage); c != 0 {
		return c
	}

	fa, fb := subVersion(a.SubVersion), subVersion(b.SubVersion)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func subVersion(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
