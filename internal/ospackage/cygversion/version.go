// Package cygversion parses and orders the free-form version strings found in
// Cygwin setup.ini manifests and installed.db files.
//
// Upstream version strings mix dotted release numbers, embedded dates, VCS
// markers and hashes, and pre-release tags. Parse never fails: whatever cannot
// be interpreted is dropped as a separator, so every pair of versions stays
// comparable.
package cygversion

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Slots is the number of numeric components kept per group.
const Slots = 5

// NumberGroup is one dot-joined run of numbers, e.g. "3.6.1" in "3.6.1-1".
type NumberGroup struct {
	Numbers    [Slots]uint64
	Stage      string // development stage tag, lower-cased ("rc", "beta", ...)
	SubVersion string // numeric suffix of the stage tag ("1" in "rc1")

	filled int
}

// Version is the parsed, comparable form of a raw version string.
type Version struct {
	Raw    string
	Groups []NumberGroup
	Date   string // YYYYMMDD, empty when no date was found
}

// HasDate reports whether an embedded date was extracted.
func (v Version) HasDate() bool {
	return v.Date != ""
}

func (v Version) String() string {
	return v.Raw
}

var (
	// 2023-04-05, 2023.4.5
	delimitedDateRe = regexp.MustCompile(`(20\d{2})[-.](1[0-2]|0?[1-9])[-.](3[01]|[12]\d|0?[1-9])`)
	// 20230405
	compactDateRe = regexp.MustCompile(`(20\d{2})(1[0-2]|0[1-9])(3[01]|[12]\d|0[1-9])`)

	vcsRe    = regexp.MustCompile(`(?:rcgit|darcs|git|bzr|cvs|deb|hg|rcs|svn)[.0-9a-fA-F]*`)
	hexRe    = regexp.MustCompile(`^[0-9a-fA-F]+`)
	digitsRe = regexp.MustCompile(`^[0-9]+`)
	devTagRe = regexp.MustCompile(`^([A-Za-z]+)([0-9]+(?:\.[0-9]+)?)?`)
)

const (
	minHashLen = 7
	maxHashLen = 8
)

// Parse turns raw into its comparable form.
func Parse(raw string) Version {
	v := Version{Raw: raw}
	work := strings.TrimSpace(raw)

	work, v.Date = extractDate(work)

	if loc := vcsRe.FindStringIndex(work); loc != nil {
		work = work[:loc[0]] + work[loc[1]:]
	}

	v.Groups = []NumberGroup{{}}
	cur := &v.Groups[0]
	sawNumber := false
	newGroup := false

	startToken := func() {
		if newGroup {
			v.Groups = append(v.Groups, NumberGroup{})
			cur = &v.Groups[len(v.Groups)-1]
			sawNumber = false
			newGroup = false
		}
	}

	for work != "" {
		if n, rest, ok := nextNumber(work); ok {
			startToken()
			cur.push(n)
			sawNumber = true
			work = rest
			// a dot directly after a number keeps the group open
			if strings.HasPrefix(work, ".") {
				work = work[1:]
			}
			continue
		}

		if m := devTagRe.FindStringSubmatch(work); m != nil {
			startToken()
			if cur.Stage == "" {
				cur.Stage = strings.ToLower(m[1])
				cur.SubVersion = m[2]
			}
			work = work[len(m[0]):]
			continue
		}

		// separator
		if sawNumber {
			newGroup = true
		}
		work = work[1:]
	}

	return v
}

// extractDate removes the first date-shaped substring and returns it
// normalised to YYYYMMDD.
func extractDate(s string) (string, string) {
	for _, re := range []*regexp.Regexp{delimitedDateRe, compactDateRe} {
		m := re.FindStringSubmatchIndex(s)
		if m == nil {
			continue
		}
		year := s[m[2]:m[3]]
		month := s[m[4]:m[5]]
		day := s[m[6]:m[7]]
		date := year + pad2(month) + pad2(day)
		return s[:m[0]] + s[m[1]:], date
	}
	return s, ""
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// nextNumber consumes a VCS hash (7-8 hex digits) or a decimal run.
func nextNumber(s string) (uint64, string, bool) {
	if h := hexRe.FindString(s); len(h) >= minHashLen && len(h) <= maxHashLen {
		n, err := strconv.ParseUint(h, 16, 64)
		if err == nil {
			return n, s[len(h):], true
		}
	}
	d := digitsRe.FindString(s)
	if d == "" {
		return 0, s, false
	}
	n, err := strconv.ParseUint(d, 10, 64)
	if err != nil {
		n = math.MaxUint64
	}
	return n, s[len(d):], true
}

func (g *NumberGroup) push(n uint64) {
	if g.filled < Slots {
		g.Numbers[g.filled] = n
	}
	g.filled++
}
