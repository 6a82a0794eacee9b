package setupini

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSelection is returned for selection criteria that cannot be used.
var ErrInvalidSelection = errors.New("invalid package selection")

// Selection holds the user's targeting criteria.
type Selection struct {
	names      map[string]struct{}
	categories []string
	sets       map[string]struct{}
	patterns   []*regexp.Regexp
}

// NewSelection compiles the criteria. Bad regular expressions fail here,
// before any manifest is read.
func NewSelection(names, categories, sets, patterns []string) (*Selection, error) {
	s := &Selection{
		names: make(map[string]struct{}, len(names)),
		sets:  make(map[string]struct{}, len(sets)),
	}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s.names[n] = struct{}{}
		}
	}
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			s.categories = append(s.categories, c)
		}
	}
	for _, set := range sets {
		if set = strings.TrimSpace(set); set != "" {
			s.sets[set] = struct{}{}
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: regex %q: %v", ErrInvalidSelection, p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Empty reports whether no criterion was given.
func (s *Selection) Empty() bool {
	return s == nil || (len(s.names) == 0 && len(s.categories) == 0 && len(s.sets) == 0 && len(s.patterns) == 0)
}

// Names returns the exact names that were requested.
func (s *Selection) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}

// MatchName covers direct names and regular expressions.
func (s *Selection) MatchName(name string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.names[name]; ok {
		return true
	}
	for _, re := range s.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// MatchCategory tests a raw, space separated category field.
func (s *Selection) MatchCategory(raw string) bool {
	if s == nil || len(s.categories) == 0 {
		return false
	}
	for _, c := range strings.Fields(raw) {
		for _, want := range s.categories {
			if strings.EqualFold(c, want) {
				return true
			}
		}
	}
	return false
}

// MatchSet tests the component directory of an install path.
func (s *Selection) MatchSet(component string) bool {
	if s == nil {
		return false
	}
	_, ok := s.sets[component]
	return ok
}
