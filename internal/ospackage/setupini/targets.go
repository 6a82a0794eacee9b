package setupini

import "sort"

// TargetSet is an insertion-ordered set of package names.
type TargetSet struct {
	names []string
	seen  map[string]struct{}
}

func NewTargetSet(names ...string) *TargetSet {
	t := &TargetSet{seen: make(map[string]struct{})}
	for _, n := range names {
		t.Add(n)
	}
	return t
}

// Add appends name unless it is already present and reports whether it did.
func (t *TargetSet) Add(name string) bool {
	if _, ok := t.seen[name]; ok {
		return false
	}
	t.seen[name] = struct{}{}
	t.names = append(t.names, name)
	return true
}

func (t *TargetSet) Contains(name string) bool {
	_, ok := t.seen[name]
	return ok
}

func (t *TargetSet) Len() int {
	return len(t.names)
}

// At returns the i-th name in insertion order.
func (t *TargetSet) At(i int) string {
	return t.names[i]
}

// Names returns the names in insertion order.
func (t *TargetSet) Names() []string {
	return append([]string(nil), t.names...)
}

// Sorted returns the names in lexicographic order, the order used for output.
func (t *TargetSet) Sorted() []string {
	out := t.Names()
	sort.Strings(out)
	return out
}
