package setupini

import (
	"sort"

	"github.com/open-edge-platform/cygfetch/internal/ospackage"
)

// Metadata holds the manifest-level fields found before the first record.
type Metadata struct {
	Release             string
	Arch                string
	Timestamp           string
	MinimumSetupVersion string
	SetupVersion        string
	IncludeSetup        string
}

// Index maps package names to their current record and, when alias tracking
// is on, provided alias names to their providers.
//
// An Index is only written by Parse; afterwards it is read-only.
type Index struct {
	Meta Metadata

	byName   map[string]*ospackage.Package
	provides map[string][]string
}

func newIndex() *Index {
	return &Index{
		byName:   make(map[string]*ospackage.Package),
		provides: make(map[string][]string),
	}
}

// NewIndex builds an index from already constructed packages; aliases are
// registered for every package that declares provides.
func NewIndex(pkgs ...*ospackage.Package) *Index {
	idx := newIndex()
	for _, p := range pkgs {
		idx.add(p, true)
	}
	return idx
}

func (idx *Index) add(p *ospackage.Package, trackProvides bool) {
	idx.byName[p.Name] = p
	if !trackProvides {
		return
	}
	for _, alias := range p.Provides() {
		idx.addProvider(alias, p.Name)
	}
}

func (idx *Index) addProvider(alias, provider string) {
	for _, existing := range idx.provides[alias] {
		if existing == provider {
			return
		}
	}
	idx.provides[alias] = append(idx.provides[alias], provider)
}

// Get returns the current record for name.
func (idx *Index) Get(name string) (*ospackage.Package, bool) {
	p, ok := idx.byName[name]
	return p, ok
}

// Providers returns the packages that provide alias, in manifest order.
func (idx *Index) Providers(alias string) []string {
	return idx.provides[alias]
}

func (idx *Index) Len() int {
	return len(idx.byName)
}

// Names returns all package names, sorted.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.byName))
	for n := range idx.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
