package ospackage

import (
	"regexp"
	"strings"
	"time"

	"github.com/open-edge-platform/cygfetch/internal/ospackage/cygversion"
)

// Package is the current-version record of one setup.ini entry.
//
// List-valued attributes are kept as the raw manifest strings and only split
// when asked for; a full manifest holds tens of thousands of entries.
type Package struct {
	Name        string // e.g. "cygwin"
	Description string // sdesc, unquoted
	LongDesc    *string
	Message     *string
	Version     string // e.g. "3.6.1-1"
	Install     *FileRecord
	Source      *FileRecord

	CategoriesRaw string
	// Requires and Depends describe the same edge set; Depends wins when set.
	RequiresRaw     *string
	DependsRaw      *string
	BuildDependsRaw *string
	ProvidesRaw     *string
	ObsoletesRaw    *string
	ConflictsRaw    *string
	ReplaceRaw      *string
}

// FileRecord describes one archive (install or source) on the mirror.
type FileRecord struct {
	Path            string // relative to the mirror root
	Size            int64
	Hash            string
	RemoteTimestamp *time.Time
	State           TransferState
}

// TransferState classifies a file relative to what is installed or cached.
type TransferState int

const (
	StateUnknown TransferState = iota
	StateNew
	StateUnchanged
	StateOlder
	StateNotFound
	StateError
)

func (s TransferState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateUnchanged:
		return "Unchanged"
	case StateOlder:
		return "Older"
	case StateNotFound:
		return "Not Found"
	case StateError:
		return "Error"
	}
	return ""
}

// HashAlgorithm is inferred from the length of a hex digest.
type HashAlgorithm string

const (
	HashUnknown HashAlgorithm = ""
	HashMD5     HashAlgorithm = "md5"
	HashSHA1    HashAlgorithm = "sha1"
	HashSHA256  HashAlgorithm = "sha256"
	HashSHA512  HashAlgorithm = "sha512"
)

// HashAlgorithm reports the digest type of r.Hash.
func (r *FileRecord) HashAlgorithm() HashAlgorithm {
	switch len(r.Hash) {
	case 32:
		return HashMD5
	case 40:
		return HashSHA1
	case 64:
		return HashSHA256
	case 128:
		return HashSHA512
	}
	return HashUnknown
}

// versionConstraintRe matches a trailing "(>= 1.2)" style suffix.
var versionConstraintRe = regexp.MustCompile(`\s*\(\s*(?:<=|>=|=|<|>)\s*\d[^)]*\)\s*$`)

// StripVersionConstraint returns the bare name of a dependency token.
func StripVersionConstraint(token string) string {
	return strings.TrimSpace(versionConstraintRe.ReplaceAllString(token, ""))
}

// SplitList splits a comma separated field (depends2, provides, ...) and
// strips version constraints from each entry.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := StripVersionConstraint(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SplitWords splits the legacy whitespace separated requires field.
func SplitWords(raw string) []string {
	fields := strings.Fields(raw)
	names := fields[:0]
	for _, f := range fields {
		if name := StripVersionConstraint(f); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func listOf(raw *string) []string {
	if raw == nil {
		return nil
	}
	return SplitList(*raw)
}

// Categories returns the space separated category list.
func (p *Package) Categories() []string {
	return strings.Fields(p.CategoriesRaw)
}

// HasCategory matches case-insensitively.
func (p *Package) HasCategory(category string) bool {
	for _, c := range p.Categories() {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Dependencies returns the run-time dependency names: depends when present,
// otherwise requires. The two are never merged.
func (p *Package) Dependencies() []string {
	if p.DependsRaw != nil {
		return SplitList(*p.DependsRaw)
	}
	if p.RequiresRaw != nil {
		return SplitWords(*p.RequiresRaw)
	}
	return nil
}

// HasDependencies reports whether either dependency field was given.
func (p *Package) HasDependencies() bool {
	return p.DependsRaw != nil || p.RequiresRaw != nil
}

func (p *Package) BuildDependencies() []string { return listOf(p.BuildDependsRaw) }
func (p *Package) Provides() []string          { return listOf(p.ProvidesRaw) }
func (p *Package) Obsoletes() []string         { return listOf(p.ObsoletesRaw) }
func (p *Package) Conflicts() []string         { return listOf(p.ConflictsRaw) }
func (p *Package) ReplaceVersions() []string {
	if p.ReplaceRaw == nil {
		return nil
	}
	return strings.Fields(strings.ReplaceAll(*p.ReplaceRaw, ",", " "))
}

// ParsedVersion parses Version on demand.
func (p *Package) ParsedVersion() cygversion.Version {
	return cygversion.Parse(p.Version)
}
