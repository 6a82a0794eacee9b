// Package setupini reads Cygwin setup.ini manifests into a package index and
// applies the user's selection while doing so.
package setupini

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
)

// ErrArchMismatch is returned when the manifest was built for another
// architecture than the one requested.
var ErrArchMismatch = errors.New("manifest architecture mismatch")

// Supplemental selects optional fields that are kept in memory.
type Supplemental struct {
	LongDesc        bool
	Message         bool
	Obsoletes       bool
	Conflicts       bool
	ReplaceVersions bool
}

// Options controls a parse.
type Options struct {
	Arch          string     // expected architecture, empty to accept any
	Selection     *Selection // nil selects nothing
	TrackProvides bool       // build the provides alias map
	Keep          Supplemental
}

type parseState int

const (
	stateAwaitingHeader parseState = iota
	stateInRecord
	stateInSuppressedVersion
	stateInQuotedContinuation
)

var (
	labelRe = regexp.MustCompile(`^\[([^\]]*)\]$`)
	// [arch/]release/[_obsolete/]<component>/<more/path> <size> <hash>
	fileRe = regexp.MustCompile(`^((?:[^/\s]+/)?release/(?:_obsolete/)?([^/\s]+)/\S+)\s+(\d+)\s+([0-9A-Za-z+/=]+)\s*$`)
)

type parser struct {
	opts    Options
	idx     *Index
	targets *TargetSet

	state parseState
	// state to return to once a quoted value is closed
	resume parseState
	cur    *ospackage.Package

	quoted      strings.Builder
	quotedField string
	recording   bool

	line int
}

// Parse reads a manifest in a single forward pass. It returns the index of
// current package records and the names targeted by opts.Selection, in
// discovery order.
func Parse(r io.Reader, opts Options) (*Index, *TargetSet, error) {
	log := logger.Logger()

	p := &parser{
		opts:    opts,
		idx:     newIndex(),
		targets: NewTargetSet(),
	}

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, nil, fmt.Errorf("reading manifest: %w", err)
		}
		if line != "" || err == nil {
			p.line++
			if perr := p.process(strings.TrimRight(line, "\r\n")); perr != nil {
				return nil, nil, perr
			}
		}
		if err == io.EOF {
			break
		}
	}

	if err := p.finish(); err != nil {
		return nil, nil, err
	}

	log.Debugf("parsed %d packages (%d targeted) from manifest release=%q arch=%q",
		p.idx.Len(), p.targets.Len(), p.idx.Meta.Release, p.idx.Meta.Arch)
	return p.idx, p.targets, nil
}

func (p *parser) process(line string) error {
	if p.state == stateInQuotedContinuation {
		p.continueQuoted(line)
		return nil
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "", strings.HasPrefix(trimmed, "#"):
		return nil

	case strings.HasPrefix(trimmed, "@"):
		if p.state == stateAwaitingHeader {
			if err := p.checkArch(); err != nil {
				return err
			}
		}
		p.seal()
		p.begin(strings.TrimSpace(trimmed[1:]))
		return nil
	}

	if m := labelRe.FindStringSubmatch(trimmed); m != nil {
		if p.state == stateAwaitingHeader {
			return nil
		}
		if label := strings.TrimSpace(m[1]); label == "" || label == "curr" {
			p.state = stateInRecord
		} else {
			p.state = stateInSuppressedVersion
		}
		return nil
	}

	key, value, ok := strings.Cut(trimmed, ":")
	if !ok {
		logger.Logger().Debugf("setup.ini line %d: ignoring %q", p.line, trimmed)
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch p.state {
	case stateAwaitingHeader:
		if !p.startQuoted(key, value, false) {
			p.metadata(key, value)
		}
	case stateInSuppressedVersion:
		p.startQuoted(key, value, false)
	case stateInRecord:
		p.field(key, value)
	}
	return nil
}

// startQuoted enters continuation mode when value opens a quote that is not
// closed on the same line.
func (p *parser) startQuoted(key, value string, record bool) bool {
	i := strings.IndexByte(value, '"')
	if i < 0 || strings.HasSuffix(value[i+1:], `"`) {
		return false
	}
	p.resume = p.state
	p.state = stateInQuotedContinuation
	p.quotedField = key
	p.recording = record
	p.quoted.Reset()
	if record {
		p.quoted.WriteString(value)
	}
	return true
}

func (p *parser) continueQuoted(line string) {
	if p.recording {
		p.quoted.WriteByte('\n')
		p.quoted.WriteString(line)
	}
	if strings.HasSuffix(strings.TrimRight(line, " \t"), `"`) {
		p.closeQuoted()
	}
}

func (p *parser) closeQuoted() {
	if p.recording && p.cur != nil {
		p.store(p.quotedField, unquote(p.quoted.String()))
	}
	p.state = p.resume
	p.recording = false
	p.quoted.Reset()
}

func (p *parser) begin(name string) {
	p.cur = &ospackage.Package{Name: name}
	p.state = stateInRecord
	if p.opts.Selection.MatchName(name) {
		p.targets.Add(name)
	}
}

func (p *parser) seal() {
	if p.cur == nil || p.cur.Name == "" {
		p.cur = nil
		return
	}
	p.idx.add(p.cur, p.opts.TrackProvides)
	p.cur = nil
}

func (p *parser) finish() error {
	if p.state == stateInQuotedContinuation {
		logger.Logger().Debugf("setup.ini: unterminated quoted %s value at end of input", p.quotedField)
		p.closeQuoted()
	}
	if p.state == stateAwaitingHeader {
		if err := p.checkArch(); err != nil {
			return err
		}
	}
	p.seal()
	return nil
}

func (p *parser) checkArch() error {
	want, have := p.opts.Arch, p.idx.Meta.Arch
	if want != "" && have != "" && want != have {
		return fmt.Errorf("%w: manifest is for %q, requested %q", ErrArchMismatch, have, want)
	}
	return nil
}

func (p *parser) metadata(key, value string) {
	m := &p.idx.Meta
	switch key {
	case "release":
		m.Release = value
	case "arch":
		m.Arch = value
	case "setup-timestamp":
		m.Timestamp = value
	case "setup-minimum-version":
		m.MinimumSetupVersion = value
	case "setup-version":
		m.SetupVersion = value
	case "include-setup":
		m.IncludeSetup = value
	}
}

func (p *parser) field(key, value string) {
	switch key {
	case "ldesc":
		if p.startQuoted(key, value, p.opts.Keep.LongDesc) {
			return
		}
	case "message":
		if p.startQuoted(key, value, p.opts.Keep.Message) {
			return
		}
	default:
		if p.startQuoted(key, value, false) {
			return
		}
	}
	p.store(key, value)
}

func (p *parser) store(key, value string) {
	pkg := p.cur
	keep := p.opts.Keep

	switch key {
	case "sdesc":
		pkg.Description = unquote(value)
	case "ldesc":
		if keep.LongDesc {
			v := unquote(value)
			pkg.LongDesc = &v
		}
	case "message":
		if keep.Message {
			v := unquote(value)
			pkg.Message = &v
		}
	case "category":
		pkg.CategoriesRaw = value
		if p.opts.Selection.MatchCategory(value) {
			p.targets.Add(pkg.Name)
		}
	case "requires":
		pkg.RequiresRaw = &value
	case "depends", "depends2":
		pkg.DependsRaw = &value
	case "build-depends":
		pkg.BuildDependsRaw = &value
	case "version":
		pkg.Version = value
	case "install":
		pkg.Install = p.fileRecord(value)
	case "source":
		pkg.Source = p.fileRecord(value)
	case "provides":
		pkg.ProvidesRaw = &value
	case "obsoletes":
		if keep.Obsoletes {
			pkg.ObsoletesRaw = &value
		}
	case "conflicts":
		if keep.Conflicts {
			pkg.ConflictsRaw = &value
		}
	case "replace-versions":
		if keep.ReplaceVersions {
			pkg.ReplaceRaw = &value
		}
	}
}

func (p *parser) fileRecord(value string) *ospackage.FileRecord {
	m := fileRe.FindStringSubmatch(value)
	if m == nil {
		logger.Logger().Debugf("setup.ini line %d: malformed file entry %q for %s", p.line, value, p.cur.Name)
		return nil
	}
	size, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		logger.Logger().Debugf("setup.ini line %d: bad size %q for %s", p.line, m[3], p.cur.Name)
		return nil
	}
	if p.opts.Selection.MatchSet(m[2]) {
		p.targets.Add(p.cur.Name)
	}
	return &ospackage.FileRecord{
		Path: m[1],
		Size: size,
		Hash: m[4],
	}
}

// unquote strips the quotes around a sdesc/ldesc value. For message values
// ("<id> "text"") only the text is unquoted.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, '"'); i >= 0 {
		v = v[:i] + v[i+1:]
	}
	return strings.TrimSuffix(v, `"`)
}
