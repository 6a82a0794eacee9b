package cygutils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/cygversion"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
)

const (
	InstalledDBPath = "etc/setup/installed.db"
	SourceDirPath   = "usr/src"
)

var archiveSuffixRe = regexp.MustCompile(`\.tar\.\w+$`)

// LocalState holds what is already present under a Cygwin root.
type LocalState struct {
	Installed map[string]cygversion.Version
	Sources   map[string]cygversion.Version
}

// InstalledVersion returns the installed version of name, if any.
func (s *LocalState) InstalledVersion(name string) (*cygversion.Version, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Installed[name]
	if !ok {
		return nil, false
	}
	return &v, true
}

func (s *LocalState) SourceVersion(name string) (*cygversion.Version, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Sources[name]
	if !ok {
		return nil, false
	}
	return &v, true
}

// Classify compares a manifest version with the local one. A missing local
// version is always New.
func Classify(manifestVersion string, local *cygversion.Version) ospackage.TransferState {
	if local == nil {
		return ospackage.StateNew
	}
	switch c := cygversion.Compare(cygversion.Parse(manifestVersion), *local); {
	case c == 0:
		return ospackage.StateUnchanged
	case c < 0:
		return ospackage.StateOlder
	default:
		return ospackage.StateNew
	}
}

// ReadInstalledDB reads setup's installed.db: a header line followed by
// "<name> <name>-<version>.tar.<ext> <flag>" lines.
func ReadInstalledDB(r io.Reader) (map[string]cygversion.Version, error) {
	log := logger.Logger()
	out := make(map[string]cygversion.Version)

	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name, archive := fields[0], fields[1]
		version, ok := strings.CutPrefix(archive, name+"-")
		if !ok {
			log.Debugf("installed.db: archive %q does not belong to %q", archive, name)
			continue
		}
		version = archiveSuffixRe.ReplaceAllString(version, "")
		out[name] = cygversion.Parse(version)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading installed database: %w", err)
	}
	return out, nil
}

// SourceVersions matches "<name>-<version>.src" directory entries against
// known package names. When several names fit, the longest wins, so
// "gcc-core-13.2.0-1.src" goes to gcc-core rather than gcc.
func SourceVersions(entries []string, known func(string) bool) map[string]cygversion.Version {
	out := make(map[string]cygversion.Version)
	for _, entry := range entries {
		stem, ok := strings.CutSuffix(entry, ".src")
		if !ok {
			continue
		}
		best := -1
		for i := strings.IndexByte(stem, '-'); i > 0; {
			if known(stem[:i]) {
				best = i
			}
			next := strings.IndexByte(stem[i+1:], '-')
			if next < 0 {
				break
			}
			i += next + 1
		}
		if best < 0 || best == len(stem)-1 {
			continue
		}
		out[stem[:best]] = cygversion.Parse(stem[best+1:])
	}
	return out
}

// LoadLocalState reads the installed database and source listing under root.
// Missing files give an empty state.
func LoadLocalState(root string, idx *setupini.Index) (*LocalState, error) {
	log := logger.Logger()
	state := &LocalState{
		Installed: map[string]cygversion.Version{},
		Sources:   map[string]cygversion.Version{},
	}
	if root == "" {
		return state, nil
	}

	dbPath := filepath.Join(root, filepath.FromSlash(InstalledDBPath))
	f, err := security.SafeOpenFile(dbPath, os.O_RDONLY, 0, security.ResolveSymlinks)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warnf("no installed database at %s, treating every package as new", dbPath)
	case err != nil:
		return nil, fmt.Errorf("opening installed database: %w", err)
	default:
		installed, rerr := ReadInstalledDB(f)
		f.Close()
		if rerr != nil {
			return nil, rerr
		}
		state.Installed = installed
	}

	srcDir := filepath.Join(root, filepath.FromSlash(SourceDirPath))
	entries, err := os.ReadDir(srcDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("listing %s: %w", srcDir, err)
	default:
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		state.Sources = SourceVersions(names, func(n string) bool {
			_, ok := idx.Get(n)
			return ok
		})
	}

	log.Debugf("local state under %s: %d installed, %d source trees", root, len(state.Installed), len(state.Sources))
	return state, nil
}
