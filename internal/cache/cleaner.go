package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/config"
	"github.com/open-edge-platform/cygfetch/internal/mirror"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
)

// The cache holds one directory per mirror:
//
//	<cache_dir>/<escaped mirror URL>/<arch>/setup.xz[.sig], setup.ini
//	<cache_dir>/<escaped mirror URL>/<arch>/release/...
const releaseDir = "release"

// CleanOptions defines what cache artifacts should be removed.
type CleanOptions struct {
	CleanArchives  bool   // <arch>/release trees
	CleanManifests bool   // <arch>/setup.* files
	Mirror         string // mirror URL or escaped directory name; empty means every mirror
	DryRun         bool   // report actions without deleting anything
}

// CleanResult contains the outcome of a cache cleanup run.
type CleanResult struct {
	RemovedPaths []string
	SkippedPaths []string
}

// Clean removes cached artifacts below config.CacheDir().
func Clean(opts CleanOptions) (*CleanResult, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory: %w", err)
	}
	return CleanDir(cacheDir, opts)
}

// CleanDir removes cached artifacts below cacheDir.
func CleanDir(cacheDir string, opts CleanOptions) (*CleanResult, error) {
	log := logger.Logger()
	if !opts.CleanArchives && !opts.CleanManifests {
		return nil, fmt.Errorf("at least one scope must be specified")
	}

	targets, missing, err := gatherTargets(cacheDir, opts)
	if err != nil {
		return nil, err
	}

	result := &CleanResult{RemovedPaths: make([]string, 0, len(targets)), SkippedPaths: missing}
	for _, target := range targets {
		if opts.DryRun {
			log.Infof("would remove %s", target)
			result.RemovedPaths = append(result.RemovedPaths, target)
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("removing %s: %w", target, err)
		}
		log.Debugf("removed %s", target)
		result.RemovedPaths = append(result.RemovedPaths, target)
	}
	return result, nil
}

func gatherTargets(cacheDir string, opts CleanOptions) ([]string, []string, error) {
	var missing []string

	var mirrorDirs []string
	if opts.Mirror != "" {
		name := opts.Mirror
		if strings.Contains(name, "://") {
			name = mirror.CacheDirName(name)
		}
		dir := filepath.Join(cacheDir, name)
		if err := ensureSubPath(cacheDir, dir); err != nil {
			return nil, nil, err
		}
		exists, err := pathExists(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("checking %s: %w", dir, err)
		}
		if !exists {
			return nil, []string{dir}, nil
		}
		mirrorDirs = []string{dir}
	} else {
		subdirs, err := listDirs(cacheDir)
		if err != nil {
			return nil, nil, err
		}
		mirrorDirs = subdirs
	}

	var targets []string
	for _, mdir := range mirrorDirs {
		archDirs, err := listDirs(mdir)
		if err != nil {
			return nil, nil, err
		}
		for _, adir := range archDirs {
			if opts.CleanArchives {
				rel := filepath.Join(adir, releaseDir)
				exists, err := pathExists(rel)
				if err != nil {
					return nil, nil, fmt.Errorf("checking %s: %w", rel, err)
				}
				if exists {
					targets = append(targets, rel)
				} else {
					missing = append(missing, rel)
				}
			}
			if opts.CleanManifests {
				files, err := filepath.Glob(filepath.Join(adir, "setup.*"))
				if err != nil {
					return nil, nil, err
				}
				targets = append(targets, files...)
			}
		}
	}

	for _, t := range targets {
		if err := ensureSubPath(cacheDir, t); err != nil {
			return nil, nil, err
		}
	}
	sort.Strings(targets)
	sort.Strings(missing)
	return targets, missing, nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func ensureSubPath(base, target string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to operate on %s because it is outside %s", target, base)
	}
	return nil
}

func pathExists(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("path must not be empty")
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
