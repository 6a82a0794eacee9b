package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/config"
	"github.com/open-edge-platform/cygfetch/internal/mirror"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/cygutils"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"github.com/open-edge-platform/cygfetch/internal/utils/slice"
	"github.com/spf13/cobra"
)

// breakerThreshold is the number of consecutive failures after which a
// mirror host is left alone for a while.
const breakerThreshold = 5

// newClient is replaced in tests.
var newClient = func() pkgfetcher.Client {
	return pkgfetcher.NewBreakerFetcher(pkgfetcher.NewFetcher(), breakerThreshold)
}

// selectOptions are the flags shared by list, fetch and verify.
type selectOptions struct {
	categories []string
	sets       []string
	patterns   []string
	deps       bool
	buildDeps  bool
	source     bool
	manifest   string
	arch       string
	root       string
	mirror     string
	cacheDir   string

	keep setupini.Supplemental
}

func (o *selectOptions) register(cmd *cobra.Command, depsDefault bool) {
	f := cmd.Flags()
	f.StringSliceVarP(&o.categories, "category", "c", nil, "Select every package in a category (repeatable)")
	f.StringSliceVarP(&o.sets, "set", "s", nil, "Select every package of a source set, the directory below release/ (repeatable)")
	f.StringArrayVarP(&o.patterns, "regex", "r", nil, "Select package names matching a regular expression (repeatable)")
	f.BoolVar(&o.deps, "deps", depsDefault, "Follow run-time dependencies")
	f.BoolVar(&o.buildDeps, "build-deps", false, "Follow build dependencies")
	f.BoolVar(&o.source, "source", false, "Include source archives")
	f.StringVarP(&o.manifest, "manifest", "m", "", "Use a local setup.ini (or setup.xz/.zst/.bz2) instead of the mirror's")
	f.StringVarP(&o.arch, "arch", "a", "", "Manifest architecture (x86_64, x86, noarch)")
	f.StringVar(&o.root, "root", "", "Cygwin root to compare against (reads etc/setup/installed.db)")
	f.StringVar(&o.mirror, "mirror", "", "Mirror URL (default: from config, else a random mirror)")
	f.StringVarP(&o.cacheDir, "cache-dir", "d", "", "Cache directory")
}

// applyOverrides copies changed flags into the global configuration.
func (o *selectOptions) applyOverrides(cmd *cobra.Command) error {
	current := config.Global()
	if cmd.Flags().Changed("arch") {
		if !slice.Contains(config.ValidArches, o.arch) {
			return fmt.Errorf("invalid --arch %q, must be one of: %s", o.arch, strings.Join(config.ValidArches, ", "))
		}
		current.Arch = o.arch
	}
	if cmd.Flags().Changed("root") {
		current.RootDir = o.root
	}
	if cmd.Flags().Changed("cache-dir") {
		current.CacheDir = o.cacheDir
	}
	if cmd.Flags().Changed("mirror") {
		if err := security.ValidateMirrorURL("--mirror", o.mirror); err != nil {
			return err
		}
		current.Mirror = o.mirror
	}
	config.SetGlobal(current)
	return nil
}

// session is everything a command needs after the manifest was read,
// targets were resolved and compared with the local installation.
type session struct {
	client    pkgfetcher.Client
	mirrorURL string
	cacheRoot string // <cache_dir>/<escaped mirror>, empty without a mirror
	index     *setupini.Index
	targets   *setupini.TargetSet
	plan      []cygutils.PlanItem
}

// prepare runs selection, manifest retrieval, parsing, resolution and local
// state comparison. needMirror forces a mirror even with --manifest.
func prepare(ctx context.Context, o *selectOptions, names []string, needMirror bool) (*session, error) {
	log := logger.Logger()

	sel, err := setupini.NewSelection(slice.SplitCSV(names...), o.categories, o.sets, o.patterns)
	if err != nil {
		return nil, err
	}
	if sel.Empty() {
		return nil, fmt.Errorf("%w: name packages or use --category, --set or --regex", setupini.ErrInvalidSelection)
	}

	s := &session{client: newClient()}
	if o.manifest == "" || needMirror {
		if err := s.pickMirror(ctx); err != nil {
			return nil, err
		}
	}

	manifestPath := o.manifest
	if manifestPath == "" {
		manifestPath, err = cygutils.FetchManifest(ctx, s.client, s.mirrorURL, config.Arch(), s.cacheRoot, config.Global().PubKey)
		if err != nil {
			return nil, err
		}
	} else {
		var cleanup func()
		if manifestPath, cleanup, err = localManifest(manifestPath); err != nil {
			return nil, err
		}
		defer cleanup()
	}

	f, err := security.SafeOpenFile(manifestPath, os.O_RDONLY, 0, security.ResolveSymlinks)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	s.index, s.targets, err = setupini.Parse(f, setupini.Options{
		Arch:          config.Arch(),
		Selection:     sel,
		TrackProvides: o.deps || o.buildDeps,
		Keep:          o.keep,
	})
	if err != nil {
		return nil, err
	}

	for _, name := range sel.Names() {
		if _, ok := s.index.Get(name); ok {
			continue
		}
		if hints := setupini.Suggest(s.index, name); len(hints) > 0 {
			log.Warnf("no package named %q, did you mean: %s", name, strings.Join(hints, ", "))
		} else {
			log.Warnf("no package named %q", name)
		}
	}
	if s.targets.Len() == 0 {
		return nil, errors.New("no package matched the selection")
	}

	requested := s.targets.Len()
	cygutils.Resolve(s.targets, s.index, o.deps, o.buildDeps)
	log.Infof("%d packages selected, %d after dependency resolution", requested, s.targets.Len())

	local, err := cygutils.LoadLocalState(config.RootDir(), s.index)
	if err != nil {
		return nil, err
	}
	s.plan = cygutils.Plan(s.targets, s.index, local, cygutils.PlanOptions{Install: true, Source: o.source})
	return s, nil
}

func (s *session) pickMirror(ctx context.Context) error {
	log := logger.Logger()

	s.mirrorURL = config.Global().Mirror
	if s.mirrorURL == "" {
		list, err := mirror.Fetch(ctx, s.client, config.Global().MirrorList)
		if err != nil {
			return err
		}
		m, err := mirror.Pick(list, nil)
		if err != nil {
			return err
		}
		s.mirrorURL = m.URL
		log.Infof("using mirror %s (%s, %s)", m.URL, m.Region, m.Country)
	}
	root, err := config.ManifestDir(mirror.CacheDirName(s.mirrorURL))
	if err != nil {
		return err
	}
	s.cacheRoot = root
	return nil
}

// localManifest returns a plain setup.ini for path, decompressing into the
// temp directory when needed. cleanup removes anything it created.
func localManifest(path string) (string, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz", ".zst", ".bz2", ".gz":
	default:
		return path, func() {}, nil
	}
	dir, err := os.MkdirTemp(config.TempDir(), "cygfetch-manifest-")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	out := filepath.Join(dir, "setup.ini")
	if err := cygutils.Decompress(path, out); err != nil {
		cleanup()
		return "", nil, err
	}
	return out, cleanup, nil
}
