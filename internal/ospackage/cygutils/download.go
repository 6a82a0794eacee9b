package cygutils

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"golang.org/x/sync/errgroup"
)

type ArchiveKind string

const (
	KindInstall ArchiveKind = "install"
	KindSource  ArchiveKind = "source"
)

// PlanOptions selects which archives of each package are wanted.
type PlanOptions struct {
	Install bool
	Source  bool
}

// PlanItem is one archive of one resolved package.
type PlanItem struct {
	Package *ospackage.Package
	Kind    ArchiveKind
	Record  *ospackage.FileRecord
}

// Plan lists the wanted archives of the resolved targets in name order and
// sets each record's state against the local installation.
func Plan(targets *setupini.TargetSet, idx *setupini.Index, local *LocalState, opts PlanOptions) []PlanItem {
	var items []PlanItem
	for _, pkg := range Resolved(targets, idx) {
		if opts.Install && pkg.Install != nil {
			v, _ := local.InstalledVersion(pkg.Name)
			pkg.Install.State = Classify(pkg.Version, v)
			items = append(items, PlanItem{Package: pkg, Kind: KindInstall, Record: pkg.Install})
		}
		if opts.Source && pkg.Source != nil {
			v, _ := local.SourceVersion(pkg.Name)
			pkg.Source.State = Classify(pkg.Version, v)
			items = append(items, PlanItem{Package: pkg, Kind: KindSource, Record: pkg.Source})
		}
	}
	return items
}

// CachePath is where the archive of rec is stored below destRoot.
func CachePath(destRoot string, rec *ospackage.FileRecord) string {
	return filepath.Join(destRoot, filepath.FromSlash(rec.Path))
}

// DownloadPackages brings the planned archives from mirrorURL into destRoot.
//
// Unchanged and Older archives already in the cache are left alone. Other
// archives are checked with HEAD first: a 404 marks them Not Found, a size
// different from the manifest marks them Error. Downloads are verified
// against the manifest hash before they replace anything in the cache.
func DownloadPackages(ctx context.Context, plan []PlanItem, client pkgfetcher.Client, mirrorURL, destRoot string, workers int) error {
	log := logger.Logger()
	if workers < 1 {
		workers = 1
	}
	base := strings.TrimRight(mirrorURL, "/") + "/"

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	pending := make([]bool, len(plan))
	for i := range plan {
		rec := plan[i].Record
		if err := security.ValidateRelPath("install path", rec.Path); err != nil {
			rec.State = ospackage.StateError
			log.Errorf("%s: %v", plan[i].Package.Name, err)
			continue
		}
		dest := CachePath(destRoot, rec)

		if rec.State == ospackage.StateUnchanged || rec.State == ospackage.StateOlder {
			if VerifyFile(dest, rec) == nil {
				log.Debugf("%s: %s, cached copy is valid", rec.Path, rec.State)
				continue
			}
		}

		i := i
		g.Go(func() error {
			remote, err := client.Head(gctx, base+rec.Path)
			switch {
			case errors.Is(err, pkgfetcher.ErrNotFound):
				rec.State = ospackage.StateNotFound
				log.Warnf("%s is not on the mirror", rec.Path)
				return nil
			case err != nil:
				rec.State = ospackage.StateError
				log.Errorf("checking %s: %v", rec.Path, err)
				return nil
			}
			rec.RemoteTimestamp = remote.LastModified
			if remote.Size >= 0 && rec.Size > 0 && remote.Size != rec.Size {
				rec.State = ospackage.StateError
				log.Errorf("%s: %v: manifest says %d bytes, mirror has %d", rec.Path, ErrSizeMismatch, rec.Size, remote.Size)
				return nil
			}
			if VerifyFile(dest, rec) == nil {
				log.Debugf("%s: already cached", rec.Path)
				return nil
			}
			pending[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var (
		jobs  []pkgfetcher.Job
		owner []*ospackage.FileRecord
	)
	for i, want := range pending {
		if !want {
			continue
		}
		rec := plan[i].Record
		jobs = append(jobs, pkgfetcher.Job{
			URL:    base + rec.Path,
			Dest:   CachePath(destRoot, rec),
			Verify: func(path string) error { return VerifyFile(path, rec) },
		})
		owner = append(owner, rec)
	}

	if len(jobs) > 0 {
		log.Infof("downloading %d of %d archives from %s", len(jobs), len(plan), mirrorURL)
		results, _ := pkgfetcher.FetchPackages(ctx, client, jobs, workers)
		for i, res := range results {
			rec := owner[i]
			switch {
			case errors.Is(res.Err, pkgfetcher.ErrNotFound):
				rec.State = ospackage.StateNotFound
			case res.Err != nil:
				rec.State = ospackage.StateError
			case res.LastModified != nil:
				rec.RemoteTimestamp = res.LastModified
			}
		}
	}

	failed := 0
	for _, item := range plan {
		if item.Record.State == ospackage.StateError {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d archives could not be downloaded", failed, len(plan))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
