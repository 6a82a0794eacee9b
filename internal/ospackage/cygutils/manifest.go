package cygutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"golang.org/x/sync/errgroup"
)

// ManifestNames are tried in order under <mirror>/<arch>/.
var ManifestNames = []string{"setup.xz", "setup.zst", "setup.bz2", "setup.ini"}

const manifestFile = "setup.ini"

// FetchManifest downloads the manifest for arch from mirrorURL into destDir,
// checks its detached signature when pubKey is set, and returns the path of
// the decompressed setup.ini.
func FetchManifest(ctx context.Context, client pkgfetcher.Client, mirrorURL, arch, destDir, pubKey string) (string, error) {
	log := logger.Logger()

	dir := filepath.Join(destDir, arch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating manifest directory: %w", err)
	}
	if pubKey == "" {
		log.Warn("no public key configured, manifest signature will not be checked")
	}

	base := strings.TrimRight(mirrorURL, "/") + "/" + arch + "/"
	for _, name := range ManifestNames {
		local := filepath.Join(dir, name)
		sig := local + ".sig"

		missing := false
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			err := save(gctx, client, base+name, local)
			missing = errors.Is(err, pkgfetcher.ErrNotFound)
			return err
		})
		if pubKey != "" {
			g.Go(func() error {
				if err := save(gctx, client, base+name+".sig", sig); err != nil {
					return fmt.Errorf("%w: fetching signature: %w", ErrSignature, err)
				}
				return nil
			})
		}
		err := g.Wait()
		if missing {
			_ = os.Remove(sig)
			log.Debugf("%s not on mirror, trying next format", base+name)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", base+name, err)
		}

		if pubKey != "" {
			if err := VerifySignature(local, sig, pubKey); err != nil {
				return "", err
			}
		}

		out := filepath.Join(dir, manifestFile)
		if name != manifestFile {
			if err := Decompress(local, out); err != nil {
				return "", err
			}
		}
		log.Infof("manifest %s saved to %s", base+name, out)
		return out, nil
	}
	return "", fmt.Errorf("no manifest under %s: %w", base, pkgfetcher.ErrNotFound)
}

func save(ctx context.Context, client pkgfetcher.Client, url, dest string) error {
	r, err := client.Fetch(ctx, url)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	_, err = io.Copy(f, r.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}
