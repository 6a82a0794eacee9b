// Package mirror reads the Cygwin mirror list and picks a mirror from it.
package mirror

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
)

const DefaultListURL = "https://cygwin.com/mirrors.lst"

var ErrNoMirror = errors.New("no usable mirror")

// Mirror is one "url;host;region;country" line of mirrors.lst.
type Mirror struct {
	URL     string
	Host    string
	Region  string
	Country string
}

// Parse reads a mirror list. Blank, comment and short lines are skipped.
func Parse(r io.Reader) ([]Mirror, error) {
	var out []Mirror
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 4 {
			continue
		}
		out = append(out, Mirror{
			URL:     strings.TrimSpace(parts[0]),
			Host:    strings.TrimSpace(parts[1]),
			Region:  strings.TrimSpace(parts[2]),
			Country: strings.TrimSpace(parts[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mirror list: %w", err)
	}
	return out, nil
}

// Pick returns a random http or https mirror.
func Pick(list []Mirror, rnd *rand.Rand) (Mirror, error) {
	usable := make([]Mirror, 0, len(list))
	for _, m := range list {
		if strings.HasPrefix(m.URL, "https://") || strings.HasPrefix(m.URL, "http://") {
			usable = append(usable, m)
		}
	}
	if len(usable) == 0 {
		return Mirror{}, ErrNoMirror
	}
	if rnd == nil {
		return usable[rand.Intn(len(usable))], nil
	}
	return usable[rnd.Intn(len(usable))], nil
}

// Fetch downloads and parses the mirror list at listURL.
func Fetch(ctx context.Context, client pkgfetcher.Client, listURL string) ([]Mirror, error) {
	log := logger.Logger()

	r, err := client.Fetch(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("fetching mirror list %s: %w", listURL, err)
	}
	defer r.Body.Close()

	list, err := Parse(r.Body)
	if err != nil {
		return nil, err
	}
	log.Debugf("mirror list %s has %d entries", listURL, len(list))
	return list, nil
}

// CacheDirName is the directory name setup uses for a mirror's downloads:
// the URL with a trailing slash, query-escaped.
func CacheDirName(mirrorURL string) string {
	if !strings.HasSuffix(mirrorURL, "/") {
		mirrorURL += "/"
	}
	return url.QueryEscape(mirrorURL)
}
