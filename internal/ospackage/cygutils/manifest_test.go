package cygutils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
)

func serveFiles(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client(srv *httptest.Server) pkgfetcher.Client {
	return pkgfetcher.NewFetcher(pkgfetcher.WithHTTPClient(srv.Client()), pkgfetcher.WithMaxRetries(0))
}

func TestFetchManifestSigned(t *testing.T) {
	quietLogs(t)
	signer, keyPath := newSigner(t)
	compressed := xzBytes(t, []byte(plainManifest))
	srv := serveFiles(t, map[string][]byte{
		"/x86_64/setup.xz":     compressed,
		"/x86_64/setup.xz.sig": detachSign(t, signer, compressed, false),
	})

	dest := t.TempDir()
	path, err := FetchManifest(context.Background(), client(srv), srv.URL+"/", "x86_64", dest, keyPath)
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if path != filepath.Join(dest, "x86_64", "setup.ini") {
		t.Errorf("path = %s", path)
	}
	got, _ := os.ReadFile(path)
	if string(got) != plainManifest {
		t.Errorf("manifest = %q", got)
	}
}

func TestFetchManifestFallsBackToNextFormat(t *testing.T) {
	quietLogs(t)
	srv := serveFiles(t, map[string][]byte{
		"/noarch/setup.zst": zstdBytes(t, []byte(plainManifest)),
	})
	path, err := FetchManifest(context.Background(), client(srv), srv.URL, "noarch", t.TempDir(), "")
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != plainManifest {
		t.Errorf("manifest = %q", got)
	}
}

func TestFetchManifestPlain(t *testing.T) {
	quietLogs(t)
	srv := serveFiles(t, map[string][]byte{"/x86_64/setup.ini": []byte(plainManifest)})
	path, err := FetchManifest(context.Background(), client(srv), srv.URL, "x86_64", t.TempDir(), "")
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if filepath.Base(path) != "setup.ini" {
		t.Errorf("path = %s", path)
	}
}

func TestFetchManifestErrors(t *testing.T) {
	quietLogs(t)
	_, keyPath := newSigner(t)
	other, _ := newSigner(t)
	compressed := xzBytes(t, []byte(plainManifest))

	testCases := []struct {
		name  string
		files map[string][]byte
		key   string
		want  error
	}{
		{
			name:  "nothing on mirror",
			files: map[string][]byte{},
			want:  pkgfetcher.ErrNotFound,
		},
		{
			name:  "signature missing",
			files: map[string][]byte{"/x86_64/setup.xz": compressed},
			key:   keyPath,
			want:  ErrSignature,
		},
		{
			name: "signed by someone else",
			files: map[string][]byte{
				"/x86_64/setup.xz":     compressed,
				"/x86_64/setup.xz.sig": detachSign(t, other, compressed, true),
			},
			key:  keyPath,
			want: ErrSignature,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serveFiles(t, tc.files)
			_, err := FetchManifest(context.Background(), client(srv), srv.URL, "x86_64", t.TempDir(), tc.key)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
