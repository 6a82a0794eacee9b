package mirror

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
)

const sampleList = `https://mirrors.kernel.org/sourceware/cygwin/;mirrors.kernel.org;United States;California
ftp://ftp.example.org/cygwin/;ftp.example.org;Europe;Germany

# comment
broken;line
http://mirror.example.jp/cygwin/;mirror.example.jp;Asia;Japan
rsync://rsync.example.net/cygwin/;rsync.example.net;Europe;France
`

func TestParse(t *testing.T) {
	list, err := Parse(strings.NewReader(sampleList))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("got %d mirrors, want 4: %+v", len(list), list)
	}
	want := Mirror{URL: "https://mirrors.kernel.org/sourceware/cygwin/", Host: "mirrors.kernel.org", Region: "United States", Country: "California"}
	if list[0] != want {
		t.Errorf("list[0] = %+v", list[0])
	}
}

func TestPick(t *testing.T) {
	list, _ := Parse(strings.NewReader(sampleList))
	rnd := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		m, err := Pick(list, rnd)
		if err != nil {
			t.Fatalf("Pick: %v", err)
		}
		seen[m.URL] = true
	}
	for u := range seen {
		if !strings.HasPrefix(u, "http") {
			t.Errorf("picked non-http mirror %s", u)
		}
	}
	if len(seen) != 2 {
		t.Errorf("expected both http mirrors to be picked over 50 draws, got %v", seen)
	}

	if _, err := Pick([]Mirror{{URL: "ftp://x/"}}, nil); !errors.Is(err, ErrNoMirror) {
		t.Errorf("err = %v, want ErrNoMirror", err)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mirrors.lst" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()
	client := pkgfetcher.NewFetcher(pkgfetcher.WithHTTPClient(srv.Client()), pkgfetcher.WithMaxRetries(0))

	list, err := Fetch(context.Background(), client, srv.URL+"/mirrors.lst")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(list) != 4 {
		t.Errorf("got %d mirrors", len(list))
	}

	if _, err := Fetch(context.Background(), client, srv.URL+"/nope"); !errors.Is(err, pkgfetcher.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCacheDirName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://mirrors.kernel.org/sourceware/cygwin/", "https%3A%2F%2Fmirrors.kernel.org%2Fsourceware%2Fcygwin%2F"},
		{"http://mirror.example.jp/cygwin", "http%3A%2F%2Fmirror.example.jp%2Fcygwin%2F"},
	}
	for _, tt := range tests {
		if got := CacheDirName(tt.in); got != tt.want {
			t.Errorf("CacheDirName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
