package cygutils

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
)

func quietLogs(t *testing.T) {
	t.Helper()
	old := logger.ReplaceStderrWriter(io.Discard)
	t.Cleanup(func() { logger.ReplaceStderrWriter(old) })
}

func str(s string) *string { return &s }

func pkg(name string, opts ...func(*ospackage.Package)) *ospackage.Package {
	p := &ospackage.Package{Name: name, Version: "1.0-1"}
	for _, o := range opts {
		o(p)
	}
	return p
}

func depends(v string) func(*ospackage.Package)  { return func(p *ospackage.Package) { p.DependsRaw = str(v) } }
func requires(v string) func(*ospackage.Package) { return func(p *ospackage.Package) { p.RequiresRaw = str(v) } }
func buildDeps(v string) func(*ospackage.Package) {
	return func(p *ospackage.Package) { p.BuildDependsRaw = str(v) }
}
func provides(v string) func(*ospackage.Package) { return func(p *ospackage.Package) { p.ProvidesRaw = str(v) } }

func TestResolve(t *testing.T) {
	quietLogs(t)
	idx := setupini.NewIndex(
		pkg("bash", depends("cygwin, libreadline7 (>= 8.0), libiconv2")),
		pkg("cygwin"),
		pkg("libreadline7", requires("libncursesw10 cygwin")),
		pkg("libncursesw10", depends("cygwin")),
		pkg("libiconv2"),
		pkg("vim", depends("mail-agent, missing-lib"), buildDeps("gcc-core, cygport")),
		pkg("ssmtp", provides("mail-agent (= 2.64)")),
		pkg("exim", provides("mail-agent")),
		pkg("gcc-core", depends("cygwin")),
		pkg("cygport", depends("bash")),
		pkg("a", depends("b")),
		pkg("b", depends("a")),
		pkg("self", buildDeps("self")),
	)

	testCases := []struct {
		name    string
		seed    []string
		runtime bool
		build   bool
		want    []string
	}{
		{
			name:    "runtime closure in discovery order",
			seed:    []string{"bash"},
			runtime: true,
			want:    []string{"bash", "cygwin", "libreadline7", "libiconv2", "libncursesw10"},
		},
		{
			name:    "no expansion",
			seed:    []string{"bash"},
			want:    []string{"bash"},
		},
		{
			name:    "alias fallback adds every provider, unknown names dropped",
			seed:    []string{"vim"},
			runtime: true,
			want:    []string{"vim", "ssmtp", "exim"},
		},
		{
			name:  "build deps only",
			seed:  []string{"vim"},
			build: true,
			want:  []string{"vim", "gcc-core", "cygport"},
		},
		{
			name:    "build and runtime",
			seed:    []string{"vim"},
			runtime: true,
			build:   true,
			want: []string{"vim", "ssmtp", "exim", "gcc-core", "cygport", "cygwin", "bash",
				"libreadline7", "libiconv2", "libncursesw10"},
		},
		{
			name:    "cycle",
			seed:    []string{"a"},
			runtime: true,
			want:    []string{"a", "b"},
		},
		{
			name:  "self edge",
			seed:  []string{"self"},
			build: true,
			want:  []string{"self"},
		},
		{
			name:    "unknown seed kept but not expanded",
			seed:    []string{"nope", "a"},
			runtime: true,
			want:    []string{"nope", "a", "b"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			targets := setupini.NewTargetSet(tc.seed...)
			Resolve(targets, idx, tc.runtime, tc.build)
			if got := targets.Names(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Resolve = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	quietLogs(t)
	idx := setupini.NewIndex(
		pkg("x", depends("y")),
		pkg("y", depends("z, x")),
		pkg("z"),
	)
	targets := setupini.NewTargetSet("x")
	Resolve(targets, idx, true, true)
	first := targets.Names()

	Resolve(targets, idx, true, true)
	if got := targets.Names(); !reflect.DeepEqual(got, first) {
		t.Errorf("second Resolve grew the set: %v -> %v", first, got)
	}
}

func TestResolveAliasFallback(t *testing.T) {
	quietLogs(t)
	idx := setupini.NewIndex(
		pkg("X", provides("virtual-foo")),
		pkg("Y", depends("virtual-foo")),
	)
	targets := setupini.NewTargetSet("Y")
	Resolve(targets, idx, true, false)
	if got := targets.Sorted(); !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Errorf("Resolve = %v, want [X Y]", got)
	}
}

func TestResolveDependsOverridesRequires(t *testing.T) {
	quietLogs(t)
	idx := setupini.NewIndex(
		pkg("tool", requires("old-lib"), depends("new-lib")),
		pkg("old-lib"),
		pkg("new-lib"),
	)
	targets := setupini.NewTargetSet("tool")
	Resolve(targets, idx, true, false)
	if got := targets.Names(); !reflect.DeepEqual(got, []string{"tool", "new-lib"}) {
		t.Errorf("Resolve = %v, want [tool new-lib]", got)
	}
}

func TestParseAndResolveByCategory(t *testing.T) {
	quietLogs(t)
	manifest := `release: cygwin
arch: x86_64

@ cygwin
sdesc: "The UNIX emulation engine"
category: Base
requires: base-cygwin
version: 3.6.1-1
install: x86_64/release/cygwin/cygwin-3.6.1-1.tar.xz 1390120 0c7b1f4e0a3f2d5b8c9e7a6d4f3b2a1c0c7b1f4e0a3f2d5b8c9e7a6d4f3b2a1c

@ base-cygwin
sdesc: "Initial base installation helper script"
category: Utils
version: 3.8-2
install: x86_64/release/base-cygwin/base-cygwin-3.8-2.tar.xz 8432 aa55aa55aa55aa55aa55aa55aa55aa55
`
	sel, err := setupini.NewSelection(nil, []string{"Base"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx, targets, err := setupini.Parse(strings.NewReader(manifest), setupini.Options{Arch: "x86_64", Selection: sel})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	Resolve(targets, idx, false, false)
	if got := targets.Sorted(); !reflect.DeepEqual(got, []string{"cygwin"}) {
		t.Fatalf("targets = %v, want [cygwin]", got)
	}

	Resolve(targets, idx, true, false)
	if got := targets.Sorted(); !reflect.DeepEqual(got, []string{"base-cygwin", "cygwin"}) {
		t.Errorf("targets with deps = %v", got)
	}

	resolved := Resolved(targets, idx)
	if len(resolved) != 2 || resolved[0].Name != "base-cygwin" || resolved[1].Name != "cygwin" {
		t.Errorf("Resolved = %v", resolved)
	}
	if alg := resolved[1].Install.HashAlgorithm(); alg != ospackage.HashSHA256 {
		t.Errorf("cygwin hash algorithm = %q, want sha256", alg)
	}
	if alg := resolved[0].Install.HashAlgorithm(); alg != ospackage.HashMD5 {
		t.Errorf("base-cygwin hash algorithm = %q, want md5", alg)
	}
}
