package sbom

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/open-edge-platform/cygfetch/internal/config/version"
	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
)

func entries() []Entry {
	gpp := &ospackage.Package{
		Name:        "gcc-g++",
		Description: "GNU Compiler Collection (C++)",
		Version:     "13.2.1-1",
		Install: &ospackage.FileRecord{
			Path:  "x86_64/release/gcc/gcc-g++/gcc-g++-13.2.1-1.tar.xz",
			Hash:  strings.Repeat("AB", 64),
			State: ospackage.StateNew,
		},
		Source: &ospackage.FileRecord{
			Path:  "x86_64/release/gcc/gcc-13.2.1-1-src.tar.xz",
			Hash:  strings.Repeat("cd", 16),
			State: ospackage.StateUnchanged,
		},
	}
	gone := &ospackage.Package{
		Name:    "gone",
		Version: "1.0-1",
		Install: &ospackage.FileRecord{Path: "x86_64/release/gone/gone-1.0-1.tar.xz", State: ospackage.StateNotFound},
	}
	odd := &ospackage.Package{
		Name:    "gcc+g++",
		Version: "1",
		Install: &ospackage.FileRecord{Path: "x86_64/release/odd/odd-1.tar.xz", Hash: "xyz", State: ospackage.StateNew},
	}
	return []Entry{
		{Package: gpp, Record: gpp.Install, Kind: "install"},
		{Package: gpp, Record: gpp.Source, Kind: "source"},
		{Package: gone, Record: gone.Install, Kind: "install"},
		{Package: odd, Record: odd.Install, Kind: "install"},
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	doc := Build(entries(), "https://mirrors.kernel.org/sourceware/cygwin", now)

	if doc.SPDXVersion != SPDXVersion || doc.SPDXID != SPDXDocumentID {
		t.Errorf("header = %+v", doc)
	}
	if doc.DocumentName != version.Toolname+"-20250601T100000Z" {
		t.Errorf("document name = %q", doc.DocumentName)
	}
	if doc.CreationInfo.Created != "2025-06-01T10:00:00Z" {
		t.Errorf("created = %q", doc.CreationInfo.Created)
	}
	if !strings.HasPrefix(doc.DocumentNamespace, SPDXNamespaceBase+"/") {
		t.Errorf("namespace = %q", doc.DocumentNamespace)
	}
	if len(doc.Packages) != 3 {
		t.Fatalf("got %d packages, want 3 (not found archive dropped)", len(doc.Packages))
	}

	install := doc.Packages[0]
	if install.SPDXID != "SPDXRef-Package-gcc-g" {
		t.Errorf("SPDXID = %q", install.SPDXID)
	}
	if install.DownloadLocation != "https://mirrors.kernel.org/sourceware/cygwin/x86_64/release/gcc/gcc-g++/gcc-g++-13.2.1-1.tar.xz" {
		t.Errorf("download location = %q", install.DownloadLocation)
	}
	if install.PackageFileName != "gcc-g++-13.2.1-1.tar.xz" || install.LicenseDeclared != NoAssertion || install.Supplier != CygwinSupplier {
		t.Errorf("install = %+v", install)
	}
	if len(install.Checksum) != 1 || install.Checksum[0].Algorithm != "SHA512" || install.Checksum[0].ChecksumValue != strings.Repeat("ab", 64) {
		t.Errorf("checksum = %+v", install.Checksum)
	}

	source := doc.Packages[1]
	if source.SPDXID != "SPDXRef-Package-gcc-g-source" || source.Comment != "source archive" {
		t.Errorf("source = %+v", source)
	}
	if source.Checksum[0].Algorithm != "MD5" {
		t.Errorf("source checksum = %+v", source.Checksum)
	}

	odd := doc.Packages[2]
	if odd.SPDXID != "SPDXRef-Package-gcc-g-2" {
		t.Errorf("colliding id = %q, want a numbered suffix", odd.SPDXID)
	}
	if odd.Checksum != nil {
		t.Errorf("unknown digest kept: %+v", odd.Checksum)
	}
}

func TestWriteSPDXToFile(t *testing.T) {
	prev := logger.ReplaceStderrWriter(io.Discard)
	t.Cleanup(func() { logger.ReplaceStderrWriter(prev) })

	out := filepath.Join(t.TempDir(), "reports", DefaultSPDXFile)
	if err := WriteSPDXToFile(entries(), "https://mirror.example/cygwin/", out); err != nil {
		t.Fatalf("WriteSPDXToFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var doc SPDXDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if len(doc.Packages) != 3 || doc.Packages[0].Name != "gcc-g++" {
		t.Errorf("packages = %+v", doc.Packages)
	}
	if !strings.Contains(string(data), `"checksums"`) {
		t.Errorf("checksums key missing:\n%s", data)
	}
}

func TestWriteSPDXToFileRejectsSymlink(t *testing.T) {
	prev := logger.ReplaceStderrWriter(io.Discard)
	t.Cleanup(func() { logger.ReplaceStderrWriter(prev) })

	dir := t.TempDir()
	target := filepath.Join(dir, "target.json")
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "sbom.json")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if err := WriteSPDXToFile(entries(), "https://m/", link); err == nil {
		t.Error("wrote through a symlink")
	}
}
