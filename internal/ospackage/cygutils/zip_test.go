package cygutils

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const plainManifest = "release: cygwin\narch: x86_64\n\n@ bash\nversion: 5.2.21-1\n"

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func gzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	quietLogs(t)
	data := []byte(plainManifest)
	testCases := []struct {
		name    string
		file    string
		content []byte
	}{
		{"xz", "setup.xz", xzBytes(t, data)},
		{"zstd", "setup.zst", zstdBytes(t, data)},
		{"gzip", "setup.ini.gz", gzBytes(t, data)},
		{"plain", "setup.ini.orig", data},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			in := writeTemp(t, dir, tc.file, tc.content)
			out := filepath.Join(dir, "setup.ini")
			if err := Decompress(in, out); err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != plainManifest {
				t.Errorf("content = %q", got)
			}
		})
	}
}

func TestDecompressCorrupt(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	in := writeTemp(t, dir, "setup.xz", []byte("definitely not xz"))
	out := filepath.Join(dir, "setup.ini")
	if err := Decompress(in, out); err == nil {
		t.Fatal("expected an error for corrupt input")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output should be left for corrupt input")
	}
	if err := Decompress(filepath.Join(dir, "missing.xz"), out); err == nil {
		t.Error("expected an error for a missing input")
	}
}
