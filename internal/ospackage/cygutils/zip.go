package cygutils

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/ulikunitz/xz"
)

// Decompress writes the decompressed content of inFile to outFile, choosing
// the codec from inFile's extension. Unknown extensions are copied as is.
func Decompress(inFile, outFile string) error {
	log := logger.Logger()

	in, err := os.Open(inFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inFile, err)
	}
	defer in.Close()

	r, closeFn, err := decoder(in, strings.ToLower(filepath.Ext(inFile)))
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s: %w", inFile, err)
	}
	defer closeFn()

	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outFile, err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(outFile)
		return fmt.Errorf("failed to decompress %s: %w", inFile, err)
	}

	log.Debugf("decompressed %s -> %s (%d bytes)", inFile, outFile, n)
	return nil
}

func decoder(in io.Reader, ext string) (io.Reader, func(), error) {
	nop := func() {}
	switch ext {
	case ".xz":
		r, err := xz.NewReader(in)
		return r, nop, err
	case ".zst":
		d, err := zstd.NewReader(in)
		if err != nil {
			return nil, nop, err
		}
		return d, d.Close, nil
	case ".bz2":
		return bzip2.NewReader(in), nop, nil
	case ".gz":
		g, err := gzip.NewReader(in)
		if err != nil {
			return nil, nop, err
		}
		return g, func() { _ = g.Close() }, nil
	}
	return in, nop, nil
}
