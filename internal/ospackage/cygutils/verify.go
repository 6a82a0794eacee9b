package cygutils

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"github.com/schollz/progressbar/v3"
)

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrSizeMismatch     = errors.New("size mismatch")
	ErrSignature        = errors.New("signature verification failed")
)

// VerifySignature checks a detached signature (armored or binary) over
// dataPath with the key in keyPath (armored or binary).
func VerifySignature(dataPath, sigPath, keyPath string) error {
	log := logger.Logger()

	keyBytes, err := security.SafeReadFile(keyPath, security.ResolveSymlinks)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dataPath, err)
	}
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read signature %s: %w", sigPath, err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(keyBytes))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(keyBytes))
		if err != nil {
			return fmt.Errorf("failed to parse public key %s: %w", keyPath, err)
		}
	}

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), &packet.Config{})
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), &packet.Config{})
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSignature, filepath.Base(dataPath), err)
	}

	log.Infof("signature of %s verified", filepath.Base(dataPath))
	return nil
}

func newHash(alg ospackage.HashAlgorithm) (hash.Hash, error) {
	switch alg {
	case ospackage.HashMD5:
		return md5.New(), nil
	case ospackage.HashSHA1:
		return sha1.New(), nil
	case ospackage.HashSHA256:
		return sha256.New(), nil
	case ospackage.HashSHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", alg)
}

// FileHash returns the hex digest of path.
func FileHash(path string, alg ospackage.HashAlgorithm) (string, error) {
	h, err := newHash(alg)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile checks size and hash of a file against its manifest record.
func VerifyFile(path string, rec *ospackage.FileRecord) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if rec.Size > 0 && fi.Size() != rec.Size {
		return fmt.Errorf("%w for %s: expected %d, got %d", ErrSizeMismatch, rec.Path, rec.Size, fi.Size())
	}
	actual, err := FileHash(path, rec.HashAlgorithm())
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	if !strings.EqualFold(actual, rec.Hash) {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, rec.Path, rec.Hash, actual)
	}
	return nil
}

// Result holds the outcome of verifying one cached archive.
type Result struct {
	Path     string
	OK       bool
	Duration time.Duration
	Error    error
}

// VerifyArchives verifies paths[i] against records[i] in parallel and returns
// the results in the same order.
func VerifyArchives(paths []string, records []*ospackage.FileRecord, workers int) []Result {
	log := logger.Logger()
	log.Infof("verifying %d archives with %d workers", len(paths), workers)

	total := len(paths)
	results := make([]Result, total)
	if total == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int, total)
	var wg sync.WaitGroup

	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionSpinnerType(10),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				bar.Describe("verifying " + filepath.Base(paths[i]))
				start := time.Now()
				err := VerifyFile(paths[i], records[i])
				if err != nil {
					log.Errorf("verification of %s failed: %v", paths[i], err)
				}
				results[i] = Result{Path: paths[i], OK: err == nil, Duration: time.Since(start), Error: err}
				if err := bar.Add(1); err != nil {
					log.Errorf("failed to add to progress bar: %v", err)
				}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := bar.Finish(); err != nil {
		log.Errorf("failed to finish progress bar: %v", err)
	}
	return results
}
