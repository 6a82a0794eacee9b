// Package pkgfetcher downloads mirror files with a pool of workers.
package pkgfetcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/schollz/progressbar/v3"
)

// Job is one file to download.
type Job struct {
	URL  string
	Dest string
	// Verify, if set, runs on the finished temporary file before it is moved
	// to Dest. An error discards the download.
	Verify func(path string) error
}

// Result reports how a Job ended. Results are returned in Job order.
type Result struct {
	Job          Job
	Size         int64
	LastModified *time.Time
	Duration     time.Duration
	Err          error
}

// FetchPackages downloads jobs using the given number of workers and shows a
// single progress bar of files completed. It returns an error after all jobs
// have run if any of them failed.
func FetchPackages(ctx context.Context, client Client, jobs []Job, workers int) ([]Result, error) {
	log := logger.Logger()

	total := len(jobs)
	results := make([]Result, total)
	if total == 0 {
		return results, nil
	}
	if workers < 1 {
		workers = 1
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionSpinnerType(10),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	queue := make(chan int, total)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				job := jobs[i]
				bar.Describe(filepath.Base(job.Dest))

				start := time.Now()
				res := fetchOne(ctx, client, job)
				res.Duration = time.Since(start)
				results[i] = res

				if res.Err != nil {
					log.Errorf("downloading %s failed: %v", job.URL, res.Err)
					mu.Lock()
					failed++
					mu.Unlock()
				} else {
					log.Debugf("downloaded %s (%d bytes) in %s", job.URL, res.Size, res.Duration)
				}
				if err := bar.Add(1); err != nil {
					log.Errorf("failed to add to progress bar: %v", err)
				}
			}
		}()
	}

	for i := range jobs {
		queue <- i
	}
	close(queue)
	wg.Wait()

	if err := bar.Finish(); err != nil {
		log.Errorf("failed to finish progress bar: %v", err)
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d downloads failed", failed, total)
	}
	return results, nil
}

func fetchOne(ctx context.Context, client Client, job Job) Result {
	res := Result{Job: job}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		res.Err = fmt.Errorf("creating directory for %s: %w", job.Dest, err)
		return res
	}

	remote, err := client.Fetch(ctx, job.URL)
	if err != nil {
		res.Err = err
		return res
	}
	defer remote.Body.Close()
	res.LastModified = remote.LastModified

	part := filepath.Join(filepath.Dir(job.Dest), "."+filepath.Base(job.Dest)+"."+uuid.NewString()+".part")
	n, err := writeFile(part, remote.Body)
	if err != nil {
		_ = os.Remove(part)
		res.Err = err
		return res
	}
	res.Size = n

	if job.Verify != nil {
		if err := job.Verify(part); err != nil {
			_ = os.Remove(part)
			res.Err = err
			return res
		}
	}
	if remote.LastModified != nil {
		_ = os.Chtimes(part, *remote.LastModified, *remote.LastModified)
	}
	if err := os.Rename(part, job.Dest); err != nil {
		_ = os.Remove(part)
		res.Err = fmt.Errorf("moving %s into place: %w", job.Dest, err)
	}
	return res
}

func writeFile(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", path, err)
	}
	return n, nil
}
