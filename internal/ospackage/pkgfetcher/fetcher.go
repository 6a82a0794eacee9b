package pkgfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/open-edge-platform/cygfetch/internal/config/version"
	"github.com/rs/dnscache"
)

var (
	ErrNotFound     = errors.New("file not found on mirror")
	ErrRateLimited  = errors.New("rate limited by mirror")
	ErrUpstreamDown = errors.New("mirror unavailable")
)

// Remote is a response body plus the metadata cygfetch cares about.
type Remote struct {
	Body         io.ReadCloser // nil for HEAD
	Size         int64         // -1 if unknown
	LastModified *time.Time
}

// Client is implemented by Fetcher and BreakerFetcher.
type Client interface {
	Fetch(ctx context.Context, url string) (*Remote, error)
	Head(ctx context.Context, url string) (*Remote, error)
}

// Fetcher talks HTTP to a mirror, retrying rate limits and server errors.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

func WithMaxRetries(n int) Option {
	return func(f *Fetcher) { f.maxRetries = n }
}

// WithBaseDelay sets the first retry delay; later ones double.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.baseDelay = d }
}

// NewFetcher returns a Fetcher whose default client resolves hosts through a
// DNS cache refreshed every five minutes.
func NewFetcher(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	f := &Fetcher{
		client: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any address of %s", host)
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   16,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
		userAgent:  version.UserAgent(),
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url. The caller closes Remote.Body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Remote, error) {
	return f.retry(ctx, func() (*Remote, error) { return f.do(ctx, http.MethodGet, url) })
}

// Head checks that url exists and reports its size and modification time.
func (f *Fetcher) Head(ctx context.Context, url string) (*Remote, error) {
	return f.retry(ctx, func() (*Remote, error) { return f.do(ctx, http.MethodHead, url) })
}

func (f *Fetcher) retry(ctx context.Context, call func() (*Remote, error)) (*Remote, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			delay += time.Duration(float64(delay) * rand.Float64() * 0.1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		r, err := call()
		if err == nil {
			return r, nil
		}
		lastErr = err
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, method, url string) (*Remote, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		r := &Remote{Size: -1}
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				r.Size = n
			}
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				r.LastModified = &t
			}
		}
		if method == http.MethodHead {
			_ = resp.Body.Close()
		} else {
			r.Body = resp.Body
		}
		return r, nil

	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, ErrRateLimited

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %w", url, resp.StatusCode, ErrUpstreamDown)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d for %s: %s", resp.StatusCode, url, string(body))
	}
}
