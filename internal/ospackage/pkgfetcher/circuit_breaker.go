package pkgfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerFetcher stops calling a mirror host after repeated failures.
// Missing files do not count as failures.
type BreakerFetcher struct {
	next      Client
	threshold int64

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// NewBreakerFetcher wraps next; a host's breaker trips after threshold
// consecutive failures.
func NewBreakerFetcher(next Client, threshold int64) *BreakerFetcher {
	if threshold <= 0 {
		threshold = 5
	}
	return &BreakerFetcher{
		next:      next,
		threshold: threshold,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (b *BreakerFetcher) breaker(host string) *circuit.Breaker {
	b.mu.RLock()
	cb, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[host]; ok {
		return cb
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 30 * time.Second
	eb.MaxInterval = 5 * time.Minute
	eb.Multiplier = 2.0
	eb.Reset()

	cb = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    eb,
		ShouldTrip: circuit.ThresholdTripFunc(b.threshold),
	})
	b.breakers[host] = cb
	return cb
}

func (b *BreakerFetcher) call(rawURL string, fn func() (*Remote, error)) (*Remote, error) {
	host := hostOf(rawURL)
	cb := b.breaker(host)
	if !cb.Ready() {
		return nil, fmt.Errorf("circuit open for %s: %w", host, ErrUpstreamDown)
	}

	var (
		r       *Remote
		missing error
	)
	err := cb.Call(func() error {
		var ferr error
		r, ferr = fn()
		if errors.Is(ferr, ErrNotFound) {
			missing = ferr
			return nil
		}
		return ferr
	}, 0)
	if missing != nil {
		return nil, missing
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b *BreakerFetcher) Fetch(ctx context.Context, rawURL string) (*Remote, error) {
	return b.call(rawURL, func() (*Remote, error) { return b.next.Fetch(ctx, rawURL) })
}

func (b *BreakerFetcher) Head(ctx context.Context, rawURL string) (*Remote, error) {
	return b.call(rawURL, func() (*Remote, error) { return b.next.Head(ctx, rawURL) })
}

// Tripped lists the hosts whose breaker is currently open.
func (b *BreakerFetcher) Tripped() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for host, cb := range b.breakers {
		if cb.Tripped() {
			out = append(out, host)
		}
	}
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
