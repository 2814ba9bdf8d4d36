// Package ratelimit implements a sliding-window rate limiter that enforces a
// per-host call budget by suspending callers, never by rejecting them.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hoopsight/statcrawler/internal/metrics"
)

// Limiter bounds calls to maxCalls per trailing window. Acquire blocks until
// a slot opens; the check-and-insert is a single atomic section.
type Limiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	maxCalls   int
	window     time.Duration

	now func() time.Time
}

// New creates a Limiter allowing maxCalls per window.
func New(maxCalls int, window time.Duration) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// Reconfigure replaces the call budget. Existing timestamps are kept so the
// new budget applies to the calls already in flight.
func (l *Limiter) Reconfigure(maxCalls int, window time.Duration) {
	if maxCalls < 1 {
		maxCalls = 1
	}
	l.mu.Lock()
	l.maxCalls = maxCalls
	l.window = window
	l.mu.Unlock()
}

// Acquire records one call, suspending the caller until doing so keeps the
// trailing-window count at or below the budget. The wait is exactly the time
// until the oldest in-window timestamp ages out; no extra idle delay is
// added. Cancellation of ctx aborts the wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.timestamps) < l.maxCalls {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.timestamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// prune drops timestamps outside the trailing window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

// Registry hands out one long-lived Limiter per host. Limiters are created
// lazily on first use and live for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter

	defaultMaxCalls int
	defaultWindow   time.Duration
}

// NewRegistry creates a Registry whose new limiters start with the given
// budget.
func NewRegistry(defaultMaxCalls int, defaultWindow time.Duration) *Registry {
	return &Registry{
		limiters:        make(map[string]*Limiter),
		defaultMaxCalls: defaultMaxCalls,
		defaultWindow:   defaultWindow,
	}
}

// For returns the shared limiter for the host of rawURL. All fetches against
// one host funnel through the same limiter regardless of caller.
func (r *Registry) For(rawURL string) *Limiter {
	return r.forHost(hostKey(rawURL))
}

// Wait acquires a slot on the host limiter for rawURL and records the
// observed delay.
func (r *Registry) Wait(ctx context.Context, rawURL string) error {
	host := hostKey(rawURL)
	start := time.Now()
	if err := r.forHost(host).Acquire(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func (r *Registry) forHost(host string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[host]
	if !ok {
		limiter = New(r.defaultMaxCalls, r.defaultWindow)
		r.limiters[host] = limiter
	}
	return limiter
}

func hostKey(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return "unknown"
}
