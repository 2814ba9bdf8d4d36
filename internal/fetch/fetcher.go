// Package fetch implements the resilient page fetcher: robots gate, shared
// rate limit, jittered courtesy delay, rotating headers, bounded retry, and
// 429 cooperation.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
	"github.com/hoopsight/statcrawler/internal/metrics"
)

// RobotsGate answers whether a URL may be fetched at all.
type RobotsGate interface {
	CanFetch(ctx context.Context, rawURL string) bool
}

// SlotAcquirer suspends the caller until the shared per-host call budget
// admits one more request.
type SlotAcquirer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls fetcher behavior.
type Config struct {
	// MaxAttempts bounds transport-level tries, 429 retries excluded.
	MaxAttempts       int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	JitterMin         time.Duration
	JitterMax         time.Duration
	RetryAfterDefault time.Duration
	// ChallengeMarkers are lowercase substrings identifying anti-bot pages.
	ChallengeMarkers []string
	// DebugDir, when set, receives the latest raw body per host. Writes are
	// best-effort and never fail the fetch.
	DebugDir string
	// UserAgents overrides DefaultUserAgents when non-empty.
	UserAgents []string
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.JitterMax < c.JitterMin {
		c.JitterMax = c.JitterMin
	}
	if c.RetryAfterDefault <= 0 {
		c.RetryAfterDefault = 60 * time.Second
	}
	if len(c.ChallengeMarkers) == 0 {
		c.ChallengeMarkers = []string{"captcha"}
	}
}

// Fetcher implements ingest.Fetcher.
type Fetcher struct {
	cfg     Config
	gate    RobotsGate
	limiter SlotAcquirer
	client  PageClient
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Fetcher. gate and limiter may be nil in tests that exercise
// only the retry loop.
func New(cfg Config, gate RobotsGate, limiter SlotAcquirer, client PageClient, logger *zap.Logger) *Fetcher {
	cfg.applyDefaults()
	return &Fetcher{
		cfg:     cfg,
		gate:    gate,
		limiter: limiter,
		client:  client,
		logger:  logger,
		sleep:   pause,
	}
}

// Fetch retrieves rawURL and reports the outcome as a tagged result. See the
// package comment for the politeness sequence; no request is issued when the
// robots gate denies the path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ingest.FetchResult {
	if f.gate != nil && !f.gate.CanFetch(ctx, rawURL) {
		f.logger.Warn("fetch blocked by robots policy", zap.String("url", rawURL))
		return ingest.FetchResult{Outcome: ingest.FetchBlocked, Reason: "robots.txt disallows path"}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return canceledResult(err)
		}
	}

	if err := f.sleep(ctx, f.jitter()); err != nil {
		return canceledResult(err)
	}

	host := hostOf(rawURL)
	transportFailures := 0
	usedRetryAfter := false

	for {
		start := time.Now()
		resp, err := f.client.Get(ctx, rawURL, randomHeaders(f.cfg.UserAgents))
		if err != nil {
			metrics.ObserveFetchAttempt(host, 0, time.Since(start))
			if ctx.Err() != nil {
				return canceledResult(ctx.Err())
			}
			transportFailures++
			if transportFailures >= f.cfg.MaxAttempts {
				f.logger.Error("fetch exhausted transport retries",
					zap.String("url", rawURL), zap.Int("attempts", transportFailures), zap.Error(err))
				return ingest.FetchResult{Outcome: ingest.FetchFailed, ErrorKind: "transport"}
			}
			metrics.ObserveRetry("transport")
			f.logger.Warn("transport error, backing off",
				zap.String("url", rawURL), zap.Int("attempt", transportFailures), zap.Error(err))
			if perr := f.sleep(ctx, f.backoff(transportFailures)); perr != nil {
				return canceledResult(perr)
			}
			continue
		}
		metrics.ObserveFetchAttempt(host, resp.Status, time.Since(start))

		switch {
		case resp.Status == http.StatusOK:
			if marker := f.challengeMarker(resp.Body); marker != "" {
				f.logger.Error("challenge page detected",
					zap.String("url", rawURL), zap.String("marker", marker))
				return ingest.FetchResult{Outcome: ingest.FetchFailed, ErrorKind: "challenge"}
			}
			f.dumpRaw(rawURL, resp.Body)
			return ingest.FetchResult{Outcome: ingest.FetchSuccess, Body: resp.Body, Status: resp.Status}

		case resp.Status == http.StatusTooManyRequests:
			retryAfter := retryAfterDelay(resp.Headers, f.cfg.RetryAfterDefault)
			if usedRetryAfter {
				return ingest.FetchResult{Outcome: ingest.FetchRateLimited, RetryAfter: retryAfter}
			}
			usedRetryAfter = true
			metrics.ObserveRetry("retry_after")
			f.logger.Warn("rate limited by source, honoring Retry-After",
				zap.String("url", rawURL), zap.Duration("retry_after", retryAfter))
			if perr := f.sleep(ctx, retryAfter); perr != nil {
				return canceledResult(perr)
			}
			continue

		default:
			f.logger.Error("unexpected status",
				zap.String("url", rawURL), zap.Int("status", resp.Status))
			return ingest.FetchResult{
				Outcome:   ingest.FetchFailed,
				ErrorKind: fmt.Sprintf("http_%d", resp.Status),
			}
		}
	}
}

func (f *Fetcher) jitter() time.Duration {
	span := f.cfg.JitterMax - f.cfg.JitterMin
	if span <= 0 {
		return f.cfg.JitterMin
	}
	return f.cfg.JitterMin + time.Duration(rand.Int64N(int64(span)))
}

func (f *Fetcher) backoff(failures int) time.Duration {
	delay := f.cfg.BackoffInitial << (failures - 1)
	if delay > f.cfg.BackoffMax || delay <= 0 {
		delay = f.cfg.BackoffMax
	}
	return delay
}

func (f *Fetcher) challengeMarker(body []byte) string {
	lower := bytes.ToLower(body)
	for _, marker := range f.cfg.ChallengeMarkers {
		if marker == "" {
			continue
		}
		if bytes.Contains(lower, []byte(marker)) {
			return marker
		}
	}
	return ""
}

// dumpRaw saves the latest successful body for diagnostics and as the cached
// fallback page for runs whose fetch fails.
func (f *Fetcher) dumpRaw(rawURL string, body []byte) {
	if f.cfg.DebugDir == "" {
		return
	}
	path := CachedPagePath(f.cfg.DebugDir, rawURL)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		f.logger.Debug("create debug dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		f.logger.Debug("write debug body", zap.Error(err))
	}
}

// CachedPagePath returns where the latest raw body for rawURL is kept.
func CachedPagePath(debugDir, rawURL string) string {
	return filepath.Join(debugDir, hostOf(rawURL), "latest.html")
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return "unknown"
}

func retryAfterDelay(headers http.Header, fallback time.Duration) time.Duration {
	if headers == nil {
		return fallback
	}
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func canceledResult(err error) ingest.FetchResult {
	return ingest.FetchResult{
		Outcome:   ingest.FetchFailed,
		ErrorKind: "canceled",
		Reason:    err.Error(),
	}
}

// pause sleeps for delay or until ctx is done.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
