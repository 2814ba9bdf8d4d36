// Package robots enforces robots.txt directives per host, with a bounded
// cache and a conservative fallback when the policy file cannot be fetched.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// Policy behavior constants.
const (
	// CacheTTL is how long a fetched rule set stays fresh.
	CacheTTL = 24 * time.Hour
	// DefaultCrawlDelay applies when robots.txt declares no delay, and when
	// the policy file cannot be fetched at all.
	DefaultCrawlDelay = 3 * time.Second

	maxRobotsBody = 1 << 20
)

type cachedRule struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// Policy fetches and caches robots.txt per host and answers allow/delay
// queries. A fetch failure is never fatal: queries fall back to "allowed"
// with DefaultCrawlDelay, per the politeness contract.
type Policy struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	mu    sync.Mutex
	rules map[string]cachedRule

	now func() time.Time
}

// New builds a Policy using the given honest user agent for group matching.
func New(userAgent string, logger *zap.Logger) *Policy {
	return &Policy{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
		rules:     make(map[string]cachedRule),
		now:       time.Now,
	}
}

// CanFetch reports whether the configured agent may fetch rawURL. The cached
// rule is refreshed when absent or older than CacheTTL. Longest-match
// evaluation of allow/disallow patterns is delegated to the robotstxt group.
func (p *Policy) CanFetch(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data, err := p.rule(ctx, parsed)
	if err != nil {
		p.logger.Warn("robots fetch failed; falling back to allow",
			zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	group := data.FindGroup(p.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

// CrawlDelay returns the delay robots.txt declares for the configured agent
// on baseURL's host, or DefaultCrawlDelay when unspecified or unavailable.
func (p *Policy) CrawlDelay(ctx context.Context, baseURL string) time.Duration {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return DefaultCrawlDelay
	}
	data, err := p.rule(ctx, parsed)
	if err != nil {
		return DefaultCrawlDelay
	}
	group := data.FindGroup(p.userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return DefaultCrawlDelay
	}
	return group.CrawlDelay
}

// Refresh fetches {host}/robots.txt and replaces the cached rule. Every
// outcome is cached under the TTL: 2xx bodies parse, 4xx means no policy
// exists (allow all, per robotstxt convention), and server errors or
// transport failures cache the allow fallback so an unreachable host is not
// re-queried on every call. Failures also yield an *ingest.PolicyFetchError.
func (p *Policy) Refresh(ctx context.Context, parsed *url.URL) error {
	hostKey := strings.ToLower(parsed.Host)

	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return &ingest.PolicyFetchError{Host: hostKey, Err: err}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.cacheFallback(hostKey)
		return &ingest.PolicyFetchError{Host: hostKey, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("close robots response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		p.cacheFallback(hostKey)
		return &ingest.PolicyFetchError{Host: hostKey, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		p.cacheFallback(hostKey)
		return &ingest.PolicyFetchError{
			Host: hostKey,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		p.cacheFallback(hostKey)
		return &ingest.PolicyFetchError{Host: hostKey, Err: fmt.Errorf("parse robots: %w", err)}
	}

	p.mu.Lock()
	p.rules[hostKey] = cachedRule{data: data, fetchedAt: p.now()}
	p.mu.Unlock()
	return nil
}

// cacheFallback stores the allow-everything rule for hostKey so the TTL
// applies to failed lookups too.
func (p *Policy) cacheFallback(hostKey string) {
	data, err := robotstxt.FromString("")
	if err != nil {
		return
	}
	p.mu.Lock()
	p.rules[hostKey] = cachedRule{data: data, fetchedAt: p.now()}
	p.mu.Unlock()
}

// rule returns fresh robots data for the host, refreshing when the cache is
// absent or stale. The network fetch happens outside the lock; a concurrent
// double-refresh is harmless. A failed refresh leaves the fallback rule in
// the cache, so the error surfaces at most once per TTL.
func (p *Policy) rule(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)

	p.mu.Lock()
	cached, ok := p.rules[hostKey]
	p.mu.Unlock()
	if ok && p.now().Sub(cached.fetchedAt) < CacheTTL {
		return cached.data, nil
	}

	refreshErr := p.Refresh(ctx, parsed)
	if refreshErr != nil {
		p.logger.Warn("robots refresh failed; fallback rule cached",
			zap.String("host", hostKey), zap.Error(refreshErr))
	}

	p.mu.Lock()
	cached, ok = p.rules[hostKey]
	p.mu.Unlock()
	if !ok || cached.data == nil {
		return nil, refreshErr
	}
	return cached.data, nil
}
