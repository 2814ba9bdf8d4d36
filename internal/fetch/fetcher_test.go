package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// scriptedClient replays a fixed sequence of exchanges.
type scriptedClient struct {
	responses []PageResponse
	errs      []error
	calls     int
}

func (c *scriptedClient) Get(_ context.Context, _ string, _ http.Header) (PageResponse, error) {
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		return PageResponse{}, errors.New("script exhausted")
	}
	return c.responses[i], c.errs[i]
}

type allowGate bool

func (g allowGate) CanFetch(context.Context, string) bool { return bool(g) }

// recordingSleep swallows every pause and records the requested durations.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestFetcher(cfg Config, gate RobotsGate, client PageClient) (*Fetcher, *recordingSleep) {
	f := New(cfg, gate, nil, client, zap.NewNop())
	rec := &recordingSleep{}
	f.sleep = rec.sleep
	return f, rec
}

func TestFetchSuccess(t *testing.T) {
	client := &scriptedClient{
		responses: []PageResponse{{Status: 200, Body: []byte("<html>stats</html>")}},
		errs:      []error{nil},
	}
	f, _ := newTestFetcher(Config{}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchSuccess {
		t.Fatalf("outcome = %s, want success", res.Outcome)
	}
	if string(res.Body) != "<html>stats</html>" {
		t.Fatalf("unexpected body %q", res.Body)
	}
	if client.calls != 1 {
		t.Fatalf("client called %d times, want 1", client.calls)
	}
}

func TestFetchBlockedIssuesNoRequest(t *testing.T) {
	client := &scriptedClient{}
	f, _ := newTestFetcher(Config{}, allowGate(false), client)

	res := f.Fetch(context.Background(), "https://www.example.com/private")
	if res.Outcome != ingest.FetchBlocked {
		t.Fatalf("outcome = %s, want blocked", res.Outcome)
	}
	if client.calls != 0 {
		t.Fatalf("blocked fetch still issued %d requests", client.calls)
	}
}

func TestFetchHonorsRetryAfterOnce(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "5")
	client := &scriptedClient{
		responses: []PageResponse{
			{Status: 429, Headers: headers},
			{Status: 200, Body: []byte("ok")},
		},
		errs: []error{nil, nil},
	}
	f, rec := newTestFetcher(Config{}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchSuccess {
		t.Fatalf("outcome = %s, want success after honoring Retry-After", res.Outcome)
	}
	if client.calls != 2 {
		t.Fatalf("client called %d times, want 2", client.calls)
	}
	// delays[0] is the courtesy jitter; delays[1] must be the declared wait.
	if len(rec.delays) != 2 || rec.delays[1] != 5*time.Second {
		t.Fatalf("retry-after sleep = %v, want [jitter, 5s]", rec.delays)
	}
}

func TestFetchSecondRateLimitGivesUp(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "7")
	client := &scriptedClient{
		responses: []PageResponse{
			{Status: 429, Headers: headers},
			{Status: 429, Headers: headers},
		},
		errs: []error{nil, nil},
	}
	f, _ := newTestFetcher(Config{}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchRateLimited {
		t.Fatalf("outcome = %s, want rate_limited", res.Outcome)
	}
	if res.RetryAfter != 7*time.Second {
		t.Fatalf("retry after = %v, want 7s", res.RetryAfter)
	}
	if client.calls != 2 {
		t.Fatalf("client called %d times, want exactly 2 (one Retry-After refetch)", client.calls)
	}
}

func TestFetchRetryAfterDefaultWhenHeaderMissing(t *testing.T) {
	client := &scriptedClient{
		responses: []PageResponse{
			{Status: 429},
			{Status: 200, Body: []byte("ok")},
		},
		errs: []error{nil, nil},
	}
	f, rec := newTestFetcher(Config{RetryAfterDefault: 60 * time.Second}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchSuccess {
		t.Fatalf("outcome = %s, want success", res.Outcome)
	}
	if len(rec.delays) != 2 || rec.delays[1] != 60*time.Second {
		t.Fatalf("default retry-after sleep = %v, want 60s", rec.delays)
	}
}

func TestFetchTransportRetriesExhausted(t *testing.T) {
	boom := errors.New("connection reset")
	client := &scriptedClient{
		responses: make([]PageResponse, 3),
		errs:      []error{boom, boom, boom},
	}
	f, rec := newTestFetcher(Config{MaxAttempts: 3}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchFailed || res.ErrorKind != "transport" {
		t.Fatalf("result = %+v, want failed/transport", res)
	}
	if client.calls != 3 {
		t.Fatalf("client called %d times, want 3", client.calls)
	}
	// jitter + two backoffs; backoff doubles from the initial value.
	if len(rec.delays) != 3 {
		t.Fatalf("sleeps = %v, want jitter plus 2 backoffs", rec.delays)
	}
	if rec.delays[2] != 2*rec.delays[1] {
		t.Fatalf("backoff did not double: %v then %v", rec.delays[1], rec.delays[2])
	}
}

func TestFetchTransportRecovers(t *testing.T) {
	client := &scriptedClient{
		responses: []PageResponse{{}, {Status: 200, Body: []byte("ok")}},
		errs:      []error{errors.New("timeout"), nil},
	}
	f, _ := newTestFetcher(Config{MaxAttempts: 3}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchSuccess {
		t.Fatalf("outcome = %s, want success after one transport retry", res.Outcome)
	}
}

func TestFetchChallengePage(t *testing.T) {
	client := &scriptedClient{
		responses: []PageResponse{{Status: 200, Body: []byte("<html>please solve this CAPTCHA</html>")}},
		errs:      []error{nil},
	}
	f, _ := newTestFetcher(Config{}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchFailed || res.ErrorKind != "challenge" {
		t.Fatalf("result = %+v, want failed/challenge", res)
	}
}

func TestFetchUnexpectedStatus(t *testing.T) {
	client := &scriptedClient{
		responses: []PageResponse{{Status: 503}},
		errs:      []error{nil},
	}
	f, _ := newTestFetcher(Config{}, allowGate(true), client)

	res := f.Fetch(context.Background(), "https://www.example.com/stats")
	if res.Outcome != ingest.FetchFailed || res.ErrorKind != "http_503" {
		t.Fatalf("result = %+v, want failed/http_503", res)
	}
}

func TestRetryAfterDelayParsing(t *testing.T) {
	fallback := 60 * time.Second

	mk := func(v string) http.Header {
		h := http.Header{}
		h.Set("Retry-After", v)
		return h
	}
	cases := []struct {
		headers http.Header
		want    time.Duration
	}{
		{nil, fallback},
		{http.Header{}, fallback},
		{mk("30"), 30 * time.Second},
		{mk("0"), 0},
		{mk("-5"), fallback},
		{mk("soon"), fallback},
	}
	for _, tc := range cases {
		if got := retryAfterDelay(tc.headers, fallback); got != tc.want {
			t.Errorf("retryAfterDelay(%v) = %v, want %v", tc.headers, got, tc.want)
		}
	}
}

func TestCachedPagePath(t *testing.T) {
	got := CachedPagePath("/tmp/debug", "https://www.Example.com/leagues/NBA_2025_per_game.html")
	want := "/tmp/debug/www.example.com/latest.html"
	if got != want {
		t.Fatalf("CachedPagePath = %q, want %q", got, want)
	}
}
