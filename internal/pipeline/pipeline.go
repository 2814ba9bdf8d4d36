// Package pipeline orchestrates one ingestion run: policy check, rate-limited
// fetch, parse, transform, and multi-sink persistence.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/fetch"
	"github.com/hoopsight/statcrawler/internal/ingest"
	"github.com/hoopsight/statcrawler/internal/metrics"
	"github.com/hoopsight/statcrawler/internal/parse"
	"github.com/hoopsight/statcrawler/internal/ratelimit"
	"github.com/hoopsight/statcrawler/internal/stats"
)

// DelaySource reports the crawl delay the source host asks for.
type DelaySource interface {
	CrawlDelay(ctx context.Context, baseURL string) time.Duration
}

// Config controls pipeline behavior.
type Config struct {
	// BaseURL is the scheme+host of the source site.
	BaseURL string
	// SeasonPath is the page path template; %s receives the season.
	SeasonPath string
	// WindowSeconds is the rate window length.
	WindowSeconds int
	// StaticMaxCalls overrides the robots-derived budget when > 0.
	StaticMaxCalls int
	// DebugDir is where the fetcher keeps the latest raw page; the pipeline
	// reads it back as the cached fallback when a fetch fails.
	DebugDir string
	// FlushTimeout bounds persistence after the run deadline has fired.
	FlushTimeout time.Duration
}

// Pipeline wires the ingestion stages together. One Run is one page fetch;
// sinks receive value copies of the dataset.
type Pipeline struct {
	cfg       Config
	fetcher   ingest.Fetcher
	parser    *parse.Parser
	sinks     []ingest.Sink
	publisher ingest.Publisher
	delays    DelaySource
	limits    *ratelimit.Registry
	clock     ingest.Clock
	ids       ingest.IDGenerator
	logger    *zap.Logger
}

// New constructs a Pipeline. publisher and delays may be nil; sinks may be
// empty for dry runs.
func New(
	cfg Config,
	fetcher ingest.Fetcher,
	parser *parse.Parser,
	sinks []ingest.Sink,
	publisher ingest.Publisher,
	delays DelaySource,
	limits *ratelimit.Registry,
	clock ingest.Clock,
	ids ingest.IDGenerator,
	logger *zap.Logger,
) *Pipeline {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 30 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		parser:    parser,
		sinks:     sinks,
		publisher: publisher,
		delays:    delays,
		limits:    limits,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// Run executes one ingestion for the given season. The returned run always
// carries a terminal status; the error is non-nil only when the run failed
// outright (fetch dead and no cached page).
func (p *Pipeline) Run(ctx context.Context, season string) (*ingest.IngestionRun, error) {
	pageURL := p.cfg.BaseURL + fmt.Sprintf(p.cfg.SeasonPath, season)

	runID, err := p.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	run := &ingest.IngestionRun{
		ID:        runID,
		Source:    pageURL,
		Season:    season,
		StartedAt: p.clock.Now(),
		State:     ingest.StateIdle,
	}

	p.configureRateBudget(ctx, pageURL)

	run.State = ingest.StateFetching
	result := p.fetcher.Fetch(ctx, pageURL)

	var html []byte
	switch result.Outcome {
	case ingest.FetchSuccess:
		html = result.Body
	default:
		cached, readErr := os.ReadFile(fetch.CachedPagePath(p.cfg.DebugDir, pageURL))
		if readErr != nil || len(cached) == 0 {
			run.Error = fetchFailureText(result)
			p.close(ctx, run, ingest.RunFailed, nil)
			return run, fmt.Errorf("ingestion run %s failed: %s", run.ID, run.Error)
		}
		p.logger.Warn("fetch failed, using cached page",
			zap.String("url", pageURL), zap.String("cause", fetchFailureText(result)))
		html = cached
		run.UsedCachedPage = true
	}

	run.State = ingest.StateParsing
	outcome := p.parser.Parse(html, season)
	run.RowsParsed = len(outcome.Records)
	run.RowsSkipped = outcome.RowsSkipped
	metrics.ObserveRows(run.RowsParsed, run.RowsSkipped)

	if len(outcome.Records) == 0 {
		// Valid "no data this run": close without touching sinks. A run that
		// already fell back to the cached page still cannot be clean.
		status := ingest.RunSuccess
		if run.UsedCachedPage {
			status = ingest.RunPartialFailure
		}
		p.logger.Info("no records this run",
			zap.String("url", pageURL), zap.Bool("table_found", outcome.TableFound))
		p.close(ctx, run, status, nil)
		return run, nil
	}

	run.State = ingest.StateTransforming
	derived := stats.ComputeAdvanced(outcome.Records)
	stats.Rank(outcome.Records, derived)

	dataset := ingest.Dataset{
		Source:  pageURL,
		Season:  season,
		RunDate: run.StartedAt,
		Rows:    make([]ingest.Row, len(outcome.Records)),
	}
	for i := range outcome.Records {
		dataset.Rows[i] = ingest.Row{Record: outcome.Records[i], Metrics: derived[i]}
	}

	run.State = ingest.StatePersisting
	p.persist(ctx, run, dataset)

	status := ingest.RunSuccess
	if len(run.SinkErrors) > 0 || run.UsedCachedPage {
		status = ingest.RunPartialFailure
	}
	p.close(ctx, run, status, dataset.Rows)
	return run, nil
}

// configureRateBudget applies the static override or derives the budget from
// the robots crawl-delay: floor(window / delay) calls per window.
func (p *Pipeline) configureRateBudget(ctx context.Context, pageURL string) {
	if p.limits == nil {
		return
	}
	window := time.Duration(p.cfg.WindowSeconds) * time.Second

	maxCalls := p.cfg.StaticMaxCalls
	if maxCalls <= 0 && p.delays != nil {
		delay := p.delays.CrawlDelay(ctx, p.cfg.BaseURL)
		if delay <= 0 {
			delay = time.Second
		}
		maxCalls = int(window / delay)
	}
	if maxCalls <= 0 {
		maxCalls = 1
	}
	p.limits.For(pageURL).Reconfigure(maxCalls, window)
	p.logger.Debug("rate budget configured",
		zap.Int("max_calls", maxCalls), zap.Duration("window", window))
}

// persist fans the dataset out to every sink concurrently and aggregates the
// outcomes. Writes run on a context detached from the run deadline so that
// already-parsed records still reach the sinks when the deadline fires; the
// flush timeout bounds the tail.
func (p *Pipeline) persist(ctx context.Context, run *ingest.IngestionRun, ds ingest.Dataset) {
	if len(p.sinks) == 0 {
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FlushTimeout)
	defer cancel()

	type sinkResult struct {
		conf ingest.SinkConfirmation
		err  error
		name string
	}

	results := make(chan sinkResult, len(p.sinks))
	var wg sync.WaitGroup
	for _, s := range p.sinks {
		wg.Add(1)
		go func(s ingest.Sink) {
			defer wg.Done()
			conf, err := s.Write(flushCtx, ds)
			results <- sinkResult{conf: conf, err: err, name: s.Name()}
		}(s)
	}
	wg.Wait()
	close(results)

	for res := range results {
		metrics.ObserveSinkWrite(res.name, res.err)
		if res.err != nil {
			p.logger.Error("sink write failed",
				zap.String("sink", res.name), zap.Error(res.err))
			run.SinkErrors = append(run.SinkErrors, fmt.Sprintf("%s: %v", res.name, res.err))
			continue
		}
		run.Confirmations = append(run.Confirmations, res.conf)
	}
}

// close finalizes the run and notifies downstream consumers.
func (p *Pipeline) close(ctx context.Context, run *ingest.IngestionRun, status ingest.RunStatus, rows []ingest.Row) {
	run.Status = status
	run.State = ingest.StateDone
	run.FinishedAt = p.clock.Now()
	metrics.ObserveRun(string(status))

	p.logger.Info("ingestion run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("rows", run.RowsParsed),
		zap.Int("sink_errors", len(run.SinkErrors)),
		zap.Bool("cached_page", run.UsedCachedPage))

	if p.publisher == nil {
		return
	}
	var artifacts []string
	for _, conf := range run.Confirmations {
		artifacts = append(artifacts, conf.Artifacts...)
	}
	event := ingest.RunEvent{
		RunID:      run.ID,
		Source:     run.Source,
		Season:     run.Season,
		Status:     status,
		Records:    len(rows),
		Artifacts:  artifacts,
		FinishedAt: run.FinishedAt,
	}
	// Publishing is best-effort; the run outcome is already decided.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.publisher.Publish(pubCtx, event); err != nil {
		p.logger.Warn("publish run event failed", zap.Error(err))
	}
}

func fetchFailureText(res ingest.FetchResult) string {
	switch res.Outcome {
	case ingest.FetchBlocked:
		return "blocked: " + res.Reason
	case ingest.FetchRateLimited:
		return fmt.Sprintf("rate limited, retry after %s", res.RetryAfter)
	case ingest.FetchFailed:
		return "failed: " + res.ErrorKind
	default:
		return string(res.Outcome)
	}
}
