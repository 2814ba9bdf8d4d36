// Package app wires configuration, logging, metrics, and every pipeline
// dependency into a runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	clocksys "github.com/hoopsight/statcrawler/internal/clock/system"
	"github.com/hoopsight/statcrawler/internal/config"
	"github.com/hoopsight/statcrawler/internal/fetch"
	"github.com/hoopsight/statcrawler/internal/id/uuid"
	"github.com/hoopsight/statcrawler/internal/ingest"
	"github.com/hoopsight/statcrawler/internal/logging"
	"github.com/hoopsight/statcrawler/internal/metrics"
	"github.com/hoopsight/statcrawler/internal/ops"
	"github.com/hoopsight/statcrawler/internal/parse"
	"github.com/hoopsight/statcrawler/internal/pipeline"
	"github.com/hoopsight/statcrawler/internal/publisher/memory"
	"github.com/hoopsight/statcrawler/internal/publisher/pubsub"
	"github.com/hoopsight/statcrawler/internal/ratelimit"
	"github.com/hoopsight/statcrawler/internal/robots"
	"github.com/hoopsight/statcrawler/internal/sink"
)

// App owns the assembled pipeline and the resources behind it.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Pipeline *pipeline.Pipeline

	opsServer *ops.Server
	closers   []func() error
}

// New loads configuration from path and builds every component. Optional
// destinations (GCS, Postgres, Pub/Sub) attach only when configured; the
// local sink is always present.
func New(ctx context.Context, path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	policy := robots.New(cfg.Source.RobotsUserAgent, logger)
	limits := ratelimit.NewRegistry(1, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	fetcher := fetch.New(fetch.Config{
		MaxAttempts:       cfg.Fetch.MaxRetries,
		BackoffInitial:    time.Duration(cfg.Fetch.BackoffInitialMs) * time.Millisecond,
		BackoffMax:        time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
		JitterMin:         time.Duration(cfg.Fetch.JitterMinMs) * time.Millisecond,
		JitterMax:         time.Duration(cfg.Fetch.JitterMaxMs) * time.Millisecond,
		RetryAfterDefault: time.Duration(cfg.Fetch.RetryAfterDefaultSecs) * time.Second,
		ChallengeMarkers:  cfg.Source.ChallengeMarkers,
		DebugDir:          cfg.Fetch.DebugDir,
		UserAgents:        cfg.Fetch.UserAgentPool,
	}, policy, limits, fetch.NewCollyClient(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second), logger)

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	pub, err := a.buildPublisher(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	a.Pipeline = pipeline.New(
		pipeline.Config{
			BaseURL:        cfg.Source.BaseURL,
			SeasonPath:     cfg.Source.SeasonPath,
			WindowSeconds:  cfg.RateLimit.WindowSeconds,
			StaticMaxCalls: cfg.RateLimit.MaxCallsPerWindow,
			DebugDir:       cfg.Fetch.DebugDir,
			FlushTimeout:   cfg.PersistFlushTimeout(),
		},
		fetcher,
		parse.New(logger),
		sinks,
		pub,
		policy,
		limits,
		clocksys.Clock{},
		uuid.NewGenerator(),
		logger,
	)

	a.opsServer = ops.New(cfg.Ops.ListenAddr, logger)
	a.opsServer.Start()

	return a, nil
}

func (a *App) buildSinks(ctx context.Context) ([]ingest.Sink, error) {
	local, err := sink.NewLocal(a.Config.Storage.OutputRoot, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("init local sink: %w", err)
	}
	sinks := []ingest.Sink{local}

	if bucket := a.Config.Storage.GCSBucket; bucket != "" {
		gcs, err := sink.NewGCS(ctx, bucket, a.Config.Storage.GCSPrefix, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs sink: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		sinks = append(sinks, gcs)
	}

	if dsn := a.Config.DB.DSN; dsn != "" {
		docs, err := sink.ConnectDocuments(ctx, dsn, a.Config.DB.Table, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init document sink: %w", err)
		}
		a.closers = append(a.closers, func() error { docs.Close(); return nil })
		sinks = append(sinks, docs)
	}

	return sinks, nil
}

func (a *App) buildPublisher(ctx context.Context) (ingest.Publisher, error) {
	ps := a.Config.PubSub
	if ps.ProjectID == "" || ps.TopicID == "" {
		a.Logger.Info("pubsub not configured, run events stay in memory")
		return memory.New(), nil
	}
	pub, err := pubsub.New(ctx, ps.ProjectID, ps.TopicID, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// Run executes one ingestion for season under the configured run deadline.
func (a *App) Run(ctx context.Context, season string) (*ingest.IngestionRun, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.Config.RunDeadline())
	defer cancel()
	return a.Pipeline.Run(runCtx, season)
}

// Close shuts down the ops listener and releases external clients.
func (a *App) Close() {
	if a.opsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.opsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn("ops server shutdown", zap.Error(err))
		}
		cancel()
	}
	a.closeAll()
	_ = a.Logger.Sync()
}

func (a *App) closeAll() {
	for _, close := range a.closers {
		if err := close(); err != nil && a.Logger != nil {
			a.Logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
