package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// Local writes dataset artifacts to the local filesystem under
// {outputRoot}/processed/{YYYYMMDD}/.
type Local struct {
	outputRoot string
	logger     *zap.Logger
}

// NewLocal validates the output root and returns a Local sink.
func NewLocal(outputRoot string, logger *zap.Logger) (*Local, error) {
	if strings.TrimSpace(outputRoot) == "" {
		return nil, fmt.Errorf("output root is required")
	}

	info, err := os.Stat(outputRoot)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(outputRoot, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create output root: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat output root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("output root is not a directory")
	}

	probe := filepath.Join(outputRoot, ".writable_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("output root is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up write probe: %w", err)
	}

	return &Local{outputRoot: outputRoot, logger: logger}, nil
}

// Name implements ingest.Sink.
func (s *Local) Name() string { return "local" }

// Write persists the dataset as CSV, JSON, and Parquet files. Re-running for
// the same date overwrites the previous artifacts in place.
func (s *Local) Write(_ context.Context, ds ingest.Dataset) (ingest.SinkConfirmation, error) {
	artifacts, err := encodeAll(ds)
	if err != nil {
		return ingest.SinkConfirmation{}, fmt.Errorf("encode dataset: %w", err)
	}

	dir := filepath.Join(s.outputRoot, "processed", ds.DateKey())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ingest.SinkConfirmation{}, fmt.Errorf("create output dir: %w", err)
	}

	conf := ingest.SinkConfirmation{Sink: s.Name(), Records: len(ds.Rows)}
	for _, format := range []string{"csv", "json", "parquet"} {
		path := filepath.Join(dir, "player_stats."+format)
		if err := os.WriteFile(path, artifacts[format], 0o600); err != nil {
			return ingest.SinkConfirmation{}, fmt.Errorf("write %s artifact: %w", format, err)
		}
		conf.Artifacts = append(conf.Artifacts, "file://"+path)
	}

	s.logger.Info("dataset written locally",
		zap.String("dir", dir), zap.Int("records", len(ds.Rows)))
	return conf, nil
}
