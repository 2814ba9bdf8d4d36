package sink

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// GCS writes dataset artifacts to a Google Cloud Storage bucket at
// {prefix}/{YYYYMMDD}/data.{format}. Authentication uses Application Default
// Credentials.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCS initializes the client and fails fast if the bucket is unreachable.
func NewGCS(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close gcs client after attrs failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("get bucket %q attributes: %w", bucket, err)
	}
	if prefix == "" {
		prefix = "player_stats"
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Name implements ingest.Sink.
func (s *GCS) Name() string { return "gcs" }

// Write uploads the three artifacts. Object names are date-keyed, so a rerun
// for the same day overwrites rather than duplicates.
func (s *GCS) Write(ctx context.Context, ds ingest.Dataset) (ingest.SinkConfirmation, error) {
	artifacts, err := encodeAll(ds)
	if err != nil {
		return ingest.SinkConfirmation{}, fmt.Errorf("encode dataset: %w", err)
	}

	conf := ingest.SinkConfirmation{Sink: s.Name(), Records: len(ds.Rows)}
	for _, format := range []string{"csv", "json", "parquet"} {
		object := path.Join(s.prefix, ds.DateKey(), "data."+format)
		if err := s.upload(ctx, object, artifacts[format]); err != nil {
			return ingest.SinkConfirmation{}, err
		}
		conf.Artifacts = append(conf.Artifacts, fmt.Sprintf("gs://%s/%s", s.bucket, object))
	}

	s.logger.Info("dataset uploaded",
		zap.String("bucket", s.bucket), zap.Int("records", len(ds.Rows)))
	return conf, nil
}

func (s *GCS) upload(ctx context.Context, object string, data []byte) error {
	wc := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			s.logger.Warn("close gcs writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write object %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", object, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCS) Close() error {
	return s.client.Close()
}
