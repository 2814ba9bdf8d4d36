package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// DocumentDB is the slice of pgxpool.Pool the document sink needs; pgxmock
// satisfies it in tests.
type DocumentDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Documents upserts one JSONB document per player row, keyed by
// {player_id}_{season}_{run_date}. Re-running the pipeline for the same day
// overwrites instead of duplicating.
//
// Expected schema:
//
//	CREATE TABLE player_stat_documents (
//	    doc_id   TEXT PRIMARY KEY,
//	    run_date DATE NOT NULL,
//	    doc      JSONB NOT NULL
//	);
type Documents struct {
	db     DocumentDB
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

// NewDocuments builds a document sink over an existing connection pool.
func NewDocuments(db DocumentDB, table string, logger *zap.Logger) *Documents {
	if table == "" {
		table = "player_stat_documents"
	}
	return &Documents{db: db, table: table, logger: logger}
}

// ConnectDocuments opens a pgx pool for dsn, pings it, and returns a
// document sink bound to it.
func ConnectDocuments(ctx context.Context, dsn, table string, logger *zap.Logger) (*Documents, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewDocuments(pool, table, logger)
	s.pool = pool
	return s, nil
}

// Close releases the pool when this sink owns it.
func (s *Documents) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Name implements ingest.Sink.
func (s *Documents) Name() string { return "documents" }

// Write upserts every row. A row-level failure aborts this sink's write and
// is reported to the pipeline; other sinks are unaffected.
func (s *Documents) Write(ctx context.Context, ds ingest.Dataset) (ingest.SinkConfirmation, error) {
	rows := flatten(ds)
	dateKey := ds.DateKey()

	query := fmt.Sprintf(`
		INSERT INTO %s (doc_id, run_date, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (doc_id) DO UPDATE
		SET run_date = EXCLUDED.run_date, doc = EXCLUDED.doc
	`, pgx.Identifier{s.table}.Sanitize())

	for _, row := range rows {
		doc, err := json.Marshal(row)
		if err != nil {
			return ingest.SinkConfirmation{}, fmt.Errorf("marshal document: %w", err)
		}
		docID := fmt.Sprintf("%s_%s_%s", row.PlayerID, row.Season, dateKey)
		if _, err := s.db.Exec(ctx, query, docID, ds.RunDate, doc); err != nil {
			return ingest.SinkConfirmation{}, fmt.Errorf("upsert document %s: %w", docID, err)
		}
	}

	s.logger.Info("documents upserted",
		zap.String("table", s.table), zap.Int("records", len(rows)))
	return ingest.SinkConfirmation{
		Sink:      s.Name(),
		Records:   len(rows),
		Artifacts: []string{fmt.Sprintf("postgres://%s/%s", s.table, dateKey)},
	}, nil
}
