package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDocumentsWriteUpsertsEveryRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ds := testDataset()
	mock.ExpectExec(`INSERT INTO "player_stat_documents"`).
		WithArgs("jamesle01_2025_20250314", ds.RunDate, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "player_stat_documents"`).
		WithArgs("rookiequ01_2025_20250314", ds.RunDate, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewDocuments(mock, "", zap.NewNop())
	conf, err := s.Write(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "documents", conf.Sink)
	assert.Equal(t, 2, conf.Records)
	require.Len(t, conf.Artifacts, 1)
	assert.Equal(t, "postgres://player_stat_documents/20250314", conf.Artifacts[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentsWriteAbortsOnRowFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "stats_docs"`).
		WithArgs("jamesle01_2025_20250314", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))

	s := NewDocuments(mock, "stats_docs", zap.NewNop())
	_, writeErr := s.Write(context.Background(), testDataset())
	require.Error(t, writeErr)
	assert.Contains(t, writeErr.Error(), "jamesle01_2025_20250314")
	assert.NoError(t, mock.ExpectationsWereMet())
}
