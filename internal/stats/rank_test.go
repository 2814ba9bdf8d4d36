package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

func rankedFixture() ([]ingest.PlayerSeasonRecord, []ingest.DerivedMetrics) {
	records := []ingest.PlayerSeasonRecord{
		{PlayerID: "star", Points: 30, TotalRebounds: 8, Assists: 8, Steals: 1, Blocks: 1,
			MinutesPerGame: 36, FieldGoalAttempts: 20, FreeThrowAttempts: 8},
		{PlayerID: "role", Points: 12, TotalRebounds: 5, Assists: 2, Steals: 1, Blocks: 0,
			MinutesPerGame: 25, FieldGoalAttempts: 9, FreeThrowAttempts: 2},
		{PlayerID: "bench", Points: 4, TotalRebounds: 2, Assists: 1, Steals: 0, Blocks: 0,
			MinutesPerGame: 10, FieldGoalAttempts: 4, FreeThrowAttempts: 1},
	}
	return records, ComputeAdvanced(records)
}

func TestRankOrdinalDescending(t *testing.T) {
	records, metrics := rankedFixture()
	Rank(records, metrics)

	assert.Equal(t, 1, metrics[0].ScoringRank)
	assert.Equal(t, 2, metrics[1].ScoringRank)
	assert.Equal(t, 3, metrics[2].ScoringRank)

	// versatility = pts + trb + ast + stl + blk, also descending here
	assert.Equal(t, 1, metrics[0].VersatilityRank)
	assert.Equal(t, 3, metrics[2].VersatilityRank)

	for _, m := range metrics {
		expected := 0.4*float64(m.ScoringRank) + 0.3*float64(m.EfficiencyRank) + 0.3*float64(m.VersatilityRank)
		assert.InDelta(t, expected, m.CompositeScore, 1e-9)
	}
}

func TestRankStableTieBreak(t *testing.T) {
	// Identical stat lines: ranks must follow input order, not flap.
	records := []ingest.PlayerSeasonRecord{
		{PlayerID: "first", Points: 10, MinutesPerGame: 20, FieldGoalAttempts: 8},
		{PlayerID: "second", Points: 10, MinutesPerGame: 20, FieldGoalAttempts: 8},
	}
	metrics := ComputeAdvanced(records)
	Rank(records, metrics)

	assert.Equal(t, 1, metrics[0].ScoringRank)
	assert.Equal(t, 2, metrics[1].ScoringRank)
	assert.Equal(t, 1, metrics[0].EfficiencyRank)
	assert.Equal(t, 2, metrics[1].EfficiencyRank)
}

func TestRankMismatchedSlicesNoop(t *testing.T) {
	records, metrics := rankedFixture()
	short := metrics[:1]
	Rank(records, short)
	require.Zero(t, short[0].ScoringRank)
}

func TestRankEmptyInput(t *testing.T) {
	Rank(nil, nil) // must not panic
}
