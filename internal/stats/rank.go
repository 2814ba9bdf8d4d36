package stats

import (
	"sort"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// Composite score weights: scoring dominates, efficiency and versatility
// split the remainder. Lower composite means better overall.
const (
	scoringWeight     = 0.4
	efficiencyWeight  = 0.3
	versatilityWeight = 0.3
)

// Rank fills the ranking fields of metrics in place. Records and metrics
// must be parallel slices (as produced by ComputeAdvanced). Each rank is
// ordinal and stable: equal values keep their first-seen order.
func Rank(records []ingest.PlayerSeasonRecord, metrics []ingest.DerivedMetrics) {
	n := len(records)
	if n == 0 || n != len(metrics) {
		return
	}

	scoring := make([]float64, n)
	efficiency := make([]float64, n)
	versatility := make([]float64, n)
	for i, rec := range records {
		scoring[i] = rec.Points
		efficiency[i] = metrics[i].TrueShootingPct
		versatility[i] = rec.Points + rec.TotalRebounds + rec.Assists + rec.Steals + rec.Blocks
	}

	scoringRanks := ordinalRanksDesc(scoring)
	efficiencyRanks := ordinalRanksDesc(efficiency)
	versatilityRanks := ordinalRanksDesc(versatility)

	for i := range metrics {
		metrics[i].ScoringRank = scoringRanks[i]
		metrics[i].EfficiencyRank = efficiencyRanks[i]
		metrics[i].VersatilityRank = versatilityRanks[i]
		metrics[i].CompositeScore = scoringWeight*float64(scoringRanks[i]) +
			efficiencyWeight*float64(efficiencyRanks[i]) +
			versatilityWeight*float64(versatilityRanks[i])
	}
}

// ordinalRanksDesc assigns 1..n by descending value. The stable sort keeps
// ties in input order, which makes the tie-break testable.
func ordinalRanksDesc(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})
	ranks := make([]int, len(values))
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}
