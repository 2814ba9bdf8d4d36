// Package stats computes derived basketball metrics and composite rankings
// from parsed season records. Every function here is pure and deterministic;
// formula guards substitute 0 wherever a denominator would be zero, so no
// output field is ever NaN.
package stats

import (
	"github.com/hoopsight/statcrawler/internal/ingest"
)

// ftaWeight is the standard free-throw possession weight used by usage,
// true-shooting, and ratio formulas.
const ftaWeight = 0.44

// ComputeAdvanced derives per-record metrics from base counting stats. The
// returned slice is parallel to records; ranking fields are left zero until
// Rank fills them.
func ComputeAdvanced(records []ingest.PlayerSeasonRecord) []ingest.DerivedMetrics {
	derived := make([]ingest.DerivedMetrics, len(records))
	for i, rec := range records {
		shotLoad := rec.FieldGoalAttempts + ftaWeight*rec.FreeThrowAttempts

		m := ingest.DerivedMetrics{
			PlayerID: rec.PlayerID,
			Season:   rec.Season,
		}
		m.UsageRate = safeDiv(shotLoad+rec.Turnovers, rec.MinutesPerGame)
		m.TrueShootingPct = safeDiv(rec.Points, 2*shotLoad)
		m.PointsPerShot = safeDiv(rec.Points, rec.FieldGoalAttempts)
		m.AssistRatio = 100 * safeDiv(rec.Assists, shotLoad+rec.Assists+rec.Turnovers)
		m.TurnoverRatio = 100 * safeDiv(rec.Turnovers, shotLoad+rec.Assists+rec.Turnovers)
		m.PointsPer36 = per36(rec.Points, rec.MinutesPerGame)
		m.ReboundsPer36 = per36(rec.TotalRebounds, rec.MinutesPerGame)
		m.AssistsPer36 = per36(rec.Assists, rec.MinutesPerGame)

		derived[i] = m
	}
	return derived
}

// safeDiv returns num/den, or exactly 0 when den <= 0.
func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// per36 normalizes a per-game stat to a 36-minute pace.
func per36(stat, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return stat * (36 / minutes)
}
