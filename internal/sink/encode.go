// Package sink persists derived datasets to the configured destinations:
// local filesystem, object storage, and a document store. All sinks emit the
// same logical content; formats differ only in encoding.
package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// flatRow is the persisted shape of one player row: base record fields
// followed by derived metrics, flattened for tabular encoders.
type flatRow struct {
	PlayerID              string  `json:"player_id" parquet:"player_id"`
	Name                  string  `json:"name" parquet:"name"`
	Age                   int     `json:"age" parquet:"age"`
	Team                  string  `json:"team" parquet:"team"`
	Position              string  `json:"position" parquet:"position"`
	GamesPlayed           int     `json:"games_played" parquet:"games_played"`
	GamesStarted          int     `json:"games_started" parquet:"games_started"`
	MinutesPerGame        float64 `json:"minutes_per_game" parquet:"minutes_per_game"`
	FieldGoalsPerGame     float64 `json:"field_goals_per_game" parquet:"field_goals_per_game"`
	FieldGoalAttempts     float64 `json:"field_goal_attempts" parquet:"field_goal_attempts"`
	FieldGoalPercentage   float64 `json:"field_goal_percentage" parquet:"field_goal_percentage"`
	ThreePointPerGame     float64 `json:"three_point_per_game" parquet:"three_point_per_game"`
	ThreePointAttempts    float64 `json:"three_point_attempts" parquet:"three_point_attempts"`
	ThreePointPercentage  float64 `json:"three_point_percentage" parquet:"three_point_percentage"`
	TwoPointPerGame       float64 `json:"two_point_per_game" parquet:"two_point_per_game"`
	TwoPointAttempts      float64 `json:"two_point_attempts" parquet:"two_point_attempts"`
	TwoPointPercentage    float64 `json:"two_point_percentage" parquet:"two_point_percentage"`
	EffectiveFGPercentage float64 `json:"effective_fg_percentage" parquet:"effective_fg_percentage"`
	FreeThrowsPerGame     float64 `json:"free_throws_per_game" parquet:"free_throws_per_game"`
	FreeThrowAttempts     float64 `json:"free_throw_attempts" parquet:"free_throw_attempts"`
	FreeThrowPercentage   float64 `json:"free_throw_percentage" parquet:"free_throw_percentage"`
	OffensiveRebounds     float64 `json:"offensive_rebounds" parquet:"offensive_rebounds"`
	DefensiveRebounds     float64 `json:"defensive_rebounds" parquet:"defensive_rebounds"`
	TotalRebounds         float64 `json:"total_rebounds" parquet:"total_rebounds"`
	Assists               float64 `json:"assists" parquet:"assists"`
	Steals                float64 `json:"steals" parquet:"steals"`
	Blocks                float64 `json:"blocks" parquet:"blocks"`
	Turnovers             float64 `json:"turnovers" parquet:"turnovers"`
	Fouls                 float64 `json:"fouls" parquet:"fouls"`
	Points                float64 `json:"points" parquet:"points"`
	Season                string  `json:"season" parquet:"season"`
	UsageRate             float64 `json:"usage_rate" parquet:"usage_rate"`
	TrueShootingPct       float64 `json:"true_shooting_pct" parquet:"true_shooting_pct"`
	PointsPerShot         float64 `json:"points_per_shot" parquet:"points_per_shot"`
	AssistRatio           float64 `json:"assist_ratio" parquet:"assist_ratio"`
	TurnoverRatio         float64 `json:"turnover_ratio" parquet:"turnover_ratio"`
	PointsPer36           float64 `json:"points_per_36" parquet:"points_per_36"`
	ReboundsPer36         float64 `json:"rebounds_per_36" parquet:"rebounds_per_36"`
	AssistsPer36          float64 `json:"assists_per_36" parquet:"assists_per_36"`
	ScoringRank           int     `json:"scoring_rank" parquet:"scoring_rank"`
	EfficiencyRank        int     `json:"efficiency_rank" parquet:"efficiency_rank"`
	VersatilityRank       int     `json:"versatility_rank" parquet:"versatility_rank"`
	CompositeScore        float64 `json:"composite_score" parquet:"composite_score"`
}

var csvHeader = []string{
	"player_id", "name", "age", "team", "position",
	"games_played", "games_started", "minutes_per_game",
	"field_goals_per_game", "field_goal_attempts", "field_goal_percentage",
	"three_point_per_game", "three_point_attempts", "three_point_percentage",
	"two_point_per_game", "two_point_attempts", "two_point_percentage",
	"effective_fg_percentage",
	"free_throws_per_game", "free_throw_attempts", "free_throw_percentage",
	"offensive_rebounds", "defensive_rebounds", "total_rebounds",
	"assists", "steals", "blocks", "turnovers", "fouls", "points", "season",
	"usage_rate", "true_shooting_pct", "points_per_shot",
	"assist_ratio", "turnover_ratio",
	"points_per_36", "rebounds_per_36", "assists_per_36",
	"scoring_rank", "efficiency_rank", "versatility_rank", "composite_score",
}

func flatten(ds ingest.Dataset) []flatRow {
	rows := make([]flatRow, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		rec, m := r.Record, r.Metrics
		rows = append(rows, flatRow{
			PlayerID:              rec.PlayerID,
			Name:                  rec.Name,
			Age:                   rec.Age,
			Team:                  rec.Team,
			Position:              rec.Position,
			GamesPlayed:           rec.GamesPlayed,
			GamesStarted:          rec.GamesStarted,
			MinutesPerGame:        rec.MinutesPerGame,
			FieldGoalsPerGame:     rec.FieldGoalsPerGame,
			FieldGoalAttempts:     rec.FieldGoalAttempts,
			FieldGoalPercentage:   rec.FieldGoalPercentage,
			ThreePointPerGame:     rec.ThreePointPerGame,
			ThreePointAttempts:    rec.ThreePointAttempts,
			ThreePointPercentage:  rec.ThreePointPercentage,
			TwoPointPerGame:       rec.TwoPointPerGame,
			TwoPointAttempts:      rec.TwoPointAttempts,
			TwoPointPercentage:    rec.TwoPointPercentage,
			EffectiveFGPercentage: rec.EffectiveFGPercentage,
			FreeThrowsPerGame:     rec.FreeThrowsPerGame,
			FreeThrowAttempts:     rec.FreeThrowAttempts,
			FreeThrowPercentage:   rec.FreeThrowPercentage,
			OffensiveRebounds:     rec.OffensiveRebounds,
			DefensiveRebounds:     rec.DefensiveRebounds,
			TotalRebounds:         rec.TotalRebounds,
			Assists:               rec.Assists,
			Steals:                rec.Steals,
			Blocks:                rec.Blocks,
			Turnovers:             rec.Turnovers,
			Fouls:                 rec.Fouls,
			Points:                rec.Points,
			Season:                rec.Season,
			UsageRate:             m.UsageRate,
			TrueShootingPct:       m.TrueShootingPct,
			PointsPerShot:         m.PointsPerShot,
			AssistRatio:           m.AssistRatio,
			TurnoverRatio:         m.TurnoverRatio,
			PointsPer36:           m.PointsPer36,
			ReboundsPer36:         m.ReboundsPer36,
			AssistsPer36:          m.AssistsPer36,
			ScoringRank:           m.ScoringRank,
			EfficiencyRank:        m.EfficiencyRank,
			VersatilityRank:       m.VersatilityRank,
			CompositeScore:        m.CompositeScore,
		})
	}
	return rows
}

func (r flatRow) csvFields() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	i := strconv.Itoa
	return []string{
		r.PlayerID, r.Name, i(r.Age), r.Team, r.Position,
		i(r.GamesPlayed), i(r.GamesStarted), f(r.MinutesPerGame),
		f(r.FieldGoalsPerGame), f(r.FieldGoalAttempts), f(r.FieldGoalPercentage),
		f(r.ThreePointPerGame), f(r.ThreePointAttempts), f(r.ThreePointPercentage),
		f(r.TwoPointPerGame), f(r.TwoPointAttempts), f(r.TwoPointPercentage),
		f(r.EffectiveFGPercentage),
		f(r.FreeThrowsPerGame), f(r.FreeThrowAttempts), f(r.FreeThrowPercentage),
		f(r.OffensiveRebounds), f(r.DefensiveRebounds), f(r.TotalRebounds),
		f(r.Assists), f(r.Steals), f(r.Blocks), f(r.Turnovers), f(r.Fouls), f(r.Points),
		r.Season,
		f(r.UsageRate), f(r.TrueShootingPct), f(r.PointsPerShot),
		f(r.AssistRatio), f(r.TurnoverRatio),
		f(r.PointsPer36), f(r.ReboundsPer36), f(r.AssistsPer36),
		i(r.ScoringRank), i(r.EfficiencyRank), i(r.VersatilityRank),
		f(r.CompositeScore),
	}
}

func encodeCSV(rows []flatRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.csvFields()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJSON(rows []flatRow) ([]byte, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return data, nil
}

func encodeParquet(rows []flatRow) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[flatRow](&buf)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeAll renders the dataset in every supported format. The three
// artifacts carry identical logical content.
func encodeAll(ds ingest.Dataset) (map[string][]byte, error) {
	rows := flatten(ds)
	artifacts := make(map[string][]byte, 3)

	csvData, err := encodeCSV(rows)
	if err != nil {
		return nil, err
	}
	artifacts["csv"] = csvData

	jsonData, err := encodeJSON(rows)
	if err != nil {
		return nil, err
	}
	artifacts["json"] = jsonData

	parquetData, err := encodeParquet(rows)
	if err != nil {
		return nil, err
	}
	artifacts["parquet"] = parquetData

	return artifacts, nil
}
