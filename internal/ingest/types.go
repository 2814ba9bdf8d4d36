// Package ingest defines the core types shared across the ingestion pipeline.
package ingest

import (
	"time"
)

// FetchOutcome discriminates the result of a single fetch.
type FetchOutcome string

// Fetch outcomes. Exactly one applies per FetchResult.
const (
	FetchSuccess     FetchOutcome = "success"
	FetchRateLimited FetchOutcome = "rate_limited"
	FetchBlocked     FetchOutcome = "blocked"
	FetchFailed      FetchOutcome = "failed"
)

// FetchResult is the tagged outcome of one fetch attempt. Callers branch on
// Outcome; the remaining fields are meaningful only for the matching variant.
type FetchResult struct {
	Outcome    FetchOutcome
	Body       []byte        // Success
	Status     int           // Success
	RetryAfter time.Duration // RateLimited
	Reason     string        // Blocked
	ErrorKind  string        // Failed: "transport", "challenge", "canceled", "http_<status>"
}

// PlayerSeasonRecord holds one player's per-game stat line for a season.
// Identity is (PlayerID, Season). Numeric fields default to zero when the
// source cell is empty or unparsable; they are never absent.
type PlayerSeasonRecord struct {
	PlayerID              string  `json:"player_id"`
	Name                  string  `json:"name"`
	Age                   int     `json:"age"`
	Team                  string  `json:"team"`
	Position              string  `json:"position"`
	GamesPlayed           int     `json:"games_played"`
	GamesStarted          int     `json:"games_started"`
	MinutesPerGame        float64 `json:"minutes_per_game"`
	FieldGoalsPerGame     float64 `json:"field_goals_per_game"`
	FieldGoalAttempts     float64 `json:"field_goal_attempts"`
	FieldGoalPercentage   float64 `json:"field_goal_percentage"`
	ThreePointPerGame     float64 `json:"three_point_per_game"`
	ThreePointAttempts    float64 `json:"three_point_attempts"`
	ThreePointPercentage  float64 `json:"three_point_percentage"`
	TwoPointPerGame       float64 `json:"two_point_per_game"`
	TwoPointAttempts      float64 `json:"two_point_attempts"`
	TwoPointPercentage    float64 `json:"two_point_percentage"`
	EffectiveFGPercentage float64 `json:"effective_fg_percentage"`
	FreeThrowsPerGame     float64 `json:"free_throws_per_game"`
	FreeThrowAttempts     float64 `json:"free_throw_attempts"`
	FreeThrowPercentage   float64 `json:"free_throw_percentage"`
	OffensiveRebounds     float64 `json:"offensive_rebounds"`
	DefensiveRebounds     float64 `json:"defensive_rebounds"`
	TotalRebounds         float64 `json:"total_rebounds"`
	Assists               float64 `json:"assists"`
	Steals                float64 `json:"steals"`
	Blocks                float64 `json:"blocks"`
	Turnovers             float64 `json:"turnovers"`
	Fouls                 float64 `json:"fouls"`
	Points                float64 `json:"points"`
	Season                string  `json:"season"`
}

// DerivedMetrics holds computed analytics keyed by the same identity as the
// record it was derived from. Formula guards substitute 0 whenever a
// denominator makes the value mathematically undefined; fields are never NaN.
type DerivedMetrics struct {
	PlayerID        string  `json:"player_id"`
	Season          string  `json:"season"`
	UsageRate       float64 `json:"usage_rate"`
	TrueShootingPct float64 `json:"true_shooting_pct"`
	PointsPerShot   float64 `json:"points_per_shot"`
	AssistRatio     float64 `json:"assist_ratio"`
	TurnoverRatio   float64 `json:"turnover_ratio"`
	PointsPer36     float64 `json:"points_per_36"`
	ReboundsPer36   float64 `json:"rebounds_per_36"`
	AssistsPer36    float64 `json:"assists_per_36"`
	ScoringRank     int     `json:"scoring_rank"`
	EfficiencyRank  int     `json:"efficiency_rank"`
	VersatilityRank int     `json:"versatility_rank"`
	CompositeScore  float64 `json:"composite_score"`
}

// Row pairs a parsed record with its derived metrics.
type Row struct {
	Record  PlayerSeasonRecord
	Metrics DerivedMetrics
}

// Dataset is the unit handed to persistence sinks. Rows are value copies
// owned by the pipeline for the duration of one run.
type Dataset struct {
	Source  string
	Season  string
	RunDate time.Time
	Rows    []Row
}

// DateKey returns the run date formatted for destination keys and paths.
func (d Dataset) DateKey() string {
	return d.RunDate.Format("20060102")
}

// SinkConfirmation reports a successful write by one sink.
type SinkConfirmation struct {
	Sink      string   `json:"sink"`
	Records   int      `json:"records"`
	Artifacts []string `json:"artifacts"`
}

// RunState tracks pipeline progress through its stages.
type RunState string

// Pipeline states, in order of progression.
const (
	StateIdle         RunState = "idle"
	StateFetching     RunState = "fetching"
	StateParsing      RunState = "parsing"
	StateTransforming RunState = "transforming"
	StatePersisting   RunState = "persisting"
	StateDone         RunState = "done"
)

// RunStatus is the terminal status of an ingestion run.
type RunStatus string

// Terminal run statuses.
const (
	RunSuccess        RunStatus = "success"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailed         RunStatus = "failed"
)

// IngestionRun is the mutable record of one pipeline execution. It is created
// when the run starts, updated by each stage, and closed when every sink has
// reported or the run aborts.
type IngestionRun struct {
	ID             string             `json:"id"`
	Source         string             `json:"source"`
	Season         string             `json:"season"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	State          RunState           `json:"state"`
	Status         RunStatus          `json:"status"`
	UsedCachedPage bool               `json:"used_cached_page"`
	RowsParsed     int                `json:"rows_parsed"`
	RowsSkipped    int                `json:"rows_skipped"`
	Confirmations  []SinkConfirmation `json:"confirmations"`
	SinkErrors     []string           `json:"sink_errors,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// RunEvent is published downstream when a run reaches a terminal state. The
// prediction service consumes these to pick up fresh derived metrics.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Season     string    `json:"season"`
	Status     RunStatus `json:"status"`
	Records    int       `json:"records"`
	Artifacts  []string  `json:"artifacts"`
	FinishedAt time.Time `json:"finished_at"`
}
