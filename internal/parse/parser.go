// Package parse converts the per-game statistics table of a fetched page
// into typed player season records.
package parse

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// tableID identifies the statistics table on the source page.
const tableID = "per_game_stats"

// Outcome is the tagged result of parsing one page. TableFound false with no
// error means "no data this run", which is distinct from a fetch failure.
type Outcome struct {
	Records     []ingest.PlayerSeasonRecord
	RowsSkipped int
	TableFound  bool
}

// Parser extracts player rows from raw HTML. Parse is total: any byte
// sequence yields an Outcome, never a panic or an error.
type Parser struct {
	logger *zap.Logger
}

// New builds a Parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse scans rawHTML for the statistics table and returns every row that
// carries a usable identity. A malformed numeric cell defaults to zero and
// keeps the row; only a missing identity drops it.
func (p *Parser) Parse(rawHTML []byte, season string) Outcome {
	var out Outcome

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		p.logger.Warn("unparsable document", zap.Error(err))
		return out
	}

	table := doc.Find("table#" + tableID).First()
	if table.Length() == 0 {
		return out
	}
	out.TableFound = true

	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("thead") {
			return
		}
		rec, ok := p.parseRow(row, season)
		if !ok {
			out.RowsSkipped++
			return
		}
		out.Records = append(out.Records, rec)
	})

	p.logger.Info("page parsed",
		zap.Int("records", len(out.Records)),
		zap.Int("skipped", out.RowsSkipped))
	return out
}

// parseRow builds one record. The identity comes from the name cell's anchor
// href (/players/x/<id>.html); rows without it are structural or broken and
// get skipped.
func (p *Parser) parseRow(row *goquery.Selection, season string) (ingest.PlayerSeasonRecord, bool) {
	nameCell := row.Find(`[data-stat="name_display"]`).First()
	href, hasHref := nameCell.Find("a").First().Attr("href")
	if nameCell.Length() == 0 || !hasHref {
		p.logger.Debug("row skipped: no identity anchor")
		return ingest.PlayerSeasonRecord{}, false
	}
	playerID := strings.TrimSuffix(path.Base(href), ".html")
	if playerID == "" || playerID == "." || playerID == "/" {
		p.logger.Debug("row skipped: empty identity", zap.String("href", href))
		return ingest.PlayerSeasonRecord{}, false
	}

	return ingest.PlayerSeasonRecord{
		PlayerID:              playerID,
		Name:                  strings.TrimSpace(nameCell.Text()),
		Age:                   intStat(row, "age"),
		Team:                  textStat(row, "team_name_abbr"),
		Position:              textStat(row, "pos"),
		GamesPlayed:           intStat(row, "games"),
		GamesStarted:          intStat(row, "games_started"),
		MinutesPerGame:        floatStat(row, "mp_per_g"),
		FieldGoalsPerGame:     floatStat(row, "fg_per_g"),
		FieldGoalAttempts:     floatStat(row, "fga_per_g"),
		FieldGoalPercentage:   floatStat(row, "fg_pct"),
		ThreePointPerGame:     floatStat(row, "fg3_per_g"),
		ThreePointAttempts:    floatStat(row, "fg3a_per_g"),
		ThreePointPercentage:  floatStat(row, "fg3_pct"),
		TwoPointPerGame:       floatStat(row, "fg2_per_g"),
		TwoPointAttempts:      floatStat(row, "fg2a_per_g"),
		TwoPointPercentage:    floatStat(row, "fg2_pct"),
		EffectiveFGPercentage: floatStat(row, "efg_pct"),
		FreeThrowsPerGame:     floatStat(row, "ft_per_g"),
		FreeThrowAttempts:     floatStat(row, "fta_per_g"),
		FreeThrowPercentage:   floatStat(row, "ft_pct"),
		OffensiveRebounds:     floatStat(row, "orb_per_g"),
		DefensiveRebounds:     floatStat(row, "drb_per_g"),
		TotalRebounds:         floatStat(row, "trb_per_g"),
		Assists:               floatStat(row, "ast_per_g"),
		Steals:                floatStat(row, "stl_per_g"),
		Blocks:                floatStat(row, "blk_per_g"),
		Turnovers:             floatStat(row, "tov_per_g"),
		Fouls:                 floatStat(row, "pf_per_g"),
		Points:                floatStat(row, "pts_per_g"),
		Season:                season,
	}, true
}

func cellText(row *goquery.Selection, stat string) string {
	sel := fmt.Sprintf(`td[data-stat=%q]`, stat)
	return strings.TrimSpace(row.Find(sel).First().Text())
}

func textStat(row *goquery.Selection, stat string) string {
	return cellText(row, stat)
}

// floatStat returns the cell value or 0.0 when the cell is absent, empty, or
// unparsable. Percentage cells are stored exactly as the source provides
// them; values are trusted as scraped.
func floatStat(row *goquery.Selection, stat string) float64 {
	text := cellText(row, stat)
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return v
}

func intStat(row *goquery.Selection, stat string) int {
	text := cellText(row, stat)
	if text == "" {
		return 0
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return v
}
