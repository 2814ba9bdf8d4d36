package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const statsPage = `<html><body>
<table id="per_game_stats">
<thead><tr><th>Player</th></tr></thead>
<tbody>
<tr>
  <td data-stat="name_display"><a href="/players/j/jamesle01.html">LeBron James</a></td>
  <td data-stat="age">40</td>
  <td data-stat="team_name_abbr">LAL</td>
  <td data-stat="pos">SF</td>
  <td data-stat="games">70</td>
  <td data-stat="games_started">70</td>
  <td data-stat="mp_per_g">35.3</td>
  <td data-stat="fg_per_g">9.8</td>
  <td data-stat="fga_per_g">19.2</td>
  <td data-stat="fg_pct">.513</td>
  <td data-stat="fg3_per_g">2.1</td>
  <td data-stat="fg3a_per_g">5.7</td>
  <td data-stat="fg3_pct">.376</td>
  <td data-stat="fta_per_g">5.5</td>
  <td data-stat="ft_pct">.782</td>
  <td data-stat="trb_per_g">7.8</td>
  <td data-stat="ast_per_g">8.2</td>
  <td data-stat="stl_per_g">1.0</td>
  <td data-stat="blk_per_g">0.6</td>
  <td data-stat="tov_per_g">3.7</td>
  <td data-stat="pts_per_g">25.7</td>
</tr>
<tr class="thead"><td data-stat="name_display">Player</td></tr>
<tr>
  <td data-stat="name_display"><a href="/players/r/rookiequ01.html">Quiet Rookie</a></td>
  <td data-stat="games">12</td>
  <td data-stat="fg3_pct"></td>
  <td data-stat="pts_per_g">3.1</td>
</tr>
<tr>
  <td data-stat="name_display"><a href="/players/g/garbleda01.html">Garbled Data</a></td>
  <td data-stat="games">abc</td>
  <td data-stat="pts_per_g">7.5</td>
</tr>
<tr>
  <td data-stat="name_display">League Average</td>
  <td data-stat="pts_per_g">11.2</td>
</tr>
</tbody>
</table>
</body></html>`

func TestParseExtractsRecords(t *testing.T) {
	p := New(zap.NewNop())
	out := p.Parse([]byte(statsPage), "2025")

	assert.True(t, out.TableFound)
	require.Len(t, out.Records, 3)
	assert.Equal(t, 1, out.RowsSkipped) // league-average row has no anchor

	lebron := out.Records[0]
	assert.Equal(t, "jamesle01", lebron.PlayerID)
	assert.Equal(t, "LeBron James", lebron.Name)
	assert.Equal(t, 40, lebron.Age)
	assert.Equal(t, "LAL", lebron.Team)
	assert.Equal(t, "SF", lebron.Position)
	assert.Equal(t, 70, lebron.GamesPlayed)
	assert.InDelta(t, 35.3, lebron.MinutesPerGame, 1e-9)
	assert.InDelta(t, 0.513, lebron.FieldGoalPercentage, 1e-9)
	assert.InDelta(t, 25.7, lebron.Points, 1e-9)
	assert.Equal(t, "2025", lebron.Season)
}

func TestParseKeepsRowsWithMissingAndMalformedCells(t *testing.T) {
	p := New(zap.NewNop())
	out := p.Parse([]byte(statsPage), "2025")
	require.Len(t, out.Records, 3)

	rookie := out.Records[1]
	assert.Equal(t, "rookiequ01", rookie.PlayerID)
	assert.Zero(t, rookie.ThreePointPercentage) // empty cell defaults, row kept
	assert.InDelta(t, 3.1, rookie.Points, 1e-9)

	garbled := out.Records[2]
	assert.Equal(t, "garbleda01", garbled.PlayerID)
	assert.Zero(t, garbled.GamesPlayed) // unparsable cell defaults, row kept
	assert.InDelta(t, 7.5, garbled.Points, 1e-9)
}

func TestParseMissingTable(t *testing.T) {
	p := New(zap.NewNop())
	out := p.Parse([]byte(`<html><body><p>maintenance window</p></body></html>`), "2025")

	assert.False(t, out.TableFound)
	assert.Empty(t, out.Records)
	assert.Zero(t, out.RowsSkipped)
}

func TestParseIsTotalOverArbitraryBytes(t *testing.T) {
	p := New(zap.NewNop())
	inputs := [][]byte{
		nil,
		{},
		{0x00, 0xff, 0xfe, 0x7f},
		[]byte("<<<<not html at all"),
		[]byte(`<table id="per_game_stats"><tbody><tr></tr>`),
	}
	for _, in := range inputs {
		out := p.Parse(in, "2025")
		assert.Empty(t, out.Records)
	}
}
