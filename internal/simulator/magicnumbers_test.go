package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

func TestCalculateMagicNumbers_ClinchedReportsNil(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{10, 0}, {0, 10}, {0, 10}, {0, 10}})

	magic := CalculateMagicNumbers(teams, nil, nil, 2)

	require.Contains(t, magic, 1)
	assert.Nil(t, magic[1].MagicPlayoffs, "season over, spot clinched")
	assert.Nil(t, magic[1].MagicFirstSeed)
	assert.Nil(t, magic[1].MagicLast, "cannot reach last place")
}

func TestCalculateMagicNumbers_OwningTiebreakerSavesAWin(t *testing.T) {
	// Alpha and Bravo tied at 6-4 with one game left each, neither against
	// the other. Owning the H2H tiebreaker means matching Bravo's ceiling
	// is enough; without it Alpha cannot clinch in one game.
	buildTeams := func() map[int]*models.Team {
		return leagueOf(
			newTeam(1, "Alpha", 1, 6, 4),
			newTeam(2, "Bravo", 1, 6, 4),
			newTeam(3, "Charlie", 1, 2, 8),
			newTeam(4, "Delta", 1, 2, 8),
		)
	}
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 3, Week: 11, IsDivisionGame: true},
		{HomeTeamID: 2, AwayTeamID: 4, Week: 11, IsDivisionGame: true},
	}

	withH2H := models.H2HMap{}
	withH2H.AddWin(1, 2)
	withH2H.AddWin(1, 2)

	magic := CalculateMagicNumbers(buildTeams(), remaining, withH2H, 2)
	require.NotNil(t, magic[1].MagicDivision)
	assert.Equal(t, 1, *magic[1].MagicDivision)

	magic = CalculateMagicNumbers(buildTeams(), remaining, nil, 2)
	assert.Nil(t, magic[1].MagicDivision, "coin-flip tiebreak cannot guarantee the title in one win")
}

func TestCalculateMagicNumbers_SubtractionAllowsWinOut(t *testing.T) {
	// Bravo's conservative ceiling (win out) is out of Alpha's reach, but
	// both of Bravo's remaining games are against Alpha, so Alpha winning
	// out settles it. The magic number caps at games remaining.
	teams := leagueOf(
		newTeam(1, "Alpha", 1, 6, 4),
		newTeam(2, "Bravo", 1, 7, 3),
		newTeam(3, "Charlie", 1, 2, 8),
		newTeam(4, "Delta", 1, 2, 8),
	)
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 2, Week: 11, IsDivisionGame: true},
		{HomeTeamID: 2, AwayTeamID: 1, Week: 12, IsDivisionGame: true},
	}

	magic := CalculateMagicNumbers(teams, remaining, nil, 2)

	require.NotNil(t, magic[1].MagicDivision)
	assert.Equal(t, 2, *magic[1].MagicDivision, "must win both head-to-head games")
}

func TestCalculateMagicNumbers_OutOfReachReportsNil(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{10, 1}, {6, 5}, {6, 5}, {1, 10}})
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 4, Week: 12},
		{HomeTeamID: 2, AwayTeamID: 3, Week: 12},
		{HomeTeamID: 2, AwayTeamID: 3, Week: 13},
	}

	magic := CalculateMagicNumbers(teams, remaining, nil, 2)

	assert.Nil(t, magic[4].MagicPlayoffs, "Delta cannot catch the cutline")
	assert.Nil(t, magic[4].MagicFirstSeed)
}

func TestCalculateMagicNumbers_LastPlaceCountsLosses(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{3, 7}, {5, 5}, {6, 4}, {7, 3}})
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 2, Week: 11},
		{HomeTeamID: 1, AwayTeamID: 3, Week: 12},
	}

	magic := CalculateMagicNumbers(teams, remaining, nil, 2)

	require.NotNil(t, magic[1].MagicLast)
	assert.Equal(t, 1, *magic[1].MagicLast, "one more loss ends any escape from last")
	assert.Nil(t, magic[4].MagicLast, "the leader cannot fall to last in two games")
}

func TestCalculateMagicNumbers_TiesCountAsHalfWins(t *testing.T) {
	a := newTeam(1, "Alpha", 1, 6, 4)
	a.Ties = 1
	b := newTeam(2, "Bravo", 1, 6, 4)
	teams := leagueOf(a, b, newTeam(3, "Charlie", 1, 2, 8), newTeam(4, "Delta", 1, 2, 8))
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 3, Week: 12},
		{HomeTeamID: 2, AwayTeamID: 4, Week: 12},
	}

	// Alpha at 6.5 effective wins vs Bravo's ceiling of 7: half a game
	// short, so one win still decides it even without the tiebreaker.
	magic := CalculateMagicNumbers(teams, remaining, nil, 2)
	require.NotNil(t, magic[1].MagicDivision)
	assert.Equal(t, 1, *magic[1].MagicDivision)
}
