package simulator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// fourTeamLeague is the toy fixture used across engine tests: one division,
// two playoff spots.
func fourTeamLeague(records [4][2]int) map[int]*models.Team {
	names := []string{"Alpha", "Bravo", "Charlie", "Delta"}
	teams := make(map[int]*models.Team, 4)
	for i, rec := range records {
		teams[i+1] = newTeam(i+1, names[i], 1, rec[0], rec[1])
	}
	return teams
}

func simOpts(n, spots int, seed int64) Options {
	return Options{
		Simulations:  n,
		PlayoffSpots: spots,
		Rand:         rand.New(rand.NewSource(seed)),
	}
}

func TestSimulate_TallyInvariants(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{7, 3}, {6, 4}, {5, 5}, {2, 8}})
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 2, Week: 11, IsDivisionGame: true},
		{HomeTeamID: 3, AwayTeamID: 4, Week: 11, IsDivisionGame: true},
		{HomeTeamID: 1, AwayTeamID: 3, Week: 12, IsDivisionGame: true},
		{HomeTeamID: 2, AwayTeamID: 4, Week: 12, IsDivisionGame: true},
	}

	const n = 2000
	tallies, err := Simulate(context.Background(), teams, remaining, nil, simOpts(n, 2, 99))
	require.NoError(t, err)
	require.Len(t, tallies, 4)

	var playoffSum, divSum, firstSum, lastSum int
	for _, tally := range tallies {
		playoffSum += tally.PlayoffAppearances
		divSum += tally.DivisionWins
		firstSum += tally.FirstSeed
		lastSum += tally.LastPlace

		assert.GreaterOrEqual(t, tally.PlayoffAppearances, tally.FirstSeed)
		assert.GreaterOrEqual(t, tally.PlayoffAppearances, tally.DivisionWins)
	}
	assert.Equal(t, n*2, playoffSum, "exactly playoff_spots teams qualify per trial")
	assert.Equal(t, n*1, divSum, "exactly one division winner per trial")
	assert.Equal(t, n, firstSum)
	assert.Equal(t, n, lastSum)
}

func TestSimulate_SameSeedSameTallies(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {6, 4}, {5, 5}, {3, 7}})
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 4, Week: 11},
		{HomeTeamID: 2, AwayTeamID: 3, Week: 11},
	}

	first, err := Simulate(context.Background(), teams, remaining, nil, simOpts(1000, 2, 7))
	require.NoError(t, err)
	second, err := Simulate(context.Background(), teams, remaining, nil, simOpts(1000, 2, 7))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSimulate_EmptyScheduleRepeatsCurrentStandings(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{10, 0}, {6, 4}, {4, 6}, {0, 10}})

	const n = 500
	tallies, err := Simulate(context.Background(), teams, nil, nil, simOpts(n, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, n, tallies[1].PlayoffAppearances)
	assert.Equal(t, n, tallies[1].FirstSeed)
	assert.Equal(t, n, tallies[2].PlayoffAppearances)
	assert.Equal(t, 0, tallies[3].PlayoffAppearances)
	assert.Equal(t, n, tallies[4].LastPlace)
}

func TestSimulate_SingleDivisionWinnerIsFirstSeed(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {6, 4}, {5, 5}, {3, 7}})
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 2, Week: 11, IsDivisionGame: true},
		{HomeTeamID: 3, AwayTeamID: 4, Week: 11, IsDivisionGame: true},
	}

	tallies, err := Simulate(context.Background(), teams, remaining, nil, simOpts(1000, 2, 21))
	require.NoError(t, err)

	for id, tally := range tallies {
		assert.Equal(t, tally.FirstSeed, tally.DivisionWins, "team %d: in a single-division league the division winner is the #1 seed", id)
	}
}

func TestSimulate_IdenticalRecordsNoH2HIsCoinFlip(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{5, 5}, {5, 5}, {5, 5}, {5, 5}})

	const n = 4000
	tallies, err := Simulate(context.Background(), teams, nil, nil, simOpts(n, 2, 13))
	require.NoError(t, err)

	for id, tally := range tallies {
		pct := float64(tally.PlayoffAppearances) / n
		assert.InDelta(t, 0.5, pct, 0.05, "team %d playoff rate", id)
	}
}

func TestSimulate_CancelDiscardsByDefault(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {5, 5}, {5, 5}, {4, 6}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tallies, err := Simulate(ctx, teams, nil, nil, simOpts(1000, 2, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, tallies)
}

func TestSimulate_CancelReturnsPartialWhenAsked(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {5, 5}, {5, 5}, {4, 6}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := simOpts(1000, 2, 1)
	opts.PartialOnCancel = true
	tallies, err := Simulate(ctx, teams, nil, nil, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, tallies)
}

func TestSimulate_ProgressReachesHundred(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {5, 5}, {5, 5}, {4, 6}})

	var reports []float64
	opts := simOpts(250, 2, 1)
	opts.Progress = func(pct float64) { reports = append(reports, pct) }

	_, err := Simulate(context.Background(), teams, nil, nil, opts)
	require.NoError(t, err)
	require.NotEmpty(t, reports)
	assert.Equal(t, float64(0), reports[0])
	assert.Equal(t, float64(100), reports[len(reports)-1])
}

func TestValidateSnapshot_RejectsBadInput(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {5, 5}, {5, 5}, {4, 6}})

	cases := []struct {
		name      string
		teams     map[int]*models.Team
		remaining []models.Matchup
		spots     int
	}{
		{"no teams", nil, nil, 2},
		{"zero playoff spots", teams, nil, 0},
		{"more spots than teams", teams, nil, 5},
		{"unknown home team", teams, []models.Matchup{{HomeTeamID: 99, AwayTeamID: 1, Week: 11}}, 2},
		{"unknown away team", teams, []models.Matchup{{HomeTeamID: 1, AwayTeamID: 99, Week: 11}}, 2},
		{"self matchup", teams, []models.Matchup{{HomeTeamID: 1, AwayTeamID: 1, Week: 11}}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSnapshot(tc.teams, tc.remaining, tc.spots)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestValidateSnapshot_MoreDivisionsThanSpots(t *testing.T) {
	teams := map[int]*models.Team{
		1: newTeam(1, "Alpha", 1, 5, 5),
		2: newTeam(2, "Bravo", 2, 5, 5),
		3: newTeam(3, "Charlie", 3, 5, 5),
	}
	err := ValidateSnapshot(teams, nil, 2)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestSimulate_DoesNotMutateSnapshot(t *testing.T) {
	teams := fourTeamLeague([4][2]int{{6, 4}, {5, 5}, {5, 5}, {4, 6}})
	remaining := []models.Matchup{
		{HomeTeamID: 1, AwayTeamID: 2, Week: 11, IsDivisionGame: true},
	}
	before := models.CopyTeams(teams)

	_, err := Simulate(context.Background(), teams, remaining, nil, simOpts(200, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, before, teams)
}

func TestDeterminePlayoffs_DivisionWinnersGetSpots(t *testing.T) {
	// Bravo wins a weak division at 4-6 and still takes a playoff spot
	// ahead of a 6-4 wildcard-division runner-up.
	teams := map[int]*models.Team{
		1: newTeam(1, "Alpha", 1, 8, 2),
		2: newTeam(2, "Bravo", 2, 4, 6),
		3: newTeam(3, "Charlie", 1, 6, 4),
		4: newTeam(4, "Delta", 2, 3, 7),
	}
	rng := rand.New(rand.NewSource(1))

	playoffIDs, divWinners := DeterminePlayoffs(teams, nil, nil, 2, NoTeam, NoTeam, rng)

	assert.ElementsMatch(t, []int{1, 2}, divWinners)
	assert.Equal(t, []int{1, 2}, playoffIDs, "seeded by record, Alpha first")
}

func TestDeterminePlayoffs_WildcardFillsByRecord(t *testing.T) {
	teams := map[int]*models.Team{
		1: newTeam(1, "Alpha", 1, 8, 2),
		2: newTeam(2, "Bravo", 2, 4, 6),
		3: newTeam(3, "Charlie", 1, 6, 4),
		4: newTeam(4, "Delta", 2, 3, 7),
	}
	rng := rand.New(rand.NewSource(1))

	playoffIDs, _ := DeterminePlayoffs(teams, nil, nil, 3, NoTeam, NoTeam, rng)

	require.Len(t, playoffIDs, 3)
	assert.Equal(t, []int{1, 3, 2}, playoffIDs, "wildcard Charlie seeds between the division winners")
}
