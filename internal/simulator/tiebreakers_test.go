package simulator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

func newTeam(id int, name string, division, wins, losses int) *models.Team {
	return &models.Team{ID: id, Name: name, DivisionID: division, Wins: wins, Losses: losses}
}

func leagueOf(teams ...*models.Team) map[int]*models.Team {
	out := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		out[t.ID] = t
	}
	return out
}

func orderedIDs(teams []*models.Team) []int {
	ids := make([]int, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestResolveTiebreaker_H2HWinnerFirst(t *testing.T) {
	a := newTeam(1, "Alpha", 1, 6, 4)
	b := newTeam(2, "Bravo", 1, 6, 4)
	h2h := models.H2HMap{}
	h2h.AddWin(1, 2)
	h2h.AddWin(1, 2)

	rng := rand.New(rand.NewSource(1))
	resolved := ResolveTiebreaker([]*models.Team{b, a}, h2h, nil, NoTeam, NoTeam, rng)

	assert.Equal(t, []int{1, 2}, orderedIDs(resolved))
}

func TestResolveTiebreaker_SimH2HCountsTowardRecord(t *testing.T) {
	a := newTeam(1, "Alpha", 1, 6, 4)
	b := newTeam(2, "Bravo", 1, 6, 4)
	// Split historically; the simulated game breaks it for Bravo.
	h2h := models.H2HMap{}
	h2h.AddWin(1, 2)
	h2h.AddWin(2, 1)
	sim := models.H2HMap{}
	sim.AddWin(2, 1)

	rng := rand.New(rand.NewSource(1))
	resolved := ResolveTiebreaker([]*models.Team{a, b}, h2h, sim, NoTeam, NoTeam, rng)

	assert.Equal(t, []int{2, 1}, orderedIDs(resolved))
}

func TestResolveTiebreaker_UnequalGamesSkipsToDivisionRecord(t *testing.T) {
	// A beat B twice, but A-C and B-C never played: the equal-games gate
	// fails and division record decides instead.
	a := newTeam(1, "Alpha", 1, 6, 4)
	a.DivisionWins, a.DivisionLosses = 2, 2
	b := newTeam(2, "Bravo", 1, 6, 4)
	b.DivisionWins, b.DivisionLosses = 3, 1
	c := newTeam(3, "Charlie", 1, 6, 4)
	c.DivisionWins, c.DivisionLosses = 1, 3
	h2h := models.H2HMap{}
	h2h.AddWin(1, 2)
	h2h.AddWin(1, 2)

	rng := rand.New(rand.NewSource(1))
	resolved := ResolveTiebreaker([]*models.Team{a, b, c}, h2h, nil, NoTeam, NoTeam, rng)

	assert.Equal(t, []int{2, 1, 3}, orderedIDs(resolved))
}

func TestResolveTiebreaker_SweepLoserRanksLast(t *testing.T) {
	// Gate fails (unequal pair totals), but Charlie lost to both others, so
	// the pairwise rule drops it to the bottom before division record runs.
	a := newTeam(1, "Alpha", 1, 6, 4)
	a.DivisionWins = 2
	b := newTeam(2, "Bravo", 1, 6, 4)
	b.DivisionWins, b.DivisionLosses = 1, 1
	c := newTeam(3, "Charlie", 1, 6, 4)
	c.DivisionWins = 3
	h2h := models.H2HMap{}
	h2h.AddWin(1, 3)
	h2h.AddWin(2, 3)
	h2h.AddWin(2, 3)

	rng := rand.New(rand.NewSource(1))
	resolved := ResolveTiebreaker([]*models.Team{a, b, c}, h2h, nil, NoTeam, NoTeam, rng)

	require.Len(t, resolved, 3)
	assert.Equal(t, 3, resolved[2].ID)
	// Alpha vs Bravo fall through to division record.
	assert.Equal(t, []int{1, 2}, orderedIDs(resolved[:2]))
}

func TestResolveTiebreaker_SubgroupRecursion(t *testing.T) {
	// Alpha and Bravo both beat Charlie and Delta; within the top pair the
	// chain restarts and Alpha's H2H edge over Bravo decides.
	a := newTeam(1, "Alpha", 1, 6, 4)
	b := newTeam(2, "Bravo", 1, 6, 4)
	c := newTeam(3, "Charlie", 1, 6, 4)
	d := newTeam(4, "Delta", 1, 6, 4)
	h2h := models.H2HMap{}
	h2h.AddWin(1, 3)
	h2h.AddWin(1, 4)
	h2h.AddWin(2, 3)
	h2h.AddWin(2, 4)
	h2h.AddWin(1, 2)
	h2h.AddWin(3, 4)

	rng := rand.New(rand.NewSource(1))
	resolved := ResolveTiebreaker([]*models.Team{d, c, b, a}, h2h, nil, NoTeam, NoTeam, rng)

	assert.Equal(t, []int{1, 2, 3, 4}, orderedIDs(resolved))
}

func TestResolveTiebreaker_BiasControlsCoinFlip(t *testing.T) {
	// No H2H, identical division records: pure coin flip territory.
	teams := []*models.Team{
		newTeam(1, "Alpha", 1, 5, 5),
		newTeam(2, "Bravo", 1, 5, 5),
		newTeam(3, "Charlie", 1, 5, 5),
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		resolved := ResolveTiebreaker(teams, nil, nil, 2, NoTeam, rng)
		assert.Equal(t, 2, resolved[len(resolved)-1].ID, "disfavored team must rank last")

		resolved = ResolveTiebreaker(teams, nil, nil, NoTeam, 2, rng)
		assert.Equal(t, 2, resolved[0].ID, "favored team must rank first")
	}
}

func TestResolveTiebreaker_DeterministicInputIsIdempotent(t *testing.T) {
	a := newTeam(1, "Alpha", 1, 6, 4)
	b := newTeam(2, "Bravo", 1, 6, 4)
	c := newTeam(3, "Charlie", 1, 6, 4)
	h2h := models.H2HMap{}
	h2h.AddWin(1, 2)
	h2h.AddWin(1, 3)
	h2h.AddWin(2, 3)

	rng := rand.New(rand.NewSource(1))
	first := ResolveTiebreaker([]*models.Team{c, a, b}, h2h, nil, NoTeam, NoTeam, rng)
	second := ResolveTiebreaker(first, h2h, nil, NoTeam, NoTeam, rng)

	assert.Equal(t, orderedIDs(first), orderedIDs(second))
}

func TestResolveTiebreaker_SingleTeamPassthrough(t *testing.T) {
	a := newTeam(1, "Alpha", 1, 6, 4)
	rng := rand.New(rand.NewSource(1))
	resolved := ResolveTiebreaker([]*models.Team{a}, nil, nil, NoTeam, NoTeam, rng)
	require.Len(t, resolved, 1)
	assert.Equal(t, 1, resolved[0].ID)
}

func TestResolveTiebreaker_NoGamesPlayedDefaultsToHalf(t *testing.T) {
	// One pair played, the other pairs did not: gate fails, no sweep, equal
	// division records, so the group lands on the coin flip. This must not
	// panic or drop teams.
	a := newTeam(1, "Alpha", 1, 5, 5)
	b := newTeam(2, "Bravo", 1, 5, 5)
	c := newTeam(3, "Charlie", 1, 5, 5)
	h2h := models.H2HMap{}
	h2h.AddWin(1, 2)
	h2h.AddWin(2, 1)

	rng := rand.New(rand.NewSource(7))
	resolved := ResolveTiebreaker([]*models.Team{a, b, c}, h2h, nil, NoTeam, NoTeam, rng)
	assert.ElementsMatch(t, []int{1, 2, 3}, orderedIDs(resolved))
}
