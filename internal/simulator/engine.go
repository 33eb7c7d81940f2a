package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// Errors raised by the engine. ErrInvalidSnapshot is a caller bug (bad
// input), ErrInternal an engine bug; neither is ever suppressed.
var (
	ErrInvalidSnapshot = errors.New("invalid league snapshot")
	ErrInternal        = errors.New("simulation invariant violated")
)

// DefaultSimulations is the trial count used when Options leaves it zero.
const DefaultSimulations = 10000

// Options configures a Monte Carlo run.
type Options struct {
	Simulations  int
	PlayoffSpots int

	// Rand is the outcome source. Supplying a seeded source makes the run
	// reproducible; nil falls back to a time-seeded source.
	Rand *rand.Rand

	// Progress, when set, receives percent-complete [0,100]. Called every
	// 100 trials and once with 100 at the end.
	Progress func(pct float64)

	// PartialOnCancel returns the tallies accumulated so far on context
	// cancellation instead of discarding them. The error is returned either
	// way.
	PartialOnCancel bool
}

// Simulate plays out the remaining schedule Options.Simulations times with
// 50/50 outcomes and tallies division titles, playoff berths, #1 seeds and
// last-place finishes per team. The input snapshot is never mutated; each
// trial works on deep copies.
func Simulate(ctx context.Context, teams map[int]*models.Team, remaining []models.Matchup, h2h models.H2HMap, opts Options) (map[int]*models.TeamTally, error) {
	if err := ValidateSnapshot(teams, remaining, opts.PlayoffSpots); err != nil {
		return nil, err
	}

	n := opts.Simulations
	if n <= 0 {
		n = DefaultSimulations
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	tallies := make(map[int]*models.TeamTally, len(teams))
	for id := range teams {
		tallies[id] = &models.TeamTally{TeamID: id}
	}

	for trial := 0; trial < n; trial++ {
		if err := ctx.Err(); err != nil {
			if opts.PartialOnCancel {
				return tallies, err
			}
			return nil, err
		}
		if opts.Progress != nil && trial%100 == 0 {
			opts.Progress(float64(trial) / float64(n) * 100)
		}

		simTeams := models.CopyTeams(teams)
		simH2H := make(models.H2HMap)
		for _, m := range remaining {
			if rng.Intn(2) == 0 {
				applyWin(simTeams, simH2H, m, m.HomeTeamID)
			} else {
				applyWin(simTeams, simH2H, m, m.AwayTeamID)
			}
		}

		playoffIDs, divisionWinners := DeterminePlayoffs(simTeams, h2h, simH2H, opts.PlayoffSpots, NoTeam, NoTeam, rng)
		if len(playoffIDs) != opts.PlayoffSpots {
			return nil, fmt.Errorf("%w: seeded %d of %d playoff teams", ErrInternal, len(playoffIDs), opts.PlayoffSpots)
		}

		for _, id := range divisionWinners {
			tallies[id].DivisionWins++
		}
		for _, id := range playoffIDs {
			tallies[id].PlayoffAppearances++
		}
		tallies[playoffIDs[0]].FirstSeed++

		tallies[lastPlaceTeam(simTeams, h2h, simH2H, rng)].LastPlace++
	}

	if opts.Progress != nil {
		opts.Progress(100)
	}
	return tallies, nil
}

// ApplyOutcome returns deep-copied standings with one specific set of winners
// applied, plus the H2H records those outcomes produced. winners[i] must be a
// side of matchups[i]. Used by the brute-force scenario generator.
func ApplyOutcome(teams map[int]*models.Team, matchups []models.Matchup, winners []int) (map[int]*models.Team, models.H2HMap) {
	simTeams := models.CopyTeams(teams)
	simH2H := make(models.H2HMap)
	for i, m := range matchups {
		applyWin(simTeams, simH2H, m, winners[i])
	}
	return simTeams, simH2H
}

func applyWin(teams map[int]*models.Team, simH2H models.H2HMap, m models.Matchup, winnerID int) {
	loserID := m.AwayTeamID
	if winnerID == m.AwayTeamID {
		loserID = m.HomeTeamID
	}

	teams[winnerID].Wins++
	teams[loserID].Losses++
	if m.IsDivisionGame {
		teams[winnerID].DivisionWins++
		teams[loserID].DivisionLosses++
	}
	simH2H.AddWin(winnerID, loserID)
}

// lastPlaceTeam picks the single worst team, resolving ties without bias and
// taking the bottom of the resolved order.
func lastPlaceTeam(teams map[int]*models.Team, h2h, simH2H models.H2HMap, rng *rand.Rand) int {
	worst := math.Inf(1)
	for _, t := range teams {
		if p := t.WinPct(); p < worst {
			worst = p
		}
	}
	var tied []*models.Team
	for _, id := range sortedTeamIDs(teams) {
		if teams[id].WinPct() == worst {
			tied = append(tied, teams[id])
		}
	}
	if len(tied) == 1 {
		return tied[0].ID
	}
	resolved := ResolveTiebreaker(tied, h2h, simH2H, NoTeam, NoTeam, rng)
	return resolved[len(resolved)-1].ID
}

// ValidateSnapshot rejects snapshots the engine cannot safely simulate:
// an empty league, a playoff field that cannot be seeded, or a matchup
// referencing missing or duplicate team ids.
func ValidateSnapshot(teams map[int]*models.Team, remaining []models.Matchup, playoffSpots int) error {
	if len(teams) == 0 {
		return fmt.Errorf("%w: no teams", ErrInvalidSnapshot)
	}
	if playoffSpots < 1 || playoffSpots > len(teams) {
		return fmt.Errorf("%w: playoff spots %d with %d teams", ErrInvalidSnapshot, playoffSpots, len(teams))
	}

	divisions := make(map[int]bool)
	for _, t := range teams {
		divisions[t.DivisionID] = true
	}
	if len(divisions) > playoffSpots {
		return fmt.Errorf("%w: %d divisions exceed %d playoff spots", ErrInvalidSnapshot, len(divisions), playoffSpots)
	}

	for _, m := range remaining {
		if m.HomeTeamID == m.AwayTeamID {
			return fmt.Errorf("%w: matchup week %d pairs team %d with itself", ErrInvalidSnapshot, m.Week, m.HomeTeamID)
		}
		if _, ok := teams[m.HomeTeamID]; !ok {
			return fmt.Errorf("%w: matchup week %d references unknown team %d", ErrInvalidSnapshot, m.Week, m.HomeTeamID)
		}
		if _, ok := teams[m.AwayTeamID]; !ok {
			return fmt.Errorf("%w: matchup week %d references unknown team %d", ErrInvalidSnapshot, m.Week, m.AwayTeamID)
		}
	}
	return nil
}
