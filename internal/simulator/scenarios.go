package simulator

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// BruteForceMaxGames caps exhaustive outcome enumeration; past this the
// analytical path takes over.
const BruteForceMaxGames = 10

// coinFlipRuns repeats each seeding per enumerated outcome so OTHER teams'
// random coin flips cannot produce a false clinch or elimination.
const coinFlipRuns = 25

// GenerateScenarios produces week-ahead clinch and elimination narratives
// analytically from pre-computed magic numbers. Used when the remaining
// schedule is too large to enumerate.
func GenerateScenarios(teams map[int]*models.Team, remaining []models.Matchup, magic map[int]*models.MagicNumbers, currentWeek, playoffSpots int) (clinch, elimination []string) {
	opponents := weekOpponents(remaining, currentWeek)

	gamesLeft := make(map[int]int)
	for _, m := range remaining {
		gamesLeft[m.HomeTeamID]++
		gamesLeft[m.AwayTeamID]++
	}

	for _, id := range sortedTeamIDs(teams) {
		team := teams[id]
		mn := magic[id]
		opponent := opponentOf(teams, opponents, id)

		if opponent != nil {
			if mn.MagicDivision != nil && *mn.MagicDivision == 1 {
				clinch = append(clinch, fmt.Sprintf("%s clinches division with a WIN vs %s", team.Name, opponent.Name))
			}
			if mn.MagicPlayoffs != nil && *mn.MagicPlayoffs == 1 {
				clinch = append(clinch, fmt.Sprintf("%s clinches playoff spot with a WIN vs %s", team.Name, opponent.Name))
			}
			if mn.MagicFirstSeed != nil && *mn.MagicFirstSeed == 1 {
				clinch = append(clinch, fmt.Sprintf("%s clinches #1 seed with a WIN vs %s", team.Name, opponent.Name))
			}
		}

		// Elimination: after a loss this week, could the team still reach
		// the playoff cutline against everyone else's guaranteed floor?
		teamMax := team.EffectiveWins() + float64(gamesLeft[id])
		if opponent == nil {
			continue
		}
		teamMaxIfLoses := teamMax - 1

		var scenarioMins, currentWins []float64
		for _, oid := range sortedTeamIDs(teams) {
			if oid == id {
				continue
			}
			other := teams[oid]
			min := other.EffectiveWins()
			if oid == opponent.ID {
				min++ // the opponent just beat us
			}
			scenarioMins = append(scenarioMins, min)
			currentWins = append(currentWins, other.EffectiveWins())
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scenarioMins)))
		sort.Sort(sort.Reverse(sort.Float64Slice(currentWins)))

		cutlineCurrent := 0.0
		if len(currentWins) >= playoffSpots {
			cutlineCurrent = currentWins[playoffSpots-1]
		}
		notAlreadyEliminated := teamMax >= cutlineCurrent

		if len(scenarioMins) >= playoffSpots && scenarioMins[playoffSpots-1] > teamMaxIfLoses && notAlreadyEliminated {
			elimination = append(elimination, fmt.Sprintf("%s eliminated from playoffs if: LOSS to %s", team.Name, opponent.Name))
		}
	}

	return dedupe(clinch), dedupe(elimination)
}

// BruteForceScenarios enumerates every outcome of the current week's games
// and verifies clinches and eliminations directly against the full seeding
// logic. A team clinches when, disfavored in every coin flip, it still makes
// the field in all outcomes where it wins; it is eliminated when, favored in
// every coin flip, it still misses the field in all outcomes where it loses.
func BruteForceScenarios(teams map[int]*models.Team, remaining []models.Matchup, h2h models.H2HMap, currentWeek, playoffSpots int, rng *rand.Rand, progress func(pct float64)) (clinch, elimination []string) {
	var weekMatchups []models.Matchup
	for _, m := range remaining {
		if m.Week == currentWeek {
			weekMatchups = append(weekMatchups, m)
		}
	}
	if len(weekMatchups) == 0 {
		return nil, nil
	}

	opponents := weekOpponents(remaining, currentWeek)
	teamIDs := sortedTeamIDs(teams)

	// Index of each team's game this week, -1 when idle.
	gameIdx := make(map[int]int, len(teamIDs))
	for _, id := range teamIDs {
		gameIdx[id] = -1
	}
	for i, m := range weekMatchups {
		gameIdx[m.HomeTeamID] = i
		gameIdx[m.AwayTeamID] = i
	}

	// Universally-quantified flags, falsified as outcomes disprove them.
	clinchAll := allTrue(teamIDs)
	elimAll := allTrue(teamIDs)
	clinchWhenWins := allTrue(teamIDs)
	elimWhenLoses := allTrue(teamIDs)
	divClinchAll := allTrue(teamIDs)
	divElimAll := allTrue(teamIDs)
	divClinchWhenWins := allTrue(teamIDs)
	divElimWhenLoses := allTrue(teamIDs)

	totalOutcomes := 1 << len(weekMatchups)
	winners := make([]int, len(weekMatchups))

	for outcome := 0; outcome < totalOutcomes; outcome++ {
		if progress != nil && outcome%10 == 0 {
			progress(float64(outcome) / float64(totalOutcomes) * 100)
		}

		for i, m := range weekMatchups {
			if (outcome>>i)&1 == 0 {
				winners[i] = m.HomeTeamID
			} else {
				winners[i] = m.AwayTeamID
			}
		}
		simTeams, simH2H := ApplyOutcome(teams, weekMatchups, winners)

		for _, tid := range teamIDs {
			teamWon := gameIdx[tid] >= 0 && winners[gameIdx[tid]] == tid
			teamLost := gameIdx[tid] >= 0 && winners[gameIdx[tid]] != tid

			// Worst case for this team: it loses every coin flip.
			madeAlways, wonDivAlways := true, true
			for run := 0; run < coinFlipRuns && (madeAlways || wonDivAlways); run++ {
				playoffIDs, divWinners := DeterminePlayoffs(simTeams, h2h, simH2H, playoffSpots, tid, NoTeam, rng)
				if !containsInt(playoffIDs, tid) {
					madeAlways = false
				}
				if !containsInt(divWinners, tid) {
					wonDivAlways = false
				}
			}
			if !madeAlways {
				clinchAll[tid] = false
				if teamWon {
					clinchWhenWins[tid] = false
				}
			}
			if !wonDivAlways {
				divClinchAll[tid] = false
				if teamWon {
					divClinchWhenWins[tid] = false
				}
			}

			// Best case: it wins every coin flip.
			missedAlways, missedDivAlways := true, true
			for run := 0; run < coinFlipRuns && (missedAlways || missedDivAlways); run++ {
				playoffIDs, divWinners := DeterminePlayoffs(simTeams, h2h, simH2H, playoffSpots, NoTeam, tid, rng)
				if containsInt(playoffIDs, tid) {
					missedAlways = false
				}
				if containsInt(divWinners, tid) {
					missedDivAlways = false
				}
			}
			if !missedAlways {
				elimAll[tid] = false
				if teamLost {
					elimWhenLoses[tid] = false
				}
			}
			if !missedDivAlways {
				divElimAll[tid] = false
				if teamLost {
					divElimWhenLoses[tid] = false
				}
			}
		}
	}

	for _, tid := range teamIDs {
		team := teams[tid]
		opponent := opponentOf(teams, opponents, tid)
		if opponent == nil {
			continue
		}

		// Already-clinched and already-eliminated teams generate no
		// narrative; only outcomes contingent on this week's game do.
		if !clinchAll[tid] && clinchWhenWins[tid] {
			clinch = append(clinch, fmt.Sprintf("%s clinches playoff spot with a WIN vs %s", team.Name, opponent.Name))
		}
		if !divClinchAll[tid] && divClinchWhenWins[tid] {
			clinch = append(clinch, fmt.Sprintf("%s clinches division with a WIN vs %s", team.Name, opponent.Name))
		}
		if !elimAll[tid] && elimWhenLoses[tid] {
			elimination = append(elimination, fmt.Sprintf("%s eliminated from playoffs if: LOSS to %s", team.Name, opponent.Name))
		}
		if !divElimAll[tid] && divElimWhenLoses[tid] {
			elimination = append(elimination, fmt.Sprintf("%s eliminated from division race if: LOSS to %s", team.Name, opponent.Name))
		}
	}

	if progress != nil {
		progress(100)
	}
	return dedupe(clinch), dedupe(elimination)
}

func weekOpponents(remaining []models.Matchup, week int) map[int]int {
	opponents := make(map[int]int)
	for _, m := range remaining {
		if m.Week == week {
			opponents[m.HomeTeamID] = m.AwayTeamID
			opponents[m.AwayTeamID] = m.HomeTeamID
		}
	}
	return opponents
}

func opponentOf(teams map[int]*models.Team, opponents map[int]int, id int) *models.Team {
	oid, ok := opponents[id]
	if !ok {
		return nil
	}
	return teams[oid]
}

func allTrue(ids []int) map[int]bool {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
