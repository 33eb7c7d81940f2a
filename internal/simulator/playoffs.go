package simulator

import (
	"math/rand"
	"sort"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// DeterminePlayoffs seeds the playoff field for a (possibly simulated)
// season state. Each division winner is guaranteed a spot; the rest of the
// field fills with wildcards by overall record. The returned playoff slice is
// in seeding order, best seed first, with a tie for the #1 seed resolved
// through the tiebreaker chain. All ties route through ResolveTiebreaker with
// the given bias ids.
func DeterminePlayoffs(teams map[int]*models.Team, h2h, simH2H models.H2HMap, playoffSpots, disfavorID, favorID int, rng *rand.Rand) (playoffIDs, divisionWinnerIDs []int) {
	divisions := make(map[int][]*models.Team)
	for _, id := range sortedTeamIDs(teams) {
		t := teams[id]
		divisions[t.DivisionID] = append(divisions[t.DivisionID], t)
	}

	divIDs := make([]int, 0, len(divisions))
	for id := range divisions {
		divIDs = append(divIDs, id)
	}
	sort.Ints(divIDs)

	winnerSet := make(map[int]bool)
	for _, divID := range divIDs {
		divTeams := sortTeamsByWinPct(divisions[divID])
		tied := teamsAtPct(divTeams, divTeams[0].WinPct())
		if len(tied) > 1 {
			tied = ResolveTiebreaker(tied, h2h, simH2H, disfavorID, favorID, rng)
		}
		divisionWinnerIDs = append(divisionWinnerIDs, tied[0].ID)
		winnerSet[tied[0].ID] = true
	}

	// Wildcards: everyone else by overall record, resolving each tied run
	// only as far as needed to fill the field.
	var rest []*models.Team
	for _, id := range sortedTeamIDs(teams) {
		if !winnerSet[id] {
			rest = append(rest, teams[id])
		}
	}
	restSorted := sortTeamsByWinPct(rest)

	var wildcardIDs []int
	spotsNeeded := playoffSpots - len(divisionWinnerIDs)
	for i := 0; len(wildcardIDs) < spotsNeeded && i < len(restSorted); {
		tied := teamsAtPct(restSorted[i:], restSorted[i].WinPct())
		if len(tied) > 1 {
			tied = ResolveTiebreaker(tied, h2h, simH2H, disfavorID, favorID, rng)
		}
		for _, t := range tied {
			if len(wildcardIDs) >= spotsNeeded {
				break
			}
			wildcardIDs = append(wildcardIDs, t.ID)
		}
		i += len(tied)
	}

	playoffIDs = append(append([]int(nil), divisionWinnerIDs...), wildcardIDs...)

	// Seeding is by overall record regardless of how the spot was earned.
	sort.SliceStable(playoffIDs, func(i, j int) bool {
		return teams[playoffIDs[i]].WinPct() > teams[playoffIDs[j]].WinPct()
	})

	// Only the #1 seed matters downstream, so a tie at the top gets the full
	// tiebreaker treatment; deeper ties keep their sort order.
	if len(playoffIDs) >= 2 {
		bestPct := teams[playoffIDs[0]].WinPct()
		var tiedTop []*models.Team
		for _, id := range playoffIDs {
			if teams[id].WinPct() == bestPct {
				tiedTop = append(tiedTop, teams[id])
			}
		}
		if len(tiedTop) > 1 {
			tiedTop = ResolveTiebreaker(tiedTop, h2h, simH2H, disfavorID, favorID, rng)
			reordered := make([]int, 0, len(playoffIDs))
			for _, t := range tiedTop {
				reordered = append(reordered, t.ID)
			}
			for _, id := range playoffIDs {
				if teams[id].WinPct() != bestPct {
					reordered = append(reordered, id)
				}
			}
			playoffIDs = reordered
		}
	}

	return playoffIDs, divisionWinnerIDs
}

// sortTeamsByWinPct returns a copy sorted best first. Ties keep ascending id
// order so the result is deterministic before tiebreakers run.
func sortTeamsByWinPct(teams []*models.Team) []*models.Team {
	out := append([]*models.Team(nil), teams...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].WinPct() > out[j].WinPct() })
	return out
}

func teamsAtPct(sorted []*models.Team, pct float64) []*models.Team {
	var out []*models.Team
	for _, t := range sorted {
		if t.WinPct() == pct {
			out = append(out, t)
		}
	}
	return out
}

func sortedTeamIDs(teams map[int]*models.Team) []int {
	ids := make([]int, 0, len(teams))
	for id := range teams {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
