// Package simulator implements the analytical core: tiebreaker resolution,
// playoff determination, Monte Carlo season completion, magic numbers and
// clinch/elimination scenario generation.
//
// ESPN-style tiebreaker order:
//  1. Head-to-head record among tied teams (only if all pairs played equal games)
//  1b. Pairwise H2H elimination (teams that lost to ALL others rank last)
//  2. Division record (intra-division win%)
//  3. Coin flip (biased for clinch/elimination proofs)
package simulator

import (
	"math"
	"math/rand"
	"sort"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// NoTeam marks the absence of a favor/disfavor bias id.
const NoTeam = -1

// coinFlipScale keeps random tiebreak keys strictly inside (-1, 1) so a
// biased team can never be overtaken by an RNG collision.
const coinFlipScale = 0.0001

// ResolveTiebreaker totally orders a group of teams tied on overall win
// percentage, best first. disfavorID always loses coin flips (worst case for
// clinch proofs) and favorID always wins them (best case for elimination
// proofs); pass NoTeam for unbiased resolution.
func ResolveTiebreaker(tied []*models.Team, h2h, simH2H models.H2HMap, disfavorID, favorID int, rng *rand.Rand) []*models.Team {
	if len(tied) <= 1 {
		return tied
	}
	r := &resolver{
		combined:   models.CombineH2H(h2h, simH2H),
		disfavorID: disfavorID,
		favorID:    favorID,
		rng:        rng,
	}
	return r.resolve(tied)
}

type resolver struct {
	combined   models.H2HMap
	disfavorID int
	favorID    int
	rng        *rand.Rand
}

// resolve seats one team at a time, restarting the whole chain from H2H for
// the remaining group after every seat.
func (r *resolver) resolve(tied []*models.Team) []*models.Team {
	remaining := append([]*models.Team(nil), tied...)
	seated := make([]*models.Team, 0, len(tied))

	for len(remaining) > 1 {
		pcts, usable := r.groupH2HPcts(remaining)
		seatedOne := false

		if usable {
			best := math.Inf(-1)
			for _, t := range remaining {
				if pcts[t.ID] > best {
					best = pcts[t.ID]
				}
			}
			var bestTeams []*models.Team
			for _, t := range remaining {
				if pcts[t.ID] == best {
					bestTeams = append(bestTeams, t)
				}
			}

			switch {
			case len(bestTeams) == 1:
				seated = append(seated, bestTeams[0])
				remaining = removeTeam(remaining, bestTeams[0].ID)
				seatedOne = true
			case len(bestTeams) < len(remaining):
				// H2H separated some but not all: resolve both halves.
				rest := subtractTeams(remaining, bestTeams)
				seated = append(seated, r.resolve(bestTeams)...)
				seated = append(seated, r.resolve(rest)...)
				return seated
			}
		}

		if !seatedOne {
			// Pairwise sweep-loser rule: even when the equal-games gate
			// failed, a team that lost to every other team in the group
			// goes to the bottom.
			var lostToAll []*models.Team
			for _, t := range remaining {
				swept := true
				for _, other := range remaining {
					if t.ID == other.ID {
						continue
					}
					wins, losses, _ := r.combined.Record(t.ID, other.ID)
					if wins >= losses {
						swept = false
						break
					}
				}
				if swept {
					lostToAll = append(lostToAll, t)
				}
			}
			if len(lostToAll) > 0 && len(lostToAll) < len(remaining) {
				winners := subtractTeams(remaining, lostToAll)
				seated = append(seated, r.resolve(winners)...)
				seated = append(seated, r.resolve(lostToAll)...)
				return seated
			}

			// Division record.
			bestDiv := math.Inf(-1)
			for _, t := range remaining {
				if p := t.DivisionWinPct(); p > bestDiv {
					bestDiv = p
				}
			}
			var bestDivTeams []*models.Team
			for _, t := range remaining {
				if t.DivisionWinPct() == bestDiv {
					bestDivTeams = append(bestDivTeams, t)
				}
			}

			switch {
			case len(bestDivTeams) == 1:
				seated = append(seated, bestDivTeams[0])
				remaining = removeTeam(remaining, bestDivTeams[0].ID)
			case len(bestDivTeams) < len(remaining):
				rest := subtractTeams(remaining, bestDivTeams)
				seated = append(seated, r.resolve(bestDivTeams)...)
				seated = append(seated, r.resolve(rest)...)
				return seated
			default:
				// Coin flip: everything upstream is exhausted.
				keys := make(map[int]float64, len(remaining))
				for _, t := range remaining {
					keys[t.ID] = r.coinFlipKey(t.ID)
				}
				sort.SliceStable(remaining, func(i, j int) bool {
					return keys[remaining[i].ID] < keys[remaining[j].ID]
				})
				seated = append(seated, remaining...)
				return seated
			}
		}
	}

	seated = append(seated, remaining...)
	return seated
}

// groupH2HPcts computes each team's head-to-head percentage against the rest
// of the group. It reports usable=false when the pair game totals differ,
// which invalidates H2H for this round. A team with no games yields 0.5.
func (r *resolver) groupH2HPcts(group []*models.Team) (map[int]float64, bool) {
	var firstTotal int
	haveTotal := false
	for i, t1 := range group {
		for _, t2 := range group[i+1:] {
			rec := r.combined[models.H2HKeyFor(t1.ID, t2.ID)]
			total := rec.Games()
			if !haveTotal {
				firstTotal = total
				haveTotal = true
			} else if total != firstTotal {
				return nil, false
			}
		}
	}

	pcts := make(map[int]float64, len(group))
	for _, t := range group {
		var wins, losses, ties int
		for _, other := range group {
			if t.ID == other.ID {
				continue
			}
			w, l, ti := r.combined.Record(t.ID, other.ID)
			wins += w
			losses += l
			ties += ti
		}
		total := wins + losses + ties
		if total > 0 {
			pcts[t.ID] = (float64(wins) + 0.5*float64(ties)) / float64(total)
		} else {
			pcts[t.ID] = 0.5
		}
	}
	return pcts, true
}

func (r *resolver) coinFlipKey(teamID int) float64 {
	switch teamID {
	case r.disfavorID:
		return 1.0 // sorts last
	case r.favorID:
		return -1.0 // sorts first
	default:
		return r.rng.Float64() * coinFlipScale
	}
}

func removeTeam(teams []*models.Team, id int) []*models.Team {
	out := teams[:0]
	for _, t := range teams {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func subtractTeams(teams, exclude []*models.Team) []*models.Team {
	skip := make(map[int]bool, len(exclude))
	for _, t := range exclude {
		skip[t.ID] = true
	}
	var out []*models.Team
	for _, t := range teams {
		if !skip[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
