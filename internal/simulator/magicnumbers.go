package simulator

import (
	"math"
	"sort"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// tiebreakEpsilon nudges gap values above the ceiling boundary when the team
// does not own the tiebreaker, so matching a rival's ceiling is not enough.
const tiebreakEpsilon = 0.001

type tiebreakVerdict int

const (
	verdictWin tiebreakVerdict = iota
	verdictLose
	verdictUncertain
)

// CalculateMagicNumbers computes the four per-team magic numbers from the
// snapshot: wins needed to clinch the division, a playoff spot and the #1
// seed, and losses tolerated before last place locks in. Nil means the
// target is already decided or out of reach within the remaining schedule.
// Pure arithmetic, no randomness.
func CalculateMagicNumbers(teams map[int]*models.Team, remaining []models.Matchup, h2h models.H2HMap, playoffSpots int) map[int]*models.MagicNumbers {
	c := &magicCalc{
		teams:        teams,
		h2h:          h2h,
		gamesLeft:    make(map[int]int),
		gamesBetween: make(map[[2]int]int),
	}
	for _, m := range remaining {
		c.gamesLeft[m.HomeTeamID]++
		c.gamesLeft[m.AwayTeamID]++
		c.gamesBetween[pairKey(m.HomeTeamID, m.AwayTeamID)]++
	}

	divisions := make(map[int][]*models.Team)
	for _, id := range sortedTeamIDs(teams) {
		t := teams[id]
		divisions[t.DivisionID] = append(divisions[t.DivisionID], t)
	}

	out := make(map[int]*models.MagicNumbers, len(teams))
	for _, id := range sortedTeamIDs(teams) {
		team := teams[id]
		var others []*models.Team
		for _, oid := range sortedTeamIDs(teams) {
			if oid != id {
				others = append(others, teams[oid])
			}
		}
		var divRivals []*models.Team
		for _, t := range divisions[team.DivisionID] {
			if t.ID != id {
				divRivals = append(divRivals, t)
			}
		}

		out[id] = &models.MagicNumbers{
			TeamID:         id,
			MagicDivision:  c.magicAgainst(team, divRivals),
			MagicPlayoffs:  c.magicPlayoffs(team, others, playoffSpots),
			MagicFirstSeed: c.magicAgainst(team, others),
			MagicLast:      c.magicLast(team, others),
		}
	}
	return out
}

type magicCalc struct {
	teams        map[int]*models.Team
	h2h          models.H2HMap
	gamesLeft    map[int]int
	gamesBetween map[[2]int]int
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// ownsTiebreaker predicts how a two-team tie between team1 and team2 would
// resolve: H2H first, division record next, then a coin flip (uncertain).
// It is conservative about unplayed H2H games; the trailing team could still
// catch up, so the lead only counts when it survives a rival sweep.
func (c *magicCalc) ownsTiebreaker(team1ID, team2ID int) tiebreakVerdict {
	t1Wins, t2Wins, _ := c.h2h.Record(team1ID, team2ID)
	remainingH2H := c.gamesBetween[pairKey(team1ID, team2ID)]

	decided := verdictUncertain
	tied := true
	if remainingH2H > 0 {
		switch {
		case t1Wins > t2Wins+remainingH2H:
			decided, tied = verdictWin, false
		case t2Wins > t1Wins+remainingH2H:
			decided, tied = verdictLose, false
		}
	} else {
		switch {
		case t1Wins > t2Wins:
			decided, tied = verdictWin, false
		case t2Wins > t1Wins:
			decided, tied = verdictLose, false
		}
	}
	if !tied {
		return decided
	}

	p1 := c.teams[team1ID].DivisionWinPct()
	p2 := c.teams[team2ID].DivisionWinPct()
	switch {
	case p1 > p2:
		return verdictWin
	case p2 > p1:
		return verdictLose
	}
	return verdictUncertain
}

// winsNeeded converts a gap to the rival's ceiling into a win count. Owning
// the tiebreaker means matching the ceiling suffices; otherwise the team
// must clear it outright.
func winsNeeded(gap float64, ownsTB bool) int {
	if ownsTB {
		if gap <= 0 {
			return 0
		}
		return int(math.Ceil(gap))
	}
	if gap < 0 {
		return 0
	}
	return int(math.Ceil(gap + tiebreakEpsilon))
}

// rivalCeilings returns the rival's maximum effective wins two ways:
// conservative (rival wins out) and with-subtraction (rival loses every
// remaining game against this team).
func (c *magicCalc) rivalCeilings(teamID int, rival *models.Team) (full, sub float64) {
	full = rival.EffectiveWins() + float64(c.gamesLeft[rival.ID])
	sub = full - float64(c.gamesBetween[pairKey(rival.ID, teamID)])
	return full, sub
}

// magicAgainst computes wins needed to finish ahead of every rival in the
// given set; it serves both the division title and the #1 seed.
func (c *magicCalc) magicAgainst(team *models.Team, rivals []*models.Team) *int {
	if len(rivals) == 0 {
		return nil
	}
	teamEff := team.EffectiveWins()
	teamLeft := c.gamesLeft[team.ID]

	conservative, withSub := 0, 0
	for _, rival := range rivals {
		full, sub := c.rivalCeilings(team.ID, rival)
		owns := c.ownsTiebreaker(team.ID, rival.ID) == verdictWin
		conservative = maxInt(conservative, winsNeeded(full-teamEff, owns))
		withSub = maxInt(withSub, winsNeeded(sub-teamEff, owns))
	}
	return finalMagic(conservative, withSub, teamLeft)
}

// magicPlayoffs computes wins needed to finish ahead of the Nth-best rival
// ceiling, where N = playoffSpots.
func (c *magicCalc) magicPlayoffs(team *models.Team, others []*models.Team, playoffSpots int) *int {
	if len(others) < playoffSpots {
		return nil
	}
	teamEff := team.EffectiveWins()
	teamLeft := c.gamesLeft[team.ID]

	type ceiling struct {
		id  int
		max float64
	}
	cons := make([]ceiling, 0, len(others))
	subs := make([]ceiling, 0, len(others))
	for _, other := range others {
		full, sub := c.rivalCeilings(team.ID, other)
		cons = append(cons, ceiling{other.ID, full})
		subs = append(subs, ceiling{other.ID, sub})
	}
	sort.SliceStable(cons, func(i, j int) bool { return cons[i].max > cons[j].max })
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].max > subs[j].max })

	nthCons := cons[playoffSpots-1]
	nthSub := subs[playoffSpots-1]

	neededCons := winsNeeded(nthCons.max-teamEff, c.ownsTiebreaker(team.ID, nthCons.id) == verdictWin)
	neededSub := winsNeeded(nthSub.max-teamEff, c.ownsTiebreaker(team.ID, nthSub.id) == verdictWin)
	return finalMagic(neededCons, neededSub, teamLeft)
}

// magicLast computes losses tolerated before last place is locked in: the
// margin over the weakest rival's current effective wins, assuming the team
// wins out.
func (c *magicCalc) magicLast(team *models.Team, others []*models.Team) *int {
	if len(others) == 0 {
		return nil
	}
	minOther := math.Inf(1)
	for _, t := range others {
		if e := t.EffectiveWins(); e < minOther {
			minOther = e
		}
	}
	gap := team.EffectiveWins() + float64(c.gamesLeft[team.ID]) - minOther
	if gap < 0 {
		return nil // already locked into last
	}
	n := int(math.Ceil(gap + tiebreakEpsilon))
	if n > c.gamesLeft[team.ID] {
		return nil
	}
	return intPtr(n)
}

// finalMagic combines the conservative and with-subtraction counts against
// the games actually remaining. The with-subtraction number is only
// achievable by winning out, so it caps at teamLeft. Zero means already
// clinched and reads as nil.
func finalMagic(conservative, withSub, teamLeft int) *int {
	var magic int
	switch {
	case conservative <= teamLeft:
		magic = conservative
	case withSub <= teamLeft:
		magic = teamLeft
	default:
		return nil // out of reach
	}
	if magic == 0 {
		return nil // already clinched
	}
	return intPtr(magic)
}

func intPtr(n int) *int { return &n }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
