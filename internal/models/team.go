package models

import "fmt"

// Team is a fantasy team's snapshot standing within a league. DivisionID 0
// means the league has no divisions (or the team is unassigned).
type Team struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	DivisionID     int    `json:"division_id"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	Ties           int    `json:"ties"`
	DivisionWins   int    `json:"division_wins"`
	DivisionLosses int    `json:"division_losses"`
	DivisionTies   int    `json:"division_ties"`
}

// WinPct returns (W + 0.5T) / games, or 0 when no games have been played.
func (t *Team) WinPct() float64 {
	total := t.Wins + t.Losses + t.Ties
	if total == 0 {
		return 0
	}
	return (float64(t.Wins) + 0.5*float64(t.Ties)) / float64(total)
}

// DivisionWinPct returns the intra-division win percentage.
func (t *Team) DivisionWinPct() float64 {
	total := t.DivisionWins + t.DivisionLosses + t.DivisionTies
	if total == 0 {
		return 0
	}
	return (float64(t.DivisionWins) + 0.5*float64(t.DivisionTies)) / float64(total)
}

// EffectiveWins is W + 0.5T, the numerator of WinPct.
func (t *Team) EffectiveWins() float64 {
	return float64(t.Wins) + 0.5*float64(t.Ties)
}

func (t *Team) RecordString() string {
	return fmt.Sprintf("%d-%d-%d", t.Wins, t.Losses, t.Ties)
}

func (t *Team) DivisionRecordString() string {
	return fmt.Sprintf("%d-%d-%d", t.DivisionWins, t.DivisionLosses, t.DivisionTies)
}

// Copy returns an independent copy for use as mutable trial state. The
// canonical snapshot is never mutated directly.
func (t *Team) Copy() *Team {
	c := *t
	return &c
}

// CopyTeams deep-copies a standings map for one simulation trial.
func CopyTeams(teams map[int]*Team) map[int]*Team {
	out := make(map[int]*Team, len(teams))
	for id, t := range teams {
		out[id] = t.Copy()
	}
	return out
}
