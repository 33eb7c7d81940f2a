package models

// Matchup is a scheduled, unplayed game between two teams. Outcomes are
// assigned by the simulator; provider data never carries a score here.
type Matchup struct {
	HomeTeamID     int  `json:"home_team_id"`
	AwayTeamID     int  `json:"away_team_id"`
	Week           int  `json:"week"`
	IsDivisionGame bool `json:"is_division_game"`
}

// H2HKey identifies an unordered team pair. Low < High always; build keys
// through H2HKeyFor so canonicalisation cannot be skipped.
type H2HKey struct {
	Low  int
	High int
}

func H2HKeyFor(a, b int) H2HKey {
	if a > b {
		a, b = b, a
	}
	return H2HKey{Low: a, High: b}
}

// H2HRecord holds the pair's results from the lower id's perspective.
type H2HRecord struct {
	LowWins  int
	HighWins int
	Ties     int
}

func (r H2HRecord) Games() int {
	return r.LowWins + r.HighWins + r.Ties
}

// H2HMap maps canonical pair keys to records. Pairs absent from the map
// have record (0, 0, 0).
type H2HMap map[H2HKey]H2HRecord

// Record returns (wins, losses, ties) from team a's perspective against b.
func (m H2HMap) Record(a, b int) (wins, losses, ties int) {
	r := m[H2HKeyFor(a, b)]
	if a < b {
		return r.LowWins, r.HighWins, r.Ties
	}
	return r.HighWins, r.LowWins, r.Ties
}

// AddWin records a win for winner over loser.
func (m H2HMap) AddWin(winner, loser int) {
	key := H2HKeyFor(winner, loser)
	r := m[key]
	if winner < loser {
		r.LowWins++
	} else {
		r.HighWins++
	}
	m[key] = r
}

// AddTie records a tie between the pair.
func (m H2HMap) AddTie(a, b int) {
	key := H2HKeyFor(a, b)
	r := m[key]
	r.Ties++
	m[key] = r
}

// CombineH2H merges historical and per-trial records by component-wise
// addition. The tiebreaker resolver always consumes the combined table so
// simulated games are never silently dropped.
func CombineH2H(hist, sim H2HMap) H2HMap {
	out := make(H2HMap, len(hist)+len(sim))
	for key, r := range hist {
		out[key] = r
	}
	for key, r := range sim {
		c := out[key]
		c.LowWins += r.LowWins
		c.HighWins += r.HighWins
		c.Ties += r.Ties
		out[key] = c
	}
	return out
}
