package models

// TeamTally accumulates per-team outcome counts across Monte Carlo trials.
// Each counter is incremented at most once per trial.
type TeamTally struct {
	TeamID             int `json:"team_id"`
	DivisionWins       int `json:"division_wins"`
	PlayoffAppearances int `json:"playoff_appearances"`
	FirstSeed          int `json:"first_seed"`
	LastPlace          int `json:"last_place"`
}

// MagicNumbers holds the four per-team magic numbers. A nil field means the
// target is already clinched/locked or mathematically out of reach.
type MagicNumbers struct {
	TeamID         int  `json:"team_id"`
	MagicDivision  *int `json:"magic_division"`
	MagicPlayoffs  *int `json:"magic_playoffs"`
	MagicFirstSeed *int `json:"magic_first_seed"`
	MagicLast      *int `json:"magic_last"`
}

// TeamResult is the per-team entry of a finished simulation.
type TeamResult struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	DivisionID     int     `json:"division_id"`
	DivisionName   string  `json:"division_name"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	Ties           int     `json:"ties"`
	Record         string  `json:"record"`
	DivisionRecord string  `json:"division_record"`
	WinPct         float64 `json:"win_pct"`
	DivisionPct    float64 `json:"division_pct"`
	PlayoffPct     float64 `json:"playoff_pct"`
	FirstSeedPct   float64 `json:"first_seed_pct"`
	LastPlacePct   float64 `json:"last_place_pct"`
	MagicDivision  *int    `json:"magic_division"`
	MagicPlayoffs  *int    `json:"magic_playoffs"`
	MagicFirstSeed *int    `json:"magic_first_seed"`
	MagicLast      *int    `json:"magic_last"`
}

// SimulationResults is the full result surface returned to callers.
type SimulationResults struct {
	LeagueName           string       `json:"league_name"`
	Platform             string       `json:"platform"`
	LeagueID             string       `json:"league_id"`
	Season               int          `json:"season"`
	Sport                string       `json:"sport"`
	CurrentWeek          int          `json:"current_week"`
	TotalWeeks           int          `json:"total_weeks"`
	Simulations          int          `json:"n_simulations"`
	Teams                []TeamResult `json:"teams"`
	ClinchScenarios      []string     `json:"clinch_scenarios"`
	EliminationScenarios []string     `json:"elimination_scenarios"`
}
