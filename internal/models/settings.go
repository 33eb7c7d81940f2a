package models

// Division is a named division within a league.
type Division struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// LeagueSettings is the league configuration relevant to playoff math.
type LeagueSettings struct {
	LeagueName   string     `json:"league_name"`
	PlayoffSpots int        `json:"playoff_spots"`
	NumDivisions int        `json:"num_divisions"`
	TotalWeeks   int        `json:"total_weeks"`
	Divisions    []Division `json:"divisions"`
}
