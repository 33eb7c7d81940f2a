package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

const sleeperBaseURL = "https://api.sleeper.app/v1"

// SleeperAdapter reads Sleeper leagues. The API is public and unauthenticated
// but only carries football and basketball; it also returns literal null for
// unknown leagues instead of a 404.
type SleeperAdapter struct {
	sport     models.Sport
	sportCode string
	client    *apiClient
	baseURL   string
}

func NewSleeperAdapter(opts Options) (*SleeperAdapter, error) {
	code, ok := opts.Sport.SleeperCode()
	if !ok {
		return nil, fmt.Errorf("sleeper does not support %s leagues", opts.Sport)
	}
	return &SleeperAdapter{
		sport:     opts.Sport,
		sportCode: code,
		client:    newAPIClient("sleeper-api", opts),
		baseURL:   sleeperBaseURL,
	}, nil
}

func (a *SleeperAdapter) PlatformName() string { return "sleeper" }

type sleeperLeague struct {
	Name     string `json:"name"`
	Season   string `json:"season"`
	Settings struct {
		PlayoffTeams     int `json:"playoff_teams"`
		Divisions        int `json:"divisions"`
		PlayoffWeekStart int `json:"playoff_week_start"`
	} `json:"settings"`
}

type sleeperRoster struct {
	RosterID int    `json:"roster_id"`
	OwnerID  string `json:"owner_id"`
	Settings struct {
		Wins     int `json:"wins"`
		Losses   int `json:"losses"`
		Ties     int `json:"ties"`
		Division int `json:"division"`
	} `json:"settings"`
}

type sleeperUser struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Metadata    struct {
		TeamName string `json:"team_name"`
	} `json:"metadata"`
}

type sleeperState struct {
	Week int `json:"week"`
}

type sleeperMatchupEntry struct {
	RosterID  int      `json:"roster_id"`
	MatchupID *int     `json:"matchup_id"`
	Points    *float64 `json:"points"`
}

func (e sleeperMatchupEntry) points() float64 {
	if e.Points == nil {
		return 0
	}
	return *e.Points
}

func (a *SleeperAdapter) fetchJSON(ctx context.Context, endpoint string, target interface{}) error {
	status, body, err := a.client.get(ctx, a.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: sleeper resource %s", ErrLeagueNotFound, endpoint)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: sleeper returned %d", ErrPlatform, status)
	}
	// Sleeper answers 200 "null" for leagues that do not exist.
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return fmt.Errorf("%w: sleeper resource %s", ErrLeagueNotFound, endpoint)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: decoding sleeper response: %v", ErrPlatform, err)
	}
	return nil
}

func (a *SleeperAdapter) fetchLeague(ctx context.Context, leagueID string) (*sleeperLeague, error) {
	var league sleeperLeague
	if err := a.fetchJSON(ctx, "/league/"+leagueID, &league); err != nil {
		return nil, err
	}
	return &league, nil
}

func (a *SleeperAdapter) currentWeek(ctx context.Context) (int, error) {
	var state sleeperState
	if err := a.fetchJSON(ctx, "/state/"+a.sportCode, &state); err != nil {
		return 0, err
	}
	if state.Week < 1 {
		return 1, nil
	}
	return state.Week, nil
}

func (a *SleeperAdapter) weekMatchups(ctx context.Context, leagueID string, week int) (map[int][]sleeperMatchupEntry, error) {
	var entries []sleeperMatchupEntry
	if err := a.fetchJSON(ctx, fmt.Sprintf("/league/%s/matchups/%d", leagueID, week), &entries); err != nil {
		return nil, err
	}
	groups := make(map[int][]sleeperMatchupEntry)
	for _, e := range entries {
		if e.MatchupID != nil {
			groups[*e.MatchupID] = append(groups[*e.MatchupID], e)
		}
	}
	return groups, nil
}

func (a *SleeperAdapter) ValidateLeague(ctx context.Context, leagueID string, season int) error {
	league, err := a.fetchLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if league.Season != "" && league.Season != fmt.Sprint(season) {
		return fmt.Errorf("%w: league %s is for season %s, not %d", ErrLeagueNotFound, leagueID, league.Season, season)
	}
	return nil
}

func (a *SleeperAdapter) FetchStandings(ctx context.Context, leagueID string, season int) (map[int]*models.Team, map[int]string, error) {
	var rosters []sleeperRoster
	if err := a.fetchJSON(ctx, "/league/"+leagueID+"/rosters", &rosters); err != nil {
		return nil, nil, err
	}
	if len(rosters) == 0 {
		return nil, nil, fmt.Errorf("%w: no rosters found for league %s", ErrLeagueNotFound, leagueID)
	}
	var users []sleeperUser
	if err := a.fetchJSON(ctx, "/league/"+leagueID+"/users", &users); err != nil {
		return nil, nil, err
	}
	league, err := a.fetchLeague(ctx, leagueID)
	if err != nil {
		return nil, nil, err
	}

	userNames := make(map[string]string, len(users))
	for _, u := range users {
		name := u.Metadata.TeamName
		if name == "" {
			name = u.DisplayName
		}
		if name == "" {
			name = "Team " + u.UserID
		}
		userNames[u.UserID] = name
	}

	// Sleeper numbers divisions 1..n and never names them.
	divisionNames := make(map[int]string)
	for i := 1; i <= league.Settings.Divisions; i++ {
		divisionNames[i] = fmt.Sprintf("Division %d", i)
	}

	teams := make(map[int]*models.Team, len(rosters))
	for _, r := range rosters {
		name, ok := userNames[r.OwnerID]
		if !ok {
			name = fmt.Sprintf("Team %d", r.RosterID)
		}
		teams[r.RosterID] = &models.Team{
			ID:         r.RosterID,
			Name:       name,
			DivisionID: r.Settings.Division,
			Wins:       r.Settings.Wins,
			Losses:     r.Settings.Losses,
			Ties:       r.Settings.Ties,
		}
	}

	// Sleeper has no division records; reconstruct them from completed
	// matchups. Best effort: missing weeks leave the records short.
	if league.Settings.Divisions > 0 {
		if err := a.backfillDivisionRecords(ctx, leagueID, league, teams); err != nil {
			return nil, nil, err
		}
	}

	return teams, divisionNames, nil
}

func (a *SleeperAdapter) backfillDivisionRecords(ctx context.Context, leagueID string, league *sleeperLeague, teams map[int]*models.Team) error {
	playoffStart := league.Settings.PlayoffWeekStart
	if playoffStart == 0 {
		playoffStart = 15
	}
	currentWeek, err := a.currentWeek(ctx)
	if err != nil {
		return err
	}
	lastCompleted := currentWeek
	if playoffStart < lastCompleted {
		lastCompleted = playoffStart
	}

	for week := 1; week < lastCompleted; week++ {
		groups, err := a.weekMatchups(ctx, leagueID, week)
		if err != nil {
			continue // week without data
		}
		for _, group := range groups {
			if len(group) != 2 {
				continue
			}
			t1, ok1 := teams[group[0].RosterID]
			t2, ok2 := teams[group[1].RosterID]
			if !ok1 || !ok2 || t1.DivisionID != t2.DivisionID || t1.DivisionID == 0 {
				continue
			}
			p1, p2 := group[0].points(), group[1].points()
			if p1 == 0 && p2 == 0 {
				continue // not played yet
			}
			switch {
			case p1 > p2:
				t1.DivisionWins++
				t2.DivisionLosses++
			case p2 > p1:
				t2.DivisionWins++
				t1.DivisionLosses++
			default:
				t1.DivisionTies++
				t2.DivisionTies++
			}
		}
	}
	return nil
}

func (a *SleeperAdapter) FetchSchedule(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) ([]models.Matchup, int, int, error) {
	league, err := a.fetchLeague(ctx, leagueID)
	if err != nil {
		return nil, 0, 0, err
	}
	playoffStart := league.Settings.PlayoffWeekStart
	if playoffStart == 0 {
		playoffStart = 15
	}
	totalWeeks := playoffStart - 1

	currentWeek, err := a.currentWeek(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	var remaining []models.Matchup
	for week := currentWeek; week <= totalWeeks; week++ {
		groups, err := a.weekMatchups(ctx, leagueID, week)
		if err != nil {
			continue
		}
		for _, group := range groups {
			if len(group) != 2 {
				continue
			}
			// 0-0 means the matchup has not been scored yet.
			if group[0].points() != 0 || group[1].points() != 0 {
				continue
			}
			homeID, awayID := group[0].RosterID, group[1].RosterID
			remaining = append(remaining, models.Matchup{
				HomeTeamID:     homeID,
				AwayTeamID:     awayID,
				Week:           week,
				IsDivisionGame: isDivisionGame(teams, homeID, awayID),
			})
		}
	}
	return remaining, currentWeek, totalWeeks, nil
}

func (a *SleeperAdapter) FetchHeadToHead(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) (models.H2HMap, error) {
	league, err := a.fetchLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	playoffStart := league.Settings.PlayoffWeekStart
	if playoffStart == 0 {
		playoffStart = 15
	}
	currentWeek, err := a.currentWeek(ctx)
	if err != nil {
		return nil, err
	}
	lastCompleted := currentWeek
	if playoffStart < lastCompleted {
		lastCompleted = playoffStart
	}

	h2h := make(models.H2HMap)
	for week := 1; week < lastCompleted; week++ {
		groups, err := a.weekMatchups(ctx, leagueID, week)
		if err != nil {
			continue
		}
		for _, group := range groups {
			if len(group) != 2 {
				continue
			}
			p1, p2 := group[0].points(), group[1].points()
			if p1 == 0 && p2 == 0 {
				continue
			}
			id1, id2 := group[0].RosterID, group[1].RosterID
			switch {
			case p1 > p2:
				h2h.AddWin(id1, id2)
			case p2 > p1:
				h2h.AddWin(id2, id1)
			default:
				h2h.AddTie(id1, id2)
			}
		}
	}
	return h2h, nil
}

func (a *SleeperAdapter) FetchLeagueSettings(ctx context.Context, leagueID string, season int) (*models.LeagueSettings, error) {
	league, err := a.fetchLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	playoffStart := league.Settings.PlayoffWeekStart
	if playoffStart == 0 {
		playoffStart = 15
	}
	playoffSpots := league.Settings.PlayoffTeams
	if playoffSpots == 0 {
		playoffSpots = 6
	}
	name := league.Name
	if name == "" {
		name = "League " + leagueID
	}

	settings := &models.LeagueSettings{
		LeagueName:   name,
		PlayoffSpots: playoffSpots,
		NumDivisions: league.Settings.Divisions,
		TotalWeeks:   playoffStart - 1,
	}
	for i := 1; i <= league.Settings.Divisions; i++ {
		settings.Divisions = append(settings.Divisions, models.Division{
			ID:   i,
			Name: fmt.Sprintf("Division %d", i),
		})
	}
	return settings, nil
}
