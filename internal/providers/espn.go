package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

const espnBaseURL = "https://lm-api-reads.fantasy.espn.com/apis/v3/games"

// ESPNAdapter reads public ESPN Fantasy leagues. Private leagues need
// cookies ESPN does not hand out, so a 401 maps to ErrLeaguePrivate.
type ESPNAdapter struct {
	sport   models.Sport
	client  *apiClient
	baseURL string
}

func NewESPNAdapter(opts Options) *ESPNAdapter {
	return &ESPNAdapter{
		sport:   opts.Sport,
		client:  newAPIClient("espn-api", opts),
		baseURL: espnBaseURL,
	}
}

func (a *ESPNAdapter) PlatformName() string { return "espn" }

// ESPN league API response. Views are additive; the same envelope carries
// whichever sections were requested.
type espnLeagueResponse struct {
	Teams []struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Nickname   string `json:"nickname"`
		DivisionID int    `json:"divisionId"`
		Record     struct {
			Overall  espnRecord `json:"overall"`
			Division espnRecord `json:"division"`
		} `json:"record"`
	} `json:"teams"`
	Settings struct {
		Name             string `json:"name"`
		ScheduleSettings struct {
			MatchupPeriodCount int `json:"matchupPeriodCount"`
			PlayoffTeamCount   int `json:"playoffTeamCount"`
			Divisions          []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"divisions"`
		} `json:"scheduleSettings"`
	} `json:"settings"`
	Status struct {
		CurrentMatchupPeriod int `json:"currentMatchupPeriod"`
	} `json:"status"`
	Schedule []struct {
		MatchupPeriodID int          `json:"matchupPeriodId"`
		Winner          string       `json:"winner"`
		Home            espnSideSlot `json:"home"`
		Away            espnSideSlot `json:"away"`
	} `json:"schedule"`
}

type espnRecord struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`
}

type espnSideSlot struct {
	TeamID *int `json:"teamId"`
}

func (a *ESPNAdapter) fetchLeague(ctx context.Context, leagueID string, season int, views ...string) (*espnLeagueResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/seasons/%d/segments/0/leagues/%s",
		a.baseURL, a.sport.ESPNCode(), season, leagueID)

	query := url.Values{}
	for _, v := range views {
		query.Add("view", v)
	}

	status, body, err := a.client.get(ctx, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: espn league %s season %d", ErrLeagueNotFound, leagueID, season)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: espn league %s, public leagues only", ErrLeaguePrivate, leagueID)
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("%w: espn returned %d", ErrPlatform, status)
	}

	var resp espnLeagueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding espn response: %v", ErrPlatform, err)
	}
	return &resp, nil
}

func (a *ESPNAdapter) ValidateLeague(ctx context.Context, leagueID string, season int) error {
	_, err := a.fetchLeague(ctx, leagueID, season, "mSettings")
	return err
}

func (a *ESPNAdapter) FetchStandings(ctx context.Context, leagueID string, season int) (map[int]*models.Team, map[int]string, error) {
	data, err := a.fetchLeague(ctx, leagueID, season, "mTeam", "mSettings", "mStandings")
	if err != nil {
		return nil, nil, err
	}

	divisionNames := make(map[int]string)
	for _, div := range data.Settings.ScheduleSettings.Divisions {
		name := div.Name
		if name == "" {
			name = fmt.Sprintf("Division %d", div.ID)
		}
		divisionNames[div.ID] = name
	}

	teams := make(map[int]*models.Team)
	for _, t := range data.Teams {
		name := t.Name
		if name == "" {
			name = t.Nickname
		}
		if name == "" {
			name = fmt.Sprintf("Team %d", t.ID)
		}
		teams[t.ID] = &models.Team{
			ID:             t.ID,
			Name:           name,
			DivisionID:     t.DivisionID,
			Wins:           t.Record.Overall.Wins,
			Losses:         t.Record.Overall.Losses,
			Ties:           t.Record.Overall.Ties,
			DivisionWins:   t.Record.Division.Wins,
			DivisionLosses: t.Record.Division.Losses,
			DivisionTies:   t.Record.Division.Ties,
		}
	}
	return teams, divisionNames, nil
}

func (a *ESPNAdapter) FetchSchedule(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) ([]models.Matchup, int, int, error) {
	data, err := a.fetchLeague(ctx, leagueID, season, "mMatchup", "mSettings")
	if err != nil {
		return nil, 0, 0, err
	}

	totalWeeks := data.Settings.ScheduleSettings.MatchupPeriodCount
	if totalWeeks == 0 {
		totalWeeks = 18
	}
	currentWeek := data.Status.CurrentMatchupPeriod
	if currentWeek == 0 {
		currentWeek = 1
	}

	var remaining []models.Matchup
	for _, m := range data.Schedule {
		// Past weeks and playoff rounds are out of scope.
		if m.MatchupPeriodID < currentWeek || m.MatchupPeriodID > totalWeeks {
			continue
		}
		if m.Home.TeamID == nil || m.Away.TeamID == nil {
			continue
		}
		if m.Winner != "" && m.Winner != "UNDECIDED" {
			continue
		}
		remaining = append(remaining, models.Matchup{
			HomeTeamID:     *m.Home.TeamID,
			AwayTeamID:     *m.Away.TeamID,
			Week:           m.MatchupPeriodID,
			IsDivisionGame: isDivisionGame(teams, *m.Home.TeamID, *m.Away.TeamID),
		})
	}
	return remaining, currentWeek, totalWeeks, nil
}

func (a *ESPNAdapter) FetchHeadToHead(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) (models.H2HMap, error) {
	data, err := a.fetchLeague(ctx, leagueID, season, "mMatchup", "mSettings")
	if err != nil {
		return nil, err
	}

	totalWeeks := data.Settings.ScheduleSettings.MatchupPeriodCount
	if totalWeeks == 0 {
		totalWeeks = 18
	}

	h2h := make(models.H2HMap)
	for _, m := range data.Schedule {
		// Tiebreakers only count the regular season.
		if m.MatchupPeriodID > totalWeeks {
			continue
		}
		if m.Home.TeamID == nil || m.Away.TeamID == nil {
			continue
		}
		switch m.Winner {
		case "HOME":
			h2h.AddWin(*m.Home.TeamID, *m.Away.TeamID)
		case "AWAY":
			h2h.AddWin(*m.Away.TeamID, *m.Home.TeamID)
		case "TIE":
			h2h.AddTie(*m.Home.TeamID, *m.Away.TeamID)
		}
	}
	return h2h, nil
}

func (a *ESPNAdapter) FetchLeagueSettings(ctx context.Context, leagueID string, season int) (*models.LeagueSettings, error) {
	data, err := a.fetchLeague(ctx, leagueID, season, "mSettings")
	if err != nil {
		return nil, err
	}

	ss := data.Settings.ScheduleSettings
	settings := &models.LeagueSettings{
		LeagueName:   data.Settings.Name,
		PlayoffSpots: ss.PlayoffTeamCount,
		NumDivisions: len(ss.Divisions),
		TotalWeeks:   ss.MatchupPeriodCount,
	}
	if settings.LeagueName == "" {
		settings.LeagueName = fmt.Sprintf("League %s", leagueID)
	}
	if settings.PlayoffSpots == 0 {
		settings.PlayoffSpots = 6
	}
	if settings.TotalWeeks == 0 {
		settings.TotalWeeks = 18
	}
	for _, d := range ss.Divisions {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("Division %d", d.ID)
		}
		settings.Divisions = append(settings.Divisions, models.Division{ID: d.ID, Name: name})
	}
	return settings, nil
}
