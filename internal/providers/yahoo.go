package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

const (
	yahooBaseURL  = "https://fantasysports.yahooapis.com/fantasy/v2"
	yahooTokenURL = "https://api.login.yahoo.com/oauth2/get_token"

	// Refresh ahead of expiry so a token never lapses mid-pipeline.
	yahooTokenSlack = 5 * time.Minute
)

var yahooTeamKeyRe = regexp.MustCompile(`\.t\.(\d+)$`)

// YahooAdapter reads Yahoo Fantasy leagues over the v2 XML API. Every call
// needs a user OAuth token; the adapter refreshes it in place and flags the
// refresh so the caller can persist the new tokens.
type YahooAdapter struct {
	sport   models.Sport
	client  *apiClient
	logger  *logrus.Logger
	baseURL string

	credential   *models.YahooCredential
	clientID     string
	clientSecret string
	tokenURL     string

	refreshed        bool
	refreshAttempted bool
}

func NewYahooAdapter(opts Options) *YahooAdapter {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &YahooAdapter{
		sport:        opts.Sport,
		client:       newAPIClient("yahoo-api", opts),
		logger:       logger,
		baseURL:      yahooBaseURL,
		credential:   opts.YahooCredential,
		clientID:     opts.YahooClientID,
		clientSecret: opts.YahooClientSecret,
		tokenURL:     yahooTokenURL,
	}
}

func (a *YahooAdapter) PlatformName() string { return "yahoo" }

// TokenRefreshed reports whether the credential was rotated during this
// adapter's lifetime and needs persisting.
func (a *YahooAdapter) TokenRefreshed() bool { return a.refreshed }

func (a *YahooAdapter) leagueKey(leagueID string) string {
	if strings.Contains(leagueID, ".l.") {
		return leagueID
	}
	return fmt.Sprintf("%s.l.%s", a.sport.YahooGameKey(), leagueID)
}

// yahooTeamID pulls the numeric team id off a Yahoo team key such as
// "nba.l.12345.t.7".
func yahooTeamID(teamKey string) (int, bool) {
	m := yahooTeamKeyRe.FindStringSubmatch(teamKey)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func (a *YahooAdapter) ensureToken(ctx context.Context) error {
	if a.credential == nil {
		return fmt.Errorf("%w: no yahoo credential", ErrTokenExpired)
	}
	if !a.credential.IsExpired() && time.Until(a.credential.ExpiresAt) > yahooTokenSlack {
		return nil
	}
	return a.refreshToken(ctx)
}

func (a *YahooAdapter) refreshToken(ctx context.Context) error {
	if a.refreshAttempted {
		return fmt.Errorf("%w: yahoo refresh already failed once", ErrTokenExpired)
	}
	a.refreshAttempted = true

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {a.credential.RefreshToken},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"redirect_uri":  {"oob"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlatform, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: yahoo token refresh: %v", ErrPlatform, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: yahoo token refresh: %v", ErrPlatform, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: yahoo refused token refresh (%d)", ErrTokenExpired, resp.StatusCode)
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("%w: decoding yahoo token response: %v", ErrPlatform, err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: yahoo returned an empty access token", ErrTokenExpired)
	}

	a.credential.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		a.credential.RefreshToken = token.RefreshToken
	}
	if token.TokenType != "" {
		a.credential.TokenType = token.TokenType
	}
	a.credential.ExpiresAt = time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	a.refreshed = true
	a.logger.WithField("expires_at", a.credential.ExpiresAt).Info("Refreshed Yahoo OAuth token")
	return nil
}

func (a *YahooAdapter) fetchXML(ctx context.Context, endpoint string, target interface{}) error {
	if err := a.ensureToken(ctx); err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.credential.AccessToken)
	header.Set("Accept", "application/xml")

	status, body, err := a.client.get(ctx, a.baseURL+endpoint, header)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		// Token may have been revoked since its stored expiry; one refresh
		// then retry.
		if err := a.refreshToken(ctx); err != nil {
			return err
		}
		header.Set("Authorization", "Bearer "+a.credential.AccessToken)
		status, body, err = a.client.get(ctx, a.baseURL+endpoint, header)
		if err != nil {
			return err
		}
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: yahoo resource %s", ErrLeagueNotFound, endpoint)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: yahoo rejected the refreshed token", ErrTokenExpired)
	case http.StatusForbidden:
		return fmt.Errorf("%w: yahoo resource %s", ErrLeaguePrivate, endpoint)
	default:
		return fmt.Errorf("%w: yahoo returned %d", ErrPlatform, status)
	}

	if err := xml.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: decoding yahoo response: %v", ErrPlatform, err)
	}
	return nil
}

// Yahoo XML envelopes. Only the fields the pipeline consumes are mapped.
type yahooLeagueResponse struct {
	XMLName xml.Name    `xml:"fantasy_content"`
	League  yahooLeague `xml:"league"`
}

type yahooLeague struct {
	Name        string `xml:"name"`
	Season      string `xml:"season"`
	StartWeek   int    `xml:"start_week"`
	EndWeek     int    `xml:"end_week"`
	CurrentWeek int    `xml:"current_week"`

	Settings struct {
		PlayoffStartWeek int `xml:"playoff_start_week"`
		NumPlayoffTeams  int `xml:"num_playoff_teams"`
		Divisions        []struct {
			DivisionID int    `xml:"division_id"`
			Name       string `xml:"name"`
		} `xml:"divisions>division"`
	} `xml:"settings"`

	Standings struct {
		Teams []yahooTeam `xml:"teams>team"`
	} `xml:"standings"`

	Scoreboard struct {
		Matchups []yahooMatchup `xml:"matchups>matchup"`
	} `xml:"scoreboard"`
}

type yahooTeam struct {
	TeamKey    string `xml:"team_key"`
	Name       string `xml:"name"`
	DivisionID int    `xml:"division_id"`
	Standings  struct {
		OutcomeTotals         yahooOutcomes `xml:"outcome_totals"`
		DivisionOutcomeTotals yahooOutcomes `xml:"divisional_outcome_totals"`
	} `xml:"team_standings"`
}

type yahooOutcomes struct {
	Wins   int `xml:"wins"`
	Losses int `xml:"losses"`
	Ties   int `xml:"ties"`
}

type yahooMatchup struct {
	Week          int    `xml:"week"`
	Status        string `xml:"status"` // preevent, midevent, postevent
	IsTied        int    `xml:"is_tied"`
	WinnerTeamKey string `xml:"winner_team_key"`
	Teams         []struct {
		TeamKey string `xml:"team_key"`
	} `xml:"teams>team"`
}

func (m yahooMatchup) completed() bool {
	return m.Status == "postevent" || m.Status == "postgame"
}

func (a *YahooAdapter) fetchLeague(ctx context.Context, leagueID string, subresource string) (*yahooLeague, error) {
	endpoint := "/league/" + a.leagueKey(leagueID)
	if subresource != "" {
		endpoint += "/" + subresource
	}
	var resp yahooLeagueResponse
	if err := a.fetchXML(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp.League, nil
}

// regularSeasonWeeks returns the last regular-season week; Yahoo marks it
// indirectly via playoff_start_week.
func (l *yahooLeague) regularSeasonWeeks() int {
	if l.Settings.PlayoffStartWeek > 1 {
		return l.Settings.PlayoffStartWeek - 1
	}
	if l.EndWeek > 0 {
		return l.EndWeek
	}
	return 18
}

func (a *YahooAdapter) ValidateLeague(ctx context.Context, leagueID string, season int) error {
	league, err := a.fetchLeague(ctx, leagueID, "")
	if err != nil {
		return err
	}
	if league.Season != "" && league.Season != strconv.Itoa(season) {
		return fmt.Errorf("%w: yahoo league %s is for season %s, not %d", ErrLeagueNotFound, leagueID, league.Season, season)
	}
	return nil
}

func (a *YahooAdapter) FetchStandings(ctx context.Context, leagueID string, season int) (map[int]*models.Team, map[int]string, error) {
	league, err := a.fetchLeague(ctx, leagueID, "standings;out=settings")
	if err != nil {
		return nil, nil, err
	}
	if len(league.Standings.Teams) == 0 {
		return nil, nil, fmt.Errorf("%w: no teams in yahoo league %s", ErrLeagueNotFound, leagueID)
	}

	divisionNames := make(map[int]string)
	for _, d := range league.Settings.Divisions {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("Division %d", d.DivisionID)
		}
		divisionNames[d.DivisionID] = name
	}

	teams := make(map[int]*models.Team, len(league.Standings.Teams))
	for _, t := range league.Standings.Teams {
		id, ok := yahooTeamID(t.TeamKey)
		if !ok {
			continue
		}
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("Team %d", id)
		}
		teams[id] = &models.Team{
			ID:             id,
			Name:           name,
			DivisionID:     t.DivisionID,
			Wins:           t.Standings.OutcomeTotals.Wins,
			Losses:         t.Standings.OutcomeTotals.Losses,
			Ties:           t.Standings.OutcomeTotals.Ties,
			DivisionWins:   t.Standings.DivisionOutcomeTotals.Wins,
			DivisionLosses: t.Standings.DivisionOutcomeTotals.Losses,
			DivisionTies:   t.Standings.DivisionOutcomeTotals.Ties,
		}
	}
	return teams, divisionNames, nil
}

func (a *YahooAdapter) scoreboardWeek(ctx context.Context, leagueID string, week int) ([]yahooMatchup, error) {
	league, err := a.fetchLeague(ctx, leagueID, fmt.Sprintf("scoreboard;week=%d", week))
	if err != nil {
		return nil, err
	}
	return league.Scoreboard.Matchups, nil
}

func (a *YahooAdapter) FetchSchedule(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) ([]models.Matchup, int, int, error) {
	league, err := a.fetchLeague(ctx, leagueID, "settings")
	if err != nil {
		return nil, 0, 0, err
	}
	totalWeeks := league.regularSeasonWeeks()
	currentWeek := league.CurrentWeek
	if currentWeek < 1 {
		currentWeek = 1
	}

	var remaining []models.Matchup
	for week := currentWeek; week <= totalWeeks; week++ {
		matchups, err := a.scoreboardWeek(ctx, leagueID, week)
		if err != nil {
			return nil, 0, 0, err
		}
		for _, m := range matchups {
			if m.completed() || len(m.Teams) != 2 {
				continue
			}
			homeID, okHome := yahooTeamID(m.Teams[0].TeamKey)
			awayID, okAway := yahooTeamID(m.Teams[1].TeamKey)
			if !okHome || !okAway {
				continue
			}
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

func (a *YahooAdapter) FetchHeadToHead(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) (models.H2HMap, error) {
	league, err := a.fetchLeague(ctx, leagueID, "settings")
	if err != nil {
		return nil, err
	}
	totalWeeks := league.regularSeasonWeeks()
	lastWeek := league.CurrentWeek
	if lastWeek > totalWeeks {
		lastWeek = totalWeeks
	}
	startWeek := league.StartWeek
	if startWeek < 1 {
		startWeek = 1
	}

	h2h := make(models.H2HMap)
	for week := startWeek; week <= lastWeek; week++ {
		matchups, err := a.scoreboardWeek(ctx, leagueID, week)
		if err != nil {
			return nil, err
		}
		for _, m := range matchups {
			if !m.completed() || len(m.Teams) != 2 {
				continue
			}
			id1, ok1 := yahooTeamID(m.Teams[0].TeamKey)
			id2, ok2 := yahooTeamID(m.Teams[1].TeamKey)
			if !ok1 || !ok2 {
				continue
			}
			switch {
			case m.IsTied == 1:
				h2h.AddTie(id1, id2)
			case m.WinnerTeamKey == m.Teams[0].TeamKey:
				h2h.AddWin(id1, id2)
			case m.WinnerTeamKey == m.Teams[1].TeamKey:
				h2h.AddWin(id2, id1)
			}
		}
	}
	return h2h, nil
}

func (a *YahooAdapter) FetchLeagueSettings(ctx context.Context, leagueID string, season int) (*models.LeagueSettings, error) {
	league, err := a.fetchLeague(ctx, leagueID, "settings")
	if err != nil {
		return nil, err
	}

	name := league.Name
	if name == "" {
		name = "League " + leagueID
	}
	playoffSpots := league.Settings.NumPlayoffTeams
	if playoffSpots == 0 {
		playoffSpots = 6
	}

	settings := &models.LeagueSettings{
		LeagueName:   name,
		PlayoffSpots: playoffSpots,
		NumDivisions: len(league.Settings.Divisions),
		TotalWeeks:   league.regularSeasonWeeks(),
	}
	for _, d := range league.Settings.Divisions {
		dname := d.Name
		if dname == "" {
			dname = fmt.Sprintf("Division %d", d.DivisionID)
		}
		settings.Divisions = append(settings.Divisions, models.Division{ID: d.DivisionID, Name: dname})
	}
	return settings, nil
}
