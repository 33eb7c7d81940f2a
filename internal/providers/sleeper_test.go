package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

func newSleeperTestAdapter(t *testing.T, routes map[string]string) *SleeperAdapter {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.Write([]byte("null"))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	adapter, err := NewSleeperAdapter(Options{Sport: models.SportFootball})
	require.NoError(t, err)
	adapter.baseURL = server.URL
	return adapter
}

const sleeperLeagueFixture = `{
	"name": "Test League",
	"season": "2026",
	"settings": {"playoff_teams": 4, "divisions": 2, "playoff_week_start": 15}
}`

func TestNewSleeperAdapter_RejectsUnsupportedSports(t *testing.T) {
	_, err := NewSleeperAdapter(Options{Sport: models.SportBaseball})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseball")

	_, err = NewSleeperAdapter(Options{Sport: models.SportHockey})
	assert.Error(t, err)
}

func TestSleeperAdapter_NullBodyMeansNotFound(t *testing.T) {
	adapter := newSleeperTestAdapter(t, nil)
	err := adapter.ValidateLeague(context.Background(), "999", 2026)
	assert.ErrorIs(t, err, ErrLeagueNotFound)
}

func TestSleeperAdapter_ValidateChecksSeason(t *testing.T) {
	adapter := newSleeperTestAdapter(t, map[string]string{
		"/league/123": sleeperLeagueFixture,
	})

	require.NoError(t, adapter.ValidateLeague(context.Background(), "123", 2026))

	err := adapter.ValidateLeague(context.Background(), "123", 2024)
	assert.ErrorIs(t, err, ErrLeagueNotFound)
}

func TestSleeperAdapter_FetchStandings(t *testing.T) {
	routes := map[string]string{
		"/league/123": sleeperLeagueFixture,
		"/league/123/rosters": `[
			{"roster_id": 1, "owner_id": "u1", "settings": {"wins": 7, "losses": 4, "ties": 0, "division": 1}},
			{"roster_id": 2, "owner_id": "u2", "settings": {"wins": 4, "losses": 7, "ties": 0, "division": 1}}
		]`,
		"/league/123/users": `[
			{"user_id": "u1", "display_name": "alice", "metadata": {"team_name": "Alpha"}},
			{"user_id": "u2", "display_name": "bob", "metadata": {}}
		]`,
		"/state/nfl": `{"week": 3}`,
		// Weeks 1-2 completed; team 1 beat team 2 in week 1, a division game.
		"/league/123/matchups/1": `[
			{"roster_id": 1, "matchup_id": 1, "points": 110.5},
			{"roster_id": 2, "matchup_id": 1, "points": 98.25}
		]`,
		"/league/123/matchups/2": `[
			{"roster_id": 1, "matchup_id": 1, "points": 0},
			{"roster_id": 2, "matchup_id": 1, "points": 0}
		]`,
	}
	adapter := newSleeperTestAdapter(t, routes)

	teams, divisions, err := adapter.FetchStandings(context.Background(), "123", 2026)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	// Team name prefers metadata.team_name, falls back to display_name.
	assert.Equal(t, "Alpha", teams[1].Name)
	assert.Equal(t, "bob", teams[2].Name)
	assert.Equal(t, 7, teams[1].Wins)

	// Division records reconstructed from the week 1 result; the unscored
	// week 2 game does not count.
	assert.Equal(t, 1, teams[1].DivisionWins)
	assert.Equal(t, 0, teams[1].DivisionLosses)
	assert.Equal(t, 1, teams[2].DivisionLosses)

	assert.Equal(t, "Division 1", divisions[1])
	assert.Equal(t, "Division 2", divisions[2])
}

func TestSleeperAdapter_FetchScheduleKeepsUnscoredGames(t *testing.T) {
	routes := map[string]string{
		"/league/123": sleeperLeagueFixture,
		"/state/nfl":  `{"week": 13}`,
	}
	// Weeks 13 and 14 remain; week 13 already has points on the board.
	routes["/league/123/matchups/13"] = `[
		{"roster_id": 1, "matchup_id": 1, "points": 55.0},
		{"roster_id": 2, "matchup_id": 1, "points": 41.0}
	]`
	routes["/league/123/matchups/14"] = `[
		{"roster_id": 1, "matchup_id": 1, "points": 0},
		{"roster_id": 2, "matchup_id": 1, "points": 0}
	]`
	adapter := newSleeperTestAdapter(t, routes)

	remaining, currentWeek, totalWeeks, err := adapter.FetchSchedule(context.Background(), "123", 2026, nil)
	require.NoError(t, err)
	assert.Equal(t, 13, currentWeek)
	assert.Equal(t, 14, totalWeeks)
	require.Len(t, remaining, 1)
	assert.Equal(t, 14, remaining[0].Week)
}

func TestSleeperAdapter_FetchHeadToHead(t *testing.T) {
	routes := map[string]string{
		"/league/123": sleeperLeagueFixture,
		"/state/nfl":  `{"week": 3}`,
		"/league/123/matchups/1": `[
			{"roster_id": 1, "matchup_id": 1, "points": 100},
			{"roster_id": 2, "matchup_id": 1, "points": 90}
		]`,
		"/league/123/matchups/2": `[
			{"roster_id": 2, "matchup_id": 1, "points": 120},
			{"roster_id": 1, "matchup_id": 1, "points": 80}
		]`,
	}
	adapter := newSleeperTestAdapter(t, routes)

	h2h, err := adapter.FetchHeadToHead(context.Background(), "123", 2026, nil)
	require.NoError(t, err)

	wins, losses, ties := h2h.Record(1, 2)
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, ties)
}

func TestSleeperAdapter_FetchLeagueSettings(t *testing.T) {
	adapter := newSleeperTestAdapter(t, map[string]string{
		"/league/123": sleeperLeagueFixture,
	})

	settings, err := adapter.FetchLeagueSettings(context.Background(), "123", 2026)
	require.NoError(t, err)
	assert.Equal(t, "Test League", settings.LeagueName)
	assert.Equal(t, 4, settings.PlayoffSpots)
	assert.Equal(t, 2, settings.NumDivisions)
	assert.Equal(t, 14, settings.TotalWeeks)
	require.Len(t, settings.Divisions, 2)
	for i, d := range settings.Divisions {
		assert.Equal(t, fmt.Sprintf("Division %d", i+1), d.Name)
	}
}
