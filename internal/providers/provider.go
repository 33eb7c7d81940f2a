// Package providers contains the fantasy platform adapters. Each adapter
// exposes the same four fetch operations the simulation pipeline needs to
// build a league snapshot: validate, standings, schedule and head-to-head.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jstittsworth/playoff-odds/internal/models"
)

// Domain errors surfaced to callers with the platform tag attached.
var (
	ErrLeagueNotFound = errors.New("league not found")
	ErrLeaguePrivate  = errors.New("league is private")
	ErrTokenExpired   = errors.New("platform token expired")
	ErrPlatform       = errors.New("platform error")
)

// Adapter is the contract every fantasy platform implements. The pipeline
// calls exactly these operations once per league snapshot.
type Adapter interface {
	PlatformName() string

	// ValidateLeague confirms the league exists and is readable before any
	// heavier fetch happens.
	ValidateLeague(ctx context.Context, leagueID string, season int) error

	// FetchStandings returns current teams keyed by id plus division names.
	FetchStandings(ctx context.Context, leagueID string, season int) (map[int]*models.Team, map[int]string, error)

	// FetchSchedule returns unplayed regular-season matchups, the current
	// week and the total regular-season weeks.
	FetchSchedule(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) ([]models.Matchup, int, int, error)

	// FetchHeadToHead returns completed-game records between all team pairs.
	FetchHeadToHead(ctx context.Context, leagueID string, season int, teams map[int]*models.Team) (models.H2HMap, error)

	FetchLeagueSettings(ctx context.Context, leagueID string, season int) (*models.LeagueSettings, error)
}

// Options carries adapter construction knobs shared across platforms.
type Options struct {
	Sport   models.Sport
	Timeout time.Duration
	Logger  *logrus.Logger

	// RateLimit is requests per second against the platform API; zero
	// disables client-side limiting.
	RateLimit int

	// BreakerThreshold is consecutive transport failures before the circuit
	// opens. Zero uses a default of 5.
	BreakerThreshold int

	// Yahoo OAuth. Credential is mutated in place on refresh; the caller
	// persists it when the adapter reports TokenRefreshed.
	YahooCredential   *models.YahooCredential
	YahooClientID     string
	YahooClientSecret string
}

// New builds the adapter for a platform name.
func New(platform string, opts Options) (Adapter, error) {
	if opts.Sport == "" {
		opts.Sport = models.SportBasketball
	}
	switch strings.ToLower(platform) {
	case "espn":
		return NewESPNAdapter(opts), nil
	case "sleeper":
		return NewSleeperAdapter(opts)
	case "yahoo":
		if opts.YahooCredential == nil {
			return nil, fmt.Errorf("yahoo credential is required to access Yahoo Fantasy leagues")
		}
		return NewYahooAdapter(opts), nil
	}
	return nil, fmt.Errorf("unsupported platform %q: supported are espn, sleeper, yahoo", platform)
}

// apiClient wraps HTTP access to a platform with a rate limiter and a
// circuit breaker. Non-5xx responses count as breaker successes; error
// classification stays with the adapters.
type apiClient struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

type httpResult struct {
	status int
	body   []byte
}

func newAPIClient(name string, opts Options) *apiClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Platform API circuit breaker state changed")
		},
	})

	return &apiClient{
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		breaker: cb,
		logger:  logger,
	}
}

// get performs a rate-limited GET and returns status plus body. Transport
// failures and 5xx responses feed the circuit breaker and come back wrapped
// in ErrPlatform.
func (c *apiClient) get(ctx context.Context, url string, header http.Header) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		return httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}

	r := result.(httpResult)
	return r.status, r.body, nil
}

// isDivisionGame applies the shared rule: same non-zero division id.
func isDivisionGame(teams map[int]*models.Team, homeID, awayID int) bool {
	home, okHome := teams[homeID]
	away, okAway := teams[awayID]
	return okHome && okAway && home.DivisionID == away.DivisionID && home.DivisionID != 0
}
