package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/jstittsworth/playoff-odds/internal/models"
	"github.com/jstittsworth/playoff-odds/internal/providers"
	"github.com/jstittsworth/playoff-odds/internal/simulator"
	"github.com/jstittsworth/playoff-odds/pkg/config"
	"github.com/jstittsworth/playoff-odds/pkg/database"
	"github.com/jstittsworth/playoff-odds/pkg/utils"
)

// RunRequest is one simulation submission.
type RunRequest struct {
	Platform    string
	LeagueID    string
	Season      int
	Sport       models.Sport
	Simulations int
	QuickMode   bool

	// UserID identifies the credential owner for platforms that need OAuth.
	UserID uint
}

// SimulationService orchestrates the full pipeline for one league: fetch the
// snapshot through a platform adapter, compute magic numbers and scenarios,
// run the Monte Carlo engine and persist the result.
type SimulationService struct {
	db     *database.DB
	tasks  *TaskService
	cache  *CacheService
	hub    *WebSocketHub
	cfg    *config.Config
	logger *logrus.Logger

	// workers caps concurrent simulations; CPU-bound trials should not pile
	// up unbounded behind a burst of submissions.
	workers chan struct{}
}

func NewSimulationService(
	db *database.DB,
	tasks *TaskService,
	cache *CacheService,
	hub *WebSocketHub,
	cfg *config.Config,
	logger *logrus.Logger,
) *SimulationService {
	workers := cfg.SimulationWorkers
	if workers < 1 {
		workers = 1
	}
	return &SimulationService{
		db:      db,
		tasks:   tasks,
		cache:   cache,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
		workers: make(chan struct{}, workers),
	}
}

func (s *SimulationService) adapterOptions(userID uint) (providers.Options, error) {
	opts := providers.Options{
		Timeout:           s.cfg.ExternalAPITimeout,
		Logger:            s.logger,
		RateLimit:         s.cfg.ProviderRateLimit,
		BreakerThreshold:  s.cfg.CircuitBreakerThreshold,
		YahooClientID:     s.cfg.YahooClientID,
		YahooClientSecret: s.cfg.YahooClientSecret,
	}
	if userID != 0 {
		var cred models.YahooCredential
		err := s.db.Where("user_id = ?", userID).First(&cred).Error
		if err == nil {
			opts.YahooCredential = &cred
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return opts, fmt.Errorf("failed to load yahoo credential: %w", err)
		}
	}
	return opts, nil
}

func (s *SimulationService) newAdapter(platform string, sport models.Sport, userID uint) (providers.Adapter, providers.Options, error) {
	opts, err := s.adapterOptions(userID)
	if err != nil {
		return nil, opts, err
	}
	opts.Sport = sport
	adapter, err := providers.New(platform, opts)
	return adapter, opts, err
}

// persistRefreshedToken writes rotated Yahoo tokens back to the store.
func (s *SimulationService) persistRefreshedToken(ctx context.Context, adapter providers.Adapter, opts providers.Options) {
	yahoo, ok := adapter.(*providers.YahooAdapter)
	if !ok || !yahoo.TokenRefreshed() || opts.YahooCredential == nil {
		return
	}
	if err := s.db.WithContext(ctx).Save(opts.YahooCredential).Error; err != nil {
		s.logger.WithError(err).Error("Failed to persist refreshed Yahoo token")
	}
}

// ValidateLeague checks a league exists and is readable before a simulation
// is queued. Successful validations are cached briefly.
func (s *SimulationService) ValidateLeague(ctx context.Context, platform, leagueID string, season int, sport models.Sport, userID uint) error {
	cacheKey := ValidationCacheKey(platform, leagueID, season)
	var ok bool
	if err := s.cache.Get(ctx, cacheKey, &ok); err == nil && ok {
		return nil
	}

	adapter, opts, err := s.newAdapter(platform, sport, userID)
	if err != nil {
		return err
	}
	if err := adapter.ValidateLeague(ctx, leagueID, season); err != nil {
		return err
	}
	s.persistRefreshedToken(ctx, adapter, opts)

	if err := s.cache.Set(ctx, cacheKey, true, 5*time.Minute); err != nil {
		s.logger.WithError(err).Warn("Failed to cache league validation")
	}
	return nil
}

// CachedResults returns a previously computed result for the league at its
// current week, if one is still fresh.
func (s *SimulationService) CachedResults(ctx context.Context, platform, leagueID string, season int, sport models.Sport, week int) (*models.SimulationResults, bool) {
	var results models.SimulationResults
	key := SimulationCacheKey(platform, leagueID, season, string(sport), week)
	if err := s.cache.Get(ctx, key, &results); err != nil {
		return nil, false
	}
	return &results, true
}

// Start validates the request, registers a pending task and launches the
// pipeline in the background. It returns immediately with the task.
func (s *SimulationService) Start(ctx context.Context, req RunRequest) (*models.SimulationTask, error) {
	if err := s.ValidateLeague(ctx, req.Platform, req.LeagueID, req.Season, req.Sport, req.UserID); err != nil {
		return nil, err
	}

	task, err := s.tasks.Create(ctx, req.Platform, req.LeagueID, req.Season, string(req.Sport))
	if err != nil {
		return nil, err
	}

	go s.runTask(task.ID, req)
	return task, nil
}

func (s *SimulationService) runTask(taskID string, req RunRequest) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	// A panic anywhere in the pipeline fails the task instead of killing
	// the process.
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("task_id", taskID).Errorf("Simulation panicked: %v", r)
			s.failTask(taskID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()
	if err := s.tasks.MarkRunning(ctx, taskID); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Error("Failed to start task")
		return
	}

	if err := s.execute(ctx, taskID, req); err != nil {
		s.failTask(taskID, taskErrorMessage(req.Platform, err))
	}
}

func (s *SimulationService) failTask(taskID, message string) {
	if err := s.tasks.Fail(context.Background(), taskID, message); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Error("Failed to record task failure")
	}
	s.hub.BroadcastTaskFailed(taskID, message)
}

func (s *SimulationService) setProgress(ctx context.Context, taskID string, progress int) {
	if err := s.tasks.UpdateProgress(ctx, taskID, progress); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to update task progress")
	}
	s.hub.BroadcastTaskProgress(taskID, progress)
}

func (s *SimulationService) execute(ctx context.Context, taskID string, req RunRequest) error {
	adapter, opts, err := s.newAdapter(req.Platform, req.Sport, req.UserID)
	if err != nil {
		return err
	}
	s.setProgress(ctx, taskID, 5)

	teams, divisionNames, err := adapter.FetchStandings(ctx, req.LeagueID, req.Season)
	if err != nil {
		return err
	}
	s.setProgress(ctx, taskID, 15)

	remaining, currentWeek, totalWeeks, err := adapter.FetchSchedule(ctx, req.LeagueID, req.Season, teams)
	if err != nil {
		return err
	}
	s.setProgress(ctx, taskID, 25)

	h2h, err := adapter.FetchHeadToHead(ctx, req.LeagueID, req.Season, teams)
	if err != nil {
		return err
	}
	settings, err := adapter.FetchLeagueSettings(ctx, req.LeagueID, req.Season)
	if err != nil {
		return err
	}
	s.persistRefreshedToken(ctx, adapter, opts)
	s.setProgress(ctx, taskID, 35)

	if err := simulator.ValidateSnapshot(teams, remaining, settings.PlayoffSpots); err != nil {
		return err
	}

	playoffSpots := settings.PlayoffSpots
	magic := simulator.CalculateMagicNumbers(teams, remaining, h2h, playoffSpots)
	s.setProgress(ctx, taskID, 40)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Few enough games left to enumerate every outcome exactly; otherwise
	// derive scenarios from the magic numbers.
	var clinch, elimination []string
	if len(remaining) <= simulator.BruteForceMaxGames {
		clinch, elimination = simulator.BruteForceScenarios(teams, remaining, h2h, currentWeek, playoffSpots, rng, nil)
	} else {
		clinch, elimination = simulator.GenerateScenarios(teams, remaining, magic, currentWeek, playoffSpots)
	}
	s.setProgress(ctx, taskID, 50)

	nSims := req.Simulations
	if nSims <= 0 {
		nSims = s.cfg.DefaultSimulations
	}
	if s.cfg.MaxSimulations > 0 && nSims > s.cfg.MaxSimulations {
		nSims = s.cfg.MaxSimulations
	}
	if req.QuickMode {
		nSims = 1000
	}

	tallies, err := simulator.Simulate(ctx, teams, remaining, h2h, simulator.Options{
		Simulations:  nSims,
		PlayoffSpots: playoffSpots,
		Rand:         rng,
		Progress: func(pct float64) {
			// Simulation occupies the back half of the task progress bar.
			s.setProgress(ctx, taskID, int(50+pct*0.45))
		},
	})
	if err != nil {
		return err
	}
	s.setProgress(ctx, taskID, 95)

	results := buildResults(req, settings, teams, divisionNames, tallies, magic, nSims, currentWeek, totalWeeks, clinch, elimination)

	cacheKey := SimulationCacheKey(req.Platform, req.LeagueID, req.Season, string(req.Sport), currentWeek)
	if err := s.cache.SetWithRetry(ctx, cacheKey, results, s.cfg.CacheTTL, 3); err != nil {
		s.logger.WithError(err).Warn("Failed to cache simulation results")
	}

	if err := s.tasks.Complete(ctx, taskID, results); err != nil {
		return err
	}
	s.hub.BroadcastTaskCompleted(taskID)

	s.logger.WithFields(logrus.Fields{
		"task_id":     taskID,
		"platform":    req.Platform,
		"league":      req.LeagueID,
		"simulations": nSims,
	}).Info("Simulation completed")
	return nil
}

func buildResults(
	req RunRequest,
	settings *models.LeagueSettings,
	teams map[int]*models.Team,
	divisionNames map[int]string,
	tallies map[int]*models.TeamTally,
	magic map[int]*models.MagicNumbers,
	nSims, currentWeek, totalWeeks int,
	clinch, elimination []string,
) *models.SimulationResults {
	sorted := make([]*models.Team, 0, len(teams))
	for _, t := range teams {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool {
		ti, tj := tallies[sorted[i].ID], tallies[sorted[j].ID]
		if ti.PlayoffAppearances != tj.PlayoffAppearances {
			return ti.PlayoffAppearances > tj.PlayoffAppearances
		}
		return sorted[i].ID < sorted[j].ID
	})

	teamResults := make([]models.TeamResult, 0, len(sorted))
	for _, team := range sorted {
		tally := tallies[team.ID]
		m := magic[team.ID]

		divPct := float64(tally.DivisionWins) / float64(nSims)
		playoffPct := float64(tally.PlayoffAppearances) / float64(nSims)
		firstSeedPct := float64(tally.FirstSeed) / float64(nSims)
		lastPct := float64(tally.LastPlace) / float64(nSims)

		// Never display 100% for a team that has not mathematically
		// clinched.
		if m.MagicDivision != nil && divPct >= 0.9995 {
			divPct = 0.999
		}
		if m.MagicPlayoffs != nil && playoffPct >= 0.9995 {
			playoffPct = 0.999
		}
		if m.MagicFirstSeed != nil && firstSeedPct >= 0.9995 {
			firstSeedPct = 0.999
		}
		if m.MagicLast != nil && lastPct >= 0.9995 {
			lastPct = 0.999
		}

		divisionName := divisionNames[team.DivisionID]
		if divisionName == "" {
			divisionName = fmt.Sprintf("Division %d", team.DivisionID)
		}

		teamResults = append(teamResults, models.TeamResult{
			ID:             team.ID,
			Name:           team.Name,
			DivisionID:     team.DivisionID,
			DivisionName:   divisionName,
			Wins:           team.Wins,
			Losses:         team.Losses,
			Ties:           team.Ties,
			Record:         team.RecordString(),
			DivisionRecord: team.DivisionRecordString(),
			WinPct:         team.WinPct(),
			DivisionPct:    divPct,
			PlayoffPct:     playoffPct,
			FirstSeedPct:   firstSeedPct,
			LastPlacePct:   lastPct,
			MagicDivision:  m.MagicDivision,
			MagicPlayoffs:  m.MagicPlayoffs,
			MagicFirstSeed: m.MagicFirstSeed,
			MagicLast:      m.MagicLast,
		})
	}

	return &models.SimulationResults{
		LeagueName:           settings.LeagueName,
		Platform:             req.Platform,
		LeagueID:             req.LeagueID,
		Season:               req.Season,
		Sport:                string(req.Sport),
		CurrentWeek:          currentWeek,
		TotalWeeks:           totalWeeks,
		Simulations:          nSims,
		Teams:                teamResults,
		ClinchScenarios:      clinch,
		EliminationScenarios: elimination,
	}
}

// taskErrorMessage turns pipeline errors into the message stored on the
// failed task.
func taskErrorMessage(platform string, err error) string {
	switch {
	case errors.Is(err, providers.ErrLeagueNotFound):
		return fmt.Sprintf("league not found on %s", platform)
	case errors.Is(err, providers.ErrLeaguePrivate):
		return "this league is private; only public leagues can be simulated"
	case errors.Is(err, providers.ErrTokenExpired):
		return fmt.Sprintf("%s authentication expired; please reconnect your account", platform)
	case errors.Is(err, simulator.ErrInvalidSnapshot):
		return fmt.Sprintf("league data is inconsistent: %v", err)
	case errors.Is(err, context.Canceled):
		return "simulation cancelled"
	default:
		return err.Error()
	}
}

// MapProviderError converts adapter errors to the API error codes surfaced
// by the validation endpoint.
func MapProviderError(err error) *utils.AppError {
	switch {
	case errors.Is(err, providers.ErrLeagueNotFound):
		return utils.NewAppError(utils.ErrCodeNotFound, "League not found")
	case errors.Is(err, providers.ErrLeaguePrivate):
		return utils.NewAppError(utils.ErrCodeLeaguePrivate, "This league is private. Only public leagues can be simulated.")
	case errors.Is(err, providers.ErrTokenExpired):
		return utils.NewAppError(utils.ErrCodeTokenExpired, "Platform authentication expired. Please reconnect your account.")
	case errors.Is(err, providers.ErrPlatform):
		return utils.NewAppError(utils.ErrCodeProvider, "Error communicating with the platform", err.Error())
	default:
		return utils.NewAppError(utils.ErrCodeInternal, "Unable to run this league", err.Error())
	}
}
