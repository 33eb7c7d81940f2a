package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/playoff-odds/internal/api/handlers"
	"github.com/jstittsworth/playoff-odds/internal/api/middleware"
	"github.com/jstittsworth/playoff-odds/internal/services"
	"github.com/jstittsworth/playoff-odds/pkg/config"
	"github.com/jstittsworth/playoff-odds/pkg/database"
)

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(
	group *gin.RouterGroup,
	db *database.DB,
	simulations *services.SimulationService,
	tasks *services.TaskService,
	cfg *config.Config,
) {
	simulationHandler := handlers.NewSimulationHandler(simulations, tasks)
	leagueHandler := handlers.NewLeagueHandler(simulations)

	// Yahoo leagues need the caller's credential; ESPN and Sleeper work
	// anonymously. Optional auth covers both.
	sims := group.Group("/simulations")
	sims.Use(middleware.OptionalAuth(cfg.JWTSecret))
	{
		sims.POST("/run", simulationHandler.RunSimulation)
		sims.GET("/:taskId/status", simulationHandler.GetStatus)
		sims.GET("/:taskId/results", simulationHandler.GetResults)
	}

	leagues := group.Group("/leagues")
	leagues.Use(middleware.OptionalAuth(cfg.JWTSecret))
	{
		leagues.GET("/validate", leagueHandler.ValidateLeague)
	}
}
