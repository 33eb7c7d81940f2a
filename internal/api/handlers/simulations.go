package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/playoff-odds/internal/api/middleware"
	"github.com/jstittsworth/playoff-odds/internal/models"
	"github.com/jstittsworth/playoff-odds/internal/services"
	"github.com/jstittsworth/playoff-odds/pkg/utils"
)

type SimulationHandler struct {
	simulations *services.SimulationService
	tasks       *services.TaskService
}

func NewSimulationHandler(simulations *services.SimulationService, tasks *services.TaskService) *SimulationHandler {
	return &SimulationHandler{
		simulations: simulations,
		tasks:       tasks,
	}
}

type RunSimulationRequest struct {
	Platform     string `json:"platform" binding:"required"`
	LeagueID     string `json:"league_id" binding:"required"`
	Season       int    `json:"season"`
	Sport        string `json:"sport"`
	NSimulations int    `json:"n_simulations"`
	QuickMode    bool   `json:"quick_mode"`
}

type TaskStatusResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// RunSimulation starts a background simulation and returns its task id.
// POST /api/v1/simulations/run
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	var req RunSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	sport := models.SportBasketball
	if req.Sport != "" {
		parsed, err := models.ParseSport(req.Sport)
		if err != nil {
			utils.SendValidationError(c, "Invalid sport", err.Error())
			return
		}
		sport = parsed
	}

	season := req.Season
	if season == 0 {
		season = models.CurrentSeason(sport)
	}

	userID := middleware.UserID(c)
	if strings.EqualFold(req.Platform, "yahoo") && userID == 0 {
		utils.SendUnauthorized(c, "Authentication required to access Yahoo Fantasy leagues")
		return
	}

	task, err := h.simulations.Start(c.Request.Context(), services.RunRequest{
		Platform:    strings.ToLower(req.Platform),
		LeagueID:    req.LeagueID,
		Season:      season,
		Sport:       sport,
		Simulations: req.NSimulations,
		QuickMode:   req.QuickMode,
		UserID:      userID,
	})
	if err != nil {
		utils.SendAppError(c, services.MapProviderError(err))
		return
	}

	c.JSON(http.StatusAccepted, utils.Response{
		Success: true,
		Data: TaskStatusResponse{
			TaskID:   task.ID,
			Status:   task.Status,
			Progress: task.Progress,
		},
	})
}

// GetStatus reports where a task is in its lifecycle.
// GET /api/v1/simulations/:taskId/status
func (h *SimulationHandler) GetStatus(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.SendNotFound(c, "Task not found")
			return
		}
		utils.SendInternalError(c, "Failed to load task")
		return
	}

	utils.SendSuccess(c, TaskStatusResponse{
		TaskID:   task.ID,
		Status:   task.Status,
		Progress: task.Progress,
		Error:    task.ErrorMessage,
	})
}

// GetResults returns the stored payload of a completed task.
// GET /api/v1/simulations/:taskId/results
func (h *SimulationHandler) GetResults(c *gin.Context) {
	taskID := c.Param("taskId")
	task, err := h.tasks.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.SendNotFound(c, "Task not found")
			return
		}
		utils.SendInternalError(c, "Failed to load task")
		return
	}

	switch task.Status {
	case models.TaskStatusPending, models.TaskStatusRunning:
		utils.SendValidationError(c, "Simulation is still running", "")
		return
	case models.TaskStatusFailed:
		utils.SendError(c, http.StatusInternalServerError,
			utils.NewAppError(utils.ErrCodeSimulation, "Simulation failed", task.ErrorMessage))
		return
	}

	results, err := h.tasks.Results(c.Request.Context(), taskID)
	if err != nil {
		utils.SendInternalError(c, "Failed to decode results")
		return
	}
	utils.SendSuccess(c, results)
}
