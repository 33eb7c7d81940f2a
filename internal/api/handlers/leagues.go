package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/playoff-odds/internal/api/middleware"
	"github.com/jstittsworth/playoff-odds/internal/models"
	"github.com/jstittsworth/playoff-odds/internal/services"
	"github.com/jstittsworth/playoff-odds/pkg/utils"
)

type LeagueHandler struct {
	simulations *services.SimulationService
}

func NewLeagueHandler(simulations *services.SimulationService) *LeagueHandler {
	return &LeagueHandler{simulations: simulations}
}

// ValidateLeague checks a league exists before the client submits a full
// simulation.
// GET /api/v1/leagues/validate?platform=espn&league_id=123&season=2026&sport=basketball
func (h *LeagueHandler) ValidateLeague(c *gin.Context) {
	platform := strings.ToLower(c.Query("platform"))
	leagueID := c.Query("league_id")
	if platform == "" || leagueID == "" {
		utils.SendValidationError(c, "platform and league_id are required", "")
		return
	}

	sport := models.SportBasketball
	if s := c.Query("sport"); s != "" {
		parsed, err := models.ParseSport(s)
		if err != nil {
			utils.SendValidationError(c, "Invalid sport", err.Error())
			return
		}
		sport = parsed
	}

	season := models.CurrentSeason(sport)
	if s := c.Query("season"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			utils.SendValidationError(c, "Invalid season", err.Error())
			return
		}
		season = parsed
	}

	userID := middleware.UserID(c)
	if platform == "yahoo" && userID == 0 {
		utils.SendUnauthorized(c, "Authentication required to access Yahoo Fantasy leagues")
		return
	}

	if err := h.simulations.ValidateLeague(c.Request.Context(), platform, leagueID, season, sport, userID); err != nil {
		utils.SendAppError(c, services.MapProviderError(err))
		return
	}

	utils.SendSuccess(c, gin.H{
		"platform":  platform,
		"league_id": leagueID,
		"season":    season,
		"valid":     true,
	})
}
