package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/services"
)

type DiceHandler struct {
	engine   *services.BettingEngine
	seeds    *services.SeedManager
	registry *services.Registry
	logger   zerolog.Logger
}

func NewDiceHandler(engine *services.BettingEngine, seeds *services.SeedManager, registry *services.Registry, logger zerolog.Logger) *DiceHandler {
	return &DiceHandler{
		engine:   engine,
		seeds:    seeds,
		registry: registry,
		logger:   logger,
	}
}

func (h *DiceHandler) GetCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"currencies": h.registry.Currencies(),
	})
}

// GetState returns the active commitment for the user together with the
// limits of the requested currency. client_seed only applies when the user
// has no seed yet.
func (h *DiceHandler) GetState(c *gin.Context) {
	userID := c.GetInt64("user_id")

	currency := c.Query("currency")
	if currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "currency is required"})
		return
	}

	state, err := h.engine.DiceState(c.Request.Context(), userID, currency, c.Query("client_seed"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   state,
	})
}

func (h *DiceHandler) PlaceBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.engine.PlaceBet(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *DiceHandler) GetBets(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limit := services.MaxLatestBets
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	bets, err := h.engine.LatestBets(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bets":    bets,
	})
}

// RotateSeed reveals the current server seed and commits to a new one. The
// body is optional.
func (h *DiceHandler) RotateSeed(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	rotation, err := h.seeds.Rotate(c.Request.Context(), userID, req.ClientSeed)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"current":  rotation.Current,
		"previous": rotation.Previous,
	})
}

func (h *DiceHandler) SetClientSeed(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	seed, err := h.seeds.SetClientSeed(c.Request.Context(), userID, req.ClientSeed)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"seed":    seed,
	})
}
