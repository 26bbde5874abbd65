package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/fairness"
	"dicebet-backend/internal/models"
	"dicebet-backend/internal/services"
)

// VerifyHandler serves the public verification endpoints. None of them need
// authentication.
type VerifyHandler struct {
	seeds  *services.SeedManager
	logger zerolog.Logger
}

func NewVerifyHandler(seeds *services.SeedManager, logger zerolog.Logger) *VerifyHandler {
	return &VerifyHandler{
		seeds:  seeds,
		logger: logger,
	}
}

func (h *VerifyHandler) GetSeedVerification(c *gin.Context) {
	v, err := h.seeds.Verification(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrSeedNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seed not found"})
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"verification": v,
	})
}

// VerifyRoll recomputes a single roll from caller supplied seeds.
func (h *VerifyHandler) VerifyRoll(c *gin.Context) {
	var req models.VerifyRollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Nonce < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nonce must not be negative"})
		return
	}

	resp := models.VerifyRollResponse{
		Roll:           fairness.Roll(req.ServerSeed, req.ClientSeed, req.Nonce),
		ServerSeedHash: fairness.HashServerSeed(req.ServerSeed),
	}
	if req.ServerSeedHash != "" {
		_, err := fairness.Verify(req.ServerSeed, strings.TrimSpace(req.ServerSeedHash), req.ClientSeed, req.Nonce)
		matches := err == nil
		resp.HashMatches = &matches
	}

	c.JSON(http.StatusOK, resp)
}
