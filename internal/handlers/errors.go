package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/models"
)

// writeError maps a service error onto a response. Anything unrecognised is
// logged and reported as a 500 without details.
func writeError(c *gin.Context, logger zerolog.Logger, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, models.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, models.ErrUnknownCurrency):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown currency"})
	case errors.Is(err, models.ErrSeedNotRevealed):
		c.JSON(http.StatusConflict, gin.H{"error": "Server seed is still in use"})
	case errors.Is(err, models.ErrTryAgain):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Please try again"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		logger.Error().Err(err).
			Str("path", c.FullPath()).
			Int64("user_id", c.GetInt64("user_id")).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
