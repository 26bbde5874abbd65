package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/services"
)

type UserHandler struct {
	ledger *services.Ledger
	logger zerolog.Logger
}

func NewUserHandler(ledger *services.Ledger, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		ledger: ledger,
		logger: logger,
	}
}

func (h *UserHandler) GetBalances(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	balances, err := h.ledger.Balances(c.Request.Context(), userID.(int64))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"balances": balances,
	})
}

// Deposit credits a user's balance. It is mounted behind the admin secret.
func (h *UserHandler) Deposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	balance, err := h.ledger.Deposit(c.Request.Context(), req.UserID, req.Currency, req.Amount)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{Currency: strings.ToUpper(req.Currency), Balance: balance},
	})
}
