package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/feed"
	"dicebet-backend/internal/middleware"
	"dicebet-backend/internal/services"
)

type RouterConfig struct {
	Engine      *services.BettingEngine
	Seeds       *services.SeedManager
	Registry    *services.Registry
	Ledger      *services.Ledger
	Distributor *feed.Distributor
	JWT         *services.JWTService

	// RateLimiter is optional; nil disables per-user limits.
	RateLimiter  middleware.RateLimiter
	BetRateLimit int
	AdminSecret  string

	Health  func(ctx context.Context) error
	Metrics http.Handler
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(middleware.CORS())

	dice := NewDiceHandler(cfg.Engine, cfg.Seeds, cfg.Registry, cfg.Logger)
	verify := NewVerifyHandler(cfg.Seeds, cfg.Logger)
	users := NewUserHandler(cfg.Ledger, cfg.Logger)
	ws := NewWebSocketHandler(cfg.Distributor, cfg.Logger)

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	router.GET("/ws/bets", ws.HandleWatchBets)
	router.GET("/currencies", dice.GetCurrencies)

	verifyGroup := router.Group("/verify")
	{
		verifyGroup.GET("/seeds/:id", verify.GetSeedVerification)
		verifyGroup.POST("/roll", verify.VerifyRoll)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.JWT))
	{
		api.GET("/balances", users.GetBalances)

		diceGroup := api.Group("/dice")
		{
			diceGroup.GET("/state", dice.GetState)
			diceGroup.GET("/bets", dice.GetBets)
			diceGroup.POST("/bet",
				middleware.RateLimitMiddleware(cfg.RateLimiter, services.ActionBet, cfg.BetRateLimit, services.RateLimitWindow, cfg.Logger),
				dice.PlaceBet)
			diceGroup.POST("/seeds/rotate",
				middleware.RateLimitMiddleware(cfg.RateLimiter, services.ActionSeedRotate, services.DefaultRateLimitRotates, services.RateLimitWindow, cfg.Logger),
				dice.RotateSeed)
			diceGroup.POST("/seeds/client", dice.SetClientSeed)
		}
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AdminMiddleware(cfg.AdminSecret))
	{
		admin.POST("/deposits", users.Deposit)
	}

	return router
}
