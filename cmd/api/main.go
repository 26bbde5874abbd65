package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dicebet-backend/internal/config"
	"dicebet-backend/internal/feed"
	"dicebet-backend/internal/handlers"
	"dicebet-backend/internal/middleware"
	"dicebet-backend/internal/observability"
	"dicebet-backend/internal/services"
	"dicebet-backend/internal/store/postgres"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger := observability.NewLogger("api", "info")
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := observability.NewLogger("api", cfg.LogLevel)
	if envErr != nil {
		logger.Info().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		version, err := postgres.Migrate(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		logger.Info().Uint("version", version).Msg("database migrated")
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	registry, err := services.LoadRegistry(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load currencies")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	distributor := feed.NewDistributor(cfg.FeedCapacity, cfg.FeedSubscriberBuffer, registry.HighrollerThreshold, metrics)
	defer distributor.Close()

	var (
		publisher   services.BetPublisher = distributor
		rateLimiter middleware.RateLimiter
		health      = []func(context.Context) error{db.Ping}
	)
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(ctx, cfg)
		switch {
		case err == nil:
			defer redisService.Close()

			rateLimiter = redisService
			health = append(health, redisService.Ping)

			relay := services.NewBetRelay(redisService, distributor, metrics, observability.NewLogger("relay", cfg.LogLevel))
			sub, err := relay.Subscribe(ctx)
			if err != nil {
				if cfg.IsProduction() {
					logger.Fatal().Err(err).Msg("failed to subscribe bet relay")
				}
				logger.Warn().Err(err).Msg("bet relay unavailable, feed is local to this instance")
				break
			}
			go func() {
				if err := relay.Run(ctx, sub); err != nil {
					logger.Error().Err(err).Msg("bet relay stopped")
				}
			}()
			publisher = relay
			health = append(health, relay.Check)
		case cfg.IsProduction():
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		default:
			logger.Warn().Err(err).Msg("redis unavailable, running without rate limits")
		}
	}

	ledger := services.NewLedger(db, registry, logger)
	seeds := services.NewSeedManager(db, logger)
	engine := services.NewBettingEngine(db, registry, ledger, seeds, logger,
		services.WithPublisher(publisher),
		services.WithMetrics(metrics),
		services.WithMaxRetries(cfg.BetMaxRetries),
	)

	healthCheck := func(ctx context.Context) error {
		for _, check := range health {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Engine:       engine,
		Seeds:        seeds,
		Registry:     registry,
		Ledger:       ledger,
		Distributor:  distributor,
		JWT:          services.NewJWTService(cfg),
		RateLimiter:  rateLimiter,
		BetRateLimit: cfg.BetRateLimit,
		AdminSecret:  cfg.AdminSecret,
		Health:       healthCheck,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// feed clients hold hijacked connections that Shutdown does not wait for
	distributor.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
