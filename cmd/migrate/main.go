// Command migrate applies or rolls back the database schema.
//
//	migrate up
//	migrate down [steps]
package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"dicebet-backend/internal/observability"
	"dicebet-backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()
	logger := observability.NewLogger("migrate", os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		version, err := postgres.Migrate(dsn)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Uint("version", version).Msg("database is up to date")
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				logger.Fatal().Str("steps", os.Args[2]).Msg("steps must be a positive integer")
			}
			steps = n
		}
		if err := postgres.MigrateDown(dsn, steps); err != nil {
			logger.Fatal().Err(err).Msg("rollback failed")
		}
		logger.Info().Int("steps", steps).Msg("rolled back")
	default:
		logger.Fatal().Str("command", cmd).Msg("usage: migrate up | down [steps]")
	}
}
