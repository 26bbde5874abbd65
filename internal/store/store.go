// Package store defines the transactional storage the betting engine runs on.
//
// Balance and nonce changes are single conditional statements executed by the
// store inside a transaction; callers never read a value, decide, and write it
// back.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
)

// Store is the durable state shared by every worker.
type Store interface {
	// WithTx runs fn in one transaction. A nil return commits; any error
	// rolls back every change fn made.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Currencies(ctx context.Context) ([]models.Currency, error)
	Bankrolls(ctx context.Context) ([]models.Bankroll, error)
	Balances(ctx context.Context, userID int64) ([]models.Balance, error)
	LatestBets(ctx context.Context, userID int64, limit int) ([]models.Bet, error)
	BetsBySeeds(ctx context.Context, seedIDs []string) ([]models.Bet, error)
	Seed(ctx context.Context, seedID string) (models.SeedState, error)
	SeedsByServerHash(ctx context.Context, serverSeedHash string) ([]models.SeedState, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of mutations available inside a transaction.
type Tx interface {
	// DebitBalance subtracts amount only if the balance covers it, returning
	// models.ErrInsufficientFunds and changing nothing otherwise.
	DebitBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error)
	// CreditBalance adds amount, creating the balance row when missing.
	CreditBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error)
	AdjustBankroll(ctx context.Context, currency string, delta decimal.Decimal) error

	ActiveSeed(ctx context.Context, userID int64) (models.SeedState, error)
	InsertSeed(ctx context.Context, seed models.SeedState) error
	// RetireActiveSeed clears in_use on the user's active seed and returns it
	// as it was before retirement, with RetiredAt set.
	RetireActiveSeed(ctx context.Context, userID int64, at time.Time) (models.SeedState, error)
	// ConsumeNonce increments the nonce of an in-use seed and returns the
	// value before the increment.
	ConsumeNonce(ctx context.Context, seedID string) (int64, error)

	InsertBet(ctx context.Context, bet models.Bet) error
}
