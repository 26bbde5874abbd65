package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/store"
)

// Ledger moves funds on user balances. Debit and Credit run inside a caller's
// transaction; Deposit opens its own.
type Ledger struct {
	store    store.Store
	registry *Registry
	logger   zerolog.Logger
}

func NewLedger(s store.Store, registry *Registry, logger zerolog.Logger) *Ledger {
	return &Ledger{store: s, registry: registry, logger: logger}
}

func (l *Ledger) checkAmount(currency string, amount decimal.Decimal, allowZero bool) error {
	cur, err := l.registry.Currency(currency)
	if err != nil {
		return err
	}
	if amount.IsNegative() || (!allowZero && amount.IsZero()) {
		return models.NewValidationError("amount", "must be positive")
	}
	if !cur.Fits(amount) {
		return models.NewValidationError("amount", "at most %d decimal places allowed", cur.Scale)
	}
	return nil
}

// Debit subtracts amount if and only if the balance covers it.
func (l *Ledger) Debit(ctx context.Context, tx store.Tx, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := l.checkAmount(currency, amount, false); err != nil {
		return decimal.Zero, err
	}
	return tx.DebitBalance(ctx, userID, currency, amount)
}

// Credit adds amount, which may be zero.
func (l *Ledger) Credit(ctx context.Context, tx store.Tx, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := l.checkAmount(currency, amount, true); err != nil {
		return decimal.Zero, err
	}
	return tx.CreditBalance(ctx, userID, currency, amount)
}

func (l *Ledger) Deposit(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	cur, err := l.registry.Currency(currency)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, models.NewValidationError("amount", "must be positive")
	}

	var balance decimal.Decimal
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		balance, err = l.Credit(ctx, tx, userID, cur.ID, amount)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to deposit: %w", err)
	}

	l.logger.Info().
		Int64("user_id", userID).
		Str("currency", cur.ID).
		Str("amount", amount.String()).
		Msg("deposit credited")

	return balance, nil
}

func (l *Ledger) Balances(ctx context.Context, userID int64) ([]models.BalanceResponse, error) {
	balances, err := l.store.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, models.BalanceResponse{Currency: b.Currency, Balance: b.Balance})
	}
	return out, nil
}
