package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is read-only configuration loaded once at startup.
type Currency struct {
	ID        string          `json:"id" db:"id"`
	Scale     int32           `json:"scale" db:"scale"`
	MinBet    decimal.Decimal `json:"min_bet" db:"min_bet"`
	MaxWin    decimal.Decimal `json:"max_win" db:"max_win"`
	HouseEdge decimal.Decimal `json:"house_edge" db:"house_edge"`
}

// Fits reports whether amount has no more decimal places than the currency scale.
func (c Currency) Fits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(c.Scale))
}

type Balance struct {
	UserID    int64           `json:"user_id" db:"user_id"`
	Currency  string          `json:"currency" db:"currency"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Bankroll is the house reserve for a currency. HighrollerThreshold is
// configuration; Balance absorbs the opposite of every settled bet's profit.
type Bankroll struct {
	Currency            string          `json:"currency" db:"currency"`
	Balance             decimal.Decimal `json:"balance" db:"balance"`
	HighrollerThreshold decimal.Decimal `json:"highroller_threshold" db:"highroller_threshold"`
}

type BalanceResponse struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type DepositRequest struct {
	UserID   int64           `json:"user_id" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}
