package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bet is written once at settlement and never updated.
type Bet struct {
	ID        string          `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Currency  string          `json:"currency" db:"currency"`
	Stake     decimal.Decimal `json:"bet_amount" db:"stake"`
	Profit    decimal.Decimal `json:"profit" db:"profit"`
	Roll      int             `json:"roll" db:"roll"`
	Target    int             `json:"target" db:"target"`
	Chance    decimal.Decimal `json:"chance" db:"chance"`
	SeedID    string          `json:"seed_id" db:"seed_id"`
	Nonce     int64           `json:"nonce" db:"nonce"`
	CreatedAt time.Time       `json:"date" db:"created_at"`
}

func (b Bet) Won() bool {
	return b.Roll < b.Target
}

func (b Bet) Payout() decimal.Decimal {
	return b.Stake.Add(b.Profit)
}

// FeedBet is the spectator view of a settled bet.
type FeedBet struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id"`
	Currency     string          `json:"currency"`
	Stake        decimal.Decimal `json:"bet_amount"`
	Payout       decimal.Decimal `json:"payout"`
	Profit       decimal.Decimal `json:"profit"`
	Roll         int             `json:"roll"`
	Target       int             `json:"target"`
	Chance       decimal.Decimal `json:"chance"`
	Date         time.Time       `json:"date"`
	IsHighroller bool            `json:"is_highroller"`
}

func NewFeedBet(b Bet) FeedBet {
	return FeedBet{
		ID:       b.ID,
		UserID:   b.UserID,
		Currency: b.Currency,
		Stake:    b.Stake,
		Payout:   b.Payout(),
		Profit:   b.Profit,
		Roll:     b.Roll,
		Target:   b.Target,
		Chance:   b.Chance,
		Date:     b.CreatedAt,
	}
}
