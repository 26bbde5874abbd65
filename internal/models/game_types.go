package models

import "github.com/shopspring/decimal"

type BetRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"bet_amount"`
	Target   int             `json:"target"`
	Chance   decimal.Decimal `json:"chance"`
}

type BetResult struct {
	Bet        Bet             `json:"bet"`
	Win        bool            `json:"win"`
	Payout     decimal.Decimal `json:"payout"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Balance    decimal.Decimal `json:"balance"`
	NextNonce  int64           `json:"next_nonce"`
}

// DiceState is what a client needs before betting: the active commitment,
// the betting limits of the currency and the user's latest bets.
type DiceState struct {
	ClientSeed     string          `json:"client_seed"`
	ServerSeedHash string          `json:"server_seed_hash"`
	Nonce          int64           `json:"nonce"`
	MinBetAmount   decimal.Decimal `json:"min_bet_amount"`
	MaxWin         decimal.Decimal `json:"max_win"`
	LatestUserBets []Bet           `json:"latest_user_bets"`
}

type VerifyRollRequest struct {
	ServerSeed     string `json:"server_seed" binding:"required"`
	ClientSeed     string `json:"client_seed" binding:"required"`
	Nonce          int64  `json:"nonce"`
	ServerSeedHash string `json:"server_seed_hash"`
}

type VerifyRollResponse struct {
	Roll           int    `json:"roll"`
	ServerSeedHash string `json:"server_seed_hash"`
	HashMatches    *bool  `json:"hash_matches,omitempty"`
}
