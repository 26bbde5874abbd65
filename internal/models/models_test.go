package models_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
)

var btc = models.Currency{
	ID:        "BTC",
	Scale:     8,
	MinBet:    decimal.RequireFromString("0.0001"),
	MaxWin:    decimal.RequireFromString("1"),
	HouseEdge: decimal.RequireFromString("0.01"),
}

func bet(amount, chance string, target int) *models.BetRequest {
	return &models.BetRequest{
		Currency: "BTC",
		Amount:   decimal.RequireFromString(amount),
		Chance:   decimal.RequireFromString(chance),
		Target:   target,
	}
}

func TestBetRequestValidate(t *testing.T) {
	if err := bet("0.001", "50", 5000).Validate(btc); err != nil {
		t.Errorf("valid bet rejected: %v", err)
	}
	if err := bet("0.001", "0.01", 1).Validate(btc); err != nil {
		t.Errorf("minimum chance rejected: %v", err)
	}
	if err := bet("0.001", "98", 9800).Validate(btc); err != nil {
		t.Errorf("maximum chance rejected: %v", err)
	}

	wrongCurrency := bet("0.001", "50", 5000)
	wrongCurrency.Currency = "ETH"

	invalid := map[string]*models.BetRequest{
		"wrong currency":     wrongCurrency,
		"zero amount":        bet("0", "50", 5000),
		"negative amount":    bet("-1", "50", 5000),
		"too many decimals":  bet("0.000000001", "50", 5000),
		"below minimum":      bet("0.00001", "50", 5000),
		"chance too low":     bet("0.001", "0", 0),
		"chance too high":    bet("0.001", "98.01", 9801),
		"chance precision":   bet("0.001", "50.125", 5012),
		"target mismatch":    bet("0.001", "50", 4999),
		"profit above limit": bet("1", "1", 100),
	}
	for name, req := range invalid {
		err := req.Validate(btc)
		if err == nil {
			t.Errorf("%s: expected validation error", name)
			continue
		}
		if !models.IsValidationError(err) {
			t.Errorf("%s: expected ValidationError, got %T", name, err)
		}
	}
}

func TestValidateClientSeed(t *testing.T) {
	for _, seed := range []string{"a", "lucky-client-seed", strings.Repeat("x", models.MaxClientSeedLength)} {
		if err := models.ValidateClientSeed(seed); err != nil {
			t.Errorf("%q rejected: %v", seed, err)
		}
	}
	for _, seed := range []string{"", strings.Repeat("x", models.MaxClientSeedLength+1), "tab\there", "ünicode"} {
		if err := models.ValidateClientSeed(seed); err == nil {
			t.Errorf("%q accepted", seed)
		}
	}
}

func TestSeedLastNonce(t *testing.T) {
	if got := (models.SeedState{Nonce: 0}).LastNonce(); got != 0 {
		t.Errorf("unused seed: got %d", got)
	}
	if got := (models.SeedState{Nonce: 12}).LastNonce(); got != 11 {
		t.Errorf("expected 11, got %d", got)
	}
}

func TestNewFeedBet(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := models.Bet{
		ID:        models.NewID(),
		UserID:    7,
		Currency:  "BTC",
		Stake:     decimal.RequireFromString("0.5"),
		Profit:    decimal.RequireFromString("0.49"),
		Roll:      1234,
		Target:    5000,
		Chance:    decimal.RequireFromString("50"),
		CreatedAt: at,
	}

	if !b.Won() {
		t.Error("roll below target should win")
	}

	fb := models.NewFeedBet(b)
	if !fb.Payout.Equal(decimal.RequireFromString("0.99")) {
		t.Errorf("expected payout 0.99, got %s", fb.Payout)
	}
	if fb.Date != at || fb.ID != b.ID || fb.IsHighroller {
		t.Errorf("unexpected feed bet %+v", fb)
	}

	b.Roll = 5000
	b.Profit = b.Stake.Neg()
	if b.Won() {
		t.Error("roll equal to target should lose")
	}
	if !b.Payout().IsZero() {
		t.Errorf("losing payout should be zero, got %s", b.Payout())
	}
}

func TestValidationError(t *testing.T) {
	err := models.NewValidationError("chance", "must be at most %d", 98)
	if err.Error() != "invalid chance: must be at most 98" {
		t.Errorf("unexpected message %q", err.Error())
	}

	wrapped := errors.Join(errors.New("context"), err)
	if !models.IsValidationError(wrapped) {
		t.Error("wrapped validation error not detected")
	}
	if models.IsValidationError(models.ErrInsufficientFunds) {
		t.Error("sentinel reported as validation error")
	}
	if models.NewID() == models.NewID() {
		t.Error("ids should be unique")
	}
}
