package models

import (
	"github.com/google/uuid"

	"dicebet-backend/internal/fairness"
)

const MaxClientSeedLength = 64

func NewID() string {
	return uuid.NewString()
}

// Validate checks the request against the currency configuration before any
// state is touched.
func (br *BetRequest) Validate(cur Currency) error {
	if br.Currency != cur.ID {
		return NewValidationError("currency", "expected %s, got %s", cur.ID, br.Currency)
	}
	if !br.Amount.IsPositive() {
		return NewValidationError("bet_amount", "must be positive")
	}
	if !cur.Fits(br.Amount) {
		return NewValidationError("bet_amount", "at most %d decimal places allowed", cur.Scale)
	}
	if br.Amount.LessThan(cur.MinBet) {
		return NewValidationError("bet_amount", "minimum bet is %s", cur.MinBet.StringFixed(cur.Scale))
	}
	if !fairness.ValidChance(br.Chance) {
		return NewValidationError("chance", "must be between %s and %s with at most two decimals",
			fairness.MinChance, fairness.MaxChance)
	}
	if want := fairness.Target(br.Chance); br.Target != want {
		return NewValidationError("target", "expected %d for chance %s, got %d", want, br.Chance, br.Target)
	}

	profit := fairness.Payout(br.Amount, br.Chance, cur.HouseEdge, cur.Scale).Sub(br.Amount)
	if cur.MaxWin.IsPositive() && profit.GreaterThan(cur.MaxWin) {
		return NewValidationError("bet_amount", "potential profit %s exceeds max win %s",
			profit.StringFixed(cur.Scale), cur.MaxWin.StringFixed(cur.Scale))
	}

	return nil
}

func ValidateClientSeed(seed string) error {
	if seed == "" {
		return NewValidationError("client_seed", "must not be empty")
	}
	if len(seed) > MaxClientSeedLength {
		return NewValidationError("client_seed", "at most %d characters", MaxClientSeedLength)
	}
	for _, r := range seed {
		if r < 0x20 || r > 0x7e {
			return NewValidationError("client_seed", "only printable ASCII characters allowed")
		}
	}
	return nil
}
