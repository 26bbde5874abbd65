package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/store"
)

// Registry is the read-only currency configuration, loaded once at startup.
type Registry struct {
	currencies map[string]models.Currency
	thresholds map[string]decimal.Decimal
}

func NewRegistry(currencies []models.Currency, bankrolls []models.Bankroll) *Registry {
	r := &Registry{
		currencies: make(map[string]models.Currency, len(currencies)),
		thresholds: make(map[string]decimal.Decimal, len(bankrolls)),
	}
	for _, c := range currencies {
		r.currencies[c.ID] = c
	}
	for _, b := range bankrolls {
		r.thresholds[b.Currency] = b.HighrollerThreshold
	}
	return r
}

func LoadRegistry(ctx context.Context, s store.Store) (*Registry, error) {
	currencies, err := s.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	if len(currencies) == 0 {
		return nil, fmt.Errorf("no currencies configured")
	}
	bankrolls, err := s.Bankrolls(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(currencies, bankrolls), nil
}

func (r *Registry) Currency(id string) (models.Currency, error) {
	c, ok := r.currencies[strings.ToUpper(id)]
	if !ok {
		return models.Currency{}, fmt.Errorf("%w: %s", models.ErrUnknownCurrency, id)
	}
	return c, nil
}

// HighrollerThreshold returns the stake or payout at which a bet enters the
// highroller feed. ok is false when the currency has no bankroll.
func (r *Registry) HighrollerThreshold(currency string) (decimal.Decimal, bool) {
	t, ok := r.thresholds[currency]
	return t, ok
}

func (r *Registry) Currencies() []models.Currency {
	out := make([]models.Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
