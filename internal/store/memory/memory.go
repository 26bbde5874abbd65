// Package memory is an in-process store.Store used by tests and local runs
// without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/store"
)

type balanceKey struct {
	userID   int64
	currency string
}

type state struct {
	currencies map[string]models.Currency
	bankrolls  map[string]models.Bankroll
	balances   map[balanceKey]models.Balance
	seeds      map[string]models.SeedState
	bets       []models.Bet
}

func (s *state) clone() *state {
	c := &state{
		currencies: make(map[string]models.Currency, len(s.currencies)),
		bankrolls:  make(map[string]models.Bankroll, len(s.bankrolls)),
		balances:   make(map[balanceKey]models.Balance, len(s.balances)),
		seeds:      make(map[string]models.SeedState, len(s.seeds)),
		bets:       append([]models.Bet(nil), s.bets...),
	}
	for k, v := range s.currencies {
		c.currencies[k] = v
	}
	for k, v := range s.bankrolls {
		c.bankrolls[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.seeds {
		c.seeds[k] = v
	}
	return c
}

// Store serializes transactions behind one mutex. Each transaction works on a
// copy of the state that replaces the original only when fn succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: &state{
		currencies: make(map[string]models.Currency),
		bankrolls:  make(map[string]models.Bankroll),
		balances:   make(map[balanceKey]models.Balance),
		seeds:      make(map[string]models.SeedState),
	}}
}

func (s *Store) AddCurrency(c models.Currency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.currencies[c.ID] = c
}

func (s *Store) AddBankroll(b models.Bankroll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.bankrolls[b.Currency] = b
}

func (s *Store) SetBalance(userID int64, currency string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.balances[balanceKey{userID, currency}] = models.Balance{
		UserID:    userID,
		Currency:  currency,
		Balance:   amount,
		UpdatedAt: time.Now(),
	}
}

// Bankroll returns the current reserve for a currency.
func (s *Store) Bankroll(currency string) (models.Bankroll, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.bankrolls[currency]
	return b, ok
}

// BetCount returns the number of settled bets.
func (s *Store) BetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.bets)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&Tx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Currencies(ctx context.Context) ([]models.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Currency, 0, len(s.state.currencies))
	for _, c := range s.state.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Bankrolls(ctx context.Context) ([]models.Bankroll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Bankroll, 0, len(s.state.bankrolls))
	for _, b := range s.state.bankrolls {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *Store) Balances(ctx context.Context, userID int64) ([]models.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Balance
	for k, b := range s.state.balances {
		if k.userID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *Store) LatestBets(ctx context.Context, userID int64, limit int) ([]models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Bet
	for i := len(s.state.bets) - 1; i >= 0 && len(out) < limit; i-- {
		if s.state.bets[i].UserID == userID {
			out = append(out, s.state.bets[i])
		}
	}
	return out, nil
}

func (s *Store) BetsBySeeds(ctx context.Context, seedIDs []string) ([]models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		wanted[id] = true
	}

	var out []models.Bet
	for _, b := range s.state.bets {
		if wanted[b.SeedID] {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out, nil
}

func (s *Store) Seed(ctx context.Context, seedID string) (models.SeedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seed, ok := s.state.seeds[seedID]
	if !ok {
		return models.SeedState{}, models.ErrSeedNotFound
	}
	return seed, nil
}

func (s *Store) SeedsByServerHash(ctx context.Context, serverSeedHash string) ([]models.SeedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SeedState
	for _, seed := range s.state.seeds {
		if seed.ServerSeedHash == serverSeedHash {
			out = append(out, seed)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InitialNonce != out[j].InitialNonce {
			return out[i].InitialNonce < out[j].InitialNonce
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type Tx struct {
	state *state
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) DebitBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	key := balanceKey{userID, currency}
	b, ok := t.state.balances[key]
	if !ok || b.Balance.LessThan(amount) {
		return decimal.Zero, models.ErrInsufficientFunds
	}
	b.Balance = b.Balance.Sub(amount)
	b.UpdatedAt = time.Now()
	t.state.balances[key] = b
	return b.Balance, nil
}

func (t *Tx) CreditBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	key := balanceKey{userID, currency}
	b, ok := t.state.balances[key]
	if !ok {
		b = models.Balance{UserID: userID, Currency: currency, Balance: decimal.Zero}
	}
	b.Balance = b.Balance.Add(amount)
	b.UpdatedAt = time.Now()
	t.state.balances[key] = b
	return b.Balance, nil
}

func (t *Tx) AdjustBankroll(ctx context.Context, currency string, delta decimal.Decimal) error {
	b, ok := t.state.bankrolls[currency]
	if !ok {
		return fmt.Errorf("bankroll %s: %w", currency, models.ErrUnknownCurrency)
	}
	b.Balance = b.Balance.Add(delta)
	t.state.bankrolls[currency] = b
	return nil
}

func (t *Tx) ActiveSeed(ctx context.Context, userID int64) (models.SeedState, error) {
	for _, seed := range t.state.seeds {
		if seed.UserID == userID && seed.InUse {
			return seed, nil
		}
	}
	return models.SeedState{}, models.ErrSeedNotFound
}

func (t *Tx) InsertSeed(ctx context.Context, seed models.SeedState) error {
	if _, exists := t.state.seeds[seed.ID]; exists {
		return fmt.Errorf("seed %s exists: %w", seed.ID, models.ErrPersistenceConflict)
	}
	if seed.InUse {
		if _, err := t.ActiveSeed(ctx, seed.UserID); err == nil {
			return fmt.Errorf("user %d already has an active seed: %w", seed.UserID, models.ErrPersistenceConflict)
		}
	}
	t.state.seeds[seed.ID] = seed
	return nil
}

func (t *Tx) RetireActiveSeed(ctx context.Context, userID int64, at time.Time) (models.SeedState, error) {
	seed, err := t.ActiveSeed(ctx, userID)
	if err != nil {
		return models.SeedState{}, err
	}
	seed.InUse = false
	seed.RetiredAt = &at
	t.state.seeds[seed.ID] = seed
	return seed, nil
}

func (t *Tx) ConsumeNonce(ctx context.Context, seedID string) (int64, error) {
	seed, ok := t.state.seeds[seedID]
	if !ok {
		return 0, fmt.Errorf("seed %s: %w", seedID, models.ErrSeedNotFound)
	}
	if !seed.InUse {
		return 0, fmt.Errorf("seed %s retired: %w", seedID, models.ErrPersistenceConflict)
	}
	nonce := seed.Nonce
	seed.Nonce++
	t.state.seeds[seedID] = seed
	return nonce, nil
}

func (t *Tx) InsertBet(ctx context.Context, bet models.Bet) error {
	for _, b := range t.state.bets {
		if b.ID == bet.ID || (b.SeedID == bet.SeedID && b.Nonce == bet.Nonce) {
			return fmt.Errorf("bet %s duplicates nonce %d: %w", bet.ID, bet.Nonce, models.ErrPersistenceConflict)
		}
	}
	t.state.bets = append(t.state.bets, bet)
	return nil
}
