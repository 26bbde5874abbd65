package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/observability"
	"dicebet-backend/internal/services"
	"dicebet-backend/internal/store"
	"dicebet-backend/internal/store/memory"
)

const (
	testServerSeed = "9b3e5c0f7a2d4e6b8c1f3a5d7e9b0c2d4f6a8b1c3e5d7f9a0b2c4d6e8f1a3b5c"
	testServerHash = "2e0324feb481397321a11e7dadc28b97cb962e37e4f4468d37c26d91bfeaf4af"
	testClientSeed = "lucky-client-seed"

	testUser = int64(42)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

var btc = models.Currency{
	ID:        "BTC",
	Scale:     8,
	MinBet:    dec("0.00000001"),
	MaxWin:    dec("1000"),
	HouseEdge: dec("0.01"),
}

type recordingPublisher struct {
	mu   sync.Mutex
	bets []models.Bet
	// seen is the number of committed bets at publish time
	seen  []int
	store *memory.Store
}

func (p *recordingPublisher) PublishBet(ctx context.Context, bet models.Bet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bets = append(p.bets, bet)
	p.seen = append(p.seen, p.store.BetCount())
	return nil
}

func (p *recordingPublisher) Published() []models.Bet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Bet(nil), p.bets...)
}

type testEnv struct {
	mem       *memory.Store
	registry  *services.Registry
	ledger    *services.Ledger
	seeds     *services.SeedManager
	engine    *services.BettingEngine
	publisher *recordingPublisher
	metrics   *observability.Metrics
}

// newTestEnv builds an engine over a memory store. wrap, when set, decorates
// the store the services see.
func newTestEnv(t *testing.T, wrap func(store.Store) store.Store, opts ...services.Option) *testEnv {
	t.Helper()

	mem := memory.New()
	mem.AddCurrency(btc)
	mem.AddBankroll(models.Bankroll{Currency: "BTC", Balance: dec("1000"), HighrollerThreshold: dec("0.5")})

	var s store.Store = mem
	if wrap != nil {
		s = wrap(mem)
	}

	registry, err := services.LoadRegistry(context.Background(), s)
	require.NoError(t, err)

	logger := zerolog.Nop()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ledger := services.NewLedger(s, registry, logger)
	seeds := services.NewSeedManager(s, logger)
	publisher := &recordingPublisher{store: mem}

	opts = append([]services.Option{services.WithPublisher(publisher), services.WithMetrics(metrics)}, opts...)
	engine := services.NewBettingEngine(s, registry, ledger, seeds, logger, opts...)

	return &testEnv{
		mem:       mem,
		registry:  registry,
		ledger:    ledger,
		seeds:     seeds,
		engine:    engine,
		publisher: publisher,
		metrics:   metrics,
	}
}

// useKnownSeed installs the fixed test seed as the user's active seed.
func (e *testEnv) useKnownSeed(t *testing.T, userID int64) models.SeedState {
	t.Helper()
	seed := models.SeedState{
		ID:             models.NewID(),
		UserID:         userID,
		ServerSeed:     testServerSeed,
		ServerSeedHash: testServerHash,
		ClientSeed:     testClientSeed,
		InUse:          true,
	}
	require.NoError(t, e.mem.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertSeed(context.Background(), seed)
	}))
	return seed
}

func (e *testEnv) balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	balances, err := e.mem.Balances(context.Background(), userID)
	require.NoError(t, err)
	for _, b := range balances {
		if b.Currency == "BTC" {
			return b.Balance
		}
	}
	return decimal.Zero
}

func (e *testEnv) bankroll(t *testing.T) decimal.Decimal {
	t.Helper()
	b, ok := e.mem.Bankroll("BTC")
	require.True(t, ok)
	return b.Balance
}

func betRequest(stake, chance string) *models.BetRequest {
	c := dec(chance)
	return &models.BetRequest{
		Currency: "BTC",
		Amount:   dec(stake),
		Chance:   c,
		Target:   int(c.Mul(decimal.NewFromInt(100)).IntPart()),
	}
}

var errCreditFailed = errors.New("credit failed")

type failingCreditStore struct {
	*memory.Store
}

func (s failingCreditStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(failingCreditTx{tx})
	})
}

type failingCreditTx struct {
	store.Tx
}

func (failingCreditTx) CreditBalance(context.Context, int64, string, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, errCreditFailed
}

// conflictingStore fails the first n transactions with a persistence
// conflict before running fn.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	remaining int
	attempts  int
}

func (s *conflictingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	s.attempts++
	fail := s.remaining > 0
	if fail {
		s.remaining--
	}
	s.mu.Unlock()

	if fail {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := fn(tx); err != nil {
				return err
			}
			return models.ErrPersistenceConflict
		})
	}
	return s.Store.WithTx(ctx, fn)
}
