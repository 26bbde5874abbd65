package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dicebet-backend/internal/fairness"
	"dicebet-backend/internal/models"
	"dicebet-backend/internal/observability"
	"dicebet-backend/internal/store"
)

const (
	MaxLatestBets     = 50
	defaultMaxRetries = 3
)

// BettingEngine settles dice bets. Each bet is one store transaction; the
// settled bet is published only after that transaction commits.
type BettingEngine struct {
	store     store.Store
	registry  *Registry
	ledger    *Ledger
	seeds     *SeedManager
	publisher BetPublisher
	metrics   *observability.Metrics
	logger    zerolog.Logger

	maxRetries int
	now        func() time.Time
}

type Option func(*BettingEngine)

func WithMaxRetries(n int) Option {
	return func(be *BettingEngine) { be.maxRetries = n }
}

func WithClock(now func() time.Time) Option {
	return func(be *BettingEngine) { be.now = now }
}

func WithPublisher(p BetPublisher) Option {
	return func(be *BettingEngine) { be.publisher = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(be *BettingEngine) { be.metrics = m }
}

func NewBettingEngine(s store.Store, registry *Registry, ledger *Ledger, seeds *SeedManager, logger zerolog.Logger, opts ...Option) *BettingEngine {
	be := &BettingEngine{
		store:      s,
		registry:   registry,
		ledger:     ledger,
		seeds:      seeds,
		publisher:  nopPublisher{},
		logger:     logger,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(be)
	}
	if be.metrics == nil {
		be.metrics = observability.NewNopMetrics()
	}
	return be
}

func (be *BettingEngine) PlaceBet(ctx context.Context, userID int64, req *models.BetRequest) (*models.BetResult, error) {
	start := time.Now()

	cur, err := be.registry.Currency(req.Currency)
	if err != nil {
		be.metrics.BetFailures.WithLabelValues("validation").Inc()
		return nil, models.NewValidationError("currency", "unknown currency %s", req.Currency)
	}
	req.Currency = cur.ID
	if err := req.Validate(cur); err != nil {
		be.metrics.BetFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	var result *models.BetResult
	onConflict := func(attempt int, err error) {
		be.metrics.BetConflicts.Inc()
		be.logger.Warn().Err(err).Int64("user_id", userID).Int("attempt", attempt).Msg("bet conflicted, retrying")
	}
	err = withRetry(ctx, be.maxRetries, onConflict, func() error {
		return be.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			result, err = be.settle(ctx, tx, userID, cur, req)
			return err
		})
	})
	if err != nil {
		be.recordFailure(userID, err)
		return nil, err
	}

	be.metrics.BetDuration.Observe(time.Since(start).Seconds())
	be.metrics.BetsSettled.WithLabelValues(cur.ID, resultLabel(result.Win)).Inc()
	be.logger.Debug().
		Int64("user_id", userID).
		Str("bet_id", result.Bet.ID).
		Str("currency", cur.ID).
		Int64("nonce", result.Bet.Nonce).
		Int("roll", result.Bet.Roll).
		Str("profit", result.Bet.Profit.String()).
		Msg("bet settled")

	if err := be.publisher.PublishBet(context.WithoutCancel(ctx), result.Bet); err != nil {
		be.logger.Warn().Err(err).Str("bet_id", result.Bet.ID).Msg("failed to publish bet")
	}

	return result, nil
}

// settle runs the whole bet inside tx. Any error rolls every step back.
func (be *BettingEngine) settle(ctx context.Context, tx store.Tx, userID int64, cur models.Currency, req *models.BetRequest) (*models.BetResult, error) {
	stake := req.Amount

	if _, err := be.ledger.Debit(ctx, tx, userID, cur.ID, stake); err != nil {
		return nil, err
	}

	seed, err := be.seeds.activeOrCreate(ctx, tx, userID, "")
	if err != nil {
		return nil, err
	}
	nonce, err := be.seeds.ConsumeNonce(ctx, tx, seed.ID)
	if err != nil {
		return nil, err
	}

	roll := fairness.Roll(seed.ServerSeed, seed.ClientSeed, nonce)
	target := fairness.Target(req.Chance)
	profit := fairness.Profit(roll, target, req.Chance, stake, cur.HouseEdge, cur.Scale)
	payout := stake.Add(profit)

	balance, err := be.ledger.Credit(ctx, tx, userID, cur.ID, payout)
	if err != nil {
		return nil, err
	}
	if err := tx.AdjustBankroll(ctx, cur.ID, profit.Neg()); err != nil {
		return nil, err
	}

	bet := models.Bet{
		ID:        models.NewID(),
		UserID:    userID,
		Currency:  cur.ID,
		Stake:     stake,
		Profit:    profit,
		Roll:      roll,
		Target:    target,
		Chance:    req.Chance,
		SeedID:    seed.ID,
		Nonce:     nonce,
		CreatedAt: be.now().UTC(),
	}
	if err := tx.InsertBet(ctx, bet); err != nil {
		return nil, err
	}

	return &models.BetResult{
		Bet:        bet,
		Win:        bet.Won(),
		Payout:     payout,
		Multiplier: fairness.Multiplier(req.Chance, cur.HouseEdge),
		Balance:    balance,
		NextNonce:  nonce + 1,
	}, nil
}

func (be *BettingEngine) recordFailure(userID int64, err error) {
	reason := "internal"
	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		reason = "insufficient_funds"
	case errors.Is(err, models.ErrTryAgain):
		reason = "conflict"
	case models.IsValidationError(err):
		reason = "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	}
	be.metrics.BetFailures.WithLabelValues(reason).Inc()

	if reason == "internal" || reason == "conflict" {
		be.logger.Error().Err(err).Int64("user_id", userID).Str("reason", reason).Msg("bet failed")
	}
}

func resultLabel(win bool) string {
	if win {
		return "win"
	}
	return "loss"
}

// LatestBets returns the user's most recent bets, newest first.
func (be *BettingEngine) LatestBets(ctx context.Context, userID int64, limit int) ([]models.Bet, error) {
	if limit <= 0 || limit > MaxLatestBets {
		limit = MaxLatestBets
	}
	bets, err := be.store.LatestBets(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if bets == nil {
		bets = []models.Bet{}
	}
	return bets, nil
}

// DiceState returns the active commitment, the betting limits of currency
// and the user's latest bets.
func (be *BettingEngine) DiceState(ctx context.Context, userID int64, currency, clientSeed string) (*models.DiceState, error) {
	cur, err := be.registry.Currency(currency)
	if err != nil {
		return nil, models.NewValidationError("currency", "unknown currency %s", currency)
	}

	seed, err := be.seeds.GetOrCreateActiveSeed(ctx, userID, clientSeed)
	if err != nil {
		return nil, err
	}

	bets, err := be.LatestBets(ctx, userID, MaxLatestBets)
	if err != nil {
		return nil, err
	}

	return &models.DiceState{
		ClientSeed:     seed.ClientSeed,
		ServerSeedHash: seed.ServerSeedHash,
		Nonce:          seed.Nonce,
		MinBetAmount:   cur.MinBet,
		MaxWin:         cur.MaxWin,
		LatestUserBets: bets,
	}, nil
}
