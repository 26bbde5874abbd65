package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/store"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

const seedColumns = `id, user_id, server_seed, server_seed_hash, client_seed, nonce, initial_nonce, in_use, created_at, retired_at`

const betColumns = `id, user_id, currency, stake, profit, roll, target, chance, seed_id, nonce, created_at`

// Store implements store.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*Tx)(nil)

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(fmt.Errorf("begin tx: %w", err))
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// mapError turns contention aborts into models.ErrPersistenceConflict so
// callers can retry the whole unit of work.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%w: %s", models.ErrPersistenceConflict, pqErr.Message)
		}
	}
	return err
}

func (s *Store) Currencies(ctx context.Context) ([]models.Currency, error) {
	var currencies []models.Currency
	err := s.db.SelectContext(ctx, &currencies, `
		SELECT id, scale, min_bet, max_win, house_edge
		FROM currencies
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load currencies: %w", err)
	}
	return currencies, nil
}

func (s *Store) Bankrolls(ctx context.Context) ([]models.Bankroll, error) {
	var bankrolls []models.Bankroll
	err := s.db.SelectContext(ctx, &bankrolls, `
		SELECT currency, balance, highroller_threshold
		FROM bankrolls
		ORDER BY currency
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load bankrolls: %w", err)
	}
	return bankrolls, nil
}

func (s *Store) Balances(ctx context.Context, userID int64) ([]models.Balance, error) {
	var balances []models.Balance
	err := s.db.SelectContext(ctx, &balances, `
		SELECT user_id, currency, balance, updated_at
		FROM balances
		WHERE user_id = $1
		ORDER BY currency
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	return balances, nil
}

func (s *Store) LatestBets(ctx context.Context, userID int64, limit int) ([]models.Bet, error) {
	var bets []models.Bet
	err := s.db.SelectContext(ctx, &bets, `
		SELECT `+betColumns+`
		FROM bets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load bets: %w", err)
	}
	return bets, nil
}

func (s *Store) BetsBySeeds(ctx context.Context, seedIDs []string) ([]models.Bet, error) {
	var bets []models.Bet
	err := s.db.SelectContext(ctx, &bets, `
		SELECT `+betColumns+`
		FROM bets
		WHERE seed_id = ANY($1)
		ORDER BY nonce
	`, pq.Array(seedIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load bets by seed: %w", err)
	}
	return bets, nil
}

func (s *Store) Seed(ctx context.Context, seedID string) (models.SeedState, error) {
	var seed models.SeedState
	err := s.db.GetContext(ctx, &seed, `SELECT `+seedColumns+` FROM seeds WHERE id = $1`, seedID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SeedState{}, models.ErrSeedNotFound
	}
	if err != nil {
		return models.SeedState{}, fmt.Errorf("failed to load seed: %w", err)
	}
	return seed, nil
}

func (s *Store) SeedsByServerHash(ctx context.Context, serverSeedHash string) ([]models.SeedState, error) {
	var seeds []models.SeedState
	err := s.db.SelectContext(ctx, &seeds, `
		SELECT `+seedColumns+`
		FROM seeds
		WHERE server_seed_hash = $1
		ORDER BY initial_nonce, created_at
	`, serverSeedHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load seeds by hash: %w", err)
	}
	return seeds, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Tx implements store.Tx on a single sqlx transaction.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) DebitBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.GetContext(ctx, &balance, `
		UPDATE balances
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND currency = $3 AND balance >= $1
		RETURNING balance
	`, amount, userID, currency)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, models.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit balance: %w", err)
	}
	return balance, nil
}

func (t *Tx) CreditBalance(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.GetContext(ctx, &balance, `
		INSERT INTO balances (user_id, currency, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, currency)
		DO UPDATE SET balance = balances.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance
	`, userID, currency, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit balance: %w", err)
	}
	return balance, nil
}

func (t *Tx) AdjustBankroll(ctx context.Context, currency string, delta decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE bankrolls SET balance = balance + $1 WHERE currency = $2
	`, delta, currency)
	if err != nil {
		return fmt.Errorf("failed to adjust bankroll: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("bankroll %s: %w", currency, models.ErrUnknownCurrency)
	}
	return nil
}

func (t *Tx) ActiveSeed(ctx context.Context, userID int64) (models.SeedState, error) {
	var seed models.SeedState
	err := t.tx.GetContext(ctx, &seed, `
		SELECT `+seedColumns+`
		FROM seeds
		WHERE user_id = $1 AND in_use
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SeedState{}, models.ErrSeedNotFound
	}
	if err != nil {
		return models.SeedState{}, fmt.Errorf("failed to load active seed: %w", err)
	}
	return seed, nil
}

func (t *Tx) InsertSeed(ctx context.Context, seed models.SeedState) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO seeds (`+seedColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, seed.ID, seed.UserID, seed.ServerSeed, seed.ServerSeedHash, seed.ClientSeed,
		seed.Nonce, seed.InitialNonce, seed.InUse, seed.CreatedAt, seed.RetiredAt)
	if err != nil {
		return fmt.Errorf("failed to insert seed: %w", err)
	}
	return nil
}

func (t *Tx) RetireActiveSeed(ctx context.Context, userID int64, at time.Time) (models.SeedState, error) {
	var seed models.SeedState
	// Blocks on the row lock of any in-flight bet against this seed, so the
	// returned nonce includes every committed bet.
	err := t.tx.GetContext(ctx, &seed, `
		UPDATE seeds
		SET in_use = FALSE, retired_at = $2
		WHERE user_id = $1 AND in_use
		RETURNING `+seedColumns, userID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SeedState{}, models.ErrSeedNotFound
	}
	if err != nil {
		return models.SeedState{}, fmt.Errorf("failed to retire seed: %w", err)
	}
	return seed, nil
}

func (t *Tx) ConsumeNonce(ctx context.Context, seedID string) (int64, error) {
	var nonce int64
	err := t.tx.GetContext(ctx, &nonce, `
		UPDATE seeds
		SET nonce = nonce + 1
		WHERE id = $1 AND in_use
		RETURNING nonce - 1
	`, seedID)
	if err == nil {
		return nonce, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to consume nonce: %w", err)
	}

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM seeds WHERE id = $1)`, seedID); err != nil {
		return 0, fmt.Errorf("failed to check seed: %w", err)
	}
	if exists {
		// retired by a concurrent rotation after we read it
		return 0, fmt.Errorf("seed %s retired: %w", seedID, models.ErrPersistenceConflict)
	}
	return 0, fmt.Errorf("seed %s: %w", seedID, models.ErrSeedNotFound)
}

func (t *Tx) InsertBet(ctx context.Context, bet models.Bet) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO bets (`+betColumns+`)
		VALUES (:id, :user_id, :currency, :stake, :profit, :roll, :target, :chance, :seed_id, :nonce, :created_at)
	`, bet)
	if err != nil {
		return fmt.Errorf("failed to insert bet: %w", err)
	}
	return nil
}
