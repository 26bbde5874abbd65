package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dicebet-backend/internal/fairness"
	"dicebet-backend/internal/models"
	"dicebet-backend/internal/store"
)

// SeedManager owns the lifecycle of per-user seed pairs: commit, consume,
// retire and reveal.
type SeedManager struct {
	store      store.Store
	logger     zerolog.Logger
	now        func() time.Time
	maxRetries int
}

func NewSeedManager(s store.Store, logger zerolog.Logger) *SeedManager {
	return &SeedManager{
		store:      s,
		logger:     logger,
		now:        time.Now,
		maxRetries: 3,
	}
}

func (sm *SeedManager) newSeed(userID int64, serverSeed, clientSeed string, nonce int64) (models.SeedState, error) {
	if serverSeed == "" {
		var err error
		if serverSeed, err = fairness.GenerateServerSeed(); err != nil {
			return models.SeedState{}, err
		}
	}
	if clientSeed == "" {
		var err error
		if clientSeed, err = fairness.GenerateClientSeed(); err != nil {
			return models.SeedState{}, err
		}
	}

	return models.SeedState{
		ID:             models.NewID(),
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		InitialNonce:   nonce,
		InUse:          true,
		CreatedAt:      sm.now().UTC(),
	}, nil
}

// activeOrCreate returns the user's in-use seed, inserting one in tx if there
// is none. A concurrent insert for the same user surfaces as
// models.ErrPersistenceConflict.
func (sm *SeedManager) activeOrCreate(ctx context.Context, tx store.Tx, userID int64, clientSeed string) (models.SeedState, error) {
	seed, err := tx.ActiveSeed(ctx, userID)
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, models.ErrSeedNotFound) {
		return models.SeedState{}, err
	}

	seed, err = sm.newSeed(userID, "", clientSeed, 0)
	if err != nil {
		return models.SeedState{}, err
	}
	if err := tx.InsertSeed(ctx, seed); err != nil {
		return models.SeedState{}, err
	}

	sm.logger.Debug().Int64("user_id", userID).Str("seed_id", seed.ID).Msg("seed created")
	return seed, nil
}

// GetOrCreateActiveSeed returns the user's active seed. clientSeed is only
// used when a new seed has to be created; empty means generate one.
func (sm *SeedManager) GetOrCreateActiveSeed(ctx context.Context, userID int64, clientSeed string) (models.SeedState, error) {
	if clientSeed != "" {
		if err := models.ValidateClientSeed(clientSeed); err != nil {
			return models.SeedState{}, err
		}
	}

	var seed models.SeedState
	err := withRetry(ctx, sm.maxRetries, nil, func() error {
		return sm.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			seed, err = sm.activeOrCreate(ctx, tx, userID, clientSeed)
			return err
		})
	})
	if err != nil {
		return models.SeedState{}, err
	}
	return seed, nil
}

// ConsumeNonce reserves the next nonce of an in-use seed inside tx.
func (sm *SeedManager) ConsumeNonce(ctx context.Context, tx store.Tx, seedID string) (int64, error) {
	return tx.ConsumeNonce(ctx, seedID)
}

// Rotate retires the active seed, reveals it and commits to a fresh server
// seed at nonce 0. The client seed carries over unless newClientSeed is set.
func (sm *SeedManager) Rotate(ctx context.Context, userID int64, newClientSeed string) (*models.SeedRotation, error) {
	if newClientSeed != "" {
		if err := models.ValidateClientSeed(newClientSeed); err != nil {
			return nil, err
		}
	}

	var rotation models.SeedRotation
	err := withRetry(ctx, sm.maxRetries, nil, func() error {
		rotation = models.SeedRotation{}
		return sm.store.WithTx(ctx, func(tx store.Tx) error {
			clientSeed := newClientSeed

			retired, err := tx.RetireActiveSeed(ctx, userID, sm.now().UTC())
			switch {
			case err == nil:
				rotation.Previous = &models.RevealedSeed{
					SeedID:         retired.ID,
					ServerSeed:     retired.ServerSeed,
					ServerSeedHash: retired.ServerSeedHash,
					ClientSeed:     retired.ClientSeed,
					LastNonce:      retired.LastNonce(),
				}
				if clientSeed == "" {
					clientSeed = retired.ClientSeed
				}
			case errors.Is(err, models.ErrSeedNotFound):
			default:
				return err
			}

			current, err := sm.newSeed(userID, "", clientSeed, 0)
			if err != nil {
				return err
			}
			if err := tx.InsertSeed(ctx, current); err != nil {
				return err
			}
			rotation.Current = current
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rotate seed: %w", err)
	}

	ev := sm.logger.Info().Int64("user_id", userID).Str("seed_id", rotation.Current.ID)
	if rotation.Previous != nil {
		ev = ev.Str("revealed_seed_id", rotation.Previous.SeedID).Int64("last_nonce", rotation.Previous.LastNonce)
	}
	ev.Msg("seed rotated")

	return &rotation, nil
}

// SetClientSeed swaps the client seed of the active pair. The server seed and
// nonce are kept, so nothing is revealed.
func (sm *SeedManager) SetClientSeed(ctx context.Context, userID int64, clientSeed string) (models.SeedState, error) {
	if err := models.ValidateClientSeed(clientSeed); err != nil {
		return models.SeedState{}, err
	}

	var current models.SeedState
	err := withRetry(ctx, sm.maxRetries, nil, func() error {
		return sm.store.WithTx(ctx, func(tx store.Tx) error {
			retired, err := tx.RetireActiveSeed(ctx, userID, sm.now().UTC())
			switch {
			case err == nil:
				current, err = sm.newSeed(userID, retired.ServerSeed, clientSeed, retired.Nonce)
			case errors.Is(err, models.ErrSeedNotFound):
				current, err = sm.newSeed(userID, "", clientSeed, 0)
			}
			if err != nil {
				return err
			}
			return tx.InsertSeed(ctx, current)
		})
	})
	if err != nil {
		return models.SeedState{}, fmt.Errorf("failed to set client seed: %w", err)
	}

	sm.logger.Info().Int64("user_id", userID).Str("seed_id", current.ID).Msg("client seed changed")
	return current, nil
}

// Verification returns everything needed to recompute the outcomes produced
// under a retired server seed, across every client seed it was paired with.
func (sm *SeedManager) Verification(ctx context.Context, seedID string) (*models.SeedVerification, error) {
	seed, err := sm.store.Seed(ctx, seedID)
	if err != nil {
		return nil, err
	}
	if seed.InUse {
		return nil, models.ErrSeedNotRevealed
	}

	chain, err := sm.store.SeedsByServerHash(ctx, seed.ServerSeedHash)
	if err != nil {
		return nil, err
	}

	v := &models.SeedVerification{
		SeedID:         seed.ID,
		ServerSeed:     seed.ServerSeed,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeeds:    make([]models.ClientSeedRange, 0, len(chain)),
		NonceRange:     models.NonceRange{From: seed.InitialNonce},
	}

	ids := make([]string, 0, len(chain))
	var maxNonce int64
	for i, row := range chain {
		// a client seed change keeps the server seed on a new active row
		if row.InUse {
			return nil, models.ErrSeedNotRevealed
		}

		bets := row.Nonce - row.InitialNonce
		last := row.InitialNonce
		if bets > 0 {
			last = row.Nonce - 1
		}
		v.ClientSeeds = append(v.ClientSeeds, models.ClientSeedRange{
			SeedID:     row.ID,
			ClientSeed: row.ClientSeed,
			FirstNonce: row.InitialNonce,
			LastNonce:  last,
			Bets:       bets,
		})
		ids = append(ids, row.ID)

		if i == 0 || row.InitialNonce < v.NonceRange.From {
			v.NonceRange.From = row.InitialNonce
		}
		if row.Nonce > maxNonce {
			maxNonce = row.Nonce
		}
	}
	if maxNonce > 0 {
		v.NonceRange.To = maxNonce - 1
	}

	v.Bets, err = sm.store.BetsBySeeds(ctx, ids)
	if err != nil {
		return nil, err
	}
	if v.Bets == nil {
		v.Bets = []models.Bet{}
	}
	return v, nil
}
