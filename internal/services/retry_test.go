package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"dicebet-backend/internal/models"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, 3, nil, func() error {
			calls++
			if calls < 2 {
				return models.ErrPersistenceConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := withRetry(ctx, 3, nil, func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausts budget", func(t *testing.T) {
		calls, conflicts := 0, 0
		err := withRetry(ctx, 3, func(int, error) { conflicts++ }, func() error {
			calls++
			return models.ErrPersistenceConflict
		})
		assert.ErrorIs(t, err, models.ErrTryAgain)
		assert.Equal(t, 4, calls)
		assert.Equal(t, 3, conflicts)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := withRetry(ctx, 3, nil, func() error {
			calls++
			return models.ErrPersistenceConflict
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
