package services

import (
	"context"
	"errors"

	"dicebet-backend/internal/models"
)

// withRetry reruns fn while it fails with models.ErrPersistenceConflict, up
// to maxRetries extra attempts, then reports models.ErrTryAgain. onConflict
// is called before each retry.
func withRetry(ctx context.Context, maxRetries int, onConflict func(attempt int, err error), fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, models.ErrPersistenceConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < maxRetries && onConflict != nil {
			onConflict(attempt+1, err)
		}
	}
	return errors.Join(models.ErrTryAgain, err)
}
