package services

import (
	"context"

	"dicebet-backend/internal/models"
)

// BetPublisher receives every bet after its transaction has committed.
type BetPublisher interface {
	PublishBet(ctx context.Context, bet models.Bet) error
}

type nopPublisher struct{}

func (nopPublisher) PublishBet(context.Context, models.Bet) error { return nil }
