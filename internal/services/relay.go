package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/observability"
)

var ErrRelayDown = errors.New("bet relay is not subscribed")

// BetRelay fans settled bets out to every API instance through Redis pub/sub.
// Each instance delivers what it receives to its local publisher, so the
// originating instance sees its own bets through the same path.
//
// While the relay holds no live subscription every bet is delivered locally;
// a PUBLISH with nobody listening would otherwise succeed and lose the bet.
type BetRelay struct {
	redis   *RedisService
	local   BetPublisher
	metrics *observability.Metrics
	logger  zerolog.Logger
	live    atomic.Bool
}

func NewBetRelay(redis *RedisService, local BetPublisher, metrics *observability.Metrics, logger zerolog.Logger) *BetRelay {
	return &BetRelay{redis: redis, local: local, metrics: metrics, logger: logger}
}

// Subscribe confirms the channel subscription. Bets published after it
// returns reach this instance through Run.
func (r *BetRelay) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub, err := r.redis.Subscribe(ctx, ChannelSettledBets)
	if err != nil {
		return nil, err
	}
	r.live.Store(true)
	r.logger.Info().Str("channel", ChannelSettledBets).Msg("relay subscribed")
	return sub, nil
}

// Live reports whether Run is consuming a confirmed subscription.
func (r *BetRelay) Live() bool {
	return r.live.Load()
}

// Check reports relay health; it fails once the subscription is gone.
func (r *BetRelay) Check(ctx context.Context) error {
	if !r.Live() {
		return ErrRelayDown
	}
	return r.redis.Ping(ctx)
}

// PublishBet sends bet to the channel, delivering locally instead when Redis
// is unreachable or the subscription is down.
func (r *BetRelay) PublishBet(ctx context.Context, bet models.Bet) error {
	if !r.Live() {
		r.metrics.RelayMessages.WithLabelValues("fallback").Inc()
		return r.local.PublishBet(ctx, bet)
	}
	if err := r.redis.Publish(ctx, ChannelSettledBets, bet); err != nil {
		r.metrics.RelayMessages.WithLabelValues("fallback").Inc()
		r.logger.Warn().Err(err).Str("bet_id", bet.ID).Msg("relay publish failed, delivering locally")
		return r.local.PublishBet(ctx, bet)
	}
	r.metrics.RelayMessages.WithLabelValues("out").Inc()
	return nil
}

// Run forwards messages from sub to the local publisher until ctx is done or
// the subscription ends. sub is closed on return.
func (r *BetRelay) Run(ctx context.Context, sub *redis.PubSub) error {
	defer sub.Close()
	defer r.live.Store(false)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				r.logger.Error().Msg("relay subscription closed, delivering bets locally")
				return ErrRelayDown
			}

			var bet models.Bet
			if err := json.Unmarshal([]byte(msg.Payload), &bet); err != nil {
				r.logger.Error().Err(err).Msg("dropping malformed relay message")
				continue
			}
			r.metrics.RelayMessages.WithLabelValues("in").Inc()
			if err := r.local.PublishBet(ctx, bet); err != nil {
				r.logger.Warn().Err(err).Str("bet_id", bet.ID).Msg("local delivery failed")
			}
		}
	}
}
