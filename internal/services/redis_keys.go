package services

import "time"

const (
	KeyRateLimit = "ratelimit:%d:%s"

	ChannelSettledBets = "dice:bets:settled"

	ActionBet        = "bet"
	ActionSeedRotate = "seed_rotate"

	RateLimitWindow         = time.Minute
	DefaultRateLimitBets    = 30 // per minute
	DefaultRateLimitRotates = 10 // per minute
)
