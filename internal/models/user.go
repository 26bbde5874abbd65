package models

import "time"

// SeedState is a user's provably fair seed pair. ServerSeed stays secret
// while InUse is true; only ServerSeedHash is published.
type SeedState struct {
	ID             string     `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	ServerSeed     string     `json:"-" db:"server_seed"`
	ServerSeedHash string     `json:"server_seed_hash" db:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed" db:"client_seed"`
	Nonce          int64      `json:"nonce" db:"nonce"`
	InitialNonce   int64      `json:"initial_nonce" db:"initial_nonce"`
	InUse          bool       `json:"in_use" db:"in_use"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	RetiredAt      *time.Time `json:"retired_at,omitempty" db:"retired_at"`
}

// LastNonce is the last nonce consumed under this seed, or zero when unused.
func (s SeedState) LastNonce() int64 {
	if s.Nonce == 0 {
		return 0
	}
	return s.Nonce - 1
}

// RevealedSeed is a retired seed whose server seed can now be checked
// against the hash that was published before it was used.
type RevealedSeed struct {
	SeedID         string `json:"seed_id"`
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	LastNonce      int64  `json:"last_nonce"`
}

type SeedRotation struct {
	Current  SeedState     `json:"current"`
	Previous *RevealedSeed `json:"previous,omitempty"`
}

type ClientSeedRange struct {
	SeedID     string `json:"seed_id"`
	ClientSeed string `json:"client_seed"`
	FirstNonce int64  `json:"first_nonce"`
	LastNonce  int64  `json:"last_nonce"`
	Bets       int64  `json:"bets"`
}

type NonceRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// SeedVerification carries everything a third party needs to recompute
// every outcome produced under a revealed server seed.
type SeedVerification struct {
	SeedID         string            `json:"seed_id"`
	ServerSeed     string            `json:"server_seed"`
	ServerSeedHash string            `json:"server_seed_hash"`
	ClientSeeds    []ClientSeedRange `json:"client_seeds"`
	NonceRange     NonceRange        `json:"nonce_range"`
	Bets           []Bet             `json:"bets"`
}

type SeedRequest struct {
	ClientSeed string `json:"client_seed"`
}
