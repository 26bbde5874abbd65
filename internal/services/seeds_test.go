package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicebet-backend/internal/fairness"
	"dicebet-backend/internal/models"
)

func TestGetOrCreateActiveSeed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.seeds.GetOrCreateActiveSeed(ctx, testUser, "")
	require.NoError(t, err)
	assert.True(t, first.InUse)
	assert.Equal(t, int64(0), first.Nonce)
	assert.Len(t, first.ServerSeed, 64)
	assert.Equal(t, fairness.HashServerSeed(first.ServerSeed), first.ServerSeedHash)
	assert.NotEmpty(t, first.ClientSeed)

	// the client seed only applies to a newly created seed
	again, err := env.seeds.GetOrCreateActiveSeed(ctx, testUser, "ignored")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ClientSeed, again.ClientSeed)

	_, err = env.seeds.GetOrCreateActiveSeed(ctx, 7, strings.Repeat("x", models.MaxClientSeedLength+1))
	assert.True(t, models.IsValidationError(err))
}

func TestRotateWithoutActiveSeed(t *testing.T) {
	env := newTestEnv(t, nil)

	rotation, err := env.seeds.Rotate(context.Background(), testUser, "fresh")
	require.NoError(t, err)
	assert.Nil(t, rotation.Previous)
	assert.Equal(t, "fresh", rotation.Current.ClientSeed)
	assert.True(t, rotation.Current.InUse)
}

func TestRotateRevealsCommittedSeed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mem.SetBalance(testUser, "BTC", dec("10"))
	ctx := context.Background()
	known := env.useKnownSeed(t, testUser)

	for i := 0; i < 3; i++ {
		_, err := env.engine.PlaceBet(ctx, testUser, betRequest("1", "49.5"))
		require.NoError(t, err)
	}

	rotation, err := env.seeds.Rotate(ctx, testUser, "")
	require.NoError(t, err)
	require.NotNil(t, rotation.Previous)

	prev := rotation.Previous
	assert.Equal(t, known.ID, prev.SeedID)
	assert.Equal(t, testServerSeed, prev.ServerSeed)
	assert.Equal(t, testServerHash, prev.ServerSeedHash)
	assert.Equal(t, fairness.HashServerSeed(prev.ServerSeed), prev.ServerSeedHash)
	assert.Equal(t, testClientSeed, prev.ClientSeed)
	assert.Equal(t, int64(2), prev.LastNonce)

	cur := rotation.Current
	assert.NotEqual(t, known.ID, cur.ID)
	assert.NotEqual(t, testServerHash, cur.ServerSeedHash)
	assert.Equal(t, testClientSeed, cur.ClientSeed)
	assert.Equal(t, int64(0), cur.Nonce)

	retired, err := env.mem.Seed(ctx, known.ID)
	require.NoError(t, err)
	assert.False(t, retired.InUse)
	assert.NotNil(t, retired.RetiredAt)

	// an unused seed reveals last nonce 0
	rotation, err = env.seeds.Rotate(ctx, testUser, "new-client")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rotation.Previous.LastNonce)
	assert.Equal(t, "new-client", rotation.Current.ClientSeed)
}

func TestSetClientSeedKeepsServerSeedAndNonce(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mem.SetBalance(testUser, "BTC", dec("10"))
	ctx := context.Background()
	known := env.useKnownSeed(t, testUser)

	for i := 0; i < 2; i++ {
		_, err := env.engine.PlaceBet(ctx, testUser, betRequest("1", "49.5"))
		require.NoError(t, err)
	}

	changed, err := env.seeds.SetClientSeed(ctx, testUser, "second-client")
	require.NoError(t, err)
	assert.NotEqual(t, known.ID, changed.ID)
	assert.Equal(t, testServerHash, changed.ServerSeedHash)
	assert.Equal(t, "second-client", changed.ClientSeed)
	assert.Equal(t, int64(2), changed.Nonce)
	assert.Equal(t, int64(2), changed.InitialNonce)

	// the server seed is still committed, so the old row stays secret
	_, err = env.seeds.Verification(ctx, known.ID)
	assert.ErrorIs(t, err, models.ErrSeedNotRevealed)

	result, err := env.engine.PlaceBet(ctx, testUser, betRequest("1", "49.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Bet.Nonce)
	assert.Equal(t, fairness.Roll(testServerSeed, "second-client", 2), result.Bet.Roll)

	_, err = env.seeds.SetClientSeed(ctx, testUser, "")
	assert.True(t, models.IsValidationError(err))
	_, err = env.seeds.SetClientSeed(ctx, testUser, "tab\tseed")
	assert.True(t, models.IsValidationError(err))
}

func TestVerificationCoversClientSeedChain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mem.SetBalance(testUser, "BTC", dec("10"))
	ctx := context.Background()
	known := env.useKnownSeed(t, testUser)

	place := func(n int) {
		for i := 0; i < n; i++ {
			_, err := env.engine.PlaceBet(ctx, testUser, betRequest("0.5", "49.5"))
			require.NoError(t, err)
		}
	}

	place(3)
	changed, err := env.seeds.SetClientSeed(ctx, testUser, "second-client")
	require.NoError(t, err)
	place(2)

	_, err = env.seeds.Verification(ctx, changed.ID)
	require.ErrorIs(t, err, models.ErrSeedNotRevealed)

	_, err = env.seeds.Rotate(ctx, testUser, "")
	require.NoError(t, err)

	v, err := env.seeds.Verification(ctx, known.ID)
	require.NoError(t, err)
	assert.Equal(t, testServerSeed, v.ServerSeed)
	assert.Equal(t, testServerHash, v.ServerSeedHash)
	assert.Equal(t, models.NonceRange{From: 0, To: 4}, v.NonceRange)

	require.Len(t, v.ClientSeeds, 2)
	assert.Equal(t, models.ClientSeedRange{SeedID: known.ID, ClientSeed: testClientSeed, FirstNonce: 0, LastNonce: 2, Bets: 3}, v.ClientSeeds[0])
	assert.Equal(t, models.ClientSeedRange{SeedID: changed.ID, ClientSeed: "second-client", FirstNonce: 3, LastNonce: 4, Bets: 2}, v.ClientSeeds[1])

	require.Len(t, v.Bets, 5)
	clientFor := map[string]string{known.ID: testClientSeed, changed.ID: "second-client"}
	for i, bet := range v.Bets {
		assert.Equal(t, int64(i), bet.Nonce)
		roll, err := fairness.Verify(v.ServerSeed, v.ServerSeedHash, clientFor[bet.SeedID], bet.Nonce)
		require.NoError(t, err)
		assert.Equal(t, bet.Roll, roll)
	}

	// the same answer from any row in the chain
	fromChanged, err := env.seeds.Verification(ctx, changed.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ClientSeeds, fromChanged.ClientSeeds)
}

func TestVerificationErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.seeds.Verification(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrSeedNotFound)

	seed, err := env.seeds.GetOrCreateActiveSeed(ctx, testUser, "")
	require.NoError(t, err)
	_, err = env.seeds.Verification(ctx, seed.ID)
	assert.ErrorIs(t, err, models.ErrSeedNotRevealed)
}
