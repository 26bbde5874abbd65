// Package fairness derives dice outcomes from a server seed, a client seed and
// a nonce. Every function here is pure so that anyone holding a revealed
// server seed can reproduce a roll exactly.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// RangeSize is the number of possible rolls, 0 through 9999.
	RangeSize = 10000

	serverSeedBytes = 32
	clientSeedBytes = 16

	// A window of 5 hex digits spans 0..1048575. Values at or above 10^6 are
	// rejected; 10^6 is a multiple of RangeSize so the modulo is unbiased.
	windowSize  = 5
	windowLimit = 1_000_000
)

var (
	MinChance = decimal.RequireFromString("0.01")
	MaxChance = decimal.RequireFromString("98")

	hundred   = decimal.NewFromInt(100)
	rangeSize = decimal.NewFromInt(RangeSize)

	ErrCommitmentMismatch = errors.New("server seed does not match commitment hash")
)

func GenerateServerSeed() (string, error) {
	return randomHex(serverSeedBytes)
}

func GenerateClientSeed() (string, error) {
	return randomHex(clientSeedBytes)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashServerSeed returns the public commitment for a server seed.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// Roll maps (serverSeed, clientSeed, nonce) to a value in [0, RangeSize).
func Roll(serverSeed, clientSeed string, nonce int64) int {
	message := fmt.Sprintf("%s:%d", clientSeed, nonce)
	for {
		digest := hmacHex(serverSeed, message)
		for i := 0; i+windowSize <= len(digest); i += windowSize {
			v, err := strconv.ParseUint(digest[i:i+windowSize], 16, 32)
			if err != nil {
				continue
			}
			if v < windowLimit {
				return int(v % RangeSize)
			}
		}
		// every window was rejected; chain into the next round
		message = digest
	}
}

func hmacHex(key, message string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidChance reports whether chance is within bounds and has at most two
// decimal places.
func ValidChance(chance decimal.Decimal) bool {
	if chance.LessThan(MinChance) || chance.GreaterThan(MaxChance) {
		return false
	}
	return chance.Equal(chance.Truncate(2))
}

// Target is the exclusive upper bound a roll must stay under to win.
func Target(chance decimal.Decimal) int {
	return int(chance.Mul(rangeSize).Div(hundred).IntPart())
}

// Multiplier is the gross payout multiplier, for display.
func Multiplier(chance, houseEdge decimal.Decimal) decimal.Decimal {
	return hundred.Mul(decimal.NewFromInt(1).Sub(houseEdge)).DivRound(chance, 8)
}

// Payout is stake * (100/chance) * (1-houseEdge), truncated to scale.
func Payout(stake, chance, houseEdge decimal.Decimal, scale int32) decimal.Decimal {
	gross := stake.Mul(hundred).Mul(decimal.NewFromInt(1).Sub(houseEdge))
	return gross.DivRound(chance, scale+8).Truncate(scale)
}

// Profit is payout - stake on a win and -stake on a loss.
func Profit(roll, target int, chance, stake, houseEdge decimal.Decimal, scale int32) decimal.Decimal {
	if roll >= target {
		return stake.Neg()
	}
	return Payout(stake, chance, houseEdge, scale).Sub(stake)
}

// Verify recomputes a roll and, when a commitment hash is given, checks the
// revealed server seed against it.
func Verify(serverSeed, serverSeedHash, clientSeed string, nonce int64) (int, error) {
	if serverSeedHash != "" && !strings.EqualFold(HashServerSeed(serverSeed), serverSeedHash) {
		return 0, ErrCommitmentMismatch
	}
	return Roll(serverSeed, clientSeed, nonce), nil
}
