package feed

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/observability"
)

func thresholds(currency string) (decimal.Decimal, bool) {
	if currency == "BTC" {
		return decimal.RequireFromString("1"), true
	}
	return decimal.Zero, false
}

func newTestDistributor(capacity, buffer int) *Distributor {
	return NewDistributor(capacity, buffer, thresholds, observability.NewMetrics(prometheus.NewRegistry()))
}

func bet(i int, stake, profit string) models.Bet {
	return models.Bet{
		ID:        fmt.Sprintf("bet-%d", i),
		UserID:    1,
		Currency:  "BTC",
		Stake:     decimal.RequireFromString(stake),
		Profit:    decimal.RequireFromString(profit),
		Roll:      1000,
		Target:    4950,
		Chance:    decimal.RequireFromString("49.5"),
		Nonce:     int64(i),
		CreatedAt: time.Now(),
	}
}

func next(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestPublishKeepsNewestWithinCapacity(t *testing.T) {
	d := newTestDistributor(50, 8)

	for i := 0; i < 60; i++ {
		d.Publish(bet(i, "0.1", "-0.1"))
	}

	snap := d.Snapshot()
	require.Len(t, snap.AllBets, 50)
	assert.Equal(t, "bet-59", snap.AllBets[0].ID)
	assert.Equal(t, "bet-10", snap.AllBets[49].ID)
	assert.Empty(t, snap.HighrollerBets)
	assert.NotNil(t, snap.HighrollerBets)
}

func TestPublishRoutesHighrollers(t *testing.T) {
	d := newTestDistributor(50, 8)

	d.Publish(bet(1, "0.5", "-0.5"))
	d.Publish(bet(2, "1", "-1"))     // stake at threshold
	d.Publish(bet(3, "0.6", "0.6"))  // payout 1.2 over threshold
	d.Publish(bet(4, "0.99", "-0.99"))

	other := bet(5, "100", "100")
	other.Currency = "DOGE"
	d.Publish(other)

	snap := d.Snapshot()
	assert.Len(t, snap.AllBets, 5)
	require.Len(t, snap.HighrollerBets, 2)
	assert.Equal(t, "bet-3", snap.HighrollerBets[0].ID)
	assert.Equal(t, "bet-2", snap.HighrollerBets[1].ID)
	assert.True(t, snap.HighrollerBets[0].IsHighroller)
	assert.False(t, snap.AllBets[0].IsHighroller)
	assert.True(t, decimal.RequireFromString("1.2").Equal(snap.HighrollerBets[0].Payout))
}

func TestSubscribeStartsWithSnapshot(t *testing.T) {
	d := newTestDistributor(50, 8)
	d.Publish(bet(1, "2", "-2"))

	sub := d.Subscribe()
	defer sub.Close()

	ev := next(t, sub)
	require.Equal(t, EventSnapshot, ev.Type)
	require.NotNil(t, ev.Snapshot)
	assert.Len(t, ev.AllBets, 1)
	assert.Len(t, ev.HighrollerBets, 1)

	d.Publish(bet(2, "0.1", "0.1"))
	ev = next(t, sub)
	require.Equal(t, EventBet, ev.Type)
	require.NotNil(t, ev.Bet)
	assert.Equal(t, "bet-2", ev.Bet.ID)
	assert.Nil(t, ev.Snapshot)
}

func TestPauseAndResume(t *testing.T) {
	d := newTestDistributor(50, 8)
	sub := d.Subscribe()
	defer sub.Close()
	next(t, sub)

	d.Publish(bet(1, "0.1", "-0.1"))
	sub.Pause()
	assert.True(t, sub.Paused())
	d.Publish(bet(2, "0.1", "-0.1"))
	d.Publish(bet(3, "0.1", "-0.1"))

	sub.Resume()
	assert.False(t, sub.Paused())

	// bet-1 was buffered before the pause and is discarded by the resume
	ev := next(t, sub)
	require.Equal(t, EventSnapshot, ev.Type)
	require.Len(t, ev.AllBets, 3)
	assert.Equal(t, "bet-3", ev.AllBets[0].ID)
	assertNoEvent(t, sub)

	d.Publish(bet(4, "0.1", "-0.1"))
	ev = next(t, sub)
	assert.Equal(t, "bet-4", ev.Bet.ID)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	d := newTestDistributor(50, 2)
	slow := d.Subscribe()
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			d.Publish(bet(i, "0.1", "-0.1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// the buffer held the snapshot and the first bet; the rest were dropped
	assert.Equal(t, EventSnapshot, next(t, slow).Type)
	assert.Equal(t, "bet-0", next(t, slow).Bet.ID)
	assertNoEvent(t, slow)
	assert.Len(t, d.Snapshot().AllBets, 10)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	d := newTestDistributor(50, 8)
	a := d.Subscribe()
	b := d.Subscribe()
	assert.Equal(t, 2, d.Subscribers())

	a.Close()
	a.Close()
	assert.Equal(t, 1, d.Subscribers())

	d.Close()
	assert.Equal(t, 0, d.Subscribers())

	next(t, b)
	_, ok := <-b.Events()
	assert.False(t, ok)
	b.Close()

	late := d.Subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok)

	d.Publish(bet(1, "1", "1"))
	assert.Empty(t, d.Snapshot().AllBets)
}

func TestEventWireShape(t *testing.T) {
	d := newTestDistributor(50, 8)
	sub := d.Subscribe()
	defer sub.Close()

	raw, err := json.Marshal(next(t, sub))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"snapshot","all_bets":[],"highroller_bets":[]}`, string(raw))

	d.Publish(bet(1, "0.5", "0.5"))
	raw, err = json.Marshal(next(t, sub))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "bet", decoded["type"])
	assert.NotContains(t, decoded, "all_bets")
	b := decoded["bet"].(map[string]any)
	assert.Equal(t, "bet-1", b["id"])
	assert.Equal(t, "1", b["payout"])
	assert.Equal(t, true, b["is_highroller"])
}
