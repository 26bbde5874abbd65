// Package feed keeps the bounded public and highroller bet feeds of one
// server instance and fans new bets out to live subscribers.
package feed

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"dicebet-backend/internal/models"
	"dicebet-backend/internal/observability"
)

const (
	EventSnapshot = "snapshot"
	EventBet      = "bet"

	DefaultCapacity = 50
	DefaultBuffer   = 64
)

type Snapshot struct {
	AllBets        []models.FeedBet `json:"all_bets"`
	HighrollerBets []models.FeedBet `json:"highroller_bets"`
}

// Event is one message to a subscriber: a full snapshot or a single bet.
type Event struct {
	Type string `json:"type"`
	*Snapshot
	Bet *models.FeedBet `json:"bet,omitempty"`
}

// ThresholdFunc returns the highroller threshold of a currency.
type ThresholdFunc func(currency string) (decimal.Decimal, bool)

type Distributor struct {
	mu          sync.Mutex
	capacity    int
	buffer      int
	threshold   ThresholdFunc
	metrics     *observability.Metrics
	all         []models.FeedBet
	highrollers []models.FeedBet
	subs        map[*Subscription]struct{}
	closed      bool
}

func NewDistributor(capacity, buffer int, threshold ThresholdFunc, metrics *observability.Metrics) *Distributor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if threshold == nil {
		threshold = func(string) (decimal.Decimal, bool) { return decimal.Zero, false }
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Distributor{
		capacity:    capacity,
		buffer:      buffer,
		threshold:   threshold,
		metrics:     metrics,
		all:         make([]models.FeedBet, 0, capacity),
		highrollers: make([]models.FeedBet, 0, capacity),
		subs:        make(map[*Subscription]struct{}),
	}
}

func (d *Distributor) isHighroller(fb models.FeedBet) bool {
	t, ok := d.threshold(fb.Currency)
	if !ok || !t.IsPositive() {
		return false
	}
	return fb.Stake.GreaterThanOrEqual(t) || fb.Payout.GreaterThanOrEqual(t)
}

// Publish records a settled bet and delivers it to every active subscriber.
// It never blocks on a subscriber.
func (d *Distributor) Publish(bet models.Bet) {
	fb := models.NewFeedBet(bet)
	fb.IsHighroller = d.isHighroller(fb)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.all = prepend(d.all, fb, d.capacity)
	if fb.IsHighroller {
		d.highrollers = prepend(d.highrollers, fb, d.capacity)
	}

	ev := Event{Type: EventBet, Bet: &fb}
	for sub := range d.subs {
		if sub.paused {
			continue
		}
		d.send(sub, ev)
	}
}

// PublishBet lets the distributor stand in wherever a bet publisher is
// expected.
func (d *Distributor) PublishBet(_ context.Context, bet models.Bet) error {
	d.Publish(bet)
	return nil
}

func prepend(list []models.FeedBet, fb models.FeedBet, capacity int) []models.FeedBet {
	if len(list) < capacity {
		list = append(list, models.FeedBet{})
	}
	copy(list[1:], list)
	list[0] = fb
	return list
}

// send must be called with d.mu held.
func (d *Distributor) send(sub *Subscription, ev Event) {
	select {
	case sub.events <- ev:
	default:
		d.metrics.FeedEventsDropped.Inc()
	}
}

// snapshot must be called with d.mu held.
func (d *Distributor) snapshot() *Snapshot {
	return &Snapshot{
		AllBets:        append([]models.FeedBet{}, d.all...),
		HighrollerBets: append([]models.FeedBet{}, d.highrollers...),
	}
}

func (d *Distributor) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.snapshot()
}

// Subscribe registers a subscriber whose first event is a snapshot of both
// feeds.
func (d *Distributor) Subscribe() *Subscription {
	sub := &Subscription{d: d, events: make(chan Event, d.buffer)}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		sub.closed = true
		close(sub.events)
		return sub
	}

	d.subs[sub] = struct{}{}
	d.metrics.FeedSubscribers.Set(float64(len(d.subs)))
	sub.events <- Event{Type: EventSnapshot, Snapshot: d.snapshot()}
	return sub
}

func (d *Distributor) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for sub := range d.subs {
		sub.closed = true
		close(sub.events)
	}
	d.subs = make(map[*Subscription]struct{})
	d.metrics.FeedSubscribers.Set(0)
}

// Subscription is one consumer of the feed. Its fields are guarded by the
// distributor's mutex.
type Subscription struct {
	d      *Distributor
	events chan Event
	paused bool
	closed bool
}

// Events is closed when the subscription or the distributor is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Pause stops delivery; bets published while paused are not queued.
func (s *Subscription) Pause() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.paused = true
}

// Resume discards anything still buffered and sends a fresh snapshot.
func (s *Subscription) Resume() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	if s.closed {
		return
	}
	s.paused = false
drain:
	for {
		select {
		case <-s.events:
		default:
			break drain
		}
	}
	s.d.send(s, Event{Type: EventSnapshot, Snapshot: s.d.snapshot()})
}

func (s *Subscription) Paused() bool {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	return s.paused
}

func (s *Subscription) Close() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(s.d.subs, s)
	close(s.events)
	s.d.metrics.FeedSubscribers.Set(float64(len(s.d.subs)))
}
