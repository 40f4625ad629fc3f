package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Handle(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_DeliversToEveryHandler(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	bus := NewBus(2, 16, a)
	bus.Subscribe(b)
	bus.Start(context.Background())

	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), domain.Event{Kind: domain.EventApproval, UserID: "u1"})
	}
	bus.Close()

	assert.Equal(t, 5, a.count())
	assert.Equal(t, 5, b.count())
	assert.NotEmpty(t, a.events[0].ID)
	assert.False(t, a.events[0].OccurredAt.IsZero())
}

func TestBus_HandlerFailuresAreContained(t *testing.T) {
	rec := &recorder{}
	bus := NewBus(1, 4,
		HandlerFunc(func(context.Context, domain.Event) error { panic("boom") }),
		HandlerFunc(func(context.Context, domain.Event) error { return errors.New("channel down") }),
		rec,
	)
	bus.Start(context.Background())
	bus.Publish(context.Background(), domain.Event{Kind: domain.EventBroadcast})
	bus.Close()

	assert.Equal(t, 1, rec.count())
}

func TestBus_DropsWhenFullAndAfterClose(t *testing.T) {
	rec := &recorder{}
	bus := NewBus(1, 1, rec)

	// Not started: the first event fills the queue and the second is dropped.
	bus.Publish(context.Background(), domain.Event{Kind: domain.EventApproval})
	bus.Publish(context.Background(), domain.Event{Kind: domain.EventApproval})

	bus.Start(context.Background())
	bus.Close()
	bus.Publish(context.Background(), domain.Event{Kind: domain.EventApproval})

	assert.Equal(t, 1, rec.count())
}

type fakePubSub struct {
	redis.Cmdable
	channel string
	payload []byte
	err     error
}

func (f *fakePubSub) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher(t *testing.T) {
	rdb := &fakePubSub{}
	p := NewRedisPublisher(rdb, "wallet_events")

	err := p.Handle(context.Background(), domain.Event{
		ID:     "e1",
		Kind:   domain.EventDepositRequested,
		UserID: "u1",
		Amount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, "wallet_events", rdb.channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rdb.payload, &got))
	assert.Equal(t, "deposit_requested", got["kind"])
	assert.Equal(t, "500", got["amount"])

	rdb.err = errors.New("connection refused")
	assert.Error(t, p.Handle(context.Background(), domain.Event{ID: "e2"}))
}
