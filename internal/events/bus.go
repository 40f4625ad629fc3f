// Package events carries committed ledger and verification changes to their subscribers.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
)

// Publisher is what services emit events through, after their store transaction commits.
// Publishing never fails from the caller's point of view.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event)
}

type Handler interface {
	Handle(ctx context.Context, e domain.Event) error
}

type HandlerFunc func(ctx context.Context, e domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, e domain.Event) error { return f(ctx, e) }

// Bus fans each event out to every handler on a pool of workers. Events that arrive while
// the queue is full are dropped and logged.
type Bus struct {
	handlers       []Handler
	queue          chan domain.Event
	workers        int
	handlerTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewBus(workers, queueSize int, handlers ...Handler) *Bus {
	if workers <= 0 {
		workers = 1
	}
	return &Bus{
		handlers:       handlers,
		queue:          make(chan domain.Event, queueSize),
		workers:        workers,
		handlerTimeout: 30 * time.Second,
	}
}

// Subscribe must be called before Start.
func (b *Bus) Subscribe(h Handler) {
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx, i)
	}
	logger.Info("Event bus started", "workers", b.workers, "handlers", len(b.handlers))
}

func (b *Bus) Publish(ctx context.Context, e domain.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		logger.Warn("Event published after bus closed", "eventID", e.ID, "kind", e.Kind)
		return
	}
	select {
	case b.queue <- e:
		logger.Debug("Event queued", "eventID", e.ID, "kind", e.Kind, "userID", e.UserID)
	default:
		logger.Error("Event queue full, dropping event", "eventID", e.ID, "kind", e.Kind, "userID", e.UserID)
	}
}

// Close stops accepting events and waits until the queued ones have been handled.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) worker(ctx context.Context, id int) {
	defer b.wg.Done()
	for e := range b.queue {
		b.dispatch(ctx, e)
	}
	logger.Debug("Event worker stopped", "worker", id)
}

func (b *Bus) dispatch(ctx context.Context, e domain.Event) {
	for _, h := range b.handlers {
		hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
		if err := safeHandle(hctx, h, e); err != nil {
			logger.Error("Event handler failed", "eventID", e.ID, "kind", e.Kind, "handler", fmt.Sprintf("%T", h), "error", err)
		}
		cancel()
	}
}

func safeHandle(ctx context.Context, h Handler, e domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}
