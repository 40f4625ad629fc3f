// Package lock serializes work on a wallet account, either within one process or across
// instances through Redis.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"drivekr-wallet-backend/internal/domain"
)

// Locker holds one or more account keys for the duration of a ledger mutation.
type Locker interface {
	// Lock blocks until every key is held or ctx is done. The returned func releases them.
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// normalize sorts and dedupes keys so that two callers locking the same pair of accounts
// always acquire them in the same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func timeout(key string, err error) error {
	return fmt.Errorf("%w: waiting for lock %s: %v", domain.ErrStoreUnavailable, key, err)
}

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds or waits on
// them.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: map[string]*entry{}}
}

func (m *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	for i, key := range keys {
		if err := m.acquire(ctx, key); err != nil {
			for _, held := range keys[:i] {
				m.release(held, true)
			}
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for j := len(keys) - 1; j >= 0; j-- {
				m.release(keys[j], true)
			}
		})
	}, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.release(key, false)
		return timeout(key, ctx.Err())
	}
}

func (m *KeyedMutex) release(key string, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.keys[key]
	if held {
		<-e.sem
	}
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// size reports how many keys are tracked.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
