// Package memory is an in-process record store for local runs (storage.type "memory") and
// for service tests. Transactions work on a copy of the data that replaces the live copy
// on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/repository"
)

type data struct {
	accounts      map[string]domain.Account
	transactions  map[string]domain.Transaction
	notifications map[string]domain.Notification
	seq           int64
}

func newData() *data {
	return &data{
		accounts:      map[string]domain.Account{},
		transactions:  map[string]domain.Transaction{},
		notifications: map[string]domain.Notification{},
	}
}

func (d *data) clone() *data {
	c := &data{
		accounts:      make(map[string]domain.Account, len(d.accounts)),
		transactions:  make(map[string]domain.Transaction, len(d.transactions)),
		notifications: make(map[string]domain.Notification, len(d.notifications)),
		seq:           d.seq,
	}
	for k, v := range d.accounts {
		c.accounts[k] = copyAccount(v)
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.notifications {
		c.notifications[k] = v
	}
	return c
}

// next returns a strictly increasing timestamp so that newest-first ordering is stable
// even when the clock does not advance between writes.
func (d *data) next() time.Time {
	d.seq++
	return time.Now().UTC().Add(time.Duration(d.seq) * time.Nanosecond)
}

func copyAccount(a domain.Account) domain.Account {
	if a.Documents != nil {
		docs := make(map[string]domain.Document, len(a.Documents))
		for k, v := range a.Documents {
			docs[k] = v
		}
		a.Documents = docs
	}
	return a
}

// Store is safe for concurrent use. Every call, including a whole RunInTx callback, holds
// the store mutex, so transactions are serializable.
type Store struct {
	mu   sync.Mutex
	data *data
}

func NewStore() *Store {
	return &Store{data: newData()}
}

func (s *Store) Accounts() repository.AccountRepository           { return accounts{s: s} }
func (s *Store) Transactions() repository.TransactionRepository   { return transactions{s: s} }
func (s *Store) Notifications() repository.NotificationRepository { return notifications{s: s} }

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &txStore{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// view runs fn against the live data under the store mutex.
func (s *Store) view(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// txStore is bound to the working copy of one RunInTx call; the caller already holds the
// mutex.
type txStore struct {
	data *data
}

func (t *txStore) Accounts() repository.AccountRepository           { return accounts{tx: t} }
func (t *txStore) Transactions() repository.TransactionRepository   { return transactions{tx: t} }
func (t *txStore) Notifications() repository.NotificationRepository { return notifications{tx: t} }

func (t *txStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, t)
}

// handle routes repository calls either to the live store or to a transaction copy.
type handle struct {
	s  *Store
	tx *txStore
}

func (h handle) do(ctx context.Context, fn func(d *data) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if h.tx != nil {
		return fn(h.tx.data)
	}
	return h.s.view(fn)
}

type accounts handle

func (r accounts) Create(ctx context.Context, a *domain.Account) error {
	return handle(r).do(ctx, func(d *data) error {
		if _, ok := d.accounts[a.ID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
		}
		now := d.next()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		d.accounts[a.ID] = copyAccount(*a)
		return nil
	})
}

func (r accounts) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var out domain.Account
	err := handle(r).do(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		out = copyAccount(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r accounts) List(ctx context.Context, f repository.AccountFilter) ([]domain.Account, error) {
	var out []domain.Account
	err := handle(r).do(ctx, func(d *data) error {
		for _, a := range d.accounts {
			if f.AccountType != "" && a.AccountType != f.AccountType {
				continue
			}
			if f.Status != "" && a.Status != f.Status {
				continue
			}
			if f.VerificationStatus != "" && a.VerificationStatus != f.VerificationStatus {
				continue
			}
			out = append(out, copyAccount(a))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r accounts) AdjustBalance(ctx context.Context, id string, delta domain.BalanceDelta) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := handle(r).do(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		next := a.WalletBalance.Add(delta.WalletDelta)
		if next.IsNegative() {
			return domain.ErrInsufficientBalance
		}
		a.WalletBalance = next
		a.TotalSpent = a.TotalSpent.Add(delta.SpentDelta)
		a.TotalEarnings = a.TotalEarnings.Add(delta.EarningsDelta)
		a.UpdatedAt = d.next()
		d.accounts[id] = a
		balance = next
		return nil
	})
	return balance, err
}

func (r accounts) UpdateStatus(ctx context.Context, id string, c domain.StatusChange) error {
	return handle(r).do(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		a.Status = c.Status
		a.BlockedAt, a.BlockedBy, a.BlockReason = nil, "", ""
		if c.Status == domain.AccountStatusBlocked {
			at := c.ChangedAt
			a.BlockedAt, a.BlockedBy, a.BlockReason = &at, c.ChangedBy, c.Reason
		}
		a.UpdatedAt = c.ChangedAt
		d.accounts[id] = a
		return nil
	})
}

func (r accounts) UpdateVerification(ctx context.Context, id string, v domain.VerificationDecision) error {
	return handle(r).do(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		a.VerificationStatus = v.Status
		a.RejectionReason = v.Reason
		at := v.DecidedAt
		a.VerifiedAt, a.VerifiedBy = &at, v.DecidedBy
		if v.Documents != nil {
			a.Documents = v.Documents
		}
		a.UpdatedAt = v.DecidedAt
		d.accounts[id] = copyAccount(a)
		return nil
	})
}

type transactions handle

func (r transactions) Create(ctx context.Context, t *domain.Transaction) error {
	return handle(r).do(ctx, func(d *data) error {
		if t.RideID != "" {
			for _, existing := range d.transactions {
				if existing.RideID == t.RideID && existing.Type == t.Type {
					return fmt.Errorf("%w: ride %s already has a %s record", domain.ErrAlreadyProcessed, t.RideID, t.Type)
				}
			}
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		now := d.next()
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = t.CreatedAt
		d.transactions[t.ID] = *t
		return nil
	})
}

func (r transactions) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var out domain.Transaction
	err := handle(r).do(ctx, func(d *data) error {
		t, ok := d.transactions[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r transactions) List(ctx context.Context, f repository.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := handle(r).do(ctx, func(d *data) error {
		for _, t := range d.transactions {
			if f.UserID != "" && t.UserID != f.UserID {
				continue
			}
			if f.Type != "" && t.Type != f.Type {
				continue
			}
			if f.Status != "" && t.Status != f.Status {
				continue
			}
			if f.RideID != "" && t.RideID != f.RideID {
				continue
			}
			if !f.CreatedBefore.IsZero() && !t.CreatedAt.Before(f.CreatedBefore) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r transactions) Resolve(ctx context.Context, id string, res domain.Resolution) (*domain.Transaction, error) {
	if !domain.TransactionStatusPending.CanTransition(res.Status) {
		return nil, fmt.Errorf("%w: cannot resolve to %s", domain.ErrInvalidRequest, res.Status)
	}
	var out domain.Transaction
	err := handle(r).do(ctx, func(d *data) error {
		t, ok := d.transactions[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
		}
		if !t.Status.CanTransition(res.Status) {
			return fmt.Errorf("%w: transaction %s is %s", domain.ErrAlreadyProcessed, id, t.Status)
		}
		at := res.VerifiedAt
		t.Status = res.Status
		t.RejectionReason = res.Reason
		t.VerifiedAt = &at
		t.VerifiedBy = res.VerifiedBy
		t.UpdatedAt = at
		d.transactions[id] = t
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type notifications handle

func (r notifications) Create(ctx context.Context, n *domain.Notification) error {
	return r.CreateBatch(ctx, []*domain.Notification{n})
}

func (r notifications) CreateBatch(ctx context.Context, ns []*domain.Notification) error {
	return handle(r).do(ctx, func(d *data) error {
		for _, n := range ns {
			if n.ID == "" {
				n.ID = uuid.NewString()
			}
			if n.Status == "" {
				n.Status = domain.NotificationStatusPending
			}
			now := d.next()
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			n.UpdatedAt = n.CreatedAt
			d.notifications[n.ID] = *n
		}
		return nil
	})
}

func (r notifications) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var out domain.Notification
	err := handle(r).do(ctx, func(d *data) error {
		n, ok := d.notifications[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r notifications) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	out, err := r.filter(ctx, func(n domain.Notification) bool { return n.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notifications) ListUndelivered(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]domain.Notification, error) {
	out, err := r.filter(ctx, func(n domain.Notification) bool {
		return n.Status != domain.NotificationStatusDelivered &&
			n.Attempts < maxAttempts &&
			n.CreatedAt.Before(olderThan)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notifications) filter(ctx context.Context, keep func(domain.Notification) bool) ([]domain.Notification, error) {
	var out []domain.Notification
	err := handle(r).do(ctx, func(d *data) error {
		for _, n := range d.notifications {
			if keep(n) {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (r notifications) RecordDelivery(ctx context.Context, id string, del domain.Delivery) error {
	return handle(r).do(ctx, func(d *data) error {
		n, ok := d.notifications[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
		}
		n.Status = del.Status
		if del.DeliveryRef != "" {
			n.DeliveryRef = del.DeliveryRef
		}
		n.LastError = del.Error
		n.Attempts++
		n.UpdatedAt = del.At
		d.notifications[id] = n
		return nil
	})
}

func (r notifications) MarkRead(ctx context.Context, id, userID string) error {
	return handle(r).do(ctx, func(d *data) error {
		n, ok := d.notifications[id]
		if !ok || n.UserID != userID {
			return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
		}
		n.Read = true
		d.notifications[id] = n
		return nil
	})
}
