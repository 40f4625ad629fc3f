// Package firestore stores accounts, transactions and notifications in the Cloud Firestore
// collections used by the web client (users, transactions, notifications).
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	fs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

const backend = "firestore"

// maxWrites is the Firestore limit on writes in one commit.
const maxWrites = 500

// Store is bound to a unit of work when it was handed to a RunInTx callback.
type Store struct {
	client *fs.Client
	unit   *unit
}

func NewStore(client *fs.Client) *Store {
	return &Store{client: client}
}

// Open creates the Firestore client from an initialised Firebase app.
func Open(ctx context.Context, app *firebase.App) (*Store, *fs.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewStore(client), client, nil
}

func (s *Store) Accounts() repository.AccountRepository           { return accountRepository{s} }
func (s *Store) Transactions() repository.TransactionRepository   { return transactionRepository{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepository{s} }

// RunInTx runs fn in a Firestore transaction. Firestore retries contended transactions, so
// fn may run more than once; every attempt starts from a fresh unit of work.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.unit != nil {
		return fn(ctx, s)
	}
	return s.run(ctx, "transaction", func(ctx context.Context, u *unit) error {
		return fn(ctx, &Store{client: s.client, unit: u})
	})
}

func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context, u *unit) error) error {
	logger.StoreCall(backend, op)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		u := newUnit(s.client, tx)
		if err := fn(ctx, u); err != nil {
			return err
		}
		return u.flush()
	})
	err = translateError(err)
	logger.StoreResult(backend, op, 0, err)
	return err
}

// exec runs a mutation in the bound unit of work, or in a transaction of its own.
func (s *Store) exec(ctx context.Context, op string, fn func(u *unit) error) error {
	if s.unit != nil {
		return fn(s.unit)
	}
	return s.run(ctx, op, func(_ context.Context, u *unit) error { return fn(u) })
}

func (s *Store) get(ctx context.Context, ref *fs.DocumentRef) (*fs.DocumentSnapshot, error) {
	if s.unit != nil {
		return s.unit.tx.Get(ref)
	}
	return ref.Get(ctx)
}

func (s *Store) documents(ctx context.Context, q fs.Query) *fs.DocumentIterator {
	if s.unit != nil {
		return s.unit.tx.Documents(q)
	}
	return q.Documents(ctx)
}

// collect drains it, keeping up to limit decoded values (no limit when limit <= 0).
func collect[T any](it *fs.DocumentIterator, limit int, decode func(*fs.DocumentSnapshot) (*T, bool, error)) ([]T, error) {
	defer it.Stop()
	var out []T
	for limit <= 0 || len(out) < limit {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translateError(err)
		}
		v, keep, err := decode(snap)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, *v)
		}
	}
	return out, nil
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// translateError maps Firestore failures onto domain errors. Contention that outlived the
// client's retries and unreachable backends are transient.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	switch status.Code(err) {
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", domain.ErrAlreadyProcessed, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}

// unit is one attempt of a Firestore transaction. Firestore requires all reads to precede
// all writes, so writes are queued and applied by flush; documents read or written earlier
// in the unit are served from its cache.
type unit struct {
	client *fs.Client
	tx     *fs.Transaction

	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	rides        map[string]bool

	writes []*write
	byPath map[string]*write
}

type write struct {
	ref    *fs.DocumentRef
	create map[string]any
	update map[string]any
}

func newUnit(client *fs.Client, tx *fs.Transaction) *unit {
	return &unit{
		client:       client,
		tx:           tx,
		accounts:     map[string]*domain.Account{},
		transactions: map[string]*domain.Transaction{},
		rides:        map[string]bool{},
		byPath:       map[string]*write{},
	}
}

func (u *unit) create(ref *fs.DocumentRef, data map[string]any) {
	w := &write{ref: ref, create: data}
	u.writes = append(u.writes, w)
	u.byPath[ref.Path] = w
}

// update merges fields into any write already queued for the document.
func (u *unit) update(ref *fs.DocumentRef, fields map[string]any) {
	w, ok := u.byPath[ref.Path]
	if !ok {
		w = &write{ref: ref, update: map[string]any{}}
		u.writes = append(u.writes, w)
		u.byPath[ref.Path] = w
	}
	for k, v := range fields {
		if w.create == nil {
			w.update[k] = v
			continue
		}
		if v == fs.Delete {
			delete(w.create, k)
		} else {
			w.create[k] = v
		}
	}
}

func (u *unit) flush() error {
	for _, w := range u.writes {
		if w.create != nil {
			if err := u.tx.Create(w.ref, w.create); err != nil {
				return err
			}
			continue
		}
		paths := make([]string, 0, len(w.update))
		for k := range w.update {
			paths = append(paths, k)
		}
		sort.Strings(paths)
		updates := make([]fs.Update, 0, len(paths))
		for _, p := range paths {
			updates = append(updates, fs.Update{Path: p, Value: w.update[p]})
		}
		if err := u.tx.Update(w.ref, updates); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) account(id string) (*domain.Account, error) {
	if a, ok := u.accounts[id]; ok {
		return a, nil
	}
	snap, err := u.tx.Get(u.client.Collection(colUsers).Doc(id))
	a, err := decodeAccount(id, snap, err)
	if err != nil {
		return nil, err
	}
	u.accounts[id] = a
	return a, nil
}

func (u *unit) transaction(id string) (*domain.Transaction, error) {
	if t, ok := u.transactions[id]; ok {
		return t, nil
	}
	snap, err := u.tx.Get(u.client.Collection(colTransactions).Doc(id))
	t, err := decodeTransaction(id, snap, err)
	if err != nil {
		return nil, err
	}
	u.transactions[id] = t
	return t, nil
}

func decodeAccount(id string, snap *fs.DocumentSnapshot, err error) (*domain.Account, error) {
	if notFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, translateError(err)
	}
	return accountFromMap(snap.Ref.ID, snap.Data())
}

func decodeTransaction(id string, snap *fs.DocumentSnapshot, err error) (*domain.Transaction, error) {
	if notFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, translateError(err)
	}
	return transactionFromMap(snap.Ref.ID, snap.Data())
}

func decodeNotification(id string, snap *fs.DocumentSnapshot, err error) (*domain.Notification, error) {
	if notFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, translateError(err)
	}
	return notificationFromMap(snap.Ref.ID, snap.Data()), nil
}
