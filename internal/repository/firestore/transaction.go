package firestore

import (
	"context"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

type transactionRepository struct {
	s *Store
}

func (r transactionRepository) collection() *fs.CollectionRef {
	return r.s.client.Collection(colTransactions)
}

// Create rejects a second settlement record of the same type for a ride. Firestore has no
// unique indexes, so the check is a query inside the same transaction as the write.
func (r transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	logger.EnterMethod("firestore.transactionRepository.Create", "userID", t.UserID, "type", t.Type)

	err := r.s.exec(ctx, "create transactions", func(u *unit) error {
		if t.RideID != "" {
			key := t.RideID + "/" + string(t.Type)
			if u.rides[key] {
				return fmt.Errorf("%w: ride %s already has a %s record", domain.ErrAlreadyProcessed, t.RideID, t.Type)
			}
			q := r.collection().Where("rideId", "==", t.RideID).Where("type", "==", string(t.Type)).Limit(1)
			existing, err := collect(u.tx.Documents(q), 1, func(snap *fs.DocumentSnapshot) (*string, bool, error) {
				id := snap.Ref.ID
				return &id, true, nil
			})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("%w: ride %s already has a %s record", domain.ErrAlreadyProcessed, t.RideID, t.Type)
			}
			u.rides[key] = true
		}

		ref := r.collection().NewDoc()
		t.ID = ref.ID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		t.UpdatedAt = t.CreatedAt
		u.create(ref, transactionToMap(t))
		cp := *t
		u.transactions[t.ID] = &cp
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("firestore.transactionRepository.Create", err, "userID", t.UserID)
		return err
	}
	logger.ExitMethod("firestore.transactionRepository.Create", "transactionID", t.ID)
	return nil
}

func (r transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if r.s.unit != nil {
		t, err := r.s.unit.transaction(id)
		if err != nil {
			return nil, err
		}
		cp := *t
		return &cp, nil
	}
	logger.StoreCall(backend, "get transactions", "transactionID", id)
	snap, err := r.collection().Doc(id).Get(ctx)
	return decodeTransaction(id, snap, err)
}

func (r transactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	q := r.collection().Query
	if filter.UserID != "" {
		q = q.Where("userId", "==", filter.UserID)
	}
	if filter.Type != "" {
		q = q.Where("type", "==", string(filter.Type))
	}
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if filter.RideID != "" {
		q = q.Where("rideId", "==", filter.RideID)
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where("createdAt", "<", filter.CreatedBefore)
	}
	q = q.OrderBy("createdAt", fs.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	logger.StoreCall(backend, "query transactions", "filter", filter)
	txns, err := collect(r.s.documents(ctx, q), filter.Limit, func(snap *fs.DocumentSnapshot) (*domain.Transaction, bool, error) {
		t, err := transactionFromMap(snap.Ref.ID, snap.Data())
		return t, err == nil, err
	})
	logger.StoreResult(backend, "query transactions", int64(len(txns)), err)
	return txns, err
}

func (r transactionRepository) Resolve(ctx context.Context, id string, res domain.Resolution) (*domain.Transaction, error) {
	if !domain.TransactionStatusPending.CanTransition(res.Status) {
		return nil, fmt.Errorf("%w: cannot resolve to %s", domain.ErrInvalidRequest, res.Status)
	}

	var out domain.Transaction
	err := r.s.exec(ctx, "update transactions status", func(u *unit) error {
		t, err := u.transaction(id)
		if err != nil {
			return err
		}
		if !t.Status.CanTransition(res.Status) {
			return fmt.Errorf("%w: transaction %s is %s", domain.ErrAlreadyProcessed, id, t.Status)
		}
		at := res.VerifiedAt
		t.Status, t.RejectionReason = res.Status, res.Reason
		t.VerifiedAt, t.VerifiedBy = &at, res.VerifiedBy
		t.UpdatedAt = at

		fields := map[string]any{
			"status":     string(res.Status),
			"verifiedAt": at,
			"verifiedBy": res.VerifiedBy,
			"updatedAt":  at,
		}
		if res.Reason != "" {
			fields["rejectionReason"] = res.Reason
		}
		u.update(r.collection().Doc(id), fields)
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
