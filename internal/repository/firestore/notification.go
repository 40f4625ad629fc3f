package firestore

import (
	"context"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
)

type notificationRepository struct {
	s *Store
}

func (r notificationRepository) collection() *fs.CollectionRef {
	return r.s.client.Collection(colNotifications)
}

func (r notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.CreateBatch(ctx, []*domain.Notification{n})
}

// CreateBatch writes notifications in commits of at most maxWrites documents. Inside a
// unit of work the caller is responsible for staying under that limit.
func (r notificationRepository) CreateBatch(ctx context.Context, ns []*domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	logger.EnterMethod("firestore.notificationRepository.CreateBatch", "count", len(ns))

	now := time.Now().UTC()
	refs := make([]*fs.DocumentRef, len(ns))
	for i, n := range ns {
		refs[i] = r.collection().NewDoc()
		n.ID = refs[i].ID
		if n.Status == "" {
			n.Status = domain.NotificationStatusPending
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		n.UpdatedAt = n.CreatedAt
	}

	for start := 0; start < len(ns); start += maxWrites {
		end := min(start+maxWrites, len(ns))
		err := r.s.exec(ctx, "create notifications", func(u *unit) error {
			for i := start; i < end; i++ {
				u.create(refs[i], notificationToMap(ns[i]))
			}
			return nil
		})
		if err != nil {
			logger.ExitMethodWithError("firestore.notificationRepository.CreateBatch", err, "written", start)
			return err
		}
	}
	logger.ExitMethod("firestore.notificationRepository.CreateBatch", "count", len(ns))
	return nil
}

func (r notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	snap, err := r.s.get(ctx, r.collection().Doc(id))
	return decodeNotification(id, snap, err)
}

func (r notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	q := r.collection().Where("userId", "==", userID).OrderBy("createdAt", fs.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	logger.StoreCall(backend, "query notifications", "userID", userID)
	return collect(r.s.documents(ctx, q), limit, func(snap *fs.DocumentSnapshot) (*domain.Notification, bool, error) {
		return notificationFromMap(snap.Ref.ID, snap.Data()), true, nil
	})
}

// ListUndelivered filters on attempts client-side; Firestore allows range filters on one
// field only and createdAt already uses it.
func (r notificationRepository) ListUndelivered(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]domain.Notification, error) {
	q := r.collection().
		Where("deliveryStatus", "in", []string{string(domain.NotificationStatusPending), string(domain.NotificationStatusFailed)}).
		Where("createdAt", "<", olderThan).
		OrderBy("createdAt", fs.Asc)

	logger.StoreCall(backend, "query notifications undelivered", "maxAttempts", maxAttempts)
	notes, err := collect(r.s.documents(ctx, q), limit, func(snap *fs.DocumentSnapshot) (*domain.Notification, bool, error) {
		n := notificationFromMap(snap.Ref.ID, snap.Data())
		return n, n.Attempts < maxAttempts, nil
	})
	logger.StoreResult(backend, "query notifications undelivered", int64(len(notes)), err)
	return notes, err
}

func (r notificationRepository) RecordDelivery(ctx context.Context, id string, d domain.Delivery) error {
	ref := r.collection().Doc(id)
	return r.s.exec(ctx, "update notifications delivery", func(u *unit) error {
		snap, err := u.tx.Get(ref)
		n, err := decodeNotification(id, snap, err)
		if err != nil {
			return err
		}
		fields := map[string]any{
			"deliveryStatus": string(d.Status),
			"attempts":       int64(n.Attempts + 1),
			"lastError":      d.Error,
			"updatedAt":      d.At,
		}
		if d.DeliveryRef != "" {
			fields["deliveryRef"] = d.DeliveryRef
		}
		u.update(ref, fields)
		return nil
	})
}

func (r notificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	ref := r.collection().Doc(id)
	return r.s.exec(ctx, "update notifications read", func(u *unit) error {
		snap, err := u.tx.Get(ref)
		n, err := decodeNotification(id, snap, err)
		if err != nil {
			return err
		}
		if n.UserID != userID {
			return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
		}
		u.update(ref, map[string]any{"read": true, "updatedAt": time.Now().UTC()})
		return nil
	})
}
