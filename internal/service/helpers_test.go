package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/lock"
	"drivekr-wallet-backend/internal/repository/memory"
	"drivekr-wallet-backend/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func (p *recordingPublisher) last() domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	store        *memory.Store
	events       *recordingPublisher
	ledger       service.LedgerService
	verification service.VerificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	locker := lock.NewKeyedMutex()
	pub := &recordingPublisher{}
	f := &fixture{
		store:  store,
		events: pub,
		ledger: service.NewLedgerService(store, locker, pub, nil, service.LedgerConfig{
			CommissionRate:    decimal.RequireFromString("0.15"),
			MinimumWithdrawal: decimal.NewFromInt(500),
			HistoryLimit:      50,
			StoreTimeout:      5 * time.Second,
		}),
		verification: service.NewVerificationService(store, locker, pub, nil, 5*time.Second),
	}
	f.seed(t, "admin-1", domain.AccountTypeAdmin, "0")
	return f
}

func (f *fixture) seed(t *testing.T, id string, typ domain.AccountType, balance string) *domain.Account {
	t.Helper()
	a := &domain.Account{
		ID:            id,
		DisplayName:   id,
		PhoneNumber:   "+91 98000 0000" + id[len(id)-1:],
		AccountType:   typ,
		Status:        domain.AccountStatusActive,
		WalletBalance: decimal.RequireFromString(balance),
	}
	if typ == domain.AccountTypeDriver {
		a.VerificationStatus = domain.VerificationPending
		a.Documents = map[string]domain.Document{
			"license":      {URL: "https://files/license.jpg", Status: domain.VerificationPending},
			"registration": {URL: "https://files/rc.jpg", Status: domain.VerificationPending},
		}
	}
	require.NoError(t, f.store.Accounts().Create(context.Background(), a))
	return a
}

func (f *fixture) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	a, err := f.store.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}
