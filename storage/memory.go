package storage

import (
	"context"
	"sync"
	"time"

	"github.com/facepay/facepay/internal/types"
)

type memoryRecord[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore is an in-process PaymentStore. It exists so the
// coordination logic can be tested without Redis or real timers; the
// clock is injectable and expired records are dropped lazily on access.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[string]memoryRecord[*types.TransactionRequest]
	statuses     map[string]memoryRecord[*types.PaymentStatus]
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]memoryRecord[*types.TransactionRequest]),
		statuses:     make(map[string]memoryRecord[*types.PaymentStatus]),
		now:          now,
	}
}

func (m *MemoryStore) SetTransaction(_ context.Context, tx *types.TransactionRequest, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.transactions[tx.TransactionID] = memoryRecord[*types.TransactionRequest]{
		value:     &cp,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, transactionID string) (*types.TransactionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.transactions[transactionID]
	if !ok || m.now().After(rec.expiresAt) {
		delete(m.transactions, transactionID)
		return nil, ErrNotFound
	}
	cp := *rec.value
	return &cp, nil
}

func (m *MemoryStore) DeleteTransaction(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, transactionID)
	return nil
}

func (m *MemoryStore) ListTransactionsByWallet(_ context.Context, walletAddress string) ([]*types.TransactionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []*types.TransactionRequest
	for id, rec := range m.transactions {
		if now.After(rec.expiresAt) {
			delete(m.transactions, id)
			continue
		}
		if rec.value.WalletAddress == walletAddress {
			cp := *rec.value
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) SetWalletStatus(_ context.Context, status *types.PaymentStatus, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *status
	m.statuses[status.WalletAddress] = memoryRecord[*types.PaymentStatus]{
		value:     &cp,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) GetWalletStatus(_ context.Context, walletAddress string) (*types.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.statuses[walletAddress]
	if !ok || m.now().After(rec.expiresAt) {
		delete(m.statuses, walletAddress)
		return nil, ErrNotFound
	}
	cp := *rec.value
	return &cp, nil
}

func (m *MemoryStore) DeleteWalletStatus(_ context.Context, walletAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, walletAddress)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
