package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facepay/facepay/internal/types"
)

func TestMemoryStoreTransactionLifecycle(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	tx := &types.TransactionRequest{
		TransactionID: "tx1",
		WalletAddress: "W1",
		Amount:        0.001,
		Status:        types.StatePending,
		CreatedAt:     now,
	}
	require.NoError(t, store.SetTransaction(ctx, tx, 10*time.Minute))

	got, err := store.GetTransaction(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, tx, got)

	// the stored copy is isolated from later mutation
	tx.Status = types.StateCompleted
	got, err = store.GetTransaction(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, types.StatePending, got.Status)

	require.NoError(t, store.DeleteTransaction(ctx, "tx1"))
	_, err = store.GetTransaction(ctx, "tx1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.SetTransaction(ctx, &types.TransactionRequest{
		TransactionID: "tx1",
		WalletAddress: "W1",
	}, 10*time.Minute))
	require.NoError(t, store.SetWalletStatus(ctx, &types.PaymentStatus{
		TransactionID: "tx1",
		WalletAddress: "W1",
		Status:        types.StateWaiting,
	}, 10*time.Minute))

	now = now.Add(10*time.Minute + time.Second)

	_, err := store.GetTransaction(ctx, "tx1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetWalletStatus(ctx, "W1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListTransactionsByWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStoreListByWallet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, tx := range []*types.TransactionRequest{
		{TransactionID: "tx1", WalletAddress: "W1"},
		{TransactionID: "tx2", WalletAddress: "W1"},
		{TransactionID: "tx3", WalletAddress: "W2"},
	} {
		require.NoError(t, store.SetTransaction(ctx, tx, time.Minute))
	}

	list, err := store.ListTransactionsByWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.ListTransactionsByWallet(ctx, "W3")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStoreWalletStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetWalletStatus(ctx, "W1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetWalletStatus(ctx, &types.PaymentStatus{
		TransactionID: "tx1",
		WalletAddress: "W1",
		Status:        types.StateWaiting,
	}, time.Minute))

	got, err := store.GetWalletStatus(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, got.Status)

	require.NoError(t, store.DeleteWalletStatus(ctx, "W1"))
	_, err = store.GetWalletStatus(ctx, "W1")
	assert.ErrorIs(t, err, ErrNotFound)
}
