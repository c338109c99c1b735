package client_test

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facepay/facepay/api"
	"github.com/facepay/facepay/client"
	"github.com/facepay/facepay/internal/types"
	"github.com/facepay/facepay/service"
	"github.com/facepay/facepay/storage"
)

func newTestBackend(t *testing.T) (*client.Client, *httptest.Server) {
	payments := service.NewPaymentService(storage.NewMemoryStore(), nil, 10*time.Minute)
	server := api.NewServer(0, payments, service.NewFaceService(nil, 0.6), nil, nil)
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return client.NewClient(ts.URL), ts
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	transactionID, err := c.CreateTransactionRequest(ctx, types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0.001,
		Recipient:     "MerchantWallet111",
		Similarity:    0.93,
		Message:       "Face verified",
	})
	require.NoError(t, err)
	require.NotEmpty(t, transactionID)

	status, payment, err := c.GetPaymentStatus(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, string(types.StateWaiting), status)
	require.NotNil(t, payment)
	assert.Equal(t, transactionID, payment.TransactionID)

	pending, err := c.GetPendingTransactions(ctx, "W1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, transactionID, pending[0].TransactionID)

	pending, err = c.GetPendingTransactions(ctx, "W1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, c.UpdateTransactionStatus(ctx, transactionID, types.StateCompleted, "sigXYZ"))

	status, payment, err = c.GetPaymentStatus(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, string(types.StateCompleted), status)
	require.NotNil(t, payment)
	assert.Equal(t, "sigXYZ", payment.Signature)
}

func TestClientCreateInvalidRequest(t *testing.T) {
	c, _ := newTestBackend(t)

	_, err := c.CreateTransactionRequest(context.Background(), types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0,
		Recipient:     "M",
	})
	assert.Error(t, err)
}

func TestClientUpdateStatusNotFound(t *testing.T) {
	c, _ := newTestBackend(t)

	err := c.UpdateTransactionStatus(context.Background(), "no-such-id", types.StateCompleted, "sig")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestClientStatusNone(t *testing.T) {
	c, _ := newTestBackend(t)

	status, payment, err := c.GetPaymentStatus(context.Background(), "W9")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNone, status)
	assert.Nil(t, payment)
}

func TestWaitForPaymentStatus(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	transactionID, err := c.CreateTransactionRequest(ctx, types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0.001,
		Recipient:     "MerchantWallet111",
	})
	require.NoError(t, err)

	// complete the payment while the wait is running
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = c.UpdateTransactionStatus(ctx, transactionID, types.StateCompleted, "sigXYZ")
	}()

	payment, err := c.WaitForPaymentStatus(ctx, "W1", 10*time.Millisecond, 50)
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, payment.Status)
	assert.Equal(t, "sigXYZ", payment.Signature)
}

func TestWaitForPaymentStatusTimeout(t *testing.T) {
	c, _ := newTestBackend(t)

	ctx := context.Background()
	_, err := c.CreateTransactionRequest(ctx, types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0.001,
		Recipient:     "MerchantWallet111",
	})
	require.NoError(t, err)

	_, err = c.WaitForPaymentStatus(ctx, "W1", time.Millisecond, 3)
	assert.ErrorIs(t, err, client.ErrPaymentTimeout)
}

func TestWaitForPaymentStatusCancelled(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.CreateTransactionRequest(ctx, types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0.001,
		Recipient:     "MerchantWallet111",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		// the interval is far longer than the test; only cancellation
		// can end the wait in time
		_, err := c.WaitForPaymentStatus(ctx, "W1", time.Hour, 5)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait did not stop on context cancellation")
	}
}

func TestPollPendingTransactionsGate(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transactionID, err := c.CreateTransactionRequest(ctx, types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0.001,
		Recipient:     "MerchantWallet111",
	})
	require.NoError(t, err)

	var gateOpen atomic.Bool
	received := make(chan types.TransactionRequest, 1)
	go func() {
		_ = c.PollPendingTransactions(ctx, "W1", 10*time.Millisecond,
			gateOpen.Load,
			func(tx types.TransactionRequest) { received <- tx })
	}()

	// while the gate is closed nothing is fetched or marked shown
	select {
	case <-received:
		t.Fatal("received a transaction while the gate was closed")
	case <-time.After(50 * time.Millisecond):
	}

	gateOpen.Store(true)
	select {
	case tx := <-received:
		assert.Equal(t, transactionID, tx.TransactionID)
	case <-time.After(time.Second):
		t.Fatal("transaction never delivered after the gate opened")
	}
}
