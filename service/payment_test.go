package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facepay/facepay/internal/types"
	"github.com/facepay/facepay/storage"
)

const testTTL = 10 * time.Minute

// testClock drives both the store's expiry checks and the service's
// timestamps so the TTL window can be crossed without sleeping.
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestPayment() (*Payment, *testClock) {
	clock := &testClock{current: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	store := storage.NewMemoryStoreWithClock(clock.now)
	p := NewPaymentService(store, nil, testTTL)
	p.now = clock.now
	return p, clock
}

func validRequest() types.TransactionRequestBody {
	return types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0.001,
		Recipient:     "MerchantWallet111",
		Similarity:    0.93,
		Message:       "Face verified",
	}
}

func TestCreateRequest(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	transactionID, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, transactionID)

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, types.StateWaiting, status.Status)
	assert.Equal(t, transactionID, status.TransactionID)
	assert.Equal(t, 0.001, status.Amount)
}

func TestCreateRequestInvalid(t *testing.T) {
	p, _ := newTestPayment()

	_, err := p.CreateRequest(context.Background(), types.TransactionRequestBody{
		WalletAddress: "W1",
		Amount:        0,
		Recipient:     "MerchantWallet111",
	})
	assert.Error(t, err)
}

func TestCreateRequestFailedAtCreate(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	body := validRequest()
	body.Status = types.StateFailed
	body.Message = "Face verification failed"
	_, err := p.CreateRequest(ctx, body)
	require.NoError(t, err)

	// born terminal: never surfaces as pending work for the holder
	pending, err := p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, types.StateFailed, status.Status)
}

func TestPollPendingDeliversOnce(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	transactionID, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	first, err := p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, transactionID, first[0].TransactionID)
	assert.Equal(t, types.StateShown, first[0].Status)
	assert.True(t, first[0].Shown)

	second, err := p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestPollPendingNewestFirst(t *testing.T) {
	p, clock := newTestPayment()
	ctx := context.Background()

	older, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)
	clock.advance(time.Second)
	newer, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	pending, err := p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, newer, pending[0].TransactionID)
	assert.Equal(t, older, pending[1].TransactionID)
}

func TestPollPendingOtherWallet(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	_, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	pending, err := p.PollPendingForWallet(ctx, "W2")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUpdateStatusCompleted(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	transactionID, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)
	_, err = p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)

	require.NoError(t, p.UpdateStatus(ctx, transactionID, types.StateCompleted, "sigXYZ"))

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, types.StateCompleted, status.Status)
	assert.Equal(t, "sigXYZ", status.Signature)
}

func TestUpdateStatusNotFound(t *testing.T) {
	p, _ := newTestPayment()

	err := p.UpdateStatus(context.Background(), "no-such-id", types.StateCompleted, "sig")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateStatusSupersededTransaction(t *testing.T) {
	p, clock := newTestPayment()
	ctx := context.Background()

	first, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)
	clock.advance(time.Second)
	second, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	// the wallet view now mirrors the second request; completing the
	// first must not clobber it
	require.NoError(t, p.UpdateStatus(ctx, first, types.StateCancelled, ""))

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, second, status.TransactionID)
	assert.Equal(t, types.StateWaiting, status.Status)
}

func TestRequestExpires(t *testing.T) {
	p, clock := newTestPayment()
	ctx := context.Background()

	transactionID, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	clock.advance(testTTL + time.Second)

	pending, err := p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Nil(t, status)

	err = p.UpdateStatus(ctx, transactionID, types.StateCompleted, "sig")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExpireRemovesMatchingPair(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	transactionID, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, p.Expire(ctx, transactionID, "W1"))

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestExpireKeepsSupersedingStatus(t *testing.T) {
	p, clock := newTestPayment()
	ctx := context.Background()

	first, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)
	clock.advance(time.Second)
	second, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, p.Expire(ctx, first, "W1"))

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, second, status.TransactionID)
}

func TestPaymentRoundTrip(t *testing.T) {
	p, _ := newTestPayment()
	ctx := context.Background()

	transactionID, err := p.CreateRequest(ctx, validRequest())
	require.NoError(t, err)

	status, err := p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	require.Equal(t, types.StateWaiting, status.Status)

	pending, err := p.PollPendingForWallet(ctx, "W1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, p.UpdateStatus(ctx, transactionID, types.StateCompleted, "sigXYZ"))

	status, err = p.PollStatusForWallet(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, types.StateCompleted, status.Status)
	assert.Equal(t, "sigXYZ", status.Signature)

	tx, err := p.store.GetTransaction(ctx, transactionID)
	require.NoError(t, err)
	assert.Equal(t, status.Status, tx.Status)
	assert.Equal(t, status.Signature, tx.Signature)
}
