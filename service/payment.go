package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/internal/tasks"
	"github.com/facepay/facepay/internal/types"
	"github.com/facepay/facepay/storage"
)

// TaskEnqueuer is the slice of asynq.Client the payment service needs;
// tests run without a queue.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Payment is the server-side rendezvous between the verifying client
// and the wallet holder. It owns both maps exclusively: every mutation
// of a transaction request and of the derived wallet-status view
// happens under one mutex, so a reader can never observe one updated
// and the other stale even though the store writes themselves are not
// transactional.
type Payment struct {
	store  storage.PaymentStore
	queue  TaskEnqueuer
	logger *logrus.Logger
	ttl    time.Duration

	mu  sync.Mutex
	now func() time.Time
}

func NewPaymentService(store storage.PaymentStore, queue TaskEnqueuer, ttl time.Duration) *Payment {
	return &Payment{
		store:  store,
		queue:  queue,
		logger: logrus.WithField("service", "payment").Logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// CreateRequest stores a new transaction request plus the wallet-status
// view the verifying client polls. Any prior status for the wallet is
// superseded: only one outstanding payment per wallet is supported, and
// a later request silently wins for status-polling purposes while both
// transaction records persist independently until expiry.
func (p *Payment) CreateRequest(ctx context.Context, body types.TransactionRequestBody) (string, error) {
	if err := body.IsValid(); err != nil {
		return "", fmt.Errorf("invalid request, err: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	status := types.StatePending
	walletView := types.StateWaiting
	if body.Status == types.StateFailed {
		// verification-failure notification: born terminal
		status = types.StateFailed
		walletView = types.StateFailed
	}

	tx := &types.TransactionRequest{
		TransactionID: uuid.NewString(),
		WalletAddress: body.WalletAddress,
		Amount:        body.Amount,
		Recipient:     body.Recipient,
		Similarity:    body.Similarity,
		Message:       body.Message,
		Status:        status,
		Shown:         false,
		CreatedAt:     now,
	}
	if err := p.store.SetTransaction(ctx, tx, p.ttl); err != nil {
		return "", err
	}
	if err := p.store.SetWalletStatus(ctx, &types.PaymentStatus{
		TransactionID: tx.TransactionID,
		WalletAddress: tx.WalletAddress,
		Status:        walletView,
		Amount:        tx.Amount,
		Message:       tx.Message,
		UpdatedAt:     now,
	}, p.ttl); err != nil {
		return "", err
	}

	p.scheduleExpiry(tx.TransactionID, tx.WalletAddress)

	p.logger.WithFields(logrus.Fields{
		"transactionId": tx.TransactionID,
		"wallet":        tx.WalletAddress,
		"amount":        tx.Amount,
	}).Info("transaction request created")
	return tx.TransactionID, nil
}

// scheduleExpiry enqueues the deletion sweep. The store TTL already
// bounds memory; the task also prunes the wallet index eagerly.
func (p *Payment) scheduleExpiry(transactionID, walletAddress string) {
	if p.queue == nil {
		return
	}
	task, err := tasks.NewPaymentExpire(transactionID, walletAddress)
	if err != nil {
		p.logger.Errorf("fail to build expiry task, err: %v", err)
		return
	}
	if _, err := p.queue.Enqueue(task,
		asynq.ProcessIn(p.ttl),
		asynq.Queue(tasks.QUEUE_NAME)); err != nil {
		p.logger.Errorf("fail to enqueue expiry task, err: %v", err)
	}
}

// PollPendingForWallet returns every pending, not-yet-shown request for
// the wallet, newest first, marking each one shown atomically with the
// read. A request is therefore included in exactly one successful poll
// response even though the holder polls repeatedly.
func (p *Payment) PollPendingForWallet(ctx context.Context, walletAddress string) ([]types.TransactionRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.store.ListTransactionsByWallet(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	var fresh []*types.TransactionRequest
	for _, tx := range all {
		if tx.Status == types.StatePending && !tx.Shown {
			fresh = append(fresh, tx)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].CreatedAt.After(fresh[j].CreatedAt)
	})

	out := make([]types.TransactionRequest, 0, len(fresh))
	for _, tx := range fresh {
		tx.Status = types.StateShown
		tx.Shown = true
		if err := p.store.SetTransaction(ctx, tx, p.remainingTTL(tx.CreatedAt)); err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}

// UpdateStatus records the holder's decision. Both the transaction
// record and, when it still mirrors this transaction, the wallet-status
// view are written inside the same critical section; the view is
// derived from the updated record rather than written independently.
func (p *Payment) UpdateStatus(ctx context.Context, transactionID string, status types.PaymentState, signature string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	tx.Status = status
	if signature != "" {
		tx.Signature = signature
	}
	remaining := p.remainingTTL(tx.CreatedAt)
	if err := p.store.SetTransaction(ctx, tx, remaining); err != nil {
		return err
	}

	current, err := p.store.GetWalletStatus(ctx, tx.WalletAddress)
	if err == nil && current.TransactionID == tx.TransactionID {
		if err := p.store.SetWalletStatus(ctx, &types.PaymentStatus{
			TransactionID: tx.TransactionID,
			WalletAddress: tx.WalletAddress,
			Status:        tx.Status,
			Amount:        tx.Amount,
			Message:       tx.Message,
			Signature:     tx.Signature,
			UpdatedAt:     p.now(),
		}, remaining); err != nil {
			return err
		}
	}

	p.logger.WithFields(logrus.Fields{
		"transactionId": transactionID,
		"status":        status,
	}).Info("transaction status updated")
	return nil
}

// PollStatusForWallet returns the latest status snapshot for a wallet,
// or nil when there is nothing to report (never created or expired).
func (p *Payment) PollStatusForWallet(ctx context.Context, walletAddress string) (*types.PaymentStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, err := p.store.GetWalletStatus(ctx, walletAddress)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Expire removes a record pair. Called from the worker when the expiry
// task fires; the wallet view is only removed while it still mirrors
// the expiring transaction, so a superseding request is untouched.
func (p *Payment) Expire(ctx context.Context, transactionID, walletAddress string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.DeleteTransaction(ctx, transactionID); err != nil {
		return err
	}
	current, err := p.store.GetWalletStatus(ctx, walletAddress)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.TransactionID == transactionID {
		return p.store.DeleteWalletStatus(ctx, walletAddress)
	}
	return nil
}

func (p *Payment) remainingTTL(createdAt time.Time) time.Duration {
	remaining := p.ttl - p.now().Sub(createdAt)
	if remaining < time.Second {
		remaining = time.Second
	}
	return remaining
}
