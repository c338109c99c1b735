package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facepay/facepay/internal/types"
)

// ErrPaymentTimeout is returned when the status poll exhausts its
// attempt budget without seeing a terminal state.
var ErrPaymentTimeout = errors.New("payment timeout")

// WaitForPaymentStatus polls the wallet's status until it reaches a
// terminal state or the attempt budget runs out. Transport errors on
// individual polls are logged and retried; only ctx cancellation and
// the attempt ceiling abort the wait.
func (c *Client) WaitForPaymentStatus(ctx context.Context, walletAddress string, interval time.Duration, maxAttempts int) (*types.PaymentStatus, error) {
	for i := 0; i < maxAttempts; i++ {
		status, payment, err := c.GetPaymentStatus(ctx, walletAddress)
		if err != nil {
			c.logger.Errorf("fail to poll payment status, err: %v", err)
		} else if payment != nil && payment.Status.IsTerminal() {
			return payment, nil
		} else if status == types.StatusNone && i > 0 {
			// the record expired mid-wait
			return nil, fmt.Errorf("%w: status record expired", ErrPaymentTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, ErrPaymentTimeout
}

// PollPendingTransactions drives the holder-side loop: every interval
// it checks the gate, fetches pending requests, and hands each one to
// handle. The gate suppresses fetching while an approval is already in
// front of the holder, so nothing is marked shown behind their back.
func (c *Client) PollPendingTransactions(ctx context.Context, walletAddress string, interval time.Duration, gate func() bool, handle func(types.TransactionRequest)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if gate != nil && !gate() {
			continue
		}

		pending, err := c.GetPendingTransactions(ctx, walletAddress)
		if err != nil {
			c.logger.Errorf("fail to poll pending transactions, err: %v", err)
			continue
		}
		for _, tx := range pending {
			handle(tx)
		}
	}
}
