package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/chain"
	"github.com/facepay/facepay/client"
	"github.com/facepay/facepay/internal/types"
	"github.com/facepay/facepay/wallet"
)

// Companion is the holder-side orchestrator: it polls the coordination
// server for payment requests addressed to the connected wallet, asks
// the wallet provider to sign a matching transfer, broadcasts the
// signed transaction, and reports the outcome back to the server.
type Companion struct {
	api     *client.Client
	session *wallet.Session
	chain   *chain.Client
	logger  *logrus.Logger

	interval time.Duration
	busy     atomic.Bool
}

func NewCompanion(api *client.Client, session *wallet.Session, chainClient *chain.Client, interval time.Duration) *Companion {
	return &Companion{
		api:      api,
		session:  session,
		chain:    chainClient,
		logger:   logrus.WithField("service", "companion").Logger,
		interval: interval,
	}
}

// HandleRedirect forwards a provider redirect URL to the wallet
// session. The platform layer calls this for every deep link the app
// receives.
func (c *Companion) HandleRedirect(rawURL string) (wallet.Event, error) {
	return c.session.HandleRedirect(rawURL)
}

// Run polls for pending requests until ctx is cancelled. While one
// request is being approved no further requests are fetched, so the
// server keeps them pending for a later poll instead of marking them
// shown behind an occupied holder.
func (c *Companion) Run(ctx context.Context) error {
	addr := c.session.WalletAddress()
	if addr == "" {
		return wallet.ErrNotConnected
	}
	return c.api.PollPendingTransactions(ctx, addr, c.interval,
		func() bool { return !c.busy.Load() },
		func(tx types.TransactionRequest) { c.handleRequest(ctx, tx) })
}

func (c *Companion) handleRequest(ctx context.Context, tx types.TransactionRequest) {
	if !c.busy.CompareAndSwap(false, true) {
		return
	}
	defer c.busy.Store(false)

	log := c.logger.WithFields(logrus.Fields{
		"transactionId": tx.TransactionID,
		"amount":        tx.Amount,
		"recipient":     tx.Recipient,
	})
	log.Info("payment request received")

	signature, err := c.approveAndBroadcast(ctx, tx)
	if err != nil {
		log.Errorf("fail to complete payment, err: %v", err)
		if err := c.api.UpdateTransactionStatus(ctx, tx.TransactionID, types.StateFailed, ""); err != nil && !errors.Is(err, client.ErrNotFound) {
			log.Errorf("fail to report failure, err: %v", err)
		}
		return
	}

	if err := c.api.UpdateTransactionStatus(ctx, tx.TransactionID, types.StateCompleted, signature); err != nil {
		// the transfer is on-chain either way; expiry on the server
		// side is the only recovery if this report never lands
		log.Errorf("fail to report completion, err: %v", err)
		return
	}
	log.WithField("signature", signature).Info("payment completed")
}

func (c *Companion) approveAndBroadcast(ctx context.Context, tx types.TransactionRequest) (string, error) {
	unsigned, err := c.chain.BuildTransfer(ctx, c.session.WalletAddress(), tx.Recipient, tx.Amount)
	if err != nil {
		return "", err
	}
	signed, err := c.session.RequestSignature(ctx, unsigned)
	if err != nil {
		return "", err
	}
	sig, err := c.chain.Broadcast(ctx, signed)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}
