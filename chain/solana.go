package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// ErrBroadcast marks a ledger submission or confirmation failure. It is
// never retried automatically: resubmitting a signed transaction risks
// double-spend ambiguity without idempotency tracking, so the user must
// re-initiate the payment.
var ErrBroadcast = errors.New("fail to broadcast transaction")

// Client talks to a Solana RPC endpoint for the two ledger operations
// this system needs: fetching a recent blockhash for transfer
// construction and submitting a wallet-signed transaction.
type Client struct {
	rpc             *rpc.Client
	logger          *logrus.Logger
	confirmInterval time.Duration
	confirmTimeout  time.Duration
}

func NewClient(endpoint string) *Client {
	return &Client{
		rpc:             rpc.New(endpoint),
		logger:          logrus.WithField("service", "solana-client").Logger,
		confirmInterval: 2 * time.Second,
		confirmTimeout:  time.Minute,
	}
}

// Lamports converts a SOL amount to lamports.
func Lamports(amount float64) uint64 {
	return uint64(math.Round(amount * float64(solana.LAMPORTS_PER_SOL)))
}

// NewTransferTransaction builds an unsigned system transfer. Split out
// from BuildTransfer so construction is testable without an RPC node.
func NewTransferTransaction(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
}

// BuildTransfer constructs and serializes an unsigned transfer of
// amount SOL. The returned bytes go to the wallet for signing; no
// signature slots are populated.
func (c *Client) BuildTransfer(ctx context.Context, from, to string, amount float64) ([]byte, error) {
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return nil, fmt.Errorf("fail to parse sender address, err: %w", err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("fail to parse recipient address, err: %w", err)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("fail to get latest blockhash, err: %w", err)
	}

	tx, err := NewTransferTransaction(fromKey, toKey, Lamports(amount), recent.Value.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("fail to build transfer transaction, err: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fail to serialize transaction, err: %w", err)
	}
	return raw, nil
}

// ParseSignedTransaction decodes the bytes returned by the wallet and
// checks that at least one signature slot is populated. Run before
// submission so garbage from a misbehaving wallet fails locally instead
// of burning an RPC round-trip.
func ParseSignedTransaction(signedTx []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signedTx))
	if err != nil {
		return nil, fmt.Errorf("fail to decode signed transaction, err: %w", err)
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return nil, errors.New("signed transaction carries no signature")
	}
	return tx, nil
}

// Broadcast submits a signed transaction and waits for the network to
// confirm it.
func (c *Client) Broadcast(ctx context.Context, signedTx []byte) (solana.Signature, error) {
	if _, err := ParseSignedTransaction(signedTx); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrBroadcast, err)
	}
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, signedTx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrBroadcast, err)
	}
	c.logger.WithField("signature", sig.String()).Info("transaction submitted")

	if err := c.waitForConfirmation(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (c *Client) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(c.confirmTimeout)
	ticker := time.NewTicker(c.confirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: confirmation timed out", ErrBroadcast)
		}

		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.logger.WithField("error", err).Warn("fail to get signature status")
			continue
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}
		status := out.Value[0]
		if status.Err != nil {
			return fmt.Errorf("%w: transaction failed on chain: %v", ErrBroadcast, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			c.logger.WithField("signature", sig.String()).Info("transaction confirmed")
			return nil
		}
	}
}
