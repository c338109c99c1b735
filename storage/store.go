package storage

import (
	"context"
	"errors"
	"time"

	"github.com/facepay/facepay/internal/types"
)

// ErrNotFound is returned when a record is absent, either never written
// or already expired.
var ErrNotFound = errors.New("record not found")

// PaymentStore holds the two rendezvous maps: transaction requests keyed
// by transaction id and the latest payment status keyed by wallet
// address. Implementations enforce the TTL passed on each write; the
// coordination logic on top supplies its own mutual exclusion, so
// implementations only need to be individually safe for concurrent use.
type PaymentStore interface {
	SetTransaction(ctx context.Context, tx *types.TransactionRequest, ttl time.Duration) error
	GetTransaction(ctx context.Context, transactionID string) (*types.TransactionRequest, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	ListTransactionsByWallet(ctx context.Context, walletAddress string) ([]*types.TransactionRequest, error)

	SetWalletStatus(ctx context.Context, status *types.PaymentStatus, ttl time.Duration) error
	GetWalletStatus(ctx context.Context, walletAddress string) (*types.PaymentStatus, error)
	DeleteWalletStatus(ctx context.Context, walletAddress string) error

	Close() error
}
