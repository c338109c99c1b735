package types

import (
	"errors"
	"time"
)

// PaymentState is the lifecycle state of a payment attempt.
// pending -> shown -> {completed | failed | cancelled}; expired records
// are simply absent after the TTL.
type PaymentState string

const (
	StatePending   PaymentState = "pending"
	StateShown     PaymentState = "shown"
	StateCompleted PaymentState = "completed"
	StateFailed    PaymentState = "failed"
	StateCancelled PaymentState = "cancelled"

	// StateWaiting is the initial wallet-status view of a pending request.
	StateWaiting PaymentState = "waiting"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

func (s PaymentState) isValidUpdate() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// TransactionRequest is the server-side rendezvous record, one per
// payment attempt, keyed by its globally unique transaction id.
type TransactionRequest struct {
	TransactionID string       `json:"transactionId"`
	WalletAddress string       `json:"walletAddress"`
	Amount        float64      `json:"amount"`
	Recipient     string       `json:"recipient"`
	Similarity    float64      `json:"similarity"`
	Message       string       `json:"message"`
	Status        PaymentState `json:"status"`
	Shown         bool         `json:"shown"`
	Signature     string       `json:"signature,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// PaymentStatus is the latest status snapshot for a wallet, decoupled
// from the transaction id so the verifying client can poll by wallet
// address alone.
type PaymentStatus struct {
	TransactionID string       `json:"transactionId"`
	WalletAddress string       `json:"walletAddress"`
	Status        PaymentState `json:"status"`
	Amount        float64      `json:"amount"`
	Message       string       `json:"message,omitempty"`
	Signature     string       `json:"signature,omitempty"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type TransactionRequestBody struct {
	WalletAddress string       `json:"walletAddress"`
	Amount        float64      `json:"amount"`
	Recipient     string       `json:"recipient"`
	Similarity    float64      `json:"similarity"`
	Message       string       `json:"message"`
	Timestamp     int64        `json:"timestamp"`
	Status        PaymentState `json:"status,omitempty"` // optional failed-at-create notification
}

// IsValid checks if the transaction request body is valid
func (r TransactionRequestBody) IsValid() error {
	if r.WalletAddress == "" {
		return errors.New("invalid wallet address")
	}
	if r.Amount <= 0 {
		return errors.New("invalid amount")
	}
	if r.Recipient == "" {
		return errors.New("invalid recipient")
	}
	if r.Status != "" && r.Status != StatePending && r.Status != StateFailed {
		return errors.New("invalid initial status")
	}
	return nil
}

type TransactionRequestResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

type PendingTransactionsResponse struct {
	Success      bool                 `json:"success"`
	Transactions []TransactionRequest `json:"transactions"`
}

type StatusUpdateBody struct {
	Status    PaymentState `json:"status"`
	Signature string       `json:"signature,omitempty"`
}

// IsValid checks if the status update body is valid
func (r StatusUpdateBody) IsValid() error {
	if !r.Status.isValidUpdate() {
		return errors.New("invalid status")
	}
	return nil
}

type StatusUpdateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StatusNone is reported when no payment status exists for a wallet,
// either never created or already expired. Callers treat it as nothing
// to report, not as an error.
const StatusNone = "none"

type PaymentStatusResponse struct {
	Success bool           `json:"success"`
	Status  string         `json:"status"`
	Payment *PaymentStatus `json:"payment,omitempty"`
}
