package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypePaymentExpire = "payment:expire"

	QUEUE_NAME = "facepay"
)

// PaymentExpirePayload removes a rendezvous record pair once its expiry
// window has elapsed, regardless of terminal state.
type PaymentExpirePayload struct {
	TransactionID string
	WalletAddress string
}

func NewPaymentExpire(transactionID, walletAddress string) (*asynq.Task, error) {
	payload, err := json.Marshal(PaymentExpirePayload{
		TransactionID: transactionID,
		WalletAddress: walletAddress,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentExpire, payload), nil
}
