package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/internal/types"
)

// ErrNotFound is returned when the server no longer knows the
// transaction id, typically because the record expired.
var ErrNotFound = errors.New("transaction not found")

// Client consumes the payment coordination API. Both the verifying web
// client and the companion app speak this surface; neither ever talks
// to the other directly.
type Client struct {
	baseURL string
	client  http.Client
	logger  *logrus.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logrus.WithField("service", "coordination-client").Logger,
	}
}

func (c *Client) bodyCloser(body io.ReadCloser) {
	if body != nil {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close body,err:", err)
		}
	}
}

// CreateTransactionRequest asks the server to surface a payment
// approval to the given wallet's holder. Returns the transaction id.
func (c *Client) CreateTransactionRequest(ctx context.Context, body types.TransactionRequestBody) (string, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("fail to create transaction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transaction-request", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("fail to create transaction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fail to create transaction request: %w", err)
	}
	defer c.bodyCloser(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fail to create transaction request: %s", resp.Status)
	}

	var out types.TransactionRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("fail to unmarshal transaction request response: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("fail to create transaction request: %s", out.Message)
	}
	return out.TransactionID, nil
}

// GetPendingTransactions fetches the requests not yet surfaced to the
// holder. The server marks everything returned as shown, so each
// request is delivered to exactly one call.
func (c *Client) GetPendingTransactions(ctx context.Context, walletAddress string) ([]types.TransactionRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/pending-transactions/"+walletAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("fail to get pending transactions: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fail to get pending transactions: %w", err)
	}
	defer c.bodyCloser(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fail to get pending transactions: %s", resp.Status)
	}

	var out types.PendingTransactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("fail to unmarshal pending transactions: %w", err)
	}
	return out.Transactions, nil
}

// UpdateTransactionStatus reports the holder's outcome for a
// transaction.
func (c *Client) UpdateTransactionStatus(ctx context.Context, transactionID string, status types.PaymentState, signature string) error {
	buf, err := json.Marshal(types.StatusUpdateBody{Status: status, Signature: signature})
	if err != nil {
		return fmt.Errorf("fail to update transaction status: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transaction-status/"+transactionID, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("fail to update transaction status: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fail to update transaction status: %w", err)
	}
	defer c.bodyCloser(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fail to update transaction status: %s", resp.Status)
	}
	return nil
}

// GetPaymentStatus returns the latest status snapshot for a wallet.
// The payment pointer is nil when the status is "none".
func (c *Client) GetPaymentStatus(ctx context.Context, walletAddress string) (string, *types.PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/payment-status/"+walletAddress, nil)
	if err != nil {
		return "", nil, fmt.Errorf("fail to get payment status: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fail to get payment status: %w", err)
	}
	defer c.bodyCloser(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fail to get payment status: %s", resp.Status)
	}

	var out types.PaymentStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("fail to unmarshal payment status: %w", err)
	}
	return out.Status, out.Payment, nil
}
