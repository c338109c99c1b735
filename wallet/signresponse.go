package wallet

import (
	"encoding/json"
)

// Wallet providers are not consistent about how the signed transaction
// comes back: some wrap it in an object, some send a bare base-58
// string. Each known shape is a decode strategy returning the signed
// bytes or a does-not-match signal; the strategies are tried in order,
// structured form first.
type signResponseStrategy func(raw json.RawMessage) ([]byte, bool)

var signResponseStrategies = []signResponseStrategy{
	decodeWrappedTransaction,
	decodeDirectTransaction,
}

func decodeWrappedTransaction(raw json.RawMessage) ([]byte, bool) {
	var payload struct {
		Transaction string `json:"transaction"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Transaction == "" {
		return nil, false
	}
	signed, err := DecodeBase58(payload.Transaction)
	if err != nil {
		return nil, false
	}
	return signed, true
}

func decodeDirectTransaction(raw json.RawMessage) ([]byte, bool) {
	var blob string
	if err := json.Unmarshal(raw, &blob); err != nil || blob == "" {
		return nil, false
	}
	signed, err := DecodeBase58(blob)
	if err != nil {
		return nil, false
	}
	return signed, true
}

func decryptSignedTransaction(dataB58, nonceB58 string, sharedSecret *[32]byte) ([]byte, error) {
	var raw json.RawMessage
	if err := DecryptPayload(dataB58, nonceB58, sharedSecret, &raw); err != nil {
		return nil, err
	}
	for _, strategy := range signResponseStrategies {
		if signed, ok := strategy(raw); ok {
			return signed, nil
		}
	}
	return nil, ErrSignResponseUnparseable
}
