package wallet

import "errors"

var (
	// ErrEncoding marks a malformed base-58 wire field.
	ErrEncoding = errors.New("malformed base58 field")
	// ErrDecryption marks an authentication or plaintext-parse failure
	// on a sealed payload.
	ErrDecryption = errors.New("fail to decrypt payload")
	// ErrMalformedResponse marks a redirect missing required parameters.
	ErrMalformedResponse = errors.New("missing required redirect parameters")
	// ErrNotConnected is returned when an operation needs a connected
	// session.
	ErrNotConnected = errors.New("wallet session is not connected")
	// ErrSignInProgress is returned when a sign request is already
	// outstanding; deep-link responses carry no request id, so a second
	// in-flight request could not be disambiguated.
	ErrSignInProgress = errors.New("a sign request is already outstanding")
	// ErrSignResponseUnparseable is returned when none of the known
	// sign-response encodings matched.
	ErrSignResponseUnparseable = errors.New("unable to parse sign response")
)
