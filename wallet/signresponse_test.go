package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signResponseSecret(t *testing.T) *[32]byte {
	local, err := GenerateKeyPair()
	require.NoError(t, err)
	remote, err := GenerateKeyPair()
	require.NoError(t, err)
	return DeriveSharedSecret(local.SecretKey, remote.PublicKey)
}

func TestDecryptSignedTransactionWrapped(t *testing.T) {
	secret := signResponseSecret(t)
	signedTx := []byte("signed-bytes")

	nonce, data, err := EncryptPayload(map[string]string{
		"transaction": EncodeBase58(signedTx),
	}, secret)
	require.NoError(t, err)

	signed, err := decryptSignedTransaction(data, nonce, secret)
	require.NoError(t, err)
	assert.Equal(t, signedTx, signed)
}

func TestDecryptSignedTransactionDirect(t *testing.T) {
	secret := signResponseSecret(t)
	signedTx := []byte("signed-bytes")

	nonce, data, err := EncryptPayload(EncodeBase58(signedTx), secret)
	require.NoError(t, err)

	signed, err := decryptSignedTransaction(data, nonce, secret)
	require.NoError(t, err)
	assert.Equal(t, signedTx, signed)
}

func TestDecryptSignedTransactionUnparseable(t *testing.T) {
	secret := signResponseSecret(t)

	nonce, data, err := EncryptPayload(map[string]int{"status": 1}, secret)
	require.NoError(t, err)

	_, err = decryptSignedTransaction(data, nonce, secret)
	assert.ErrorIs(t, err, ErrSignResponseUnparseable)
}
