package wallet

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a fresh X25519 box key pair, regenerated for every wallet
// session and never reused across sessions.
type KeyPair struct {
	PublicKey *[32]byte
	SecretKey *[32]byte
}

func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("fail to generate key pair, err: %w", err)
	}
	return &KeyPair{PublicKey: pub, SecretKey: priv}, nil
}

// DeriveSharedSecret runs the X25519 Diffie-Hellman combine. It is
// deterministic and symmetric: both parties derive the same value from
// their own secret key and the other's public key.
func DeriveSharedSecret(localSecretKey, remotePublicKey *[32]byte) *[32]byte {
	var secret [32]byte
	box.Precompute(&secret, remotePublicKey, localSecretKey)
	return &secret
}

// EncryptPayload seals a JSON-serializable payload under the shared
// secret. A fresh random nonce is drawn on every call; callers cannot
// supply one, which structurally rules out nonce reuse under a key.
// Both return values are base-58 encoded for the wire.
func EncryptPayload(payload any, sharedSecret *[32]byte) (nonceB58, dataB58 string, err error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("fail to marshal payload to json, err: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", "", fmt.Errorf("fail to generate nonce, err: %w", err)
	}
	sealed := box.SealAfterPrecomputation(nil, plaintext, &nonce, sharedSecret)
	return base58.Encode(nonce[:]), base58.Encode(sealed), nil
}

// DecryptPayload opens a sealed wire payload and unmarshals the
// plaintext into out. Authentication failure and invalid-JSON plaintext
// both surface as ErrDecryption; the operation never partially
// succeeds. Malformed base-58 input is the distinct ErrEncoding.
func DecryptPayload(dataB58, nonceB58 string, sharedSecret *[32]byte, out any) error {
	sealed, err := DecodeBase58(dataB58)
	if err != nil {
		return err
	}
	nonceRaw, err := DecodeBase58(nonceB58)
	if err != nil {
		return err
	}
	if len(nonceRaw) != 24 {
		return fmt.Errorf("%w: nonce must be 24 bytes, got %d", ErrEncoding, len(nonceRaw))
	}
	var nonce [24]byte
	copy(nonce[:], nonceRaw)

	plaintext, ok := box.OpenAfterPrecomputation(nil, sealed, &nonce, sharedSecret)
	if !ok {
		return ErrDecryption
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: plaintext is not valid json", ErrDecryption)
	}
	return nil
}

func EncodeBase58(data []byte) string {
	return base58.Encode(data)
}

func DecodeBase58(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return raw, nil
}

// DecodeKey decodes a base-58 encoded 32-byte key.
func DecodeKey(s string) (*[32]byte, error) {
	raw, err := DecodeBase58(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrEncoding, len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
