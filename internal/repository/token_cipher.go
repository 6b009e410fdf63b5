package repository

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Wei-Shaw/tokengate/internal/service"

	"golang.org/x/crypto/chacha20poly1305"
)

// tokenCipher seals persisted token payloads with XChaCha20-Poly1305.
// Sealed layout: nonce || ciphertext. The 24-byte nonce space makes random
// nonces safe without a counter.
type tokenCipher struct {
	aead cipher.AEAD
}

// newTokenCipher builds a cipher from a 64-char hex key. An empty key returns
// (nil, nil): tokens are then persisted as plain JSON.
func newTokenCipher(hexKey string) (*tokenCipher, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &tokenCipher{aead: aead}, nil
}

func (c *tokenCipher) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *tokenCipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plain, nil
}

// encodeStoredToken marshals a token for persistence, sealing it when a
// cipher is configured.
func encodeStoredToken(c *tokenCipher, token *service.CachedToken) ([]byte, error) {
	raw, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}
	if c == nil {
		return raw, nil
	}
	return c.Seal(raw)
}

// decodeStoredToken reverses encodeStoredToken. A payload that cannot be
// opened (key rotated, data corrupted) is an error, not a miss.
func decodeStoredToken(c *tokenCipher, raw []byte) (*service.CachedToken, error) {
	if c != nil {
		opened, err := c.Open(raw)
		if err != nil {
			return nil, err
		}
		raw = opened
	}
	var token service.CachedToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &token, nil
}
