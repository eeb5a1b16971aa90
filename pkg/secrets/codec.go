// Package secrets encrypts connection configurations at rest. The codec
// is built once at startup from a process-wide key and passed by
// reference into the gateway; the key never changes afterwards and is
// safe for unsynchronized concurrent reads.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"dbgateway/services/connector"
)

// KeySize is the required key length: AES-256.
const KeySize = 32

// ErrDecryption is returned when a token was tampered with or was sealed
// under a different key.
var ErrDecryption = errors.New("configuration token could not be decrypted")

// Codec seals and opens connection configurations with AES-256-GCM.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a raw 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// NewCodecFromBase64 builds a codec from the base64 form the key takes in
// the environment.
func NewCodecFromBase64(encoded string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	return NewCodec(key)
}

// Encrypt serializes the configuration and seals it into an opaque token.
// The token is what gets persisted; the plaintext never is.
func (c *Codec) Encrypt(cfg connector.Config) (string, error) {
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("serialize configuration: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token back into the configuration it was sealed from.
// Round trip is exact: Decrypt(Encrypt(cfg)) == cfg.
func (c *Codec) Decrypt(token string) (connector.Config, error) {
	var cfg connector.Config
	sealed, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return cfg, ErrDecryption
	}
	if len(sealed) < c.aead.NonceSize() {
		return cfg, ErrDecryption
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return cfg, ErrDecryption
	}
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return cfg, ErrDecryption
	}
	return cfg, nil
}
