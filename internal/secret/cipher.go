// Package secret seals organization credentials for storage at rest.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/smallbiznis/atelier/internal/config"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrMissingKey      = errors.New("encryption_key_missing")
	ErrInvalidEnvelope = errors.New("invalid_encrypted_payload")
)

const envelopeVersion = 1

var hkdfInfo = []byte("atelier/organization-credentials")

type envelope struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Cipher encrypts with AES-256-GCM under a key derived from the configured
// secret. Sealed values are JSON envelopes safe to store in a text column.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(cfg config.Config) (*Cipher, error) {
	return New(cfg.PaymentProviderConfigSecret)
}

func New(secret string) (*Cipher, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingKey
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	raw, err := json.Marshal(envelope{
		Version:    envelopeVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decrypt opens a sealed value. Failures never echo the input.
func (c *Cipher) Decrypt(sealed string) (string, error) {
	var payload envelope
	if err := json.Unmarshal([]byte(sealed), &payload); err != nil || payload.Version != envelopeVersion {
		return "", ErrInvalidEnvelope
	}
	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrInvalidEnvelope
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	return string(plaintext), nil
}
