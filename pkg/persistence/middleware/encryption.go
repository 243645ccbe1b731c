package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

// envelopePrefix marks an encrypted result in the Message field.
const envelopePrefix = "enc:v1:"

// ErrNotEncrypted is returned by Load for results stored without encryption.
var ErrNotEncrypted = errors.New("result is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// Validate checks the key sizes.
func (c EncryptionConfig) Validate() error {
	if len(c.ActiveKey) != 32 {
		return errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range c.FallbackKeys {
		if len(k) != 32 {
			return fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return nil
}

type encryptionMiddleware struct {
	next   ports.ResultStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals results with AES-GCM.
// The stored envelope keeps the session ID, outcome and timestamps in clear
// for monitoring; everything else is in the ciphertext.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return func(next ports.ResultStore) ports.ResultStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, r domain.Result) error {
	plainText, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt result: %w", err)
	}

	envelope := domain.Result{
		SessionID:  r.SessionID,
		Success:    r.Success,
		Outcome:    r.Outcome,
		Message:    envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (domain.Result, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}

	encoded, ok := strings.CutPrefix(envelope.Message, envelopePrefix)
	if !ok {
		// Fail secure: a plain result under an encrypting store is unexpected.
		return domain.Result{}, fmt.Errorf("session %s: %w", sessionID, ErrNotEncrypted)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to decrypt result: %w", err)
	}

	var r domain.Result
	if err := json.Unmarshal(plainText, &r); err != nil {
		return domain.Result{}, fmt.Errorf("failed to unmarshal decrypted result: %w", err)
	}
	return r, nil
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
