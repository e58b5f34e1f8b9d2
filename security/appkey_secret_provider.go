package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-costhook/core"
)

// ErrKeyMismatch is returned when a ciphertext was sealed by a different key
// id or version than the one asked to open it.
var ErrKeyMismatch = errors.New("security: key mismatch")

const (
	defaultKeyID   = "app-key"
	base64KeyLabel = "base64:"
	aesKeySize     = 32
)

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals credential bundles with AES-256-GCM under a key
// taken from configuration. The key id and version travel in the envelope
// and are bound into the GCM tag.
type AppKeySecretProvider struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			p.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

// NewAppKeySecretProvider accepts, in order of preference:
//
//   - "base64:<standard base64>" of exactly 32 bytes
//   - a Fernet-style key (urlsafe base64 of 32 bytes), so existing
//     ENCRYPTION_KEY values keep working
//   - 32 raw bytes
//   - any other non-empty passphrase, stretched with SHA-256
func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	key, err := parseKeyMaterial(bytes.TrimSpace(keyMaterial))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	provider := &AppKeySecretProvider{aead: aead, keyID: defaultKeyID, version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if !validKeyID(provider.keyID) {
		return nil, fmt.Errorf("security: key id %q may not contain separators or spaces", provider.keyID)
	}
	return provider, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func parseKeyMaterial(material []byte) ([]byte, error) {
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	if encoded, ok := bytes.CutPrefix(material, []byte(base64KeyLabel)); ok {
		key, err := base64.StdEncoding.DecodeString(string(encoded))
		if err != nil {
			return nil, fmt.Errorf("security: decode base64 key: %w", err)
		}
		if len(key) != aesKeySize {
			return nil, fmt.Errorf("security: base64 key must decode to %d bytes, got %d", aesKeySize, len(key))
		}
		return key, nil
	}
	if key, err := base64.URLEncoding.DecodeString(string(material)); err == nil && len(key) == aesKeySize {
		return key, nil
	}
	if len(material) == aesKeySize {
		return bytes.Clone(material), nil
	}
	sum := sha256.Sum256(material)
	return sum[:], nil
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	return encodeEnvelope(envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      nonce,
		Ciphertext: p.aead.Seal(nil, nonce, plaintext, p.additionalData()),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	if env.KeyID != p.keyID || env.Version != p.version {
		return nil, fmt.Errorf("%w: got %s:%d want %s:%d", ErrKeyMismatch, env.KeyID, env.Version, p.keyID, p.version)
	}
	if len(env.Nonce) != p.aead.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce length %d", len(env.Nonce))
	}
	plaintext, err := p.aead.Open(nil, env.Nonce, env.Ciphertext, p.additionalData())
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *AppKeySecretProvider) Metadata() (string, int) {
	return p.KeyID(), p.Version()
}

// additionalData binds the key reference into the tag so an envelope header
// cannot be rewritten to point at another key.
func (p *AppKeySecretProvider) additionalData() []byte {
	return []byte(p.keyID + ":" + strconv.Itoa(p.version))
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
