package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-costhook/core"
)

// ErrUnknownKey is returned when no key in the ring matches an envelope.
var ErrUnknownKey = errors.New("security: unknown credential key")

// KeyRingDiagnostic is emitted when a credential is opened with a retired key,
// signalling that it should be re-sealed under the active key.
type KeyRingDiagnostic struct {
	OccurredAt time.Time
	Operation  string
	Outcome    string
	KeyID      string
	Version    int
	Error      string
}

type KeyRingDiagnosticHook func(event KeyRingDiagnostic)

type KeyRingOption func(*KeyRing)

type keyRef struct {
	KeyID   string
	Version int
}

// KeyRing encrypts with one active key and decrypts with whichever active or
// retired key the envelope names.
type KeyRing struct {
	active         *AppKeySecretProvider
	retired        map[keyRef]*AppKeySecretProvider
	diagnosticHook KeyRingDiagnosticHook
	now            func() time.Time
}

func NewKeyRing(active *AppKeySecretProvider, opts ...KeyRingOption) (*KeyRing, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active secret provider is required")
	}
	ring := &KeyRing{
		active:  active,
		retired: map[keyRef]*AppKeySecretProvider{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(ring)
	}
	activeRef := keyRef{KeyID: active.KeyID(), Version: active.Version()}
	if _, ok := ring.retired[activeRef]; ok {
		return nil, fmt.Errorf("security: key %s:%d is both active and retired", activeRef.KeyID, activeRef.Version)
	}
	if ring.now == nil {
		ring.now = func() time.Time { return time.Now().UTC() }
	}
	return ring, nil
}

func WithRetiredKey(provider *AppKeySecretProvider) KeyRingOption {
	return func(ring *KeyRing) {
		if ring == nil || provider == nil {
			return
		}
		ring.retired[keyRef{KeyID: provider.KeyID(), Version: provider.Version()}] = provider
	}
}

func WithKeyRingDiagnostics(hook KeyRingDiagnosticHook) KeyRingOption {
	return func(ring *KeyRing) {
		if ring == nil {
			return
		}
		ring.diagnosticHook = hook
	}
}

func WithKeyRingClock(now func() time.Time) KeyRingOption {
	return func(ring *KeyRing) {
		if ring == nil {
			return
		}
		ring.now = now
	}
}

func (r *KeyRing) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	return r.active.Encrypt(ctx, plaintext)
}

func (r *KeyRing) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	ref := keyRef{KeyID: meta.KeyID, Version: meta.Version}
	if ref.KeyID == r.active.KeyID() && ref.Version == r.active.Version() {
		return r.active.Decrypt(ctx, ciphertext)
	}
	retired, ok := r.retired[ref]
	if !ok {
		err := fmt.Errorf("%w: %s:%d", ErrUnknownKey, ref.KeyID, ref.Version)
		r.emit("decrypt", "unknown_key", ref, err)
		return nil, err
	}
	plaintext, err := retired.Decrypt(ctx, ciphertext)
	if err != nil {
		r.emit("decrypt", "retired_key_failed", ref, err)
		return nil, err
	}
	r.emit("decrypt", "retired_key_used", ref, nil)
	return plaintext, nil
}

// Metadata reports the active key, which is the one new envelopes carry.
func (r *KeyRing) Metadata() (string, int) {
	if r == nil {
		return "", 0
	}
	return r.active.Metadata()
}

func (r *KeyRing) emit(operation, outcome string, ref keyRef, err error) {
	if r.diagnosticHook == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.diagnosticHook(KeyRingDiagnostic{
		OccurredAt: r.now().UTC(),
		Operation:  operation,
		Outcome:    outcome,
		KeyID:      ref.KeyID,
		Version:    ref.Version,
		Error:      msg,
	})
}

var _ core.SecretProvider = (*KeyRing)(nil)
