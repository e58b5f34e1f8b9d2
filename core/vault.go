package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCredentialsUnreadable marks a stored bundle that can no longer be
// decrypted or decoded, typically after a key change.
var ErrCredentialsUnreadable = errors.New("core: stored credentials are unreadable")

type keyMetadataProvider interface {
	Metadata() (string, int)
}

// Vault encrypts credential bundles with a SecretProvider before handing them
// to a CredentialStore. Plaintext never leaves this type except through Fetch.
type Vault struct {
	store   CredentialStore
	secrets SecretProvider
	codec   CredentialCodec
	nowFn   func() time.Time
}

func NewVault(store CredentialStore, secrets SecretProvider, codec CredentialCodec) (*Vault, error) {
	if store == nil {
		return nil, fmt.Errorf("core: credential store is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("core: secret provider is required")
	}
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	return &Vault{
		store:   store,
		secrets: secrets,
		codec:   codec,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Store validates bundle against the provider schema and persists it. When a
// bundle already exists the new fields are merged into it by name, so only
// the first write must carry every required field.
func (v *Vault) Store(ctx context.Context, providerID string, providerType ProviderType, bundle CredentialBundle) error {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return fmt.Errorf("core: provider id is required")
	}
	schema, err := CredentialSchemaFor(providerType)
	if err != nil {
		return err
	}
	current, err := v.Fetch(ctx, providerID)
	switch {
	case errors.Is(err, ErrCredentialsNotFound):
		if err := schema.Validate(bundle, false); err != nil {
			return err
		}
		current = nil
	case err != nil:
		return err
	default:
		if err := schema.Validate(bundle, true); err != nil {
			return err
		}
	}
	merged := current.Merge(bundle)
	if err := schema.Validate(merged, false); err != nil {
		return err
	}
	return v.put(ctx, providerID, merged)
}

func (v *Vault) Fetch(ctx context.Context, providerID string) (CredentialBundle, error) {
	stored, err := v.store.Get(ctx, strings.TrimSpace(providerID))
	if err != nil {
		return nil, err
	}
	if stored.PayloadFormat != "" && stored.PayloadFormat != v.codec.Format() {
		return nil, fmt.Errorf("%w: unsupported payload format %q", ErrCredentialsUnreadable, stored.PayloadFormat)
	}
	plaintext, err := v.secrets.Decrypt(ctx, stored.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsUnreadable, err)
	}
	bundle, err := v.codec.Decode(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsUnreadable, err)
	}
	return bundle, nil
}

func (v *Vault) Delete(ctx context.Context, providerID string) error {
	err := v.store.Delete(ctx, strings.TrimSpace(providerID))
	if errors.Is(err, ErrCredentialsNotFound) {
		return nil
	}
	return err
}

func (v *Vault) put(ctx context.Context, providerID string, bundle CredentialBundle) error {
	plaintext, err := v.codec.Encode(bundle)
	if err != nil {
		return err
	}
	ciphertext, err := v.secrets.Encrypt(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("core: encrypt credentials: %w", err)
	}
	keyID, keyVersion := "", 0
	if meta, ok := v.secrets.(keyMetadataProvider); ok {
		keyID, keyVersion = meta.Metadata()
	}
	now := v.nowFn()
	return v.store.Put(ctx, EncryptedCredential{
		ProviderID:     providerID,
		Payload:        ciphertext,
		PayloadFormat:  v.codec.Format(),
		PayloadVersion: v.codec.Version(),
		KeyID:          keyID,
		KeyVersion:     keyVersion,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

var _ CredentialVault = (*Vault)(nil)
