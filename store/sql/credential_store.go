package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore keeps one encrypted credential row per provider instance.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{db: db, repo: repo}, nil
}

func (s *CredentialStore) Put(ctx context.Context, in core.EncryptedCredential) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	providerID := strings.TrimSpace(in.ProviderID)
	if providerID == "" {
		return fmt.Errorf("sqlstore: provider id is required")
	}
	if len(in.Payload) == 0 {
		return fmt.Errorf("sqlstore: encrypted payload is required")
	}
	in.ProviderID = providerID
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &credentialRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.provider_id = ?", providerID).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			record := newCredentialRecord(in, now)
			record.ID = uuid.NewString()
			_, createErr := s.repo.CreateTx(ctx, tx, record)
			return createErr
		case err != nil:
			return err
		}
		_, err = tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("encrypted_payload = ?", in.Payload).
			Set("payload_format = ?", strings.TrimSpace(in.PayloadFormat)).
			Set("payload_version = ?", in.PayloadVersion).
			Set("encryption_key_id = ?", strings.TrimSpace(in.KeyID)).
			Set("encryption_version = ?", in.KeyVersion).
			Set("updated_at = ?", now).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return err
	})
}

func (s *CredentialStore) Get(ctx context.Context, providerID string) (core.EncryptedCredential, error) {
	if s == nil || s.db == nil {
		return core.EncryptedCredential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	record := &credentialRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.EncryptedCredential{}, fmt.Errorf("%w: provider %q", core.ErrCredentialsNotFound, providerID)
		}
		return core.EncryptedCredential{}, err
	}
	return record.toDomain(), nil
}

func (s *CredentialStore) Delete(ctx context.Context, providerID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("provider_id = ?", strings.TrimSpace(providerID)).
		Exec(ctx)
	return err
}
