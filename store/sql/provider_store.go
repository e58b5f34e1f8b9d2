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

type ProviderStore struct {
	db   *bun.DB
	repo repository.Repository[*providerInstanceRecord]
}

func NewProviderStore(db *bun.DB) (*ProviderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*providerInstanceRecord](db, providerInstanceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid provider repository wiring: %w", err)
		}
	}
	return &ProviderStore{db: db, repo: repo}, nil
}

func (s *ProviderStore) Create(ctx context.Context, instance core.ProviderInstance) (core.ProviderInstance, error) {
	if s == nil || s.repo == nil {
		return core.ProviderInstance{}, fmt.Errorf("sqlstore: provider store is not configured")
	}
	if strings.TrimSpace(instance.UserID) == "" {
		return core.ProviderInstance{}, fmt.Errorf("sqlstore: user id is required")
	}
	if !instance.Type.Valid() {
		return core.ProviderInstance{}, core.ErrInvalidProviderType
	}
	record := newProviderInstanceRecord(instance, time.Now().UTC())
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.ProviderInstance{}, err
	}
	return created.toDomain(), nil
}

func (s *ProviderStore) Get(ctx context.Context, id string) (core.ProviderInstance, error) {
	if s == nil || s.db == nil {
		return core.ProviderInstance{}, fmt.Errorf("sqlstore: provider store is not configured")
	}
	record, err := s.getLive(ctx, s.db, id)
	if err != nil {
		return core.ProviderInstance{}, err
	}
	return record.toDomain(), nil
}

func (s *ProviderStore) ListByUser(ctx context.Context, userID string) ([]core.ProviderInstance, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: provider store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ProviderInstance, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ProviderStore) ListSyncCandidates(ctx context.Context) ([]core.ProviderInstance, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: provider store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ProviderInstance, 0, len(records))
	for _, record := range records {
		instance := record.toDomain()
		if instance.Blocked() {
			continue
		}
		out = append(out, instance)
	}
	return out, nil
}

func (s *ProviderStore) Rename(ctx context.Context, id string, name string, updatedAt time.Time) (core.ProviderInstance, error) {
	if s == nil || s.db == nil {
		return core.ProviderInstance{}, fmt.Errorf("sqlstore: provider store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	result, err := s.db.NewUpdate().
		Model((*providerInstanceRecord)(nil)).
		Set("name = ?", name).
		Set("updated_at = ?", updatedAt.UTC()).
		Where("id = ?", trimmedID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.ProviderInstance{}, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return core.ProviderInstance{}, fmt.Errorf("%w: id %q", core.ErrProviderNotFound, trimmedID)
	}
	return s.Get(ctx, trimmedID)
}

// UpdateStatus applies a lifecycle projection, checking the transition against
// the row's current status inside one transaction.
func (s *ProviderStore) UpdateStatus(ctx context.Context, update core.ProviderStatusUpdate) (core.ProviderInstance, error) {
	if s == nil || s.db == nil {
		return core.ProviderInstance{}, fmt.Errorf("sqlstore: provider store is not configured")
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var out core.ProviderInstance
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.getLive(ctx, tx, update.ProviderID)
		if err != nil {
			return err
		}
		instance := record.toDomain()
		if err := instance.TransitionTo(update.Status, updatedAt.UTC()); err != nil {
			return err
		}
		if update.LastError != nil {
			instance.LastError = *update.LastError
		}
		if update.LastErrorKind != nil {
			instance.LastErrorKind = *update.LastErrorKind
		}
		if update.LastSyncAt != nil {
			syncedAt := update.LastSyncAt.UTC()
			instance.LastSyncAt = &syncedAt
		}

		_, err = tx.NewUpdate().
			Model((*providerInstanceRecord)(nil)).
			Set("status = ?", string(instance.Status)).
			Set("last_error = ?", optionalString(instance.LastError)).
			Set("last_error_kind = ?", string(instance.LastErrorKind)).
			Set("last_sync_at = ?", cloneTimePointer(instance.LastSyncAt)).
			Set("updated_at = ?", instance.UpdatedAt).
			Where("id = ?", record.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		out = instance
		return nil
	})
	if err != nil {
		return core.ProviderInstance{}, err
	}
	return out, nil
}

func (s *ProviderStore) Delete(ctx context.Context, id string, deletedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: provider store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	result, err := s.db.NewUpdate().
		Model((*providerInstanceRecord)(nil)).
		Set("deleted_at = ?", deletedAt.UTC()).
		Set("updated_at = ?", deletedAt.UTC()).
		Where("id = ?", trimmedID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: id %q", core.ErrProviderNotFound, trimmedID)
	}
	return nil
}

func (s *ProviderStore) getLive(ctx context.Context, db bun.IDB, id string) (*providerInstanceRecord, error) {
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return nil, fmt.Errorf("%w: id is required", core.ErrProviderNotFound)
	}
	record := &providerInstanceRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmedID).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %q", core.ErrProviderNotFound, trimmedID)
		}
		return nil, err
	}
	return record, nil
}
