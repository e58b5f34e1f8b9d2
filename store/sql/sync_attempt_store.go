package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const maxSyncAttemptPage = 100

type SyncAttemptStore struct {
	db   *bun.DB
	repo repository.Repository[*syncAttemptRecord]
}

func NewSyncAttemptStore(db *bun.DB) (*SyncAttemptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncAttemptRecord](db, syncAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync attempt repository wiring: %w", err)
		}
	}
	return &SyncAttemptStore{db: db, repo: repo}, nil
}

func (s *SyncAttemptStore) Append(ctx context.Context, attempt core.SyncAttempt) (core.SyncAttempt, error) {
	if s == nil || s.repo == nil {
		return core.SyncAttempt{}, fmt.Errorf("sqlstore: sync attempt store is not configured")
	}
	if strings.TrimSpace(attempt.ProviderID) == "" {
		return core.SyncAttempt{}, fmt.Errorf("sqlstore: provider id is required")
	}
	record := newSyncAttemptRecord(attempt, time.Now().UTC())
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.SyncAttempt{}, err
	}
	return created.toDomain(), nil
}

func (s *SyncAttemptStore) ListByProvider(ctx context.Context, providerID string, limit int) ([]core.SyncAttempt, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: sync attempt store is not configured")
	}
	if limit <= 0 || limit > maxSyncAttemptPage {
		limit = maxSyncAttemptPage
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider_id", "=", strings.TrimSpace(providerID)),
		repository.OrderBy("started_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.SyncAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
