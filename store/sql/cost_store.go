package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CostStore struct {
	db   *bun.DB
	repo repository.Repository[*costRecordRow]
}

func NewCostStore(db *bun.DB) (*CostStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*costRecordRow](db, costRecordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid cost repository wiring: %w", err)
		}
	}
	return &CostStore{db: db, repo: repo}, nil
}

// ApplyBatch upserts a normalized batch in one transaction. Rows are matched
// by (provider_id, service, period_start, period_end); a matching row is only
// written when amount, currency or metadata changed, so created_at survives
// re-syncs.
func (s *CostStore) ApplyBatch(ctx context.Context, providerID string, entries []core.CostEntry) (core.ApplyResult, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.ApplyResult{}, fmt.Errorf("sqlstore: cost store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return core.ApplyResult{}, fmt.Errorf("%w: id is required", core.ErrProviderNotFound)
	}

	result := core.ApplyResult{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		live, err := tx.NewSelect().
			Model((*providerInstanceRecord)(nil)).
			Where("?TableAlias.id = ?", providerID).
			Where("?TableAlias.deleted_at IS NULL").
			Exists(ctx)
		if err != nil {
			return err
		}
		if !live {
			return fmt.Errorf("%w: id %q", core.ErrProviderNotFound, providerID)
		}

		now := time.Now().UTC()
		for _, entry := range entries {
			incoming := newCostRecordRow(providerID, entry, now)
			existing := &costRecordRow{}
			err := tx.NewSelect().
				Model(existing).
				Where("?TableAlias.provider_id = ?", providerID).
				Where("?TableAlias.service = ?", incoming.Service).
				Where("?TableAlias.period_start = ?", incoming.PeriodStart).
				Where("?TableAlias.period_end = ?", incoming.PeriodEnd).
				Limit(1).
				Scan(ctx)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				incoming.ID = uuid.NewString()
				if _, err := s.repo.CreateTx(ctx, tx, incoming); err != nil {
					return err
				}
				result.Inserted++
				continue
			case err != nil:
				return err
			}

			if existing.AmountMicros == incoming.AmountMicros &&
				existing.Currency == incoming.Currency &&
				metadataEqual(existing.Metadata, incoming.Metadata) {
				result.Unchanged++
				continue
			}
			_, err = tx.NewUpdate().
				Model((*costRecordRow)(nil)).
				Set("amount_micros = ?", incoming.AmountMicros).
				Set("currency = ?", incoming.Currency).
				Set("metadata = ?", incoming.Metadata).
				Set("updated_at = ?", now).
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return core.ApplyResult{}, err
	}
	return result, nil
}

// List returns the records of instances owned by filter.UserID whose period
// overlaps [StartDate, EndDate), newest period first. Records of deleted
// instances stay listed until they are purged.
func (s *CostStore) List(ctx context.Context, filter core.CostFilter) ([]core.CostRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: cost store is not configured")
	}
	rows := make([]costListRow, 0)
	query := s.db.NewSelect().
		TableExpr("costhook_cost_records AS cr").
		ColumnExpr("cr.id, cr.provider_id, cr.service, cr.amount_micros, cr.currency").
		ColumnExpr("cr.period_start, cr.period_end, cr.metadata, cr.created_at, cr.updated_at").
		ColumnExpr("pi.name AS provider_name, pi.provider_type AS provider_type").
		Join("JOIN costhook_provider_instances AS pi ON pi.id = cr.provider_id").
		Where("pi.user_id = ?", strings.TrimSpace(filter.UserID))
	if providerID := strings.TrimSpace(filter.ProviderID); providerID != "" {
		query = query.Where("cr.provider_id = ?", providerID)
	}
	if filter.ProviderType != "" {
		query = query.Where("pi.provider_type = ?", string(filter.ProviderType))
	}
	if filter.EndDate != nil {
		query = query.Where("cr.period_start < ?", filter.EndDate.UTC())
	}
	if filter.StartDate != nil {
		query = query.Where("cr.period_end > ?", filter.StartDate.UTC())
	}
	if err := query.OrderExpr("cr.period_start DESC, cr.service ASC").Scan(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]core.CostRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *CostStore) DeleteByProvider(ctx context.Context, providerID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: cost store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*costRecordRow)(nil)).
		Where("provider_id = ?", strings.TrimSpace(providerID)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func metadataEqual(left, right map[string]any) bool {
	if len(left) == 0 && len(right) == 0 {
		return true
	}
	leftJSON, leftErr := json.Marshal(left)
	rightJSON, rightErr := json.Marshal(right)
	if leftErr != nil || rightErr != nil {
		return false
	}
	return bytes.Equal(leftJSON, rightJSON)
}
