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

type ProfileStore struct {
	db   *bun.DB
	repo repository.Repository[*userProfileRecord]
}

func NewProfileStore(db *bun.DB) (*ProfileStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userProfileRecord](db, userProfileHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user profile repository wiring: %w", err)
		}
	}
	return &ProfileStore{db: db, repo: repo}, nil
}

// GetOrCreate returns the profile for authUserID, inserting a default one on
// first access. Concurrent first accesses converge on a single row.
func (s *ProfileStore) GetOrCreate(ctx context.Context, authUserID string) (core.UserProfile, error) {
	if s == nil || s.db == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: profile store is not configured")
	}
	authUserID = strings.TrimSpace(authUserID)
	if authUserID == "" {
		return core.UserProfile{}, fmt.Errorf("sqlstore: auth user id is required")
	}
	record, err := s.find(ctx, s.db, authUserID)
	if err == nil {
		return record.toDomain(), nil
	}
	if !errors.Is(err, core.ErrProfileNotFound) {
		return core.UserProfile{}, err
	}

	now := time.Now().UTC()
	fresh := &userProfileRecord{
		ID:         uuid.NewString(),
		AuthUserID: authUserID,
		Timezone:   core.DefaultTimezone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().
		Model(fresh).
		On("CONFLICT (auth_user_id) DO NOTHING").
		Exec(ctx); err != nil {
		return core.UserProfile{}, err
	}
	record, err = s.find(ctx, s.db, authUserID)
	if err != nil {
		return core.UserProfile{}, err
	}
	return record.toDomain(), nil
}

func (s *ProfileStore) Update(ctx context.Context, in core.UpdateProfileInput) (core.UserProfile, error) {
	if s == nil || s.db == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: profile store is not configured")
	}
	authUserID := strings.TrimSpace(in.AuthUserID)
	var out core.UserProfile
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.find(ctx, tx, authUserID)
		if err != nil {
			return err
		}
		if in.DisplayName != nil {
			name := *in.DisplayName
			if name == "" {
				record.DisplayName = nil
			} else {
				record.DisplayName = &name
			}
		}
		if in.Timezone != nil {
			record.Timezone = *in.Timezone
		}
		record.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().
			Model(record).
			Column("display_name", "timezone", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.UserProfile{}, err
	}
	return out, nil
}

func (s *ProfileStore) find(ctx context.Context, db bun.IDB, authUserID string) (*userProfileRecord, error) {
	record := &userProfileRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.auth_user_id = ?", authUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", core.ErrProfileNotFound, authUserID)
		}
		return nil, err
	}
	return record, nil
}
