package query

import (
	"context"

	"github.com/goliatone/go-costhook/core"
)

type ProviderReader interface {
	GetProvider(ctx context.Context, userID string, providerID string) (core.ProviderInstance, error)
	ListProviders(ctx context.Context, userID string) ([]core.ProviderInstance, error)
}

type SyncAttemptReader interface {
	ListSyncAttempts(ctx context.Context, userID string, providerID string, limit int) ([]core.SyncAttempt, error)
}

type CostReader interface {
	ListCosts(ctx context.Context, filter core.CostFilter) ([]core.CostRecord, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, authUserID string) (core.UserProfile, error)
}

type GetProviderQuery struct {
	reader ProviderReader
}

func NewGetProviderQuery(reader ProviderReader) *GetProviderQuery {
	return &GetProviderQuery{reader: reader}
}

func (q *GetProviderQuery) Query(ctx context.Context, msg GetProviderMessage) (core.ProviderInstance, error) {
	if q == nil || q.reader == nil {
		return core.ProviderInstance{}, core.NewDependencyError("query: provider reader is required")
	}
	return q.reader.GetProvider(ctx, msg.UserID, msg.ProviderID)
}

type ListProvidersQuery struct {
	reader ProviderReader
}

func NewListProvidersQuery(reader ProviderReader) *ListProvidersQuery {
	return &ListProvidersQuery{reader: reader}
}

func (q *ListProvidersQuery) Query(ctx context.Context, msg ListProvidersMessage) ([]core.ProviderInstance, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: provider reader is required")
	}
	return q.reader.ListProviders(ctx, msg.UserID)
}

type ListSyncAttemptsQuery struct {
	reader SyncAttemptReader
}

func NewListSyncAttemptsQuery(reader SyncAttemptReader) *ListSyncAttemptsQuery {
	return &ListSyncAttemptsQuery{reader: reader}
}

func (q *ListSyncAttemptsQuery) Query(ctx context.Context, msg ListSyncAttemptsMessage) ([]core.SyncAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: sync attempt reader is required")
	}
	return q.reader.ListSyncAttempts(ctx, msg.UserID, msg.ProviderID, msg.Limit)
}

type ListCostsQuery struct {
	reader CostReader
}

func NewListCostsQuery(reader CostReader) *ListCostsQuery {
	return &ListCostsQuery{reader: reader}
}

func (q *ListCostsQuery) Query(ctx context.Context, msg ListCostsMessage) ([]core.CostRecord, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: cost reader is required")
	}
	return q.reader.ListCosts(ctx, msg.Filter)
}

type GetProfileQuery struct {
	reader ProfileReader
}

func NewGetProfileQuery(reader ProfileReader) *GetProfileQuery {
	return &GetProfileQuery{reader: reader}
}

func (q *GetProfileQuery) Query(ctx context.Context, msg GetProfileMessage) (core.UserProfile, error) {
	if q == nil || q.reader == nil {
		return core.UserProfile{}, core.NewDependencyError("query: profile reader is required")
	}
	return q.reader.GetProfile(ctx, msg.AuthUserID)
}
