package query

import "github.com/goliatone/go-costhook/core"

const (
	TypeGetProvider      = "costhook.query.provider.get"
	TypeListProviders    = "costhook.query.provider.list"
	TypeListSyncAttempts = "costhook.query.sync_attempt.list"
	TypeListCosts        = "costhook.query.cost.list"
	TypeGetProfile       = "costhook.query.profile.get"

	MaxSyncAttemptsLimit = 200
)

type GetProviderMessage struct {
	UserID     string
	ProviderID string
}

func (GetProviderMessage) Type() string { return TypeGetProvider }

func (m GetProviderMessage) Validate() error {
	return requireOwner(m.UserID, m.ProviderID)
}

type ListProvidersMessage struct {
	UserID string
}

func (ListProvidersMessage) Type() string { return TypeListProviders }

func (m ListProvidersMessage) Validate() error {
	return core.NewFieldErrors("query").Require("user_id", m.UserID).Err()
}

type ListSyncAttemptsMessage struct {
	UserID     string
	ProviderID string
	Limit      int
}

func (ListSyncAttemptsMessage) Type() string { return TypeListSyncAttempts }

func (m ListSyncAttemptsMessage) Validate() error {
	return core.NewFieldErrors("query").
		Require("user_id", m.UserID).
		Require("provider_id", m.ProviderID).
		Check(m.Limit >= 0 && m.Limit <= MaxSyncAttemptsLimit, "limit", "limit must be between 0 and 200").
		Err()
}

type ListCostsMessage struct {
	Filter core.CostFilter
}

func (ListCostsMessage) Type() string { return TypeListCosts }

func (m ListCostsMessage) Validate() error {
	f := m.Filter
	return core.NewFieldErrors("query").
		Require("user_id", f.UserID).
		Check(f.ProviderType == "" || f.ProviderType.Valid(), "provider_type", "unknown provider type").
		Check(f.StartDate == nil || f.EndDate == nil || !f.EndDate.Before(*f.StartDate),
			"end_date", "end_date must not be before start_date").
		Err()
}

type GetProfileMessage struct {
	AuthUserID string
}

func (GetProfileMessage) Type() string { return TypeGetProfile }

func (m GetProfileMessage) Validate() error {
	return core.NewFieldErrors("query").Require("auth_user_id", m.AuthUserID).Err()
}

func requireOwner(userID, providerID string) error {
	return core.NewFieldErrors("query").
		Require("user_id", userID).
		Require("provider_id", providerID).
		Err()
}
