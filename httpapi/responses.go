package httpapi

import (
	"time"

	"github.com/goliatone/go-costhook/core"
)

type providerResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	LastSyncAt *time.Time `json:"last_sync_at"`
	LastError  *string    `json:"last_error"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func newProviderResponse(p core.ProviderInstance) providerResponse {
	out := providerResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		Name:       p.Name,
		Type:       string(p.Type),
		Status:     string(p.Status),
		LastSyncAt: p.LastSyncAt,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.LastError != "" {
		lastError := p.LastError
		out.LastError = &lastError
	}
	return out
}

type costResponse struct {
	ID           string         `json:"id"`
	ProviderID   string         `json:"provider_id"`
	Amount       core.Amount    `json:"amount"`
	Currency     string         `json:"currency"`
	Service      string         `json:"service"`
	PeriodStart  time.Time      `json:"period_start"`
	PeriodEnd    time.Time      `json:"period_end"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	ProviderName string         `json:"provider_name,omitempty"`
	ProviderType string         `json:"provider_type,omitempty"`
}

func newCostResponse(c core.CostRecord) costResponse {
	return costResponse{
		ID:           c.ID,
		ProviderID:   c.ProviderID,
		Amount:       c.Amount,
		Currency:     c.Currency,
		Service:      c.Service,
		PeriodStart:  c.Period.Start,
		PeriodEnd:    c.Period.End,
		Metadata:     c.Metadata,
		CreatedAt:    c.CreatedAt,
		ProviderName: c.ProviderName,
		ProviderType: string(c.ProviderType),
	}
}

type syncAttemptResponse struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	Attempt         int       `json:"attempt"`
	Outcome         string    `json:"outcome"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	Error           string    `json:"error,omitempty"`
	RecordsIngested int       `json:"records_ingested"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

func newSyncAttemptResponse(a core.SyncAttempt) syncAttemptResponse {
	return syncAttemptResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		Attempt:         a.Attempt,
		Outcome:         string(a.Outcome),
		ErrorKind:       string(a.ErrorKind),
		Error:           a.Error,
		RecordsIngested: a.RecordsIngested,
		StartedAt:       a.StartedAt,
		FinishedAt:      a.FinishedAt,
	}
}

type profileResponse struct {
	ID          string    `json:"id"`
	AuthUserID  string    `json:"auth_user_id"`
	DisplayName *string   `json:"display_name"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProfileResponse(p core.UserProfile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		AuthUserID:  p.AuthUserID,
		DisplayName: p.DisplayName,
		Timezone:    p.Timezone,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapSlice[T any, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
