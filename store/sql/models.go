package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/uptrace/bun"
)

type providerInstanceRecord struct {
	bun.BaseModel `bun:"table:costhook_provider_instances,alias:cpi"`

	ID            string     `bun:"id,pk"`
	UserID        string     `bun:"user_id,notnull"`
	ProviderType  string     `bun:"provider_type,notnull"`
	Name          string     `bun:"name,notnull"`
	Status        string     `bun:"status,notnull"`
	LastSyncAt    *time.Time `bun:"last_sync_at,nullzero"`
	LastError     *string    `bun:"last_error"`
	LastErrorKind string     `bun:"last_error_kind,notnull"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt     *time.Time `bun:"deleted_at,nullzero"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:costhook_credentials,alias:ccr"`

	ID                string    `bun:"id,pk"`
	ProviderID        string    `bun:"provider_id,notnull"`
	EncryptedPayload  []byte    `bun:"encrypted_payload,notnull"`
	PayloadFormat     string    `bun:"payload_format,notnull"`
	PayloadVersion    int       `bun:"payload_version,notnull"`
	EncryptionKeyID   string    `bun:"encryption_key_id,notnull"`
	EncryptionVersion int       `bun:"encryption_version,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type costRecordRow struct {
	bun.BaseModel `bun:"table:costhook_cost_records,alias:ccost"`

	ID           string         `bun:"id,pk"`
	ProviderID   string         `bun:"provider_id,notnull"`
	Service      string         `bun:"service,notnull"`
	AmountMicros int64          `bun:"amount_micros,notnull"`
	Currency     string         `bun:"currency,notnull"`
	PeriodStart  time.Time      `bun:"period_start,notnull"`
	PeriodEnd    time.Time      `bun:"period_end,notnull"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// costListRow is a cost record joined with its owning provider instance.
type costListRow struct {
	ID           string         `bun:"id"`
	ProviderID   string         `bun:"provider_id"`
	ProviderName string         `bun:"provider_name"`
	ProviderType string         `bun:"provider_type"`
	Service      string         `bun:"service"`
	AmountMicros int64          `bun:"amount_micros"`
	Currency     string         `bun:"currency"`
	PeriodStart  time.Time      `bun:"period_start"`
	PeriodEnd    time.Time      `bun:"period_end"`
	Metadata     map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt    time.Time      `bun:"created_at"`
	UpdatedAt    time.Time      `bun:"updated_at"`
}

type syncAttemptRecord struct {
	bun.BaseModel `bun:"table:costhook_sync_attempts,alias:csa"`

	ID               string    `bun:"id,pk"`
	ProviderID       string    `bun:"provider_id,notnull"`
	Attempt          int       `bun:"attempt,notnull"`
	StartedAt        time.Time `bun:"started_at,notnull"`
	FinishedAt       time.Time `bun:"finished_at,notnull"`
	Outcome          string    `bun:"outcome,notnull"`
	ErrorKind        string    `bun:"error_kind,notnull"`
	Error            string    `bun:"error,notnull"`
	RecordsIngested  int       `bun:"records_ingested,notnull"`
	RecordsInserted  int       `bun:"records_inserted,notnull"`
	RecordsUpdated   int       `bun:"records_updated,notnull"`
	RecordsUnchanged int       `bun:"records_unchanged,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type userProfileRecord struct {
	bun.BaseModel `bun:"table:costhook_user_profiles,alias:cup"`

	ID          string    `bun:"id,pk"`
	AuthUserID  string    `bun:"auth_user_id,notnull"`
	DisplayName *string   `bun:"display_name"`
	Timezone    string    `bun:"timezone,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newProviderInstanceRecord(instance core.ProviderInstance, now time.Time) *providerInstanceRecord {
	createdAt := instance.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := instance.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	status := instance.Status
	if status == "" {
		status = core.ProviderStatusPending
	}
	return &providerInstanceRecord{
		ID:            strings.TrimSpace(instance.ID),
		UserID:        strings.TrimSpace(instance.UserID),
		ProviderType:  string(instance.Type),
		Name:          instance.Name,
		Status:        string(status),
		LastSyncAt:    cloneTimePointer(instance.LastSyncAt),
		LastError:     optionalString(instance.LastError),
		LastErrorKind: string(instance.LastErrorKind),
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     updatedAt.UTC(),
	}
}

func (r *providerInstanceRecord) toDomain() core.ProviderInstance {
	if r == nil {
		return core.ProviderInstance{}
	}
	lastError := ""
	if r.LastError != nil {
		lastError = *r.LastError
	}
	return core.ProviderInstance{
		ID:            r.ID,
		UserID:        r.UserID,
		Type:          core.ProviderType(r.ProviderType),
		Name:          r.Name,
		Status:        core.ProviderStatus(r.Status),
		LastSyncAt:    cloneTimePointer(r.LastSyncAt),
		LastError:     lastError,
		LastErrorKind: core.AdapterErrorKind(r.LastErrorKind),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func newCredentialRecord(in core.EncryptedCredential, now time.Time) *credentialRecord {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	payload := make([]byte, len(in.Payload))
	copy(payload, in.Payload)
	return &credentialRecord{
		ProviderID:        strings.TrimSpace(in.ProviderID),
		EncryptedPayload:  payload,
		PayloadFormat:     strings.TrimSpace(in.PayloadFormat),
		PayloadVersion:    in.PayloadVersion,
		EncryptionKeyID:   strings.TrimSpace(in.KeyID),
		EncryptionVersion: in.KeyVersion,
		CreatedAt:         createdAt.UTC(),
		UpdatedAt:         now.UTC(),
	}
}

func (r *credentialRecord) toDomain() core.EncryptedCredential {
	if r == nil {
		return core.EncryptedCredential{}
	}
	payload := make([]byte, len(r.EncryptedPayload))
	copy(payload, r.EncryptedPayload)
	return core.EncryptedCredential{
		ProviderID:     r.ProviderID,
		Payload:        payload,
		PayloadFormat:  r.PayloadFormat,
		PayloadVersion: r.PayloadVersion,
		KeyID:          r.EncryptionKeyID,
		KeyVersion:     r.EncryptionVersion,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func newCostRecordRow(providerID string, entry core.CostEntry, now time.Time) *costRecordRow {
	return &costRecordRow{
		ProviderID:   providerID,
		Service:      entry.Service,
		AmountMicros: entry.Amount.Micros(),
		Currency:     entry.Currency,
		PeriodStart:  entry.Period.Start.UTC(),
		PeriodEnd:    entry.Period.End.UTC(),
		Metadata:     core.RedactSensitiveMap(entry.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r costListRow) toDomain() core.CostRecord {
	return core.CostRecord{
		ID:           r.ID,
		ProviderID:   r.ProviderID,
		ProviderName: r.ProviderName,
		ProviderType: core.ProviderType(r.ProviderType),
		Amount:       core.AmountFromMicros(r.AmountMicros),
		Currency:     r.Currency,
		Service:      r.Service,
		Period:       core.Period{Start: r.PeriodStart.UTC(), End: r.PeriodEnd.UTC()},
		Metadata:     copyAnyMap(r.Metadata),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func newSyncAttemptRecord(attempt core.SyncAttempt, now time.Time) *syncAttemptRecord {
	return &syncAttemptRecord{
		ID:               strings.TrimSpace(attempt.ID),
		ProviderID:       strings.TrimSpace(attempt.ProviderID),
		Attempt:          attempt.Attempt,
		StartedAt:        attempt.StartedAt.UTC(),
		FinishedAt:       attempt.FinishedAt.UTC(),
		Outcome:          string(attempt.Outcome),
		ErrorKind:        string(attempt.ErrorKind),
		Error:            attempt.Error,
		RecordsIngested:  attempt.RecordsIngested,
		RecordsInserted:  attempt.Result.Inserted,
		RecordsUpdated:   attempt.Result.Updated,
		RecordsUnchanged: attempt.Result.Unchanged,
		CreatedAt:        now,
	}
}

func (r *syncAttemptRecord) toDomain() core.SyncAttempt {
	if r == nil {
		return core.SyncAttempt{}
	}
	return core.SyncAttempt{
		ID:              r.ID,
		ProviderID:      r.ProviderID,
		Attempt:         r.Attempt,
		StartedAt:       r.StartedAt.UTC(),
		FinishedAt:      r.FinishedAt.UTC(),
		Outcome:         core.SyncOutcome(r.Outcome),
		ErrorKind:       core.AdapterErrorKind(r.ErrorKind),
		Error:           r.Error,
		RecordsIngested: r.RecordsIngested,
		Result: core.ApplyResult{
			Inserted:  r.RecordsInserted,
			Updated:   r.RecordsUpdated,
			Unchanged: r.RecordsUnchanged,
		},
	}
}

func (r *userProfileRecord) toDomain() core.UserProfile {
	if r == nil {
		return core.UserProfile{}
	}
	var displayName *string
	if r.DisplayName != nil {
		value := *r.DisplayName
		displayName = &value
	}
	return core.UserProfile{
		ID:          r.ID,
		AuthUserID:  r.AuthUserID,
		DisplayName: displayName,
		Timezone:    r.Timezone,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
