package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// ProviderAdapter fetches cost data from one third-party provider type.
type ProviderAdapter interface {
	Type() ProviderType
	// MaxLookback bounds the first fetch window of a never-synced instance.
	MaxLookback() time.Duration
	// ValidateCredentials checks shape only and performs no network call. A
	// bundle the provider would reject yields an AdapterErrorAuthExpired.
	ValidateCredentials(ctx context.Context, bundle CredentialBundle) error
	// FetchUsage returns usage covering at least [since, now). A nil since
	// requests the adapter maximum lookback. Errors are *AdapterError.
	FetchUsage(ctx context.Context, bundle CredentialBundle, since *time.Time) ([]UsageEntry, error)
}

type ProviderStore interface {
	Create(ctx context.Context, instance ProviderInstance) (ProviderInstance, error)
	// Get returns ErrProviderNotFound for missing or soft-deleted rows.
	Get(ctx context.Context, id string) (ProviderInstance, error)
	ListByUser(ctx context.Context, userID string) ([]ProviderInstance, error)
	// ListSyncCandidates returns live instances that are not blocked.
	ListSyncCandidates(ctx context.Context) ([]ProviderInstance, error)
	Rename(ctx context.Context, id string, name string, updatedAt time.Time) (ProviderInstance, error)
	UpdateStatus(ctx context.Context, update ProviderStatusUpdate) (ProviderInstance, error)
	Delete(ctx context.Context, id string, deletedAt time.Time) error
}

type EncryptedCredential struct {
	ProviderID     string
	Payload        []byte
	PayloadFormat  string
	PayloadVersion int
	KeyID          string
	KeyVersion     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CredentialStore interface {
	Put(ctx context.Context, credential EncryptedCredential) error
	// Get returns ErrCredentialsNotFound when nothing is stored.
	Get(ctx context.Context, providerID string) (EncryptedCredential, error)
	Delete(ctx context.Context, providerID string) error
}

type CostStore interface {
	// ApplyBatch upserts entries atomically, keyed by CostEntry.Key.
	ApplyBatch(ctx context.Context, providerID string, entries []CostEntry) (ApplyResult, error)
	List(ctx context.Context, filter CostFilter) ([]CostRecord, error)
	DeleteByProvider(ctx context.Context, providerID string) (int, error)
}

type SyncAttemptStore interface {
	Append(ctx context.Context, attempt SyncAttempt) (SyncAttempt, error)
	ListByProvider(ctx context.Context, providerID string, limit int) ([]SyncAttempt, error)
}

type ProfileStore interface {
	GetOrCreate(ctx context.Context, authUserID string) (UserProfile, error)
	Update(ctx context.Context, in UpdateProfileInput) (UserProfile, error)
}

// CredentialVault is the only component that sees plaintext credentials.
type CredentialVault interface {
	// Store writes bundle, merging by field name into any existing bundle.
	Store(ctx context.Context, providerID string, providerType ProviderType, bundle CredentialBundle) error
	Fetch(ctx context.Context, providerID string) (CredentialBundle, error)
	Delete(ctx context.Context, providerID string) error
}

type StoreProvider interface {
	ProviderStore() ProviderStore
	CredentialStore() CredentialStore
	CostStore() CostStore
	SyncAttemptStore() SyncAttemptStore
	ProfileStore() ProfileStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// InstanceLocker guarantees at most one in-flight sync per instance across
// processes sharing the same backend.
type InstanceLocker interface {
	Acquire(ctx context.Context, providerID string, ttl time.Duration) (LockHandle, error)
}

// CallLimiter paces outbound calls per provider type.
type CallLimiter interface {
	Wait(ctx context.Context, providerType ProviderType) error
}

// SyncTrigger requests an immediate sync of one instance.
type SyncTrigger interface {
	Trigger(ctx context.Context, providerID string) error
}

// SyncCanceller aborts any in-flight or scheduled sync of one instance.
type SyncCanceller interface {
	Cancel(providerID string)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message *JobExecutionMessage
	// ProviderID is set when the message is a sync run for one instance.
	ProviderID string
	Attempt    int
	Delay      time.Duration
	Err        error
	StartedAt  time.Time
	Duration   time.Duration
}

// CostService is the operation surface consumed by commands, queries and
// the HTTP API.
type CostService interface {
	CreateProvider(ctx context.Context, in CreateProviderInput) (ProviderInstance, error)
	GetProvider(ctx context.Context, userID string, providerID string) (ProviderInstance, error)
	ListProviders(ctx context.Context, userID string) ([]ProviderInstance, error)
	UpdateProvider(ctx context.Context, in UpdateProviderInput) (ProviderInstance, error)
	DeleteProvider(ctx context.Context, in DeleteProviderInput) error
	RequestSync(ctx context.Context, userID string, providerID string) (ProviderInstance, error)
	ListSyncAttempts(ctx context.Context, userID string, providerID string, limit int) ([]SyncAttempt, error)
	ListCosts(ctx context.Context, filter CostFilter) ([]CostRecord, error)
	GetProfile(ctx context.Context, authUserID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, in UpdateProfileInput) (UserProfile, error)
}
