package costhook

import "github.com/goliatone/go-costhook/core"

type Config = core.Config

type SyncConfig = core.SyncConfig

type RateLimitConfig = core.RateLimitConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type CostService = core.CostService
type ProviderAdapter = core.ProviderAdapter
type AdapterRegistry = core.AdapterRegistry
type CredentialVault = core.CredentialVault
type SecretProvider = core.SecretProvider
type InstanceLocker = core.InstanceLocker
type CallLimiter = core.CallLimiter
type SyncTrigger = core.SyncTrigger

type CreateProviderInput = core.CreateProviderInput
type UpdateProviderInput = core.UpdateProviderInput
type DeleteProviderInput = core.DeleteProviderInput
type UpdateProfileInput = core.UpdateProfileInput
type CostFilter = core.CostFilter

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithSecretProvider    = core.WithSecretProvider
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithAdapterRegistry   = core.WithAdapterRegistry
	WithProviderStore     = core.WithProviderStore
	WithCredentialStore   = core.WithCredentialStore
	WithCostStore         = core.WithCostStore
	WithSyncAttemptStore  = core.WithSyncAttemptStore
	WithProfileStore      = core.WithProfileStore
	WithVault             = core.WithVault
	WithCredentialCodec   = core.WithCredentialCodec
	WithInstanceLocker    = core.WithInstanceLocker
	WithCallLimiter       = core.WithCallLimiter
	WithSyncTrigger       = core.WithSyncTrigger
	WithSyncCanceller     = core.WithSyncCanceller
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
