package core

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type ErrorMapper func(err error) *goerrors.Error

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	adapters          *AdapterRegistry
	providerStore     ProviderStore
	credentialStore   CredentialStore
	costStore         CostStore
	syncAttemptStore  SyncAttemptStore
	profileStore      ProfileStore
	vault             CredentialVault
	credentialCodec   CredentialCodec
	instanceLocker    InstanceLocker
	callLimiter       CallLimiter
	syncTrigger       SyncTrigger
	syncCanceller     SyncCanceller
	clock             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory accepts a RepositoryStoreFactory or a StoreProvider.
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithAdapterRegistry(registry *AdapterRegistry) Option {
	return func(b *serviceBuilder) {
		b.adapters = registry
	}
}

func WithProviderStore(store ProviderStore) Option {
	return func(b *serviceBuilder) {
		b.providerStore = store
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func WithCostStore(store CostStore) Option {
	return func(b *serviceBuilder) {
		b.costStore = store
	}
}

func WithSyncAttemptStore(store SyncAttemptStore) Option {
	return func(b *serviceBuilder) {
		b.syncAttemptStore = store
	}
}

func WithProfileStore(store ProfileStore) Option {
	return func(b *serviceBuilder) {
		b.profileStore = store
	}
}

func WithVault(vault CredentialVault) Option {
	return func(b *serviceBuilder) {
		b.vault = vault
	}
}

func WithCredentialCodec(codec CredentialCodec) Option {
	return func(b *serviceBuilder) {
		b.credentialCodec = codec
	}
}

func WithInstanceLocker(locker InstanceLocker) Option {
	return func(b *serviceBuilder) {
		b.instanceLocker = locker
	}
}

func WithCallLimiter(limiter CallLimiter) Option {
	return func(b *serviceBuilder) {
		b.callLimiter = limiter
	}
}

func WithSyncTrigger(trigger SyncTrigger) Option {
	return func(b *serviceBuilder) {
		b.syncTrigger = trigger
	}
}

func WithSyncCanceller(canceller SyncCanceller) Option {
	return func(b *serviceBuilder) {
		b.syncCanceller = canceller
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("costhook", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		credentialCodec: JSONCredentialCodec{},
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}
