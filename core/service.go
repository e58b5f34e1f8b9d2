package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
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
	instanceLocker    InstanceLocker
	callLimiter       CallLimiter
	syncTrigger       SyncTrigger
	syncCanceller     SyncCanceller
	backoff           BackoffScheduler
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Adapters          *AdapterRegistry
	ProviderStore     ProviderStore
	CredentialStore   CredentialStore
	CostStore         CostStore
	SyncAttemptStore  SyncAttemptStore
	ProfileStore      ProfileStore
	Vault             CredentialVault
	InstanceLocker    InstanceLocker
	CallLimiter       CallLimiter
	SyncTrigger       SyncTrigger
	SyncCanceller     SyncCanceller
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("costhook", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("costhook"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.credentialCodec == nil {
		builder.credentialCodec = JSONCredentialCodec{}
	}
	if builder.instanceLocker == nil {
		builder.instanceLocker = NewMemoryInstanceLocker()
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}
	if builder.adapters == nil {
		registry, _ := NewAdapterRegistry()
		builder.adapters = registry
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		var stores StoreProvider
		switch typed := builder.repositoryFactory.(type) {
		case RepositoryStoreFactory:
			built, buildErr := typed.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		case StoreProvider:
			stores = typed
		}
		if stores != nil {
			if builder.providerStore == nil {
				builder.providerStore = stores.ProviderStore()
			}
			if builder.credentialStore == nil {
				builder.credentialStore = stores.CredentialStore()
			}
			if builder.costStore == nil {
				builder.costStore = stores.CostStore()
			}
			if builder.syncAttemptStore == nil {
				builder.syncAttemptStore = stores.SyncAttemptStore()
			}
			if builder.profileStore == nil {
				builder.profileStore = stores.ProfileStore()
			}
		}
	}
	if builder.vault == nil && builder.credentialStore != nil && builder.secretProvider != nil {
		vault, vaultErr := NewVault(builder.credentialStore, builder.secretProvider, builder.credentialCodec)
		if vaultErr != nil {
			return nil, mapBuildError(builder.errorMapper, vaultErr)
		}
		builder.vault = vault
	}
	if builder.providerStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: provider store is required"))
	}
	if builder.costStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: cost store is required"))
	}
	if builder.vault == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: credential vault or secret provider is required"))
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		adapters:          builder.adapters,
		providerStore:     builder.providerStore,
		credentialStore:   builder.credentialStore,
		costStore:         builder.costStore,
		syncAttemptStore:  builder.syncAttemptStore,
		profileStore:      builder.profileStore,
		vault:             builder.vault,
		instanceLocker:    builder.instanceLocker,
		callLimiter:       builder.callLimiter,
		syncTrigger:       builder.syncTrigger,
		syncCanceller:     builder.syncCanceller,
		backoff: ExponentialBackoffScheduler{
			Initial: finalConfig.Sync.InitialBackoff,
			Max:     finalConfig.Sync.EffectiveMaxBackoff(),
		},
		now: builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Backoff exposes the retry schedule derived from the resolved config.
func (s *Service) Backoff() BackoffScheduler {
	if s == nil {
		return nil
	}
	return s.backoff
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Adapters:          s.adapters,
		ProviderStore:     s.providerStore,
		CredentialStore:   s.credentialStore,
		CostStore:         s.costStore,
		SyncAttemptStore:  s.syncAttemptStore,
		ProfileStore:      s.profileStore,
		Vault:             s.vault,
		InstanceLocker:    s.instanceLocker,
		CallLimiter:       s.callLimiter,
		SyncTrigger:       s.syncTrigger,
		SyncCanceller:     s.syncCanceller,
	}
}

// AttachSyncRuntime binds the scheduler after construction, since the
// scheduler itself runs syncs through this service.
func (s *Service) AttachSyncRuntime(trigger SyncTrigger, canceller SyncCanceller) {
	if s == nil {
		return
	}
	s.syncTrigger = trigger
	s.syncCanceller = canceller
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
