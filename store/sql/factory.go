package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-costhook/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithProfileCache fronts the profile store with a go-repository-cache
// service.
func WithProfileCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		if f == nil {
			return
		}
		f.profileCache = cacheService
	}
}

type RepositoryFactory struct {
	db           *bun.DB
	profileCache repositorycache.CacheService

	providerStore    *ProviderStore
	credentialStore  *CredentialStore
	costStore        *CostStore
	syncAttemptStore *SyncAttemptStore
	profileStore     core.ProfileStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.providerStore != nil && f.costStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) ProviderStore() core.ProviderStore {
	if f == nil || f.providerStore == nil {
		return nil
	}
	return f.providerStore
}

func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil || f.credentialStore == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) CostStore() core.CostStore {
	if f == nil || f.costStore == nil {
		return nil
	}
	return f.costStore
}

func (f *RepositoryFactory) SyncAttemptStore() core.SyncAttemptStore {
	if f == nil || f.syncAttemptStore == nil {
		return nil
	}
	return f.syncAttemptStore
}

func (f *RepositoryFactory) ProfileStore() core.ProfileStore {
	if f == nil {
		return nil
	}
	return f.profileStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	providerStore, err := NewProviderStore(f.db)
	if err != nil {
		return err
	}
	credentialStore, err := NewCredentialStore(f.db)
	if err != nil {
		return err
	}
	costStore, err := NewCostStore(f.db)
	if err != nil {
		return err
	}
	syncAttemptStore, err := NewSyncAttemptStore(f.db)
	if err != nil {
		return err
	}
	profileStore, err := NewProfileStore(f.db)
	if err != nil {
		return err
	}

	f.providerStore = providerStore
	f.credentialStore = credentialStore
	f.costStore = costStore
	f.syncAttemptStore = syncAttemptStore
	f.profileStore = profileStore
	if f.profileCache != nil {
		cached, err := NewCachedProfileStore(profileStore, f.profileCache)
		if err != nil {
			return err
		}
		f.profileStore = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
