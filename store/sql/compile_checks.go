package sqlstore

import "github.com/goliatone/go-costhook/core"

var (
	_ core.ProviderStore          = (*ProviderStore)(nil)
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.CostStore              = (*CostStore)(nil)
	_ core.SyncAttemptStore       = (*SyncAttemptStore)(nil)
	_ core.ProfileStore           = (*ProfileStore)(nil)
	_ core.ProfileStore           = (*CachedProfileStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
