package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-costhook/core"
)

var (
	_ gocmd.Querier[GetProviderMessage, core.ProviderInstance]     = (*GetProviderQuery)(nil)
	_ gocmd.Querier[ListProvidersMessage, []core.ProviderInstance] = (*ListProvidersQuery)(nil)
	_ gocmd.Querier[ListSyncAttemptsMessage, []core.SyncAttempt]   = (*ListSyncAttemptsQuery)(nil)
	_ gocmd.Querier[ListCostsMessage, []core.CostRecord]           = (*ListCostsQuery)(nil)
	_ gocmd.Querier[GetProfileMessage, core.UserProfile]           = (*GetProfileQuery)(nil)

	_ ProviderReader    = (core.CostService)(nil)
	_ SyncAttemptReader = (core.CostService)(nil)
	_ CostReader        = (core.CostService)(nil)
	_ ProfileReader     = (core.CostService)(nil)
)
