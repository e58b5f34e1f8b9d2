package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-costhook/core"
)

var (
	_ gocmd.Commander[CreateProviderMessage] = (*CreateProviderCommand)(nil)
	_ gocmd.Commander[UpdateProviderMessage] = (*UpdateProviderCommand)(nil)
	_ gocmd.Commander[DeleteProviderMessage] = (*DeleteProviderCommand)(nil)
	_ gocmd.Commander[RequestSyncMessage]    = (*RequestSyncCommand)(nil)
	_ gocmd.Commander[UpdateProfileMessage]  = (*UpdateProfileCommand)(nil)

	_ MutatingService = (core.CostService)(nil)
)
