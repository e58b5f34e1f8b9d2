package costhook

import (
	"fmt"

	costcommand "github.com/goliatone/go-costhook/command"
	"github.com/goliatone/go-costhook/core"
	costquery "github.com/goliatone/go-costhook/query"
)

type Commands struct {
	CreateProvider *costcommand.CreateProviderCommand
	UpdateProvider *costcommand.UpdateProviderCommand
	DeleteProvider *costcommand.DeleteProviderCommand
	RequestSync    *costcommand.RequestSyncCommand
	UpdateProfile  *costcommand.UpdateProfileCommand
}

type Queries struct {
	GetProvider      *costquery.GetProviderQuery
	ListProviders    *costquery.ListProvidersQuery
	ListSyncAttempts *costquery.ListSyncAttemptsQuery
	ListCosts        *costquery.ListCostsQuery
	GetProfile       *costquery.GetProfileQuery
}

// Facade groups the command and query handlers bound to one CostService.
type Facade struct {
	service  core.CostService
	commands Commands
	queries  Queries
	bundles  map[string]any
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	hooks *ExtensionHooks
}

// WithExtensionHooks builds the registered command/query bundles against
// the facade service.
func WithExtensionHooks(hooks *ExtensionHooks) FacadeOption {
	return func(options *facadeOptions) {
		options.hooks = hooks
	}
}

func NewFacade(service core.CostService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("costhook: cost service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service, bundles: map[string]any{}}
	facade.commands = Commands{
		CreateProvider: costcommand.NewCreateProviderCommand(service),
		UpdateProvider: costcommand.NewUpdateProviderCommand(service),
		DeleteProvider: costcommand.NewDeleteProviderCommand(service),
		RequestSync:    costcommand.NewRequestSyncCommand(service),
		UpdateProfile:  costcommand.NewUpdateProfileCommand(service),
	}
	facade.queries = Queries{
		GetProvider:      costquery.NewGetProviderQuery(service),
		ListProviders:    costquery.NewListProvidersQuery(service),
		ListSyncAttempts: costquery.NewListSyncAttemptsQuery(service),
		ListCosts:        costquery.NewListCostsQuery(service),
		GetProfile:       costquery.NewGetProfileQuery(service),
	}
	if cfg.hooks != nil {
		bundles, err := cfg.hooks.BuildCommandQueryBundles(service)
		if err != nil {
			return nil, err
		}
		facade.bundles = bundles
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() core.CostService {
	if f == nil {
		return nil
	}
	return f.service
}

// Bundle returns the extension bundle registered under name.
func (f *Facade) Bundle(name string) (any, bool) {
	if f == nil {
		return nil, false
	}
	bundle, ok := f.bundles[name]
	return bundle, ok
}
