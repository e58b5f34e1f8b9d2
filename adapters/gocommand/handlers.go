package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	costcommand "github.com/goliatone/go-costhook/command"
	"github.com/goliatone/go-costhook/core"
	costquery "github.com/goliatone/go-costhook/query"
)

// Subscriptions groups dispatcher subscriptions so they can be released together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterCostHandlers registers every costhook command and query against
// the registry and subscribes them on the global dispatcher. On failure the
// subscriptions made so far are released.
func RegisterCostHandlers(
	registry *Registry,
	service core.CostService,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: cost service is required")
	}
	subs := Subscriptions{}
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []func() error{
		func() error {
			return register(Handle(registry, costcommand.NewCreateProviderCommand(service), runnerOpts...))
		},
		func() error {
			return register(Handle(registry, costcommand.NewUpdateProviderCommand(service), runnerOpts...))
		},
		func() error {
			return register(Handle(registry, costcommand.NewDeleteProviderCommand(service), runnerOpts...))
		},
		func() error {
			return register(Handle(registry, costcommand.NewRequestSyncCommand(service), runnerOpts...))
		},
		func() error {
			return register(Handle(registry, costcommand.NewUpdateProfileCommand(service), runnerOpts...))
		},
		func() error {
			return register(HandleQuery(registry, costquery.NewGetProviderQuery(service), runnerOpts...))
		},
		func() error {
			return register(HandleQuery(registry, costquery.NewListProvidersQuery(service), runnerOpts...))
		},
		func() error {
			return register(HandleQuery(registry, costquery.NewListSyncAttemptsQuery(service), runnerOpts...))
		},
		func() error {
			return register(HandleQuery(registry, costquery.NewListCostsQuery(service), runnerOpts...))
		},
		func() error {
			return register(HandleQuery(registry, costquery.NewGetProfileQuery(service), runnerOpts...))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return subs, nil
}
