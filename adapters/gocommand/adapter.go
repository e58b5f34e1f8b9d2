package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

const (
	// MessageTypePrefix namespaces every message routed through the bus.
	MessageTypePrefix = "costhook."
	// QueueResolverKey names the resolver that mirrors commands into go-job.
	QueueResolverKey = "costhook.queue"
)

// ValidateMessage checks the message namespace, then the message's own
// Validate method when it has one.
func ValidateMessage(msg any) error {
	typed, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: %T does not implement Type() string", msg)
	}
	name := strings.TrimSpace(typed.Type())
	if name == "" {
		return fmt.Errorf("gocommand: %T has an empty message type", msg)
	}
	if !strings.HasPrefix(name, MessageTypePrefix) {
		return fmt.Errorf("gocommand: message type %q is outside the %q namespace", name, MessageTypePrefix)
	}
	return command.ValidateMessage(msg)
}

// Registry tracks the handlers bound to the costhook bus so resolvers such
// as the go-job queue mirror see them on Initialize.
type Registry struct {
	registry *command.Registry
}

func NewRegistry(registry *command.Registry) *Registry {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Registry{registry: registry}
}

func (r *Registry) Commands() *command.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Registry) Register(handler any) error {
	if r == nil || r.registry == nil {
		return errRegistryNotConfigured
	}
	return r.registry.RegisterCommand(handler)
}

func (r *Registry) AddResolver(key string, resolver command.Resolver) error {
	if r == nil || r.registry == nil {
		return errRegistryNotConfigured
	}
	return r.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// MirrorToQueue registers every command with queueRegistry during
// Initialize, making sync requests enqueueable by message type.
func (r *Registry) MirrorToQueue(queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return r.AddResolver(QueueResolverKey, jobqueuecommand.QueueResolver(queueRegistry))
}

func (r *Registry) HasResolver(key string) bool {
	if r == nil || r.registry == nil {
		return false
	}
	return r.registry.HasResolver(strings.TrimSpace(key))
}

func (r *Registry) Initialize() error {
	if r == nil || r.registry == nil {
		return errRegistryNotConfigured
	}
	return r.registry.Initialize()
}

var errRegistryNotConfigured = fmt.Errorf("gocommand: registry is not configured")

// Handle registers cmd and subscribes it on the global dispatcher. The
// subscription is released when registration fails.
func Handle[T any](r *Registry, cmd command.Commander[T], runnerOpts ...runner.Option) (commanddispatcher.Subscription, error) {
	if r == nil || r.registry == nil {
		return nil, errRegistryNotConfigured
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command handler is required")
	}
	return subscribeThenRegister(r, cmd, commanddispatcher.SubscribeCommand(cmd, runnerOpts...))
}

func HandleQuery[T any, R any](r *Registry, qry command.Querier[T, R], runnerOpts ...runner.Option) (commanddispatcher.Subscription, error) {
	if r == nil || r.registry == nil {
		return nil, errRegistryNotConfigured
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query handler is required")
	}
	return subscribeThenRegister(r, qry, commanddispatcher.SubscribeQuery(qry, runnerOpts...))
}

func subscribeThenRegister(r *Registry, handler any, sub commanddispatcher.Subscription) (commanddispatcher.Subscription, error) {
	if err := r.Register(handler); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

// Dispatch validates msg and sends it to the subscribed command handler.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessage(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessage(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
