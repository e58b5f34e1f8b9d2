package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-costhook/core"
)

// MutatingService is the write side of core.CostService.
type MutatingService interface {
	CreateProvider(ctx context.Context, in core.CreateProviderInput) (core.ProviderInstance, error)
	UpdateProvider(ctx context.Context, in core.UpdateProviderInput) (core.ProviderInstance, error)
	DeleteProvider(ctx context.Context, in core.DeleteProviderInput) error
	RequestSync(ctx context.Context, userID string, providerID string) (core.ProviderInstance, error)
	UpdateProfile(ctx context.Context, in core.UpdateProfileInput) (core.UserProfile, error)
}

type CreateProviderCommand struct {
	service MutatingService
}

func NewCreateProviderCommand(service MutatingService) *CreateProviderCommand {
	return &CreateProviderCommand{service: service}
}

func (c *CreateProviderCommand) Execute(ctx context.Context, msg CreateProviderMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: create provider service is required")
	}
	out, err := c.service.CreateProvider(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateProviderCommand struct {
	service MutatingService
}

func NewUpdateProviderCommand(service MutatingService) *UpdateProviderCommand {
	return &UpdateProviderCommand{service: service}
}

func (c *UpdateProviderCommand) Execute(ctx context.Context, msg UpdateProviderMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: update provider service is required")
	}
	out, err := c.service.UpdateProvider(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteProviderCommand struct {
	service MutatingService
}

func NewDeleteProviderCommand(service MutatingService) *DeleteProviderCommand {
	return &DeleteProviderCommand{service: service}
}

func (c *DeleteProviderCommand) Execute(ctx context.Context, msg DeleteProviderMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: delete provider service is required")
	}
	return c.service.DeleteProvider(ctx, msg.Input)
}

type RequestSyncCommand struct {
	service MutatingService
}

func NewRequestSyncCommand(service MutatingService) *RequestSyncCommand {
	return &RequestSyncCommand{service: service}
}

func (c *RequestSyncCommand) Execute(ctx context.Context, msg RequestSyncMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: sync service is required")
	}
	out, err := c.service.RequestSync(ctx, msg.UserID, msg.ProviderID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateProfileCommand struct {
	service MutatingService
}

func NewUpdateProfileCommand(service MutatingService) *UpdateProfileCommand {
	return &UpdateProfileCommand{service: service}
}

func (c *UpdateProfileCommand) Execute(ctx context.Context, msg UpdateProfileMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: profile service is required")
	}
	out, err := c.service.UpdateProfile(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
