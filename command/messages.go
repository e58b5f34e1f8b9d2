package command

import (
	"strings"

	"github.com/goliatone/go-costhook/core"
)

const (
	TypeCreateProvider = "costhook.command.provider.create"
	TypeUpdateProvider = "costhook.command.provider.update"
	TypeDeleteProvider = "costhook.command.provider.delete"
	TypeRequestSync    = "costhook.command.provider.sync"
	TypeUpdateProfile  = "costhook.command.profile.update"
)

type CreateProviderMessage struct {
	Input core.CreateProviderInput
}

func (CreateProviderMessage) Type() string { return TypeCreateProvider }

func (m CreateProviderMessage) Validate() error {
	_, typeErr := core.ParseProviderType(string(m.Input.Type))
	return core.NewFieldErrors("command").
		Require("user_id", m.Input.UserID).
		Check(typeErr == nil, "type", "unknown provider type").
		Require("name", m.Input.Name).
		Check(len(m.Input.Credentials) > 0, "credentials", "credentials are required").
		Err()
}

type UpdateProviderMessage struct {
	Input core.UpdateProviderInput
}

func (UpdateProviderMessage) Type() string { return TypeUpdateProvider }

func (m UpdateProviderMessage) Validate() error {
	name := m.Input.Name
	return core.NewFieldErrors("command").
		Require("user_id", m.Input.UserID).
		Require("provider_id", m.Input.ProviderID).
		Check(name == nil || strings.TrimSpace(*name) != "", "name", "name cannot be blank").
		Check(name != nil || m.Input.Credentials != nil, "name", "update requires name or credentials").
		Err()
}

type DeleteProviderMessage struct {
	Input core.DeleteProviderInput
}

func (DeleteProviderMessage) Type() string { return TypeDeleteProvider }

func (m DeleteProviderMessage) Validate() error {
	return requireOwner(m.Input.UserID, m.Input.ProviderID)
}

type RequestSyncMessage struct {
	UserID     string
	ProviderID string
}

func (RequestSyncMessage) Type() string { return TypeRequestSync }

func (m RequestSyncMessage) Validate() error {
	return requireOwner(m.UserID, m.ProviderID)
}

type UpdateProfileMessage struct {
	Input core.UpdateProfileInput
}

func (UpdateProfileMessage) Type() string { return TypeUpdateProfile }

func (m UpdateProfileMessage) Validate() error {
	return core.NewFieldErrors("command").
		Require("auth_user_id", m.Input.AuthUserID).
		Check(m.Input.DisplayName != nil || m.Input.Timezone != nil, "display_name", "profile update is empty").
		Err()
}

func requireOwner(userID, providerID string) error {
	return core.NewFieldErrors("command").
		Require("user_id", userID).
		Require("provider_id", providerID).
		Err()
}
