package core

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
)

const MaxProviderNameLength = 100

func (s *Service) CreateProvider(ctx context.Context, in CreateProviderInput) (instance ProviderInstance, err error) {
	op := s.startOperation(ctx, "create_provider", map[string]any{
		"user_id":       in.UserID,
		"provider_type": string(in.Type),
	})
	defer func() {
		if instance.ID != "" {
			op.set("provider_id", instance.ID)
		}
		op.end(err)
	}()

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		err = s.mapError(NewBadInputError("user id is required"))
		return ProviderInstance{}, err
	}
	providerType, parseErr := ParseProviderType(string(in.Type))
	if parseErr != nil {
		err = s.mapError(NewValidationError("invalid provider", goerrors.FieldError{
			Field:   "type",
			Message: "must be one of supabase, vercel, resend, stripe, openai, anthropic",
		}))
		return ProviderInstance{}, err
	}
	name, nameErr := normalizeProviderName(in.Name)
	if nameErr != nil {
		err = s.mapError(nameErr)
		return ProviderInstance{}, err
	}
	if validateErr := ValidateCredentials(providerType, in.Credentials); validateErr != nil {
		err = s.mapError(validateErr)
		return ProviderInstance{}, err
	}

	now := s.clock()
	instance, err = s.providerStore.Create(ctx, ProviderInstance{
		UserID:    userID,
		Type:      providerType,
		Name:      name,
		Status:    ProviderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		err = s.mapError(err)
		return ProviderInstance{}, err
	}

	if storeErr := s.vault.Store(ctx, instance.ID, providerType, in.Credentials); storeErr != nil {
		if deleteErr := s.providerStore.Delete(context.WithoutCancel(ctx), instance.ID, s.clock()); deleteErr != nil {
			s.logError(ctx, "create_provider compensation failed", map[string]any{
				"provider_id": instance.ID,
				"error":       deleteErr.Error(),
			})
		}
		err = s.mapError(storeErr)
		instance = ProviderInstance{}
		return ProviderInstance{}, err
	}

	s.triggerSync(ctx, instance.ID)
	return instance, nil
}

// GetProvider returns the instance only when userID owns it.
func (s *Service) GetProvider(ctx context.Context, userID string, providerID string) (ProviderInstance, error) {
	instance, err := s.ownedProvider(ctx, userID, providerID)
	if err != nil {
		return ProviderInstance{}, s.mapError(err)
	}
	return instance, nil
}

func (s *Service) ListProviders(ctx context.Context, userID string) ([]ProviderInstance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, s.mapError(NewBadInputError("user id is required"))
	}
	instances, err := s.providerStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return instances, nil
}

func (s *Service) UpdateProvider(ctx context.Context, in UpdateProviderInput) (instance ProviderInstance, err error) {
	op := s.startOperation(ctx, "update_provider", map[string]any{
		"user_id":     in.UserID,
		"provider_id": in.ProviderID,
	})
	defer func() { op.end(err) }()

	instance, err = s.ownedProvider(ctx, in.UserID, in.ProviderID)
	if err != nil {
		err = s.mapError(err)
		return ProviderInstance{}, err
	}
	op.set("provider_type", string(instance.Type))

	if in.Name == nil && len(in.Credentials) == 0 {
		return instance, nil
	}

	var name string
	if in.Name != nil {
		name, err = normalizeProviderName(*in.Name)
		if err != nil {
			err = s.mapError(err)
			return ProviderInstance{}, err
		}
	}
	if len(in.Credentials) > 0 {
		if err = s.vault.Store(ctx, instance.ID, instance.Type, in.Credentials); err != nil {
			err = s.mapError(err)
			return ProviderInstance{}, err
		}
		op.set("credential_fields", in.Credentials.Keys())
	}
	now := s.clock()
	if in.Name != nil && name != instance.Name {
		instance, err = s.providerStore.Rename(ctx, instance.ID, name, now)
		if err != nil {
			err = s.mapError(err)
			return ProviderInstance{}, err
		}
	}

	if len(in.Credentials) > 0 {
		instance, err = s.unblock(ctx, instance, now)
		if err != nil {
			err = s.mapError(err)
			return ProviderInstance{}, err
		}
		s.triggerSync(ctx, instance.ID)
	}
	return instance, nil
}

// unblock moves an instance out of error so the scheduler picks it up again.
func (s *Service) unblock(ctx context.Context, instance ProviderInstance, now time.Time) (ProviderInstance, error) {
	if instance.Status != ProviderStatusError {
		return instance, nil
	}
	if err := instance.TransitionTo(ProviderStatusPending, now); err != nil {
		return ProviderInstance{}, err
	}
	empty := ""
	noKind := AdapterErrorKind("")
	return s.providerStore.UpdateStatus(ctx, ProviderStatusUpdate{
		ProviderID:    instance.ID,
		Status:        ProviderStatusPending,
		LastError:     &empty,
		LastErrorKind: &noKind,
		UpdatedAt:     now,
	})
}

func (s *Service) DeleteProvider(ctx context.Context, in DeleteProviderInput) (err error) {
	op := s.startOperation(ctx, "delete_provider", map[string]any{
		"user_id":     in.UserID,
		"provider_id": in.ProviderID,
		"purge":       in.Purge,
	})
	defer func() { op.end(err) }()

	instance, err := s.ownedProvider(ctx, in.UserID, in.ProviderID)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if s.syncCanceller != nil {
		s.syncCanceller.Cancel(instance.ID)
	}
	if err = s.providerStore.Delete(ctx, instance.ID, s.clock()); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.vault.Delete(ctx, instance.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	if in.Purge {
		removed, purgeErr := s.costStore.DeleteByProvider(ctx, instance.ID)
		if purgeErr != nil {
			err = s.mapError(purgeErr)
			return err
		}
		op.set("records_purged", removed)
	}
	return nil
}

// RequestSync asks for an immediate sync of an owned instance.
func (s *Service) RequestSync(ctx context.Context, userID string, providerID string) (ProviderInstance, error) {
	instance, err := s.ownedProvider(ctx, userID, providerID)
	if err != nil {
		return ProviderInstance{}, s.mapError(err)
	}
	if instance.Blocked() {
		instance, err = s.unblock(ctx, instance, s.clock())
		if err != nil {
			return ProviderInstance{}, s.mapError(err)
		}
	}
	if s.syncTrigger == nil {
		return ProviderInstance{}, s.mapError(goerrors.New("sync scheduler is not running", goerrors.CategoryOperation).
			WithTextCode(ServiceErrorSyncFailed))
	}
	if err := s.syncTrigger.Trigger(ctx, instance.ID); err != nil {
		return ProviderInstance{}, s.mapError(err)
	}
	return instance, nil
}

func (s *Service) ListSyncAttempts(ctx context.Context, userID string, providerID string, limit int) ([]SyncAttempt, error) {
	instance, err := s.ownedProvider(ctx, userID, providerID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if s.syncAttemptStore == nil {
		return []SyncAttempt{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	attempts, err := s.syncAttemptStore.ListByProvider(ctx, instance.ID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return attempts, nil
}

func (s *Service) ownedProvider(ctx context.Context, userID string, providerID string) (ProviderInstance, error) {
	userID = strings.TrimSpace(userID)
	providerID = strings.TrimSpace(providerID)
	if userID == "" || providerID == "" {
		return ProviderInstance{}, ErrProviderNotFound
	}
	instance, err := s.providerStore.Get(ctx, providerID)
	if err != nil {
		return ProviderInstance{}, err
	}
	if instance.UserID != userID {
		return ProviderInstance{}, ErrProviderNotFound
	}
	return instance, nil
}

func (s *Service) triggerSync(ctx context.Context, providerID string) {
	if s.syncTrigger == nil {
		return
	}
	if err := s.syncTrigger.Trigger(ctx, providerID); err != nil && !errors.Is(err, context.Canceled) {
		s.logWarn(ctx, "sync trigger failed", map[string]any{
			"provider_id": providerID,
			"error":       err.Error(),
		})
	}
}

func normalizeProviderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewValidationError("invalid provider", goerrors.FieldError{
			Field:   "name",
			Message: "is required",
		})
	}
	if utf8.RuneCountInString(name) > MaxProviderNameLength {
		return "", NewValidationError("invalid provider", goerrors.FieldError{
			Field:   "name",
			Message: "must be at most 100 characters",
		})
	}
	return name, nil
}
