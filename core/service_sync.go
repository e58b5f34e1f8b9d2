package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunSync performs one sync attempt for an instance. A completed attempt,
// successful or not, is returned with a nil error; the error return is
// reserved for attempts that never ran or were abandoned (lock held,
// instance deleted, cancellation).
func (s *Service) RunSync(ctx context.Context, req SyncRequest) (attempt SyncAttempt, err error) {
	providerID := strings.TrimSpace(req.ProviderID)
	op := s.startOperation(ctx, "run_sync", map[string]any{
		"provider_id": providerID,
		"attempt":     req.Attempt,
	})
	defer func() {
		if attempt.Outcome != "" {
			op.set("outcome", string(attempt.Outcome))
			op.set("records_ingested", attempt.RecordsIngested)
			if attempt.ErrorKind != "" {
				op.set("error_kind", string(attempt.ErrorKind))
			}
		}
		op.end(err)
	}()

	if providerID == "" {
		err = s.mapError(NewBadInputError("provider id is required"))
		return SyncAttempt{}, err
	}
	attemptNo := req.Attempt
	if attemptNo < 1 {
		attemptNo = 1
	}

	lock, lockErr := s.instanceLocker.Acquire(ctx, providerID, s.config.Sync.LockTTL)
	if lockErr != nil {
		err = lockErr
		return SyncAttempt{}, err
	}
	defer func() {
		_ = lock.Unlock(context.WithoutCancel(ctx))
	}()

	prior, err := s.providerStore.Get(ctx, providerID)
	if err != nil {
		return SyncAttempt{}, err
	}
	op.set("provider_type", string(prior.Type))
	if ctx.Err() != nil {
		err = ErrSyncCancelled
		return SyncAttempt{}, err
	}

	attemptStart := s.clock()
	begin, err := BeginSync(prior, attemptStart)
	if err != nil {
		return SyncAttempt{}, err
	}
	if _, err = s.providerStore.UpdateStatus(ctx, begin); err != nil {
		return SyncAttempt{}, err
	}

	fetched, applied, syncErr := s.executeSync(ctx, prior)
	finishedAt := s.clock()
	persistCtx := context.WithoutCancel(ctx)

	if isAbandoned(ctx, syncErr) {
		if !errors.Is(syncErr, ErrProviderNotFound) {
			if _, revertErr := s.providerStore.UpdateStatus(persistCtx, RevertSyncStatus(prior, finishedAt)); revertErr != nil &&
				!errors.Is(revertErr, ErrProviderNotFound) {
				s.logWarn(ctx, "sync status revert failed", map[string]any{
					"provider_id": providerID,
					"error":       revertErr.Error(),
				})
			}
		}
		if errors.Is(syncErr, ErrProviderNotFound) {
			err = syncErr
		} else {
			err = ErrSyncCancelled
		}
		return SyncAttempt{}, err
	}

	attempt = SyncAttempt{
		ProviderID:      providerID,
		Attempt:         attemptNo,
		StartedAt:       attemptStart,
		FinishedAt:      finishedAt,
		RecordsIngested: fetched,
		Result:          applied,
	}
	result := SyncResult{Succeeded: syncErr == nil, Final: req.Final, FinishedAt: finishedAt}
	if syncErr == nil {
		attempt.Outcome = SyncOutcomeSuccess
	} else {
		classified := ClassifyAdapterError(prior.Type, syncErr)
		if classified == nil {
			classified = NewTransientError(prior.Type, "sync interrupted", syncErr)
		}
		attempt.Outcome = SyncOutcomeFailure
		attempt.ErrorKind = classified.Kind
		attempt.Error = classified.Summary()
		attempt.RetryAfter = classified.RetryAfter
		result.ErrorKind = classified.Kind
		result.Message = classified.Summary()
	}

	update := ResolveSyncStatus(prior, result)
	if _, updateErr := s.providerStore.UpdateStatus(persistCtx, update); updateErr != nil {
		if errors.Is(updateErr, ErrProviderNotFound) {
			err = updateErr
			return SyncAttempt{}, err
		}
		s.logError(ctx, "sync status update failed", map[string]any{
			"provider_id": providerID,
			"error":       updateErr.Error(),
		})
	}
	if s.syncAttemptStore != nil {
		stored, appendErr := s.syncAttemptStore.Append(persistCtx, attempt)
		if appendErr != nil {
			s.logWarn(ctx, "sync attempt not recorded", map[string]any{
				"provider_id": providerID,
				"error":       appendErr.Error(),
			})
		} else {
			stored.RetryAfter = attempt.RetryAfter
			attempt = stored
		}
	}

	tags := map[string]string{"provider_type": string(prior.Type)}
	s.recordCounter(ctx, "costhook.sync.records_inserted", int64(applied.Inserted), tags)
	s.recordCounter(ctx, "costhook.sync.records_updated", int64(applied.Updated), tags)
	if attempt.Outcome == SyncOutcomeFailure {
		tags["error_kind"] = string(attempt.ErrorKind)
		s.recordCounter(ctx, "costhook.sync.failures", 1, tags)
	}
	return attempt, nil
}

func (s *Service) executeSync(ctx context.Context, instance ProviderInstance) (int, ApplyResult, error) {
	adapter, ok := s.adapters.Get(instance.Type)
	if !ok {
		return 0, ApplyResult{}, NewUnsupportedError(instance.Type, "no adapter registered")
	}

	bundle, err := s.vault.Fetch(ctx, instance.ID)
	switch {
	case errors.Is(err, ErrCredentialsNotFound):
		return 0, ApplyResult{}, NewAdapterError(AdapterErrorValidation, instance.Type, "credentials missing", err)
	case errors.Is(err, ErrCredentialsUnreadable):
		return 0, ApplyResult{}, NewAdapterError(AdapterErrorValidation, instance.Type, "credentials unreadable", err)
	case err != nil:
		return 0, ApplyResult{}, NewTransientError(instance.Type, "credential lookup failed", err)
	}
	if err := adapter.ValidateCredentials(ctx, bundle); err != nil {
		return 0, ApplyResult{}, err
	}

	since := s.fetchWindowStart(instance, adapter.MaxLookback())
	if s.callLimiter != nil {
		if err := s.callLimiter.Wait(ctx, instance.Type); err != nil {
			if ctx.Err() != nil {
				return 0, ApplyResult{}, ErrSyncCancelled
			}
			var hinted retryHinter
			retryAfter := time.Duration(0)
			if errors.As(err, &hinted) {
				retryAfter = hinted.RetryHint()
			}
			return 0, ApplyResult{}, NewRateLimitedError(instance.Type, "local rate limit", retryAfter)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.Sync.AdapterTimeout)
	entries, err := adapter.FetchUsage(fetchCtx, bundle, since)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ApplyResult{}, ErrSyncCancelled
		}
		return 0, ApplyResult{}, err
	}

	normalized, err := NormalizeUsage(instance.ID, entries)
	if err != nil {
		return len(entries), ApplyResult{}, NewAdapterError(AdapterErrorUnsupported, instance.Type, "provider returned unusable data", err)
	}
	if ctx.Err() != nil {
		return len(entries), ApplyResult{}, ErrSyncCancelled
	}
	applied, err := s.costStore.ApplyBatch(ctx, instance.ID, normalized)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return len(entries), ApplyResult{}, err
		}
		if ctx.Err() != nil {
			return len(entries), ApplyResult{}, ErrSyncCancelled
		}
		return len(entries), ApplyResult{}, NewTransientError(instance.Type, "storing costs failed", err)
	}
	return len(entries), applied, nil
}

// fetchWindowStart re-reads an overlap before the last successful sync so
// late vendor amendments are picked up; nil asks for a full backfill.
func (s *Service) fetchWindowStart(instance ProviderInstance, maxLookback time.Duration) *time.Time {
	if instance.LastSyncAt == nil {
		return nil
	}
	since := instance.LastSyncAt.UTC().Add(-s.config.Sync.Overlap)
	if maxLookback > 0 {
		floor := s.clock().Add(-maxLookback)
		if since.Before(floor) {
			since = floor
		}
	}
	return &since
}

func isAbandoned(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSyncCancelled) || errors.Is(err, ErrProviderNotFound) {
		return true
	}
	return errors.Is(err, context.Canceled) && ctx.Err() != nil
}

// ListSyncCandidates exposes the live, unblocked instances to the scheduler.
func (s *Service) ListSyncCandidates(ctx context.Context) ([]ProviderInstance, error) {
	instances, err := s.providerStore.ListSyncCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: list sync candidates: %w", err)
	}
	return instances, nil
}

// retryHinter is implemented by limiter errors that know when capacity frees up.
type retryHinter interface {
	RetryHint() time.Duration
}
