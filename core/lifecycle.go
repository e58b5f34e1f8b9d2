package core

import (
	"strings"
	"time"
)

// SyncResult is the outcome of one attempt as seen by the lifecycle manager.
type SyncResult struct {
	Succeeded  bool
	ErrorKind  AdapterErrorKind
	Message    string
	Final      bool
	FinishedAt time.Time
}

// BeginSync is the transition taken when an attempt starts.
func BeginSync(instance ProviderInstance, now time.Time) (ProviderStatusUpdate, error) {
	if err := instance.TransitionTo(ProviderStatusSyncing, now); err != nil {
		return ProviderStatusUpdate{}, err
	}
	return ProviderStatusUpdate{
		ProviderID: instance.ID,
		Status:     ProviderStatusSyncing,
		UpdatedAt:  now,
	}, nil
}

// ResolveSyncStatus decides the status written after an attempt. prior is
// the instance as it was before BeginSync.
//
// Success always lands on connected and clears the last error. Terminal
// failures, and retryable failures on the final attempt, land on error with
// the cause recorded. A retryable failure with attempts left reverts to the
// prior status so the instance never lingers in syncing.
func ResolveSyncStatus(prior ProviderInstance, result SyncResult) ProviderStatusUpdate {
	finishedAt := result.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	update := ProviderStatusUpdate{
		ProviderID: prior.ID,
		UpdatedAt:  finishedAt,
	}
	if result.Succeeded {
		empty := ""
		noKind := AdapterErrorKind("")
		syncedAt := finishedAt
		update.Status = ProviderStatusConnected
		update.LastError = &empty
		update.LastErrorKind = &noKind
		update.LastSyncAt = &syncedAt
		return update
	}

	kind := result.ErrorKind
	if kind == "" {
		kind = AdapterErrorTransient
	}
	if kind.Terminal() || result.Final {
		message := strings.TrimSpace(result.Message)
		if message == "" {
			message = "sync failed"
		}
		update.Status = ProviderStatusError
		update.LastError = &message
		update.LastErrorKind = &kind
		return update
	}

	update.Status = prior.Status
	if update.Status == "" || update.Status == ProviderStatusSyncing {
		update.Status = ProviderStatusPending
	}
	return update
}

// RevertSyncStatus restores the pre-attempt status after a cancelled attempt.
func RevertSyncStatus(prior ProviderInstance, now time.Time) ProviderStatusUpdate {
	status := prior.Status
	if status == "" || status == ProviderStatusSyncing {
		status = ProviderStatusPending
	}
	return ProviderStatusUpdate{
		ProviderID: prior.ID,
		Status:     status,
		UpdatedAt:  now,
	}
}
