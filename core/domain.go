package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrProviderNotFound                = errors.New("core: provider not found")
	ErrCredentialsNotFound             = errors.New("core: credentials not found")
	ErrProfileNotFound                 = errors.New("core: user profile not found")
	ErrInvalidProviderType             = errors.New("core: invalid provider type")
	ErrInvalidProviderStatusTransition = errors.New("core: invalid provider status transition")
	ErrProviderTypeImmutable           = errors.New("core: provider type cannot be changed")
	ErrSyncCancelled                   = errors.New("core: sync cancelled")
	ErrSyncLockHeld                    = errors.New("core: sync lock already held")
	ErrInvalidUsageEntry               = errors.New("core: invalid usage entry")
)

type ProviderType string

const (
	ProviderTypeSupabase  ProviderType = "supabase"
	ProviderTypeVercel    ProviderType = "vercel"
	ProviderTypeResend    ProviderType = "resend"
	ProviderTypeStripe    ProviderType = "stripe"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// ProviderTypes lists every supported provider type in declaration order.
func ProviderTypes() []ProviderType {
	return []ProviderType{
		ProviderTypeSupabase,
		ProviderTypeVercel,
		ProviderTypeResend,
		ProviderTypeStripe,
		ProviderTypeOpenAI,
		ProviderTypeAnthropic,
	}
}

func ParseProviderType(value string) (ProviderType, error) {
	candidate := ProviderType(strings.TrimSpace(strings.ToLower(value)))
	for _, known := range ProviderTypes() {
		if candidate == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProviderType, value)
}

func (t ProviderType) Valid() bool {
	_, err := ParseProviderType(string(t))
	return err == nil
}

type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusSyncing   ProviderStatus = "syncing"
	ProviderStatusConnected ProviderStatus = "connected"
	ProviderStatusError     ProviderStatus = "error"
)

type ProviderInstance struct {
	ID            string
	UserID        string
	Type          ProviderType
	Name          string
	Status        ProviderStatus
	LastSyncAt    *time.Time
	LastError     string
	LastErrorKind AdapterErrorKind
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Blocked reports whether the last failure requires user action before the
// instance is synced again automatically.
func (p ProviderInstance) Blocked() bool {
	return p.Status == ProviderStatusError && p.LastErrorKind.Terminal()
}

func (p *ProviderInstance) TransitionTo(status ProviderStatus, now time.Time) error {
	if p == nil {
		return nil
	}
	if p.Status == status {
		p.UpdatedAt = now
		return nil
	}
	if !providerTransitionAllowed(p.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidProviderStatusTransition, p.Status, status)
	}
	p.Status = status
	p.UpdatedAt = now
	return nil
}

func providerTransitionAllowed(current, next ProviderStatus) bool {
	allowed := map[ProviderStatus]map[ProviderStatus]struct{}{
		ProviderStatusPending: {
			ProviderStatusSyncing: {},
		},
		ProviderStatusSyncing: {
			ProviderStatusConnected: {},
			ProviderStatusError:     {},
			ProviderStatusPending:   {},
		},
		ProviderStatusConnected: {
			ProviderStatusSyncing: {},
		},
		ProviderStatusError: {
			ProviderStatusSyncing: {},
			ProviderStatusPending: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type CreateProviderInput struct {
	UserID      string
	Type        ProviderType
	Name        string
	Credentials CredentialBundle
}

type UpdateProviderInput struct {
	UserID      string
	ProviderID  string
	Name        *string
	Credentials CredentialBundle
}

type DeleteProviderInput struct {
	UserID     string
	ProviderID string
	Purge      bool
}

type ProviderStatusUpdate struct {
	ProviderID    string
	Status        ProviderStatus
	LastError     *string
	LastErrorKind *AdapterErrorKind
	LastSyncAt    *time.Time
	UpdatedAt     time.Time
}

// Period is a half-open billing window: Start inclusive, End exclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.End.After(p.Start)
}

// Overlaps reports whether p intersects [from, to). A nil bound is open.
func (p Period) Overlaps(from, to *time.Time) bool {
	if from != nil && !p.End.After(*from) {
		return false
	}
	if to != nil && !p.Start.Before(*to) {
		return false
	}
	return true
}

// UsageEntry is an adapter-produced line item already converted to canonical
// currency and period.
type UsageEntry struct {
	Service  string
	Amount   Amount
	Currency string
	Period   Period
	Metadata map[string]any
}

// CostEntry is a normalized entry ready for the dedup store.
type CostEntry struct {
	ProviderID string
	Service    string
	Amount     Amount
	Currency   string
	Period     Period
	Metadata   map[string]any
}

func (e CostEntry) Key() CostKey {
	return CostKey{
		ProviderID:  e.ProviderID,
		Service:     e.Service,
		PeriodStart: e.Period.Start,
		PeriodEnd:   e.Period.End,
	}
}

type CostKey struct {
	ProviderID  string
	Service     string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (k CostKey) String() string {
	return strings.Join([]string{
		k.ProviderID,
		k.Service,
		k.PeriodStart.UTC().Format(time.RFC3339),
		k.PeriodEnd.UTC().Format(time.RFC3339),
	}, "|")
}

type CostRecord struct {
	ID           string
	ProviderID   string
	ProviderName string
	ProviderType ProviderType
	Amount       Amount
	Currency     string
	Service      string
	Period       Period
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CostFilter struct {
	UserID       string
	ProviderID   string
	ProviderType ProviderType
	StartDate    *time.Time
	EndDate      *time.Time
}

type ApplyResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

func (r ApplyResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged
}

type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeFailure SyncOutcome = "failure"
)

type SyncAttempt struct {
	ID              string
	ProviderID      string
	Attempt         int
	StartedAt       time.Time
	FinishedAt      time.Time
	Outcome         SyncOutcome
	ErrorKind       AdapterErrorKind
	Error           string
	RecordsIngested int
	Result          ApplyResult
	// RetryAfter is the provider-requested delay of a rate-limited attempt.
	RetryAfter time.Duration
}

func (a SyncAttempt) Succeeded() bool {
	return a.Outcome == SyncOutcomeSuccess
}

type SyncRequest struct {
	ProviderID string
	// Attempt is the 1-based count of consecutive attempts including this one.
	Attempt int
	// Final marks the last automatic attempt before a retryable failure is
	// surfaced as an error status.
	Final bool
}

type UserProfile struct {
	ID          string
	AuthUserID  string
	DisplayName *string
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UpdateProfileInput struct {
	AuthUserID  string
	DisplayName *string
	Timezone    *string
}

const DefaultTimezone = "UTC"
