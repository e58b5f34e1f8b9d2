package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

func (testSecretProvider) Metadata() (string, int) {
	return "test-key", 1
}

type memoryProviderStore struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]ProviderInstance
	deleted map[string]bool
	updates []ProviderStatusUpdate
}

func newMemoryProviderStore() *memoryProviderStore {
	return &memoryProviderStore{
		byID:    map[string]ProviderInstance{},
		deleted: map[string]bool{},
	}
}

func (s *memoryProviderStore) Create(_ context.Context, instance ProviderInstance) (ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	instance.ID = fmt.Sprintf("prov_%d", s.seq)
	s.byID[instance.ID] = instance
	return instance, nil
}

func (s *memoryProviderStore) Get(_ context.Context, id string) (ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.byID[id]
	if !ok || s.deleted[id] {
		return ProviderInstance{}, ErrProviderNotFound
	}
	return instance, nil
}

func (s *memoryProviderStore) ListByUser(_ context.Context, userID string) ([]ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ProviderInstance{}
	for id, instance := range s.byID {
		if instance.UserID == userID && !s.deleted[id] {
			out = append(out, instance)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryProviderStore) ListSyncCandidates(context.Context) ([]ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ProviderInstance{}
	for id, instance := range s.byID {
		if !s.deleted[id] && !instance.Blocked() {
			out = append(out, instance)
		}
	}
	return out, nil
}

func (s *memoryProviderStore) Rename(_ context.Context, id string, name string, updatedAt time.Time) (ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.byID[id]
	if !ok || s.deleted[id] {
		return ProviderInstance{}, ErrProviderNotFound
	}
	instance.Name = name
	instance.UpdatedAt = updatedAt
	s.byID[id] = instance
	return instance, nil
}

func (s *memoryProviderStore) UpdateStatus(_ context.Context, update ProviderStatusUpdate) (ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.byID[update.ProviderID]
	if !ok || s.deleted[update.ProviderID] {
		return ProviderInstance{}, ErrProviderNotFound
	}
	if err := instance.TransitionTo(update.Status, update.UpdatedAt); err != nil {
		return ProviderInstance{}, err
	}
	if update.LastError != nil {
		instance.LastError = *update.LastError
	}
	if update.LastErrorKind != nil {
		instance.LastErrorKind = *update.LastErrorKind
	}
	if update.LastSyncAt != nil {
		syncedAt := *update.LastSyncAt
		instance.LastSyncAt = &syncedAt
	}
	s.byID[update.ProviderID] = instance
	s.updates = append(s.updates, update)
	return instance, nil
}

func (s *memoryProviderStore) Delete(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok || s.deleted[id] {
		return ErrProviderNotFound
	}
	s.deleted[id] = true
	return nil
}

func (s *memoryProviderStore) statuses(id string) []ProviderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ProviderStatus{}
	for _, update := range s.updates {
		if update.ProviderID == id {
			out = append(out, update.Status)
		}
	}
	return out
}

type memoryCredentialStore struct {
	mu   sync.Mutex
	rows map[string]EncryptedCredential
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{rows: map[string]EncryptedCredential{}}
}

func (s *memoryCredentialStore) Put(_ context.Context, credential EncryptedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[credential.ProviderID]; ok {
		credential.CreatedAt = existing.CreatedAt
	}
	s.rows[credential.ProviderID] = credential
	return nil
}

func (s *memoryCredentialStore) Get(_ context.Context, providerID string) (EncryptedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[providerID]
	if !ok {
		return EncryptedCredential{}, ErrCredentialsNotFound
	}
	return row, nil
}

func (s *memoryCredentialStore) Delete(_ context.Context, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[providerID]; !ok {
		return ErrCredentialsNotFound
	}
	delete(s.rows, providerID)
	return nil
}

type memoryCostStore struct {
	mu        sync.Mutex
	providers *memoryProviderStore
	records   map[CostKey]CostRecord
	seq       int
}

func newMemoryCostStore(providers *memoryProviderStore) *memoryCostStore {
	return &memoryCostStore{providers: providers, records: map[CostKey]CostRecord{}}
}

func (s *memoryCostStore) ApplyBatch(ctx context.Context, providerID string, entries []CostEntry) (ApplyResult, error) {
	if _, err := s.providers.Get(ctx, providerID); err != nil {
		return ApplyResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := ApplyResult{}
	now := time.Now().UTC()
	for _, entry := range entries {
		key := entry.Key()
		existing, ok := s.records[key]
		if !ok {
			s.seq++
			s.records[key] = CostRecord{
				ID:         fmt.Sprintf("cost_%d", s.seq),
				ProviderID: providerID,
				Amount:     entry.Amount,
				Currency:   entry.Currency,
				Service:    entry.Service,
				Period:     entry.Period,
				Metadata:   entry.Metadata,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			result.Inserted++
			continue
		}
		if existing.Amount == entry.Amount && existing.Currency == entry.Currency {
			result.Unchanged++
			continue
		}
		existing.Amount = entry.Amount
		existing.Currency = entry.Currency
		existing.UpdatedAt = now
		s.records[key] = existing
		result.Updated++
	}
	return result, nil
}

func (s *memoryCostStore) List(ctx context.Context, filter CostFilter) ([]CostRecord, error) {
	ownedByID := map[string]ProviderInstance{}
	s.providers.mu.Lock()
	for id, instance := range s.providers.byID {
		if instance.UserID == filter.UserID {
			ownedByID[id] = instance
		}
	}
	s.providers.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []CostRecord{}
	for _, record := range s.records {
		instance, ok := ownedByID[record.ProviderID]
		if !ok {
			continue
		}
		if filter.ProviderID != "" && record.ProviderID != filter.ProviderID {
			continue
		}
		if filter.ProviderType != "" && instance.Type != filter.ProviderType {
			continue
		}
		if !record.Period.Overlaps(filter.StartDate, filter.EndDate) {
			continue
		}
		record.ProviderName = instance.Name
		record.ProviderType = instance.Type
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.After(out[j].Period.Start) })
	return out, nil
}

func (s *memoryCostStore) DeleteByProvider(_ context.Context, providerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, record := range s.records {
		if record.ProviderID == providerID {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryCostStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type memorySyncAttemptStore struct {
	mu       sync.Mutex
	attempts []SyncAttempt
}

func (s *memorySyncAttemptStore) Append(_ context.Context, attempt SyncAttempt) (SyncAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.ID = fmt.Sprintf("attempt_%d", len(s.attempts)+1)
	s.attempts = append(s.attempts, attempt)
	return attempt, nil
}

func (s *memorySyncAttemptStore) ListByProvider(_ context.Context, providerID string, limit int) ([]SyncAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SyncAttempt{}
	for i := len(s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.attempts[i].ProviderID == providerID {
			out = append(out, s.attempts[i])
		}
	}
	return out, nil
}

type memoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]UserProfile
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{profiles: map[string]UserProfile{}}
}

func (s *memoryProfileStore) GetOrCreate(_ context.Context, authUserID string) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile, ok := s.profiles[authUserID]; ok {
		return profile, nil
	}
	now := time.Now().UTC()
	profile := UserProfile{
		ID:         "profile_" + authUserID,
		AuthUserID: authUserID,
		Timezone:   DefaultTimezone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.profiles[authUserID] = profile
	return profile, nil
}

func (s *memoryProfileStore) Update(_ context.Context, in UpdateProfileInput) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[in.AuthUserID]
	if !ok {
		return UserProfile{}, ErrProfileNotFound
	}
	if in.DisplayName != nil {
		name := *in.DisplayName
		profile.DisplayName = &name
	}
	if in.Timezone != nil {
		profile.Timezone = *in.Timezone
	}
	s.profiles[in.AuthUserID] = profile
	return profile, nil
}

type stubAdapter struct {
	mu          sync.Mutex
	kind        ProviderType
	entries     []UsageEntry
	err         error
	validateErr error
	calls       int
	since       []*time.Time
	fetch       func(ctx context.Context) ([]UsageEntry, error)
}

func (a *stubAdapter) Type() ProviderType { return a.kind }

func (a *stubAdapter) MaxLookback() time.Duration { return 90 * 24 * time.Hour }

func (a *stubAdapter) ValidateCredentials(context.Context, CredentialBundle) error {
	return a.validateErr
}

func (a *stubAdapter) FetchUsage(ctx context.Context, _ CredentialBundle, since *time.Time) ([]UsageEntry, error) {
	a.mu.Lock()
	a.calls++
	a.since = append(a.since, since)
	fetch := a.fetch
	entries, err := a.entries, a.err
	a.mu.Unlock()
	if fetch != nil {
		return fetch(ctx)
	}
	return entries, err
}

type recordingTrigger struct {
	mu        sync.Mutex
	triggered []string
	cancelled []string
}

func (t *recordingTrigger) Trigger(_ context.Context, providerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.triggered = append(t.triggered, providerID)
	return nil
}

func (t *recordingTrigger) Cancel(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = append(t.cancelled, providerID)
}

type testHarness struct {
	service     *Service
	providers   *memoryProviderStore
	credentials *memoryCredentialStore
	costs       *memoryCostStore
	attempts    *memorySyncAttemptStore
	profiles    *memoryProfileStore
	trigger     *recordingTrigger
}

func newTestHarness(adapters ...ProviderAdapter) (*testHarness, error) {
	providers := newMemoryProviderStore()
	harness := &testHarness{
		providers:   providers,
		credentials: newMemoryCredentialStore(),
		costs:       newMemoryCostStore(providers),
		attempts:    &memorySyncAttemptStore{},
		profiles:    newMemoryProfileStore(),
		trigger:     &recordingTrigger{},
	}
	registry, err := NewAdapterRegistry(adapters...)
	if err != nil {
		return nil, err
	}
	svc, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithAdapterRegistry(registry),
		WithProviderStore(harness.providers),
		WithCredentialStore(harness.credentials),
		WithCostStore(harness.costs),
		WithSyncAttemptStore(harness.attempts),
		WithProfileStore(harness.profiles),
		WithSecretProvider(testSecretProvider{}),
		WithSyncTrigger(harness.trigger),
		WithSyncCanceller(harness.trigger),
	)
	if err != nil {
		return nil, err
	}
	harness.service = svc
	return harness, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func day(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed.UTC()
}
