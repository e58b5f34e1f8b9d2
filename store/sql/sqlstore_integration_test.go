package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-costhook/core"
	costhookmigrations "github.com/goliatone/go-costhook/migrations"
	sqlstore "github.com/goliatone/go-costhook/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-costhook-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{
		"costhook_provider_instances",
		"costhook_credentials",
		"costhook_cost_records",
		"costhook_sync_attempts",
		"costhook_user_profiles",
	} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestProviderStore_LifecycleAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	store := factory.ProviderStore()

	created := createProvider(t, store, "usr_1", core.ProviderTypeOpenAI, "OpenAI prod")
	if created.ID == "" || created.Status != core.ProviderStatusPending {
		t.Fatalf("expected pending instance with id, got %+v", created)
	}
	second := createProvider(t, store, "usr_1", core.ProviderTypeStripe, "Stripe")
	createProvider(t, store, "usr_2", core.ProviderTypeVercel, "Other user")

	listed, err := store.ListByUser(ctx, "usr_1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID {
		t.Fatalf("expected 2 instances newest first, got %+v", listed)
	}

	now := time.Now().UTC()
	if _, err := store.UpdateStatus(ctx, core.ProviderStatusUpdate{
		ProviderID: created.ID,
		Status:     core.ProviderStatusConnected,
		UpdatedAt:  now,
	}); !errors.Is(err, core.ErrInvalidProviderStatusTransition) {
		t.Fatalf("expected pending -> connected to be rejected, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, core.ProviderStatusUpdate{
		ProviderID: created.ID,
		Status:     core.ProviderStatusSyncing,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("begin sync: %v", err)
	}
	message := "openai: invalid api key (HTTP 401)"
	kind := core.AdapterErrorAuthExpired
	errored, err := store.UpdateStatus(ctx, core.ProviderStatusUpdate{
		ProviderID:    created.ID,
		Status:        core.ProviderStatusError,
		LastError:     &message,
		LastErrorKind: &kind,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if errored.LastError != message || !errored.Blocked() {
		t.Fatalf("expected blocked error instance, got %+v", errored)
	}

	candidates, err := store.ListSyncCandidates(ctx)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	for _, candidate := range candidates {
		if candidate.ID == created.ID {
			t.Fatalf("expected blocked instance to be excluded from candidates")
		}
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	renamed, err := store.Rename(ctx, created.ID, "OpenAI staging", now)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "OpenAI staging" || renamed.Status != core.ProviderStatusError {
		t.Fatalf("expected rename to leave status untouched, got %+v", renamed)
	}

	if err := store.Delete(ctx, created.ID, now); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, core.ErrProviderNotFound) {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}
	if err := store.Delete(ctx, created.ID, now); !errors.Is(err, core.ErrProviderNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, core.ProviderStatusUpdate{
		ProviderID: created.ID,
		Status:     core.ProviderStatusSyncing,
		UpdatedAt:  now,
	}); !errors.Is(err, core.ErrProviderNotFound) {
		t.Fatalf("expected status update on deleted instance to fail, got %v", err)
	}
}

func TestCredentialStore_UpsertsSingleRow(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	instance := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeResend, "Resend")
	store := factory.CredentialStore()

	if _, err := store.Get(ctx, instance.ID); !errors.Is(err, core.ErrCredentialsNotFound) {
		t.Fatalf("expected credentials not found, got %v", err)
	}
	for i, payload := range []string{"cipher-v1", "cipher-v2"} {
		if err := store.Put(ctx, core.EncryptedCredential{
			ProviderID:     instance.ID,
			Payload:        []byte(payload),
			PayloadFormat:  "credential_bundle_json",
			PayloadVersion: 1,
			KeyID:          "app-key",
			KeyVersion:     i + 1,
		}); err != nil {
			t.Fatalf("put %s: %v", payload, err)
		}
	}
	stored, err := store.Get(ctx, instance.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(stored.Payload) != "cipher-v2" || stored.KeyVersion != 2 {
		t.Fatalf("expected latest payload, got %+v", stored)
	}

	var rows int
	if err := factory.DB().NewRaw("SELECT COUNT(*) FROM costhook_credentials WHERE provider_id = ?", instance.ID).
		Scan(ctx, &rows); err != nil {
		t.Fatalf("count credentials: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single credential row, got %d", rows)
	}

	if err := store.Delete(ctx, instance.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, instance.ID); !errors.Is(err, core.ErrCredentialsNotFound) {
		t.Fatalf("expected credentials gone, got %v", err)
	}
}

func TestCostStore_ApplyBatchIsIdempotentAndUpserts(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	instance := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeStripe, "Stripe")
	store := factory.CostStore()

	firstBatch := []core.CostEntry{
		dailyCost(instance.ID, "2026-03-01", 290_000),
		dailyCost(instance.ID, "2026-03-02", 320_000),
		dailyCost(instance.ID, "2026-03-03", 150_000),
	}
	result, err := store.ApplyBatch(ctx, instance.ID, firstBatch)
	if err != nil {
		t.Fatalf("apply first batch: %v", err)
	}
	if result.Inserted != 3 {
		t.Fatalf("expected 3 inserted, got %+v", result)
	}
	result, err = store.ApplyBatch(ctx, instance.ID, firstBatch)
	if err != nil {
		t.Fatalf("reapply first batch: %v", err)
	}
	if result.Unchanged != 3 || result.Inserted != 0 || result.Updated != 0 {
		t.Fatalf("expected identical batch to be unchanged, got %+v", result)
	}

	before, err := store.List(ctx, core.CostFilter{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("list before: %v", err)
	}

	secondBatch := []core.CostEntry{
		dailyCost(instance.ID, "2026-03-01", 290_000),
		dailyCost(instance.ID, "2026-03-02", 320_000),
		dailyCost(instance.ID, "2026-03-03", 180_000),
		dailyCost(instance.ID, "2026-03-04", 90_000),
	}
	result, err = store.ApplyBatch(ctx, instance.ID, secondBatch)
	if err != nil {
		t.Fatalf("apply second batch: %v", err)
	}
	if result.Inserted != 1 || result.Updated != 1 || result.Unchanged != 2 {
		t.Fatalf("expected 1/1/2, got %+v", result)
	}

	records, err := store.List(ctx, core.CostFilter{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0].Period.Start != day("2026-03-04") {
		t.Fatalf("expected newest period first, got %s", records[0].Period.Start)
	}
	if records[0].ProviderName != "Stripe" || records[0].ProviderType != core.ProviderTypeStripe {
		t.Fatalf("expected provider join, got %+v", records[0])
	}
	amended := records[1]
	if amended.Amount.Micros() != 180_000 {
		t.Fatalf("expected amended amount, got %d", amended.Amount.Micros())
	}
	for _, previous := range before {
		if previous.ID == amended.ID && !previous.CreatedAt.Equal(amended.CreatedAt) {
			t.Fatalf("expected created_at to survive an amendment")
		}
	}
}

func TestCostStore_ExactAmountRoundTrip(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	instance := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeOpenAI, "OpenAI")
	amount, err := core.ParseAmount("19.999999")
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	entry := dailyCost(instance.ID, "2026-03-01", 0)
	entry.Amount = amount
	entry.Metadata = map[string]any{"line_item": "gpt-4o", "api_key": "sk-should-not-persist"}
	if _, err := factory.CostStore().ApplyBatch(ctx, instance.ID, []core.CostEntry{entry}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	records, err := factory.CostStore().List(ctx, core.CostFilter{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Amount.String() != "19.999999" {
		t.Fatalf("expected exact amount round trip, got %+v", records)
	}
	if records[0].Metadata["line_item"] != "gpt-4o" || records[0].Metadata["api_key"] != "[REDACTED]" {
		t.Fatalf("expected metadata kept with secrets redacted, got %+v", records[0].Metadata)
	}
}

func TestCostStore_ListOverlapWindowAndOwnership(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	mine := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeSupabase, "Supabase")
	theirs := createProvider(t, factory.ProviderStore(), "usr_2", core.ProviderTypeSupabase, "Theirs")
	store := factory.CostStore()

	monthly := core.CostEntry{
		ProviderID: mine.ID,
		Service:    "compute",
		Amount:     core.AmountFromMicros(25_000_000),
		Currency:   "USD",
		Period:     core.Period{Start: day("2026-02-01"), End: day("2026-03-01")},
	}
	if _, err := store.ApplyBatch(ctx, mine.ID, []core.CostEntry{monthly, dailyCost(mine.ID, "2026-03-01", 1)}); err != nil {
		t.Fatalf("apply mine: %v", err)
	}
	if _, err := store.ApplyBatch(ctx, theirs.ID, []core.CostEntry{dailyCost(theirs.ID, "2026-02-20", 1)}); err != nil {
		t.Fatalf("apply theirs: %v", err)
	}

	start := day("2026-02-15")
	end := day("2026-03-01")
	records, err := store.List(ctx, core.CostFilter{UserID: "usr_1", StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Service != "compute" {
		t.Fatalf("expected only the overlapping monthly record, got %+v", records)
	}

	records, err = store.List(ctx, core.CostFilter{UserID: "usr_1", ProviderID: theirs.ID})
	if err != nil {
		t.Fatalf("list foreign provider: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records for a provider owned by someone else")
	}

	records, err = store.List(ctx, core.CostFilter{UserID: "usr_1", ProviderType: core.ProviderTypeStripe})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected provider_type filter to exclude supabase rows")
	}

	removed, err := store.DeleteByProvider(ctx, mine.ID)
	if err != nil {
		t.Fatalf("delete by provider: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 purged records, got %d", removed)
	}
}

func TestCostStore_ApplyBatchRejectsDeletedProvider(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	instance := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeVercel, "Vercel")
	if err := factory.ProviderStore().Delete(ctx, instance.ID, time.Now().UTC()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := factory.CostStore().ApplyBatch(ctx, instance.ID, []core.CostEntry{dailyCost(instance.ID, "2026-03-01", 1)})
	if !errors.Is(err, core.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}
	var rows int
	if err := factory.DB().NewRaw("SELECT COUNT(*) FROM costhook_cost_records").Scan(ctx, &rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected no rows written for a deleted provider, got %d", rows)
	}
}

func TestCostStore_ListKeepsRecordsOfDeletedProvider(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	instance := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeResend, "Resend")
	store := factory.CostStore()
	if _, err := store.ApplyBatch(ctx, instance.ID, []core.CostEntry{dailyCost(instance.ID, "2026-03-01", 2_500_000)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := factory.ProviderStore().Delete(ctx, instance.ID, time.Now().UTC()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	records, err := store.List(ctx, core.CostFilter{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ProviderID != instance.ID {
		t.Fatalf("expected retained record of deleted provider, got %+v", records)
	}
	byProvider, err := store.List(ctx, core.CostFilter{UserID: "usr_1", ProviderID: instance.ID})
	if err != nil {
		t.Fatalf("list by provider: %v", err)
	}
	if len(byProvider) != 1 {
		t.Fatalf("expected provider filter to match retained record, got %d", len(byProvider))
	}
	other, err := store.List(ctx, core.CostFilter{UserID: "usr_2"})
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected ownership to hold after delete, got %d records", len(other))
	}

	removed, err := store.DeleteByProvider(ctx, instance.ID)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged record, got %d", removed)
	}
	after, err := store.List(ctx, core.CostFilter{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("list after purge: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected no records after purge, got %d", len(after))
	}
}

func TestSyncAttemptStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	instance := createProvider(t, factory.ProviderStore(), "usr_1", core.ProviderTypeAnthropic, "Anthropic")
	store := factory.SyncAttemptStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, core.SyncAttempt{
			ProviderID: instance.ID,
			Attempt:    i + 1,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Outcome:    core.SyncOutcomeFailure,
			ErrorKind:  core.AdapterErrorTransient,
			Error:      "anthropic: upstream unavailable",
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	attempts, err := store.ListByProvider(ctx, instance.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Attempt != 3 {
		t.Fatalf("expected 2 newest attempts, got %+v", attempts)
	}
	if attempts[0].ID == "" || attempts[0].ErrorKind != core.AdapterErrorTransient {
		t.Fatalf("expected persisted attempt fields, got %+v", attempts[0])
	}
}

func TestProfileStore_GetOrCreateAndCachedUpdate(t *testing.T) {
	ctx := context.Background()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	factory, cleanup := newFactory(t, sqlstore.WithProfileCache(cacheService))
	defer cleanup()
	store := factory.ProfileStore()
	if _, ok := store.(*sqlstore.CachedProfileStore); !ok {
		t.Fatalf("expected cached profile store, got %T", store)
	}

	first, err := store.GetOrCreate(ctx, "usr_1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	again, err := store.GetOrCreate(ctx, "usr_1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if first.ID == "" || first.ID != again.ID || first.Timezone != core.DefaultTimezone {
		t.Fatalf("expected a single default profile, got %+v / %+v", first, again)
	}

	name := "Ada"
	zone := "Europe/Berlin"
	if _, err := store.Update(ctx, core.UpdateProfileInput{AuthUserID: "usr_1", DisplayName: &name, Timezone: &zone}); err != nil {
		t.Fatalf("update: %v", err)
	}
	reread, err := store.GetOrCreate(ctx, "usr_1")
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.DisplayName == nil || *reread.DisplayName != "Ada" || reread.Timezone != zone {
		t.Fatalf("expected cache invalidated after update, got %+v", reread)
	}

	if _, err := store.Update(ctx, core.UpdateProfileInput{AuthUserID: "usr_missing", Timezone: &zone}); !errors.Is(err, core.ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
}

func TestNewService_WiresStoresFromRepositoryFactory(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	adapter := &integrationAdapter{entries: []core.UsageEntry{{
		Service:  "gpt-4o",
		Amount:   core.AmountFromMicros(1_250_000),
		Currency: "usd",
		Period:   core.Period{Start: day("2026-03-01"), End: day("2026-03-02")},
	}}}
	registry, err := core.NewAdapterRegistry(adapter)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := core.NewService(core.Config{},
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(sqlstore.NewRepositoryFactory()),
		core.WithSecretProvider(plainSecretProvider{}),
		core.WithAdapterRegistry(registry),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()
	instance, err := svc.CreateProvider(ctx, core.CreateProviderInput{
		UserID:      "usr_1",
		Type:        core.ProviderTypeOpenAI,
		Name:        "OpenAI",
		Credentials: core.CredentialBundle{"api_key": "sk-test"},
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	attempt, err := svc.RunSync(ctx, core.SyncRequest{ProviderID: instance.ID, Attempt: 1})
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if !attempt.Succeeded() || attempt.Result.Inserted != 1 {
		t.Fatalf("expected successful sync with one insert, got %+v", attempt)
	}
	stored, err := svc.GetProvider(ctx, "usr_1", instance.ID)
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if stored.Status != core.ProviderStatusConnected || stored.LastSyncAt == nil {
		t.Fatalf("expected connected instance, got %+v", stored)
	}
	records, err := svc.ListCosts(ctx, core.CostFilter{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("list costs: %v", err)
	}
	if len(records) != 1 || records[0].Currency != "USD" || records[0].Amount.String() != "1.25" {
		t.Fatalf("unexpected cost records %+v", records)
	}
	attempts, err := svc.ListSyncAttempts(ctx, "usr_1", instance.ID, 10)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected one recorded attempt, got %d", len(attempts))
	}
}

func newFactory(t *testing.T, opts ...sqlstore.FactoryOption) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, opts...)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:costhook-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = costhookmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != costhookmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, costhookmigrations.WithDialects(costhookmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func createProvider(t *testing.T, store core.ProviderStore, userID string, providerType core.ProviderType, name string) core.ProviderInstance {
	t.Helper()
	// Distinct created_at values keep newest-first ordering deterministic.
	time.Sleep(2 * time.Millisecond)
	now := time.Now().UTC()
	instance, err := store.Create(context.Background(), core.ProviderInstance{
		UserID:    userID,
		Type:      providerType,
		Name:      name,
		Status:    core.ProviderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return instance
}

func dailyCost(providerID string, dayValue string, micros int64) core.CostEntry {
	start := day(dayValue)
	return core.CostEntry{
		ProviderID: providerID,
		Service:    "stripe_fee",
		Amount:     core.AmountFromMicros(micros),
		Currency:   "USD",
		Period:     core.Period{Start: start, End: start.Add(24 * time.Hour)},
	}
}

func day(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed.UTC()
}

type plainSecretProvider struct{}

func (plainSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte("plain:"), plaintext...), nil
}

func (plainSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < len("plain:") {
		return nil, fmt.Errorf("invalid ciphertext")
	}
	return ciphertext[len("plain:"):], nil
}

type integrationAdapter struct {
	entries []core.UsageEntry
}

func (a *integrationAdapter) Type() core.ProviderType { return core.ProviderTypeOpenAI }

func (a *integrationAdapter) MaxLookback() time.Duration { return 90 * 24 * time.Hour }

func (a *integrationAdapter) ValidateCredentials(context.Context, core.CredentialBundle) error {
	return nil
}

func (a *integrationAdapter) FetchUsage(context.Context, core.CredentialBundle, *time.Time) ([]core.UsageEntry, error) {
	return a.entries, nil
}
