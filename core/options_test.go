package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type staticStoreProvider struct {
	providers ProviderStore
	creds     CredentialStore
	costs     CostStore
	attempts  SyncAttemptStore
	profiles  ProfileStore
}

func (p staticStoreProvider) ProviderStore() ProviderStore       { return p.providers }
func (p staticStoreProvider) CredentialStore() CredentialStore   { return p.creds }
func (p staticStoreProvider) CostStore() CostStore               { return p.costs }
func (p staticStoreProvider) SyncAttemptStore() SyncAttemptStore { return p.attempts }
func (p staticStoreProvider) ProfileStore() ProfileStore         { return p.profiles }

func TestNewService_DefaultDependencies(t *testing.T) {
	harness, err := newTestHarness()
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	deps := harness.service.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil {
		t.Fatalf("expected default config provider")
	}
	if deps.OptionsResolver == nil {
		t.Fatalf("expected default options resolver")
	}
	if deps.InstanceLocker == nil {
		t.Fatalf("expected default instance locker")
	}
	if deps.Vault == nil {
		t.Fatalf("expected vault built from credential store and secret provider")
	}
	cfg := harness.service.Config()
	if cfg.ServiceName != "costhook" {
		t.Fatalf("expected default service_name=costhook, got %q", cfg.ServiceName)
	}
	if cfg.Sync.Interval != time.Hour || cfg.Sync.MaxAttempts != 5 || cfg.Sync.Concurrency != 4 {
		t.Fatalf("expected sync defaults, got %#v", cfg.Sync)
	}
}

func TestNewService_RequiresStores(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatalf("expected error without provider store")
	}
	providers := newMemoryProviderStore()
	_, err := NewService(Config{},
		WithProviderStore(providers),
		WithCostStore(newMemoryCostStore(providers)),
	)
	if err == nil {
		t.Fatalf("expected error without vault or secret provider")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	providers := newMemoryProviderStore()
	stores := staticStoreProvider{
		providers: providers,
		creds:     newMemoryCredentialStore(),
		costs:     newMemoryCostStore(providers),
		attempts:  &memorySyncAttemptStore{},
		profiles:  newMemoryProfileStore(),
	}
	configProvider := &fixedConfigProvider{cfg: DefaultConfig()}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	locker := NewMemoryInstanceLocker()

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorMapper(customMapper),
		WithSecretProvider(testSecretProvider{}),
		WithPersistenceClient(persistenceClient),
		WithRepositoryFactory(stores),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithInstanceLocker(locker),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("costhook.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if deps.ProviderStore != providers {
		t.Fatalf("expected provider store from repository factory")
	}
	if deps.ProfileStore == nil || deps.SyncAttemptStore == nil || deps.CostStore == nil {
		t.Fatalf("expected every store resolved from repository factory")
	}
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider override")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver override")
	}
	if deps.InstanceLocker != locker {
		t.Fatalf("expected custom instance locker override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	mapped := svc.mapError(errors.New("boom"))
	var rich *goerrors.Error
	if !goerrors.As(mapped, &rich) || rich.Message != "mapped" {
		t.Fatalf("expected custom error mapper to be used, got %v", mapped)
	}
}

func TestGoOptionsResolver_LayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"sync": map[string]any{
			"max_attempts": 3,
			"concurrency":  8,
		},
	}})

	runtime := Config{ServiceName: "from-runtime"}
	runtime.Sync.Concurrency = 2
	defaults := DefaultConfig()
	loaded, err := provider.Load(context.Background(), defaults)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Sync.MaxAttempts != 3 {
		t.Fatalf("expected config layer max_attempts=3, got %d", cfg.Sync.MaxAttempts)
	}
	if cfg.Sync.Concurrency != 2 {
		t.Fatalf("expected runtime concurrency=2, got %d", cfg.Sync.Concurrency)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Fatalf("expected default interval to survive, got %s", cfg.Sync.Interval)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	cfg.Sync.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max_attempts validation error")
	}
	cfg = DefaultConfig()
	cfg.RateLimit.RequestsPerSecond = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected rate limit validation error")
	}
}

func TestSyncConfig_EffectiveMaxBackoffCapsAtInterval(t *testing.T) {
	cfg := DefaultConfig().Sync
	if got := cfg.EffectiveMaxBackoff(); got != time.Hour {
		t.Fatalf("expected cap at interval, got %s", got)
	}
	cfg.MaxBackoff = 10 * time.Minute
	if got := cfg.EffectiveMaxBackoff(); got != 10*time.Minute {
		t.Fatalf("expected explicit max backoff, got %s", got)
	}
	cfg.MaxBackoff = 3 * time.Hour
	if got := cfg.EffectiveMaxBackoff(); got != time.Hour {
		t.Fatalf("expected max backoff above interval to be capped, got %s", got)
	}
}
