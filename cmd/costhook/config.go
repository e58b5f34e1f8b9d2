package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"gopkg.in/yaml.v3"
)

type serverConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type databaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type retiredKeyConfig struct {
	Key     string `yaml:"key"`
	KeyID   string `yaml:"key_id"`
	Version int    `yaml:"version"`
}

type securityConfig struct {
	EncryptionKey string             `yaml:"encryption_key"`
	KeyID         string             `yaml:"key_id"`
	KeyVersion    int                `yaml:"key_version"`
	RetiredKeys   []retiredKeyConfig `yaml:"retired_keys"`
	JWTSecret     string             `yaml:"jwt_secret"`
	JWTAudience   string             `yaml:"jwt_audience"`
}

type redisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type cacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type syncFileConfig struct {
	Interval       *time.Duration `yaml:"interval"`
	InitialBackoff *time.Duration `yaml:"initial_backoff"`
	MaxBackoff     *time.Duration `yaml:"max_backoff"`
	MaxAttempts    *int           `yaml:"max_attempts"`
	Concurrency    *int           `yaml:"concurrency"`
	AdapterTimeout *time.Duration `yaml:"adapter_timeout"`
	TickInterval   *time.Duration `yaml:"tick_interval"`
	Overlap        *time.Duration `yaml:"overlap"`
	LockTTL        *time.Duration `yaml:"lock_ttl"`
}

type rateLimitFileConfig struct {
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	Burst             *int     `yaml:"burst"`
}

type serviceFileConfig struct {
	ServiceName string              `yaml:"service_name"`
	Sync        syncFileConfig      `yaml:"sync"`
	RateLimit   rateLimitFileConfig `yaml:"rate_limit"`
}

// appConfig is the on-disk configuration of the costhook binary.
type appConfig struct {
	Server   serverConfig      `yaml:"server"`
	Database databaseConfig    `yaml:"database"`
	Security securityConfig    `yaml:"security"`
	Redis    redisConfig       `yaml:"redis"`
	Cache    cacheConfig       `yaml:"cache"`
	Service  serviceFileConfig `yaml:"costhook"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Server: serverConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: databaseConfig{
			Driver: "sqlite3",
			DSN:    "file:costhook.db?cache=shared&_foreign_keys=on",
		},
		Security: securityConfig{
			KeyID:       "app-key",
			KeyVersion:  1,
			JWTAudience: "authenticated",
		},
		Redis: redisConfig{KeyPrefix: "costhook:sync:lock:"},
		Cache: cacheConfig{TTL: 5 * time.Minute},
	}
}

// loadAppConfig reads path over the defaults, then applies environment
// overrides for secrets and connection strings. An empty path skips the file.
func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return appConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return appConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *appConfig, getenv func(string) string) {
	set := func(target *string, key string) {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			*target = value
		}
	}
	set(&cfg.Server.Addr, "COSTHOOK_ADDR")
	set(&cfg.Database.Driver, "COSTHOOK_DATABASE_DRIVER")
	set(&cfg.Database.DSN, "DATABASE_URL")
	set(&cfg.Security.EncryptionKey, "COSTHOOK_ENCRYPTION_KEY")
	set(&cfg.Security.JWTSecret, "SUPABASE_JWT_SECRET")
	set(&cfg.Security.JWTSecret, "COSTHOOK_JWT_SECRET")
	set(&cfg.Redis.URL, "REDIS_URL")
}

func (c appConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	return nil
}

// validateServe checks the settings only the serve command needs.
func (c appConfig) validateServe() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if strings.TrimSpace(c.Security.EncryptionKey) == "" {
		return fmt.Errorf("security.encryption_key is required")
	}
	if strings.TrimSpace(c.Security.JWTSecret) == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	for i, retired := range c.Security.RetiredKeys {
		if strings.TrimSpace(retired.Key) == "" {
			return fmt.Errorf("security.retired_keys[%d].key is required", i)
		}
	}
	return nil
}

// serviceValues flattens the costhook section into the raw map consumed by
// the service config provider. Unset keys are omitted so defaults apply.
func (c appConfig) serviceValues() map[string]any {
	values := map[string]any{}
	if name := strings.TrimSpace(c.Service.ServiceName); name != "" {
		values["service_name"] = name
	}

	sync := map[string]any{}
	putDuration := func(key string, value *time.Duration) {
		if value != nil {
			sync[key] = *value
		}
	}
	putInt := func(target map[string]any, key string, value *int) {
		if value != nil {
			target[key] = *value
		}
	}
	putDuration("interval", c.Service.Sync.Interval)
	putDuration("initial_backoff", c.Service.Sync.InitialBackoff)
	putDuration("max_backoff", c.Service.Sync.MaxBackoff)
	putInt(sync, "max_attempts", c.Service.Sync.MaxAttempts)
	putInt(sync, "concurrency", c.Service.Sync.Concurrency)
	putDuration("adapter_timeout", c.Service.Sync.AdapterTimeout)
	putDuration("tick_interval", c.Service.Sync.TickInterval)
	putDuration("overlap", c.Service.Sync.Overlap)
	putDuration("lock_ttl", c.Service.Sync.LockTTL)
	if len(sync) > 0 {
		values["sync"] = sync
	}

	rateLimit := map[string]any{}
	if c.Service.RateLimit.RequestsPerSecond != nil {
		rateLimit["requests_per_second"] = *c.Service.RateLimit.RequestsPerSecond
	}
	putInt(rateLimit, "burst", c.Service.RateLimit.Burst)
	if len(rateLimit) > 0 {
		values["rate_limit"] = rateLimit
	}
	return values
}

func (c appConfig) configProvider() core.ConfigProvider {
	return core.NewCfgxConfigProvider(core.StaticConfigLoader(c.serviceValues()))
}
