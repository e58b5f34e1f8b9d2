package core

import (
	"fmt"
	"strings"
	"time"
)

type SyncConfig struct {
	Interval       time.Duration `koanf:"interval" mapstructure:"interval"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	// MaxBackoff of zero caps retries at Interval.
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	Concurrency    int           `koanf:"concurrency" mapstructure:"concurrency"`
	AdapterTimeout time.Duration `koanf:"adapter_timeout" mapstructure:"adapter_timeout"`
	TickInterval   time.Duration `koanf:"tick_interval" mapstructure:"tick_interval"`
	// Overlap is subtracted from last_sync_at when computing the fetch window.
	Overlap time.Duration `koanf:"overlap" mapstructure:"overlap"`
	LockTTL time.Duration `koanf:"lock_ttl" mapstructure:"lock_ttl"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `koanf:"burst" mapstructure:"burst"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Sync        SyncConfig      `koanf:"sync" mapstructure:"sync"`
	RateLimit   RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "costhook",
		Sync: SyncConfig{
			Interval:       time.Hour,
			InitialBackoff: time.Minute,
			MaxAttempts:    5,
			Concurrency:    4,
			AdapterTimeout: 30 * time.Second,
			TickInterval:   30 * time.Second,
			Overlap:        48 * time.Hour,
			LockTTL:        10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("core: sync.interval must be positive")
	}
	if c.Sync.InitialBackoff <= 0 {
		return fmt.Errorf("core: sync.initial_backoff must be positive")
	}
	if c.Sync.MaxBackoff < 0 {
		return fmt.Errorf("core: sync.max_backoff must not be negative")
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("core: sync.max_attempts must be at least 1")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("core: sync.concurrency must be at least 1")
	}
	if c.Sync.AdapterTimeout <= 0 {
		return fmt.Errorf("core: sync.adapter_timeout must be positive")
	}
	if c.Sync.TickInterval <= 0 {
		return fmt.Errorf("core: sync.tick_interval must be positive")
	}
	if c.Sync.Overlap < 0 {
		return fmt.Errorf("core: sync.overlap must not be negative")
	}
	if c.Sync.LockTTL <= 0 {
		return fmt.Errorf("core: sync.lock_ttl must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("core: rate_limit.requests_per_second must be positive")
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("core: rate_limit.burst must be at least 1")
	}
	return nil
}

func (c SyncConfig) EffectiveMaxBackoff() time.Duration {
	if c.MaxBackoff <= 0 || c.MaxBackoff > c.Interval {
		return c.Interval
	}
	return c.MaxBackoff
}
