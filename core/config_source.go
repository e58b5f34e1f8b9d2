package core

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// ConfigProvider loads the file layer of the configuration.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

// RawConfigLoader returns an undecoded configuration tree.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges defaults, the loaded file layer and the runtime
// layer, in increasing priority.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticConfigLoader map[string]any

func (l staticConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return maps.Clone(map[string]any(l)), nil
}

// StaticConfigLoader serves a fixed raw map, typically decoded from a file.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticConfigLoader(values)
}

// CfgxConfigProvider decodes a raw tree into Config with cfgx, filling gaps
// from the supplied defaults.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil || p.Loader == nil {
		return defaults, nil
	}
	raw, err := p.Loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("core: load config: %w", err)
	}
	return buildConfig(raw, defaults)
}

func buildConfig(raw map[string]any, defaults Config) (Config, error) {
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver stacks the three layers with go-options scopes.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configLayer(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), configLayer(loaded, false),
			opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), configLayer(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return buildConfig(merged.Value, defaults)
}

// configLayer flattens cfg into an options layer keyed like the YAML file.
// Zero values are left out of non-default layers so they do not mask a
// lower-priority scope.
func configLayer(cfg Config, includeZero bool) map[string]any {
	entries := []struct {
		path  string
		value any
		zero  bool
	}{
		{"service_name", cfg.ServiceName, strings.TrimSpace(cfg.ServiceName) == ""},
		{"sync.interval", cfg.Sync.Interval, cfg.Sync.Interval == 0},
		{"sync.initial_backoff", cfg.Sync.InitialBackoff, cfg.Sync.InitialBackoff == 0},
		{"sync.max_backoff", cfg.Sync.MaxBackoff, cfg.Sync.MaxBackoff == 0},
		{"sync.adapter_timeout", cfg.Sync.AdapterTimeout, cfg.Sync.AdapterTimeout == 0},
		{"sync.tick_interval", cfg.Sync.TickInterval, cfg.Sync.TickInterval == 0},
		{"sync.overlap", cfg.Sync.Overlap, cfg.Sync.Overlap == 0},
		{"sync.lock_ttl", cfg.Sync.LockTTL, cfg.Sync.LockTTL == 0},
		{"sync.max_attempts", cfg.Sync.MaxAttempts, cfg.Sync.MaxAttempts == 0},
		{"sync.concurrency", cfg.Sync.Concurrency, cfg.Sync.Concurrency == 0},
		{"rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.RequestsPerSecond == 0},
		{"rate_limit.burst", cfg.RateLimit.Burst, cfg.RateLimit.Burst == 0},
	}
	layer := map[string]any{}
	for _, entry := range entries {
		if entry.zero && !includeZero {
			continue
		}
		section, key, nested := strings.Cut(entry.path, ".")
		if !nested {
			layer[section] = entry.value
			continue
		}
		child, _ := layer[section].(map[string]any)
		if child == nil {
			child = map[string]any{}
			layer[section] = child
		}
		child[key] = entry.value
	}
	return layer
}
