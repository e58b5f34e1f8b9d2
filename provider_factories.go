package costhook

import (
	"fmt"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/providers/anthropic"
	"github.com/goliatone/go-costhook/providers/openai"
	"github.com/goliatone/go-costhook/providers/resend"
	"github.com/goliatone/go-costhook/providers/stripe"
	"github.com/goliatone/go-costhook/providers/supabase"
	"github.com/goliatone/go-costhook/providers/vercel"
)

// BuiltinProviderConfig carries per-vendor settings. Zero values fall back
// to each vendor's DefaultConfig.
type BuiltinProviderConfig struct {
	Supabase  supabase.Config
	Vercel    vercel.Config
	Resend    resend.Config
	Stripe    stripe.Config
	OpenAI    openai.Config
	Anthropic anthropic.Config
}

func DefaultBuiltinProviderConfig() BuiltinProviderConfig {
	return BuiltinProviderConfig{
		Supabase:  supabase.DefaultConfig(),
		Vercel:    vercel.DefaultConfig(),
		Resend:    resend.DefaultConfig(),
		Stripe:    stripe.DefaultConfig(),
		OpenAI:    openai.DefaultConfig(),
		Anthropic: anthropic.DefaultConfig(),
	}
}

func SupabaseProvider(cfg supabase.Config, client *providers.Client) (core.ProviderAdapter, error) {
	return supabase.New(cfg, client)
}

func VercelProvider(cfg vercel.Config, client *providers.Client) (core.ProviderAdapter, error) {
	return vercel.New(cfg, client)
}

func ResendProvider(cfg resend.Config, client *providers.Client) (core.ProviderAdapter, error) {
	return resend.New(cfg, client)
}

func StripeProvider(cfg stripe.Config, client *providers.Client) (core.ProviderAdapter, error) {
	return stripe.New(cfg, client)
}

func OpenAIProvider(cfg openai.Config, client *providers.Client) (core.ProviderAdapter, error) {
	return openai.New(cfg, client)
}

func AnthropicProvider(cfg anthropic.Config, client *providers.Client) (core.ProviderAdapter, error) {
	return anthropic.New(cfg, client)
}

// BuiltinProviders builds one adapter per supported provider type, in
// core.ProviderTypes order, sharing client.
func BuiltinProviders(cfg BuiltinProviderConfig, client *providers.Client) ([]core.ProviderAdapter, error) {
	if client == nil {
		client = providers.NewClient()
	}
	factories := map[core.ProviderType]func() (core.ProviderAdapter, error){
		core.ProviderTypeSupabase:  func() (core.ProviderAdapter, error) { return SupabaseProvider(cfg.Supabase, client) },
		core.ProviderTypeVercel:    func() (core.ProviderAdapter, error) { return VercelProvider(cfg.Vercel, client) },
		core.ProviderTypeResend:    func() (core.ProviderAdapter, error) { return ResendProvider(cfg.Resend, client) },
		core.ProviderTypeStripe:    func() (core.ProviderAdapter, error) { return StripeProvider(cfg.Stripe, client) },
		core.ProviderTypeOpenAI:    func() (core.ProviderAdapter, error) { return OpenAIProvider(cfg.OpenAI, client) },
		core.ProviderTypeAnthropic: func() (core.ProviderAdapter, error) { return AnthropicProvider(cfg.Anthropic, client) },
	}
	out := make([]core.ProviderAdapter, 0, len(factories))
	for _, providerType := range core.ProviderTypes() {
		adapter, err := factories[providerType]()
		if err != nil {
			return nil, fmt.Errorf("costhook: build %s adapter: %w", providerType, err)
		}
		out = append(out, adapter)
	}
	return out, nil
}

// RegisterBuiltinProviders adds the builtin adapters to registry, skipping
// types that already have an adapter so extension packs can replace them.
func RegisterBuiltinProviders(registry *core.AdapterRegistry, cfg BuiltinProviderConfig, client *providers.Client) error {
	if registry == nil {
		return fmt.Errorf("costhook: adapter registry is required")
	}
	adapters, err := BuiltinProviders(cfg, client)
	if err != nil {
		return err
	}
	for _, adapter := range adapters {
		if _, exists := registry.Get(adapter.Type()); exists {
			continue
		}
		if err := registry.Register(adapter); err != nil {
			return err
		}
	}
	return nil
}
