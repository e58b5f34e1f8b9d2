package resend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/transport"
)

const (
	ProviderType = core.ProviderTypeResend
	BaseURL      = "https://api.resend.com"
	probePath    = "/domains"
)

type Config struct {
	BaseURL string
}

func DefaultConfig() Config {
	return Config{BaseURL: BaseURL}
}

// Adapter verifies Resend keys. Resend publishes no billing API, so a sync
// with a working key ends as Unsupported.
type Adapter struct {
	cfg    Config
	client *providers.Client
}

func New(cfg Config, client *providers.Client) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("resend: client is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Adapter{cfg: cfg, client: client}, nil
}

func (*Adapter) Type() core.ProviderType {
	return ProviderType
}

func (*Adapter) MaxLookback() time.Duration {
	return 30 * 24 * time.Hour
}

func (*Adapter) ValidateCredentials(_ context.Context, bundle core.CredentialBundle) error {
	key := bundle.Get("api_key")
	if key == "" {
		return core.NewAuthExpiredError(ProviderType, "api_key is missing")
	}
	if !strings.HasPrefix(key, "re_") {
		return core.NewAuthExpiredError(ProviderType, "api_key must start with re_")
	}
	return nil
}

func (a *Adapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, _ *time.Time) ([]core.UsageEntry, error) {
	_, err := a.client.Do(ctx, ProviderType, transport.Request{
		URL:     a.cfg.BaseURL + probePath,
		Headers: map[string]string{"Authorization": "Bearer " + bundle.Get("api_key")},
	})
	if err != nil {
		return nil, err
	}
	return nil, core.NewUnsupportedError(ProviderType, "resend does not expose billing data")
}

var _ core.ProviderAdapter = (*Adapter)(nil)
