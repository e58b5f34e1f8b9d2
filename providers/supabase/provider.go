package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/transport"
)

const (
	ProviderType   = core.ProviderTypeSupabase
	BaseURL        = "https://api.supabase.com"
	amountExponent = 2
)

type Config struct {
	BaseURL  string
	Lookback time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  BaseURL,
		Lookback: 365 * 24 * time.Hour,
	}
}

type Adapter struct {
	cfg    Config
	client *providers.Client
}

func New(cfg Config, client *providers.Client) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("supabase: client is required")
	}
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaults.Lookback
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Adapter{cfg: cfg, client: client}, nil
}

func (*Adapter) Type() core.ProviderType {
	return ProviderType
}

func (a *Adapter) MaxLookback() time.Duration {
	return a.cfg.Lookback
}

func (*Adapter) ValidateCredentials(_ context.Context, bundle core.CredentialBundle) error {
	if bundle.Get("access_token") == "" {
		return core.NewAuthExpiredError(ProviderType, "access_token is missing")
	}
	if bundle.Get("org_id") == "" {
		return core.NewAuthExpiredError(ProviderType, "org_id is missing")
	}
	return nil
}

type invoice struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	Currency    string    `json:"currency"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	LineItems   []struct {
		Description string            `json:"description"`
		Amount      providers.Decimal `json:"amount"`
	} `json:"line_items"`
}

// FetchUsage emits one entry per invoice line item over the invoice period.
// Invoices ending before the window start are skipped.
func (a *Adapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, since *time.Time) ([]core.UsageEntry, error) {
	start, _ := providers.FetchWindow(since, a.cfg.Lookback, a.client.Now())
	path := "/v1/organizations/" + url.PathEscape(bundle.Get("org_id")) + "/billing/invoices"

	var invoices []invoice
	err := a.client.GetJSON(ctx, ProviderType, transport.Request{
		URL:     a.cfg.BaseURL + path,
		Headers: map[string]string{"Authorization": "Bearer " + bundle.Get("access_token")},
	}, &invoices)
	if err != nil {
		return nil, err
	}

	rollup := providers.NewRollup()
	for _, inv := range invoices {
		if !inv.PeriodEnd.After(start) {
			continue
		}
		period := core.Period{Start: inv.PeriodStart.UTC(), End: inv.PeriodEnd.UTC()}
		metadata := map[string]any{"invoice_id": inv.ID}
		if inv.Number != "" {
			metadata["invoice_number"] = inv.Number
		}
		if inv.Status != "" {
			metadata["invoice_status"] = inv.Status
		}
		for _, item := range inv.LineItems {
			amount, err := core.ParseMinorUnits(item.Amount.String(), amountExponent)
			if err != nil {
				return nil, core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, "invalid line item amount", err)
			}
			rollup.Add(item.Description, period, inv.Currency, amount, metadata)
		}
	}
	return rollup.Entries(), nil
}

var _ core.ProviderAdapter = (*Adapter)(nil)
