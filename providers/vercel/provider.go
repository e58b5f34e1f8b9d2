package vercel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/transport"
)

const (
	ProviderType = core.ProviderTypeVercel
	BaseURL      = "https://api.vercel.com"
	chargesPath  = "/v1/billing/charges"
	maxLineBytes = 1 << 20
)

type Config struct {
	BaseURL  string
	Lookback time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  BaseURL,
		Lookback: 90 * 24 * time.Hour,
	}
}

type Adapter struct {
	cfg    Config
	client *providers.Client
}

func New(cfg Config, client *providers.Client) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("vercel: client is required")
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
	if bundle.Get("api_token") == "" {
		return core.NewAuthExpiredError(ProviderType, "api_token is missing")
	}
	return nil
}

// focusCharge is one FOCUS-formatted billing record.
type focusCharge struct {
	BilledCost        providers.Decimal `json:"BilledCost"`
	BillingCurrency   string            `json:"BillingCurrency"`
	ChargePeriodStart time.Time         `json:"ChargePeriodStart"`
	ChargePeriodEnd   time.Time         `json:"ChargePeriodEnd"`
	ServiceName       string            `json:"ServiceName"`
	ChargeCategory    string            `json:"ChargeCategory"`
}

func (a *Adapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, since *time.Time) ([]core.UsageEntry, error) {
	start, end := providers.FetchWindow(since, a.cfg.Lookback, a.client.Now())
	query := map[string]string{
		"from": start.Format(time.RFC3339),
		"to":   end.Format(time.RFC3339),
	}
	if team := bundle.Get("team_id"); team != "" {
		query["teamId"] = team
	}
	res, err := a.client.Do(ctx, ProviderType, transport.Request{
		URL:   a.cfg.BaseURL + chargesPath,
		Query: query,
		Headers: map[string]string{
			"Authorization": "Bearer " + bundle.Get("api_token"),
			"Accept":        "application/jsonl",
		},
	})
	if err != nil {
		return nil, err
	}
	return parseCharges(res.Body)
}

func parseCharges(body []byte) ([]core.UsageEntry, error) {
	rollup := providers.NewRollup()
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var charge focusCharge
		if err := json.Unmarshal(raw, &charge); err != nil {
			return nil, core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, fmt.Sprintf("malformed charge on line %d", line), err)
		}
		amount, err := core.ParseAmount(charge.BilledCost.String())
		if err != nil {
			return nil, core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, fmt.Sprintf("invalid amount on line %d", line), err)
		}
		period := core.Period{Start: charge.ChargePeriodStart.UTC(), End: charge.ChargePeriodEnd.UTC()}
		var metadata map[string]any
		if category := strings.TrimSpace(charge.ChargeCategory); category != "" {
			metadata = map[string]any{"charge_category": category}
		}
		rollup.Add(charge.ServiceName, period, charge.BillingCurrency, amount, metadata)
	}
	if err := scanner.Err(); err != nil {
		return nil, core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, "unreadable charges stream", err)
	}
	return rollup.Entries(), nil
}

var _ core.ProviderAdapter = (*Adapter)(nil)
