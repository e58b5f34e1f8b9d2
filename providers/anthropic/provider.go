package anthropic

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
	ProviderType   = core.ProviderTypeAnthropic
	BaseURL        = "https://api.anthropic.com"
	APIVersion     = "2023-06-01"
	costReportPath = "/v1/organizations/cost_report"
	// amounts in the cost report are decimal strings in cents
	amountExponent = 2
)

type Config struct {
	BaseURL    string
	APIVersion string
	Lookback   time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    BaseURL,
		APIVersion: APIVersion,
		Lookback:   90 * 24 * time.Hour,
	}
}

type Adapter struct {
	cfg    Config
	client *providers.Client
}

func New(cfg Config, client *providers.Client) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("anthropic: client is required")
	}
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = defaults.APIVersion
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
	if bundle.Get("api_key") == "" {
		return core.NewAuthExpiredError(ProviderType, "api_key is missing")
	}
	return nil
}

type costResult struct {
	Currency    string            `json:"currency"`
	Amount      providers.Decimal `json:"amount"`
	Description *string           `json:"description"`
	Model       *string           `json:"model"`
	CostType    *string           `json:"cost_type"`
	WorkspaceID *string           `json:"workspace_id"`
}

type costReportPage struct {
	Data []struct {
		StartingAt time.Time    `json:"starting_at"`
		EndingAt   time.Time    `json:"ending_at"`
		Results    []costResult `json:"results"`
	} `json:"data"`
	HasMore  bool    `json:"has_more"`
	NextPage *string `json:"next_page"`
}

func (a *Adapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, since *time.Time) ([]core.UsageEntry, error) {
	start, end := providers.FetchWindow(since, a.cfg.Lookback, a.client.Now())
	headers := map[string]string{
		"x-api-key":         bundle.Get("api_key"),
		"anthropic-version": a.cfg.APIVersion,
	}

	rollup := providers.NewRollup()
	err := a.client.Paginate(ctx, ProviderType, func(ctx context.Context, cursor string) (string, error) {
		var page costReportPage
		err := a.client.GetJSON(ctx, ProviderType, transport.Request{
			URL:     a.cfg.BaseURL + costReportPath,
			Headers: headers,
			Query: map[string]string{
				"starting_at":  start.Format(time.RFC3339),
				"ending_at":    providers.DayStart(end).AddDate(0, 0, 1).Format(time.RFC3339),
				"bucket_width": "1d",
				"group_by[]":   "description",
				"page":         cursor,
			},
		}, &page)
		if err != nil {
			return "", err
		}
		for _, bucket := range page.Data {
			period := core.Period{Start: bucket.StartingAt.UTC(), End: bucket.EndingAt.UTC()}
			for _, result := range bucket.Results {
				amount, err := core.ParseMinorUnits(result.Amount.String(), amountExponent)
				if err != nil {
					return "", core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, "invalid cost amount", err)
				}
				metadata := map[string]any{}
				if result.Model != nil && *result.Model != "" {
					metadata["model"] = *result.Model
				}
				if result.WorkspaceID != nil && *result.WorkspaceID != "" {
					metadata["workspace_id"] = *result.WorkspaceID
				}
				rollup.Add(serviceLabel(result), period, result.Currency, amount, metadata)
			}
		}
		if !page.HasMore || page.NextPage == nil {
			return "", nil
		}
		return *page.NextPage, nil
	})
	if err != nil {
		return nil, err
	}
	return rollup.Entries(), nil
}

func serviceLabel(result costResult) string {
	for _, candidate := range []*string{result.Description, result.Model, result.CostType} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return *candidate
		}
	}
	return ""
}

var _ core.ProviderAdapter = (*Adapter)(nil)
