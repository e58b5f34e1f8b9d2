package openai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/transport"
)

const (
	ProviderType = core.ProviderTypeOpenAI
	BaseURL      = "https://api.openai.com"
	costsPath    = "/v1/organization/costs"
	pageLimit    = 180
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
		return nil, fmt.Errorf("openai: client is required")
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
	if bundle.Get("api_key") == "" {
		return core.NewAuthExpiredError(ProviderType, "api_key is missing")
	}
	return nil
}

type costsPage struct {
	Data []struct {
		StartTime int64 `json:"start_time"`
		EndTime   int64 `json:"end_time"`
		Results   []struct {
			Amount struct {
				Value    providers.Decimal `json:"value"`
				Currency string            `json:"currency"`
			} `json:"amount"`
			LineItem  *string `json:"line_item"`
			ProjectID *string `json:"project_id"`
		} `json:"results"`
	} `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
}

func (a *Adapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, since *time.Time) ([]core.UsageEntry, error) {
	start, _ := providers.FetchWindow(since, a.cfg.Lookback, a.client.Now())
	headers := map[string]string{"Authorization": "Bearer " + bundle.Get("api_key")}
	if org := bundle.Get("org_id"); org != "" {
		headers["OpenAI-Organization"] = org
	}

	rollup := providers.NewRollup()
	err := a.client.Paginate(ctx, ProviderType, func(ctx context.Context, cursor string) (string, error) {
		var page costsPage
		err := a.client.GetJSON(ctx, ProviderType, transport.Request{
			URL:     a.cfg.BaseURL + costsPath,
			Headers: headers,
			Query: map[string]string{
				"start_time":   strconv.FormatInt(start.Unix(), 10),
				"bucket_width": "1d",
				"group_by":     "line_item",
				"limit":        strconv.Itoa(pageLimit),
				"page":         cursor,
			},
		}, &page)
		if err != nil {
			return "", err
		}
		for _, bucket := range page.Data {
			period := core.Period{
				Start: time.Unix(bucket.StartTime, 0).UTC(),
				End:   time.Unix(bucket.EndTime, 0).UTC(),
			}
			for _, result := range bucket.Results {
				amount, err := core.ParseAmount(result.Amount.Value.String())
				if err != nil {
					return "", core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, "invalid cost amount", err)
				}
				service := ""
				if result.LineItem != nil {
					service = *result.LineItem
				}
				rollup.Add(service, period, result.Amount.Currency, amount, map[string]any{"source": "organization.costs"})
			}
		}
		if !page.HasMore {
			return "", nil
		}
		return page.NextPage, nil
	})
	if err != nil {
		return nil, err
	}
	return rollup.Entries(), nil
}

var _ core.ProviderAdapter = (*Adapter)(nil)
