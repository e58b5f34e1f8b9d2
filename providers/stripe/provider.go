package stripe

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
	ProviderType            = core.ProviderTypeStripe
	BaseURL                 = "https://api.stripe.com"
	balanceTransactionsPath = "/v1/balance_transactions"
	pageLimit               = 100
)

// zeroDecimal lists currencies whose Stripe amounts carry no minor unit.
var zeroDecimal = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

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
		return nil, fmt.Errorf("stripe: client is required")
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

// ValidateCredentials accepts secret (sk_) and restricted (rk_) keys only;
// publishable keys cannot read balance transactions.
func (*Adapter) ValidateCredentials(_ context.Context, bundle core.CredentialBundle) error {
	key := bundle.Get("api_key")
	if key == "" {
		return core.NewAuthExpiredError(ProviderType, "api_key is missing")
	}
	if !strings.HasPrefix(key, "sk_") && !strings.HasPrefix(key, "rk_") {
		return core.NewAuthExpiredError(ProviderType, "api_key must be a secret or restricted key")
	}
	return nil
}

type feeDetail struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type balanceTransaction struct {
	ID         string      `json:"id"`
	Created    int64       `json:"created"`
	Currency   string      `json:"currency"`
	Fee        int64       `json:"fee"`
	FeeDetails []feeDetail `json:"fee_details"`
	Type       string      `json:"type"`
}

type listPage struct {
	Data    []balanceTransaction `json:"data"`
	HasMore bool                 `json:"has_more"`
}

// FetchUsage rolls Stripe fees up per fee type per UTC day. Individual
// transactions never leave the adapter.
func (a *Adapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, since *time.Time) ([]core.UsageEntry, error) {
	start, _ := providers.FetchWindow(since, a.cfg.Lookback, a.client.Now())
	headers := map[string]string{"Authorization": "Bearer " + bundle.Get("api_key")}

	type dailyFee struct {
		service  string
		period   core.Period
		currency string
		minor    int64
		count    int
	}
	fees := map[string]*dailyFee{}
	order := make([]string, 0)

	err := a.client.Paginate(ctx, ProviderType, func(ctx context.Context, cursor string) (string, error) {
		var page listPage
		err := a.client.GetJSON(ctx, ProviderType, transport.Request{
			URL:     a.cfg.BaseURL + balanceTransactionsPath,
			Headers: headers,
			Query: map[string]string{
				"created[gte]":   strconv.FormatInt(start.Unix(), 10),
				"limit":          strconv.Itoa(pageLimit),
				"starting_after": cursor,
			},
		}, &page)
		if err != nil {
			return "", err
		}
		for _, txn := range page.Data {
			period := providers.DayPeriod(time.Unix(txn.Created, 0))
			details := txn.FeeDetails
			if len(details) == 0 && txn.Fee != 0 {
				details = []feeDetail{{Amount: txn.Fee, Currency: txn.Currency, Type: "stripe_fee"}}
			}
			for _, detail := range details {
				service := strings.TrimSpace(detail.Type)
				if service == "" {
					service = "stripe_fee"
				}
				currency := strings.ToLower(strings.TrimSpace(detail.Currency))
				if currency == "" {
					currency = strings.ToLower(txn.Currency)
				}
				key := fmt.Sprintf("%s|%s|%d", service, currency, period.Start.Unix())
				fee, ok := fees[key]
				if !ok {
					fee = &dailyFee{service: service, period: period, currency: currency}
					fees[key] = fee
					order = append(order, key)
				}
				fee.minor += detail.Amount
				fee.count++
			}
		}
		if !page.HasMore || len(page.Data) == 0 {
			return "", nil
		}
		return page.Data[len(page.Data)-1].ID, nil
	})
	if err != nil {
		return nil, err
	}

	rollup := providers.NewRollup()
	for _, key := range order {
		fee := fees[key]
		metadata := map[string]any{"transactions": fee.count}
		minor := fee.minor
		// Fee refunds can outweigh a quiet day; net negatives are floored.
		if minor < 0 {
			metadata["net_refund_minor"] = -minor
			minor = 0
		}
		amount, err := core.AmountFromMinorUnits(minor, exponentFor(fee.currency))
		if err != nil {
			return nil, core.NewAdapterError(core.AdapterErrorUnsupported, ProviderType, "invalid fee amount", err)
		}
		rollup.Add(fee.service, fee.period, fee.currency, amount, metadata)
	}
	return rollup.Entries(), nil
}

func exponentFor(currency string) int {
	if _, ok := zeroDecimal[strings.ToLower(currency)]; ok {
		return 0
	}
	return 2
}

var _ core.ProviderAdapter = (*Adapter)(nil)
