package providers

import (
	"cmp"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
)

// Decimal keeps a JSON number or numeric string verbatim so amounts are
// never routed through float64.
type Decimal string

func (d *Decimal) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*d = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		raw = unquoted
	}
	*d = Decimal(strings.TrimSpace(raw))
	return nil
}

func (d Decimal) String() string {
	return string(d)
}

// FetchWindow resolves the [start, end) range to request. A nil since, or one
// older than the lookback, is clamped to now minus lookback. The start is
// aligned to a UTC day so daily buckets are requested whole.
func FetchWindow(since *time.Time, lookback time.Duration, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	floor := now.Add(-lookback)
	start := floor
	if since != nil && since.After(floor) {
		start = since.UTC()
	}
	return DayStart(start), now
}

func DayStart(value time.Time) time.Time {
	value = value.UTC()
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func DayPeriod(value time.Time) core.Period {
	start := DayStart(value)
	return core.Period{Start: start, End: start.AddDate(0, 0, 1)}
}

// DefaultCurrency is the currency whose entries keep the bare service label.
const DefaultCurrency = "USD"

type rollupKey struct {
	service  string
	currency string
	start    int64
	end      int64
}

// Rollup sums usage per service, currency and period, keeping first-seen
// order so output is deterministic.
type Rollup struct {
	order []rollupKey
	items map[rollupKey]*core.UsageEntry
}

func NewRollup() *Rollup {
	return &Rollup{items: map[rollupKey]*core.UsageEntry{}}
}

func (r *Rollup) Add(service string, period core.Period, currency string, amount core.Amount, metadata map[string]any) {
	service = strings.TrimSpace(service)
	currency = cmp.Or(strings.ToUpper(strings.TrimSpace(currency)), DefaultCurrency)
	label := CurrencyLabel(service, currency)

	key := rollupKey{service: label, currency: currency, start: period.Start.Unix(), end: period.End.Unix()}
	if existing, ok := r.items[key]; ok {
		existing.Amount = existing.Amount.Add(amount)
		mergeMetadata(existing, metadata)
		return
	}
	entry := &core.UsageEntry{
		Service:  label,
		Amount:   amount,
		Currency: currency,
		Period:   period,
	}
	mergeMetadata(entry, metadata)
	r.items[key] = entry
	r.order = append(r.order, key)
}

// CurrencyLabel qualifies service with any currency other than
// DefaultCurrency. The dedup key ignores currency, so the label must not
// depend on which currencies a sync happened to see.
func CurrencyLabel(service, currency string) string {
	if currency == DefaultCurrency {
		return service
	}
	return strings.TrimSpace(service + " (" + currency + ")")
}

func (r *Rollup) Entries() []core.UsageEntry {
	out := make([]core.UsageEntry, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.items[key])
	}
	return out
}

func (r *Rollup) Len() int {
	return len(r.order)
}

func mergeMetadata(entry *core.UsageEntry, metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	for key, value := range metadata {
		entry.Metadata[key] = value
	}
}
