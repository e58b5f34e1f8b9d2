package devkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-costhook/core"
)

type FetchScript struct {
	Entries []core.UsageEntry
	Err     error
	// Block, when set, holds the call until the channel closes or the
	// context ends.
	Block <-chan struct{}
}

type FetchCall struct {
	Bundle core.CredentialBundle
	Since  *time.Time
}

// FakeAdapter is a scripted core.ProviderAdapter. Calls past the last script
// repeat it.
type FakeAdapter struct {
	mu          sync.Mutex
	typ         core.ProviderType
	lookback    time.Duration
	validateErr error
	scripts     []FetchScript
	calls       []FetchCall
}

func NewFakeAdapter(providerType core.ProviderType, scripts ...FetchScript) *FakeAdapter {
	return &FakeAdapter{
		typ:      providerType,
		lookback: 30 * 24 * time.Hour,
		scripts:  append([]FetchScript(nil), scripts...),
	}
}

func (a *FakeAdapter) Type() core.ProviderType {
	return a.typ
}

func (a *FakeAdapter) MaxLookback() time.Duration {
	return a.lookback
}

func (a *FakeAdapter) SetValidateError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validateErr = err
}

func (a *FakeAdapter) Script(scripts ...FetchScript) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripts = append(a.scripts, scripts...)
}

func (a *FakeAdapter) ValidateCredentials(context.Context, core.CredentialBundle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validateErr
}

func (a *FakeAdapter) FetchUsage(ctx context.Context, bundle core.CredentialBundle, since *time.Time) ([]core.UsageEntry, error) {
	if a == nil {
		return nil, fmt.Errorf("devkit: fake adapter is nil")
	}
	a.mu.Lock()
	call := FetchCall{Bundle: bundle.Clone()}
	if since != nil {
		copied := *since
		call.Since = &copied
	}
	a.calls = append(a.calls, call)
	index := len(a.calls) - 1
	var script FetchScript
	switch {
	case index < len(a.scripts):
		script = a.scripts[index]
	case len(a.scripts) > 0:
		script = a.scripts[len(a.scripts)-1]
	}
	a.mu.Unlock()

	if script.Block != nil {
		select {
		case <-script.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if script.Err != nil {
		return nil, script.Err
	}
	return append([]core.UsageEntry(nil), script.Entries...), nil
}

func (a *FakeAdapter) Calls() []FetchCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]FetchCall(nil), a.calls...)
}

// DailyUsage builds a one-day entry in USD starting at the UTC day of day.
func DailyUsage(service string, day time.Time, micros int64) core.UsageEntry {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return core.UsageEntry{
		Service:  service,
		Amount:   core.AmountFromMicros(micros),
		Currency: "USD",
		Period:   core.Period{Start: start, End: start.AddDate(0, 0, 1)},
	}
}

var _ core.ProviderAdapter = (*FakeAdapter)(nil)
