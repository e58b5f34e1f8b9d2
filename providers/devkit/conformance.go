package devkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
)

// AdapterBuilder constructs the adapter under test against baseURL.
type AdapterBuilder func(baseURL string, client *providers.Client) (core.ProviderAdapter, error)

type StatusCase struct {
	Status     int
	RetryAfter string
	Want       core.AdapterErrorKind
}

func DefaultStatusCases() []StatusCase {
	return []StatusCase{
		{Status: http.StatusUnauthorized, Want: core.AdapterErrorAuthExpired},
		{Status: http.StatusForbidden, Want: core.AdapterErrorAuthExpired},
		{Status: http.StatusTooManyRequests, RetryAfter: "9", Want: core.AdapterErrorRateLimited},
		{Status: http.StatusInternalServerError, Want: core.AdapterErrorTransient},
		{Status: http.StatusServiceUnavailable, Want: core.AdapterErrorTransient},
		{Status: http.StatusNotFound, Want: core.AdapterErrorUnsupported},
	}
}

// ValidateAdapterConformance checks the shared contract every vendor adapter
// must honour: identity, credential shape checks, and the mapping of vendor
// HTTP statuses onto adapter error kinds.
func ValidateAdapterConformance(ctx context.Context, build AdapterBuilder, validBundle core.CredentialBundle) error {
	if build == nil {
		return fmt.Errorf("devkit: adapter builder is required")
	}
	probe, err := build("http://127.0.0.1:0", providers.NewClient())
	if err != nil {
		return fmt.Errorf("devkit: build adapter: %w", err)
	}
	if !probe.Type().Valid() {
		return fmt.Errorf("devkit: adapter type %q is not a known provider type", probe.Type())
	}
	if probe.MaxLookback() <= 0 {
		return fmt.Errorf("devkit: adapter lookback must be positive")
	}
	if err := probe.ValidateCredentials(ctx, validBundle); err != nil {
		return fmt.Errorf("devkit: valid bundle rejected: %w", err)
	}
	if err := expectKind(probe.ValidateCredentials(ctx, core.CredentialBundle{}), core.AdapterErrorAuthExpired); err != nil {
		return fmt.Errorf("devkit: empty bundle: %w", err)
	}

	for _, tc := range DefaultStatusCases() {
		if err := runStatusCase(ctx, build, validBundle, tc); err != nil {
			return fmt.Errorf("devkit: status %d: %w", tc.Status, err)
		}
	}
	return nil
}

func runStatusCase(ctx context.Context, build AdapterBuilder, bundle core.CredentialBundle, tc StatusCase) error {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if tc.RetryAfter != "" {
			w.Header().Set("Retry-After", tc.RetryAfter)
		}
		w.WriteHeader(tc.Status)
		_, _ = w.Write([]byte(`{"error":{"message":"scripted failure"}}`))
	}))
	defer server.Close()

	adapter, err := build(server.URL, providers.NewClient(providers.WithHTTPClient(server.Client())))
	if err != nil {
		return err
	}
	_, fetchErr := adapter.FetchUsage(ctx, bundle, nil)
	if err := expectKind(fetchErr, tc.Want); err != nil {
		return err
	}
	if tc.Want == core.AdapterErrorRateLimited && tc.RetryAfter != "" {
		var adapterErr *core.AdapterError
		errors.As(fetchErr, &adapterErr)
		if adapterErr.RetryAfter <= 0 || adapterErr.RetryAfter > time.Hour {
			return fmt.Errorf("expected retry after to be propagated, got %s", adapterErr.RetryAfter)
		}
	}
	return nil
}

func expectKind(err error, want core.AdapterErrorKind) error {
	var adapterErr *core.AdapterError
	if !errors.As(err, &adapterErr) {
		return fmt.Errorf("expected %s adapter error, got %v", want, err)
	}
	if adapterErr.Kind != want {
		return fmt.Errorf("expected %s, got %s", want, adapterErr.Kind)
	}
	return nil
}
