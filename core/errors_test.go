package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := serviceErrorMapper(fmt.Errorf("lookup: %w", ErrProviderNotFound))
	if mapped.TextCode != ServiceErrorProviderNotFound {
		t.Fatalf("expected provider not found code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}
	if mapped.Message != "Provider not found" {
		t.Fatalf("expected fixed detail message, got %q", mapped.Message)
	}

	mapped = serviceErrorMapper(fmt.Errorf("%w: provider %q", ErrSyncLockHeld, "p1"))
	if mapped.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict category, got %q", mapped.Category)
	}
	if mapped.TextCode != ServiceErrorConflict {
		t.Fatalf("expected conflict code, got %q", mapped.TextCode)
	}

	mapped = serviceErrorMapper(stderrors.New("something odd"))
	if mapped.Code == 0 || mapped.TextCode == "" {
		t.Fatalf("expected fallback envelope to carry code and text code, got %+v", mapped)
	}
}

func TestServiceErrorMapper_AdapterErrors(t *testing.T) {
	cases := []struct {
		err      error
		code     int
		textCode string
	}{
		{NewAuthExpiredError(ProviderTypeStripe, "invalid key"), http.StatusBadGateway, ServiceErrorAuthExpired},
		{NewRateLimitedError(ProviderTypeOpenAI, "slow down", time.Minute), http.StatusTooManyRequests, ServiceErrorRateLimited},
		{NewUnsupportedError(ProviderTypeResend, "no billing api"), http.StatusUnprocessableEntity, ServiceErrorUnsupported},
		{NewTransientError(ProviderTypeVercel, "503", nil), http.StatusBadGateway, ServiceErrorExternalFailure},
	}
	for _, tc := range cases {
		mapped := MapError(tc.err)
		if mapped.Code != tc.code || mapped.TextCode != tc.textCode {
			t.Fatalf("expected %d/%s for %v, got %d/%s", tc.code, tc.textCode, tc.err, mapped.Code, mapped.TextCode)
		}
	}
}

func TestClassifyAdapterError(t *testing.T) {
	if got := ClassifyAdapterError(ProviderTypeOpenAI, context.DeadlineExceeded); got.Kind != AdapterErrorTransient {
		t.Fatalf("expected deadline to be transient, got %q", got.Kind)
	}
	if got := ClassifyAdapterError(ProviderTypeOpenAI, context.Canceled); got != nil {
		t.Fatalf("expected cancellation to stay unclassified, got %+v", got)
	}
	auth := goerrors.New("token rejected", goerrors.CategoryAuth)
	if got := ClassifyAdapterError(ProviderTypeOpenAI, auth); got.Kind != AdapterErrorAuthExpired {
		t.Fatalf("expected auth category to map to auth_expired, got %q", got.Kind)
	}
	wrapped := fmt.Errorf("call: %w", NewRateLimitedError("", "429", 30*time.Second))
	got := ClassifyAdapterError(ProviderTypeAnthropic, wrapped)
	if got.Kind != AdapterErrorRateLimited || got.RetryAfter != 30*time.Second {
		t.Fatalf("expected rate limited with retry-after, got %+v", got)
	}
	if got.Provider != ProviderTypeAnthropic {
		t.Fatalf("expected provider to be filled in, got %q", got.Provider)
	}
	if !AdapterErrorAuthExpired.Terminal() || AdapterErrorRateLimited.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestServiceMethods_MapErrorsToStableServiceCodes(t *testing.T) {
	harness, err := newTestHarness()
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	_, err = harness.service.GetProvider(context.Background(), "usr_1", "missing")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if richErr.TextCode != ServiceErrorProviderNotFound {
		t.Fatalf("expected provider not found code, got %q", richErr.TextCode)
	}
}
