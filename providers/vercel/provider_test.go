package vercel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
)

const chargesFixture = `{"BilledCost":0.12,"BillingCurrency":"USD","ChargePeriodStart":"2026-03-09T00:00:00.000Z","ChargePeriodEnd":"2026-03-10T00:00:00.000Z","ServiceName":"Function Invocations","ChargeCategory":"Usage"}

{"BilledCost":"19.999999","BillingCurrency":"USD","ChargePeriodStart":"2026-03-09T00:00:00.000Z","ChargePeriodEnd":"2026-03-10T00:00:00.000Z","ServiceName":"Bandwidth"}
{"BilledCost":0.08,"BillingCurrency":"USD","ChargePeriodStart":"2026-03-09T00:00:00.000Z","ChargePeriodEnd":"2026-03-10T00:00:00.000Z","ServiceName":"Function Invocations"}
`

func TestFetchUsage_ParsesFocusLines(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var team, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/billing/charges" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		team = r.URL.Query().Get("teamId")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(chargesFixture))
	}))
	defer server.Close()

	client := providers.NewClient(providers.WithHTTPClient(server.Client()), providers.WithClock(func() time.Time { return now }))
	adapter, _ := New(Config{BaseURL: server.URL}, client)
	entries, err := adapter.FetchUsage(context.Background(), core.CredentialBundle{"api_token": "tok", "team_id": "team_1"}, nil)
	if err != nil {
		t.Fatalf("fetch usage: %v", err)
	}
	if team != "team_1" || accept != "application/jsonl" {
		t.Fatalf("unexpected request team=%q accept=%q", team, accept)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Service != "Function Invocations" || entries[0].Amount.String() != "0.2" {
		t.Fatalf("unexpected rolled entry %+v", entries[0])
	}
	if entries[0].Metadata["charge_category"] != "Usage" {
		t.Fatalf("expected charge category metadata, got %v", entries[0].Metadata)
	}
	if entries[1].Amount.Micros() != 19_999_999 {
		t.Fatalf("expected exact string amount, got %s", entries[1].Amount)
	}
}

func TestFetchUsage_MalformedLineIsUnsupported(t *testing.T) {
	_, err := parseCharges([]byte("{\"BilledCost\":1}\nnot-json\n"))
	var adapterErr *core.AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Kind != core.AdapterErrorUnsupported {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestFetchUsage_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter, _ := New(Config{BaseURL: server.URL}, providers.NewClient(providers.WithHTTPClient(server.Client())))
	_, err := adapter.FetchUsage(context.Background(), core.CredentialBundle{"api_token": "tok"}, nil)
	var adapterErr *core.AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Kind != core.AdapterErrorTransient {
		t.Fatalf("expected transient, got %v", err)
	}
}
