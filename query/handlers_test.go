package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-costhook/core"
)

func TestQueries_DelegateToReaders(t *testing.T) {
	ctx := context.Background()
	reader := &stubReader{
		providers: []core.ProviderInstance{{ID: "prov_1", UserID: "user_1", Type: core.ProviderTypeVercel}},
		attempts:  []core.SyncAttempt{{ID: "att_1", ProviderID: "prov_1", Outcome: core.SyncOutcomeSuccess}},
		costs:     []core.CostRecord{{ID: "cost_1", ProviderID: "prov_1", Amount: core.AmountFromMicros(1_500_000)}},
		profile:   core.UserProfile{AuthUserID: "user_1", Timezone: core.DefaultTimezone},
	}

	instance, err := NewGetProviderQuery(reader).Query(ctx, GetProviderMessage{UserID: "user_1", ProviderID: "prov_1"})
	if err != nil || instance.ID != "prov_1" {
		t.Fatalf("expected prov_1, got %#v (%v)", instance, err)
	}

	list, err := NewListProvidersQuery(reader).Query(ctx, ListProvidersMessage{UserID: "user_1"})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one provider, got %d (%v)", len(list), err)
	}

	attempts, err := NewListSyncAttemptsQuery(reader).Query(ctx, ListSyncAttemptsMessage{UserID: "user_1", ProviderID: "prov_1", Limit: 5})
	if err != nil || len(attempts) != 1 {
		t.Fatalf("expected one attempt, got %d (%v)", len(attempts), err)
	}
	if reader.lastLimit != 5 {
		t.Fatalf("expected limit 5 to be forwarded, got %d", reader.lastLimit)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	costs, err := NewListCostsQuery(reader).Query(ctx, ListCostsMessage{Filter: core.CostFilter{UserID: "user_1", StartDate: &start}})
	if err != nil || len(costs) != 1 {
		t.Fatalf("expected one cost, got %d (%v)", len(costs), err)
	}
	if reader.lastFilter.StartDate == nil || !reader.lastFilter.StartDate.Equal(start) {
		t.Fatalf("expected start date to be forwarded")
	}

	profile, err := NewGetProfileQuery(reader).Query(ctx, GetProfileMessage{AuthUserID: "user_1"})
	if err != nil || profile.Timezone != core.DefaultTimezone {
		t.Fatalf("unexpected profile %#v (%v)", profile, err)
	}
}

func TestMessageValidation(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)
	cases := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{"get provider", GetProviderMessage{UserID: "u", ProviderID: "p"}, false},
		{"get provider missing id", GetProviderMessage{UserID: "u"}, true},
		{"list providers missing user", ListProvidersMessage{}, true},
		{"attempts limit too large", ListSyncAttemptsMessage{UserID: "u", ProviderID: "p", Limit: 500}, true},
		{"attempts default limit", ListSyncAttemptsMessage{UserID: "u", ProviderID: "p"}, false},
		{"costs inverted range", ListCostsMessage{Filter: core.CostFilter{UserID: "u", StartDate: &start, EndDate: &end}}, true},
		{"costs unknown type", ListCostsMessage{Filter: core.CostFilter{UserID: "u", ProviderType: "aws"}}, true},
		{"costs by type", ListCostsMessage{Filter: core.CostFilter{UserID: "u", ProviderType: core.ProviderTypeOpenAI}}, false},
		{"profile missing user", GetProfileMessage{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

type stubReader struct {
	providers  []core.ProviderInstance
	attempts   []core.SyncAttempt
	costs      []core.CostRecord
	profile    core.UserProfile
	lastLimit  int
	lastFilter core.CostFilter
}

func (s *stubReader) GetProvider(_ context.Context, _ string, providerID string) (core.ProviderInstance, error) {
	for _, provider := range s.providers {
		if provider.ID == providerID {
			return provider, nil
		}
	}
	return core.ProviderInstance{}, core.ErrProviderNotFound
}

func (s *stubReader) ListProviders(context.Context, string) ([]core.ProviderInstance, error) {
	return s.providers, nil
}

func (s *stubReader) ListSyncAttempts(_ context.Context, _ string, _ string, limit int) ([]core.SyncAttempt, error) {
	s.lastLimit = limit
	return s.attempts, nil
}

func (s *stubReader) ListCosts(_ context.Context, filter core.CostFilter) ([]core.CostRecord, error) {
	s.lastFilter = filter
	return s.costs, nil
}

func (s *stubReader) GetProfile(context.Context, string) (core.UserProfile, error) {
	return s.profile, nil
}
