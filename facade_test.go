package costhook

import (
	"context"
	"fmt"
	"testing"

	costcommand "github.com/goliatone/go-costhook/command"
	"github.com/goliatone/go-costhook/core"
	costquery "github.com/goliatone/go-costhook/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.CreateProvider == nil || commands.RequestSync == nil || commands.UpdateProfile == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.ListCosts == nil || queries.ListSyncAttempts == nil || queries.GetProfile == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil service to be rejected")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().DeleteProvider.Execute(context.Background(), costcommand.DeleteProviderMessage{
		Input: core.DeleteProviderInput{UserID: "user_1", ProviderID: "prov_1", Purge: true},
	}); err != nil {
		t.Fatalf("execute delete command: %v", err)
	}
	if svc.lastDelete.ProviderID != "prov_1" || !svc.lastDelete.Purge {
		t.Fatalf("unexpected delete delegation payload: %#v", svc.lastDelete)
	}

	costs, err := facade.Queries().ListCosts.Query(context.Background(), costquery.ListCostsMessage{
		Filter: core.CostFilter{UserID: "user_1", ProviderType: core.ProviderTypeAnthropic},
	})
	if err != nil {
		t.Fatalf("query costs: %v", err)
	}
	if len(costs) != 1 || costs[0].ProviderType != core.ProviderTypeAnthropic {
		t.Fatalf("unexpected cost query result: %#v", costs)
	}
}

func TestFacade_BuildsExtensionBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("reports", func(service core.CostService) (any, error) {
		return costquery.NewListCostsQuery(service), nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}

	facade, err := NewFacade(&stubFacadeService{}, WithExtensionHooks(hooks))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	bundle, ok := facade.Bundle("reports")
	if !ok {
		t.Fatalf("expected reports bundle")
	}
	if _, ok := bundle.(*costquery.ListCostsQuery); !ok {
		t.Fatalf("expected list costs query bundle, got %T", bundle)
	}

	failing := NewExtensionHooks()
	_ = failing.RegisterCommandQueryBundle("broken", func(core.CostService) (any, error) {
		return nil, fmt.Errorf("boom")
	})
	if _, err := NewFacade(&stubFacadeService{}, WithExtensionHooks(failing)); err == nil {
		t.Fatalf("expected bundle factory error to fail facade construction")
	}
}

type stubFacadeService struct {
	lastDelete core.DeleteProviderInput
}

func (s *stubFacadeService) CreateProvider(context.Context, core.CreateProviderInput) (core.ProviderInstance, error) {
	return core.ProviderInstance{}, nil
}

func (s *stubFacadeService) GetProvider(context.Context, string, string) (core.ProviderInstance, error) {
	return core.ProviderInstance{}, nil
}

func (s *stubFacadeService) ListProviders(context.Context, string) ([]core.ProviderInstance, error) {
	return nil, nil
}

func (s *stubFacadeService) UpdateProvider(context.Context, core.UpdateProviderInput) (core.ProviderInstance, error) {
	return core.ProviderInstance{}, nil
}

func (s *stubFacadeService) DeleteProvider(_ context.Context, in core.DeleteProviderInput) error {
	s.lastDelete = in
	return nil
}

func (s *stubFacadeService) RequestSync(context.Context, string, string) (core.ProviderInstance, error) {
	return core.ProviderInstance{}, nil
}

func (s *stubFacadeService) ListSyncAttempts(context.Context, string, string, int) ([]core.SyncAttempt, error) {
	return nil, nil
}

func (s *stubFacadeService) ListCosts(_ context.Context, filter core.CostFilter) ([]core.CostRecord, error) {
	return []core.CostRecord{{ID: "cost_1", ProviderType: filter.ProviderType}}, nil
}

func (s *stubFacadeService) GetProfile(context.Context, string) (core.UserProfile, error) {
	return core.UserProfile{}, nil
}

func (s *stubFacadeService) UpdateProfile(context.Context, core.UpdateProfileInput) (core.UserProfile, error) {
	return core.UserProfile{}, nil
}
