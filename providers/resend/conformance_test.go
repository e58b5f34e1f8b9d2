package resend

import (
	"context"
	"testing"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/providers/devkit"
)

func TestAdapterConformance(t *testing.T) {
	build := func(baseURL string, client *providers.Client) (core.ProviderAdapter, error) {
		return New(Config{BaseURL: baseURL}, client)
	}
	if err := devkit.ValidateAdapterConformance(context.Background(), build, core.CredentialBundle{"api_key": "re_1"}); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}
