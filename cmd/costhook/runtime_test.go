package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-costhook/auth"
	"github.com/goliatone/go-costhook/httpapi"
)

func testAppConfig() appConfig {
	cfg := defaultAppConfig()
	cfg.Database.DSN = fmt.Sprintf("file:costhook-cmd-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	cfg.Security.EncryptionKey = "cmd-test-encryption-key"
	cfg.Security.JWTSecret = "cmd-test-jwt-secret-with-enough-length"
	cfg.Security.RetiredKeys = []retiredKeyConfig{{Key: "retired-key", KeyID: "old", Version: 1}}
	return cfg
}

func TestBuildRuntimeServesAuthenticatedAPI(t *testing.T) {
	ctx := context.Background()
	cfg := testAppConfig()
	logger := newSlogLogger(io.Discard, 0)
	rt, err := buildRuntime(ctx, cfg, slogProvider{root: logger}, logger)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	token, err := auth.Issue(cfg.Security.JWTSecret, "user-1", "", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, httpapi.PathPrefix+"/providers",
		strings.NewReader(`{"name":"Prod","type":"openai","credentials":{"api_key":"sk-test"}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	rt.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "sk-test") {
		t.Fatalf("expected credentials to stay out of the response")
	}
	if rt.queue.Len() != 1 {
		t.Fatalf("expected the initial sync to be queued, got %d", rt.queue.Len())
	}

	rec = httptest.NewRecorder()
	rt.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rec.Code)
	}
}
