package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":      "trace_1",
		"request_id":    "req_1",
		"provider_id":   "prov_1",
		"access_token":  "secret-token",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"api_token": "vercel", "trace_id": "trace_nested"},
		"events":        []any{map[string]any{"api_key": "key_1"}, map[string]any{"provider_type": "stripe"}},
	})

	if redacted["trace_id"] != "trace_1" {
		t.Fatalf("expected trace_id to remain visible, got %#v", redacted["trace_id"])
	}
	if redacted["provider_id"] != "prov_1" {
		t.Fatalf("expected provider_id to remain visible, got %#v", redacted["provider_id"])
	}
	if redacted["access_token"] != RedactedValue {
		t.Fatalf("expected access_token to be redacted, got %#v", redacted["access_token"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["api_token"] != RedactedValue {
		t.Fatalf("expected nested api_token to be redacted, got %#v", nested["api_token"])
	}
	if nested["trace_id"] != "trace_nested" {
		t.Fatalf("expected nested trace_id to remain visible, got %#v", nested["trace_id"])
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected redacted event list, got %#v", redacted["events"])
	}
	if first := events[0].(map[string]any); first["api_key"] != RedactedValue {
		t.Fatalf("expected api_key inside list to be redacted, got %#v", first["api_key"])
	}
}

func TestRedactSensitiveMapMasksCredentialBundles(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"bundle": CredentialBundle{"org_id": "org_1", "team_id": "team_1"},
	})
	masked, ok := redacted["bundle"].(map[string]any)
	if !ok {
		t.Fatalf("expected bundle to be converted to a masked map, got %#v", redacted["bundle"])
	}
	if masked["org_id"] != RedactedValue || masked["team_id"] != RedactedValue {
		t.Fatalf("expected every bundle value masked, got %#v", masked)
	}
}

func TestRedactSensitiveMapMasksVendorKeyValues(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"note":      "sk_live_51HxAbCdEfGhIjKlMn",
		"model":     "claude-sonnet",
		"short":     "sk_1",
		"line_item": "sk-ant-api03-abcdefghijkl",
		"sentence":  "re_ prefix in a sentence with spaces",
	})
	if redacted["note"] != RedactedValue || redacted["line_item"] != RedactedValue {
		t.Fatalf("expected vendor key values masked, got %#v", redacted)
	}
	if redacted["model"] != "claude-sonnet" || redacted["short"] != "sk_1" {
		t.Fatalf("expected ordinary values kept, got %#v", redacted)
	}
	if redacted["sentence"] != "re_ prefix in a sentence with spaces" {
		t.Fatalf("expected prose kept, got %#v", redacted["sentence"])
	}
}
