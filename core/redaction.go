package core

import (
	"slices"
	"strings"
)

const RedactedValue = "[REDACTED]"

// Key fragments that mark a metadata value as secret.
var sensitiveKeyTokens = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"access_key",
	"private_key",
	"credential",
	"signature",
}

// Vendor key prefixes. Metadata echoed back by a vendor can carry a key under
// an innocent name, so matching values are masked regardless of their key.
var secretValuePrefixes = []string{"sk-ant-", "sk-", "sk_", "rk_", "re_", "sbp_"}

const minSecretValueLen = 16

// RedactCredentialBundle replaces every credential value, keeping only the
// key names for diagnostics.
func RedactCredentialBundle(bundle CredentialBundle) map[string]any {
	out := make(map[string]any, len(bundle))
	for _, key := range bundle.Keys() {
		out[key] = RedactedValue
	}
	return out
}

// RedactSensitiveMap returns a deep copy of metadata with secrets masked. It
// guards both log fields and the vendor metadata persisted with cost records.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactMap(metadata)
}

func redactMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if isSensitiveKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactValue(value)
	}
	return target
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	case CredentialBundle:
		return RedactCredentialBundle(typed)
	case string:
		if looksLikeSecret(typed) {
			return RedactedValue
		}
		return typed
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	return slices.ContainsFunc(sensitiveKeyTokens, func(token string) bool {
		return strings.Contains(key, token)
	})
}

func looksLikeSecret(value string) bool {
	if len(value) < minSecretValueLen || strings.ContainsAny(value, " \t\n") {
		return false
	}
	return slices.ContainsFunc(secretValuePrefixes, func(prefix string) bool {
		return strings.HasPrefix(value, prefix)
	})
}

// Identifiers that stay visible so redacted logs remain correlatable.
func isTraceabilityKey(key string) bool {
	switch key {
	case "provider_id",
		"provider_type",
		"user_id",
		"credential_key_id",
		"idempotency_key",
		"trace_id",
		"request_id":
		return true
	default:
		return false
	}
}
