package core

import (
	"fmt"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// CredentialBundle holds the flat string credential fields of one provider
// instance. It is never returned by any read surface.
type CredentialBundle map[string]string

// CredentialBundleFromMap converts a decoded JSON object into a bundle.
// Non-string values are rejected.
func CredentialBundleFromMap(raw map[string]any) (CredentialBundle, error) {
	if raw == nil {
		return nil, nil
	}
	bundle := make(CredentialBundle, len(raw))
	fields := make([]goerrors.FieldError, 0)
	for key, value := range raw {
		switch typed := value.(type) {
		case string:
			bundle[key] = typed
		case nil:
			bundle[key] = ""
		default:
			fields = append(fields, goerrors.FieldError{
				Field:   "credentials." + key,
				Message: "must be a string",
			})
		}
	}
	if len(fields) > 0 {
		sortFieldErrors(fields)
		return nil, NewValidationError("invalid credentials", fields...)
	}
	return bundle, nil
}

func (b CredentialBundle) Get(key string) string {
	if b == nil {
		return ""
	}
	return strings.TrimSpace(b[key])
}

func (b CredentialBundle) Clone() CredentialBundle {
	if b == nil {
		return nil
	}
	out := make(CredentialBundle, len(b))
	for key, value := range b {
		out[key] = value
	}
	return out
}

func (b CredentialBundle) Keys() []string {
	keys := make([]string, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Merge overlays patch onto b field by field. Values are trimmed.
func (b CredentialBundle) Merge(patch CredentialBundle) CredentialBundle {
	out := b.Clone()
	if out == nil {
		out = CredentialBundle{}
	}
	for key, value := range patch {
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// CredentialField describes one key of a provider credential schema.
type CredentialField struct {
	Name     string
	Required bool
	// Prefixes, when set, lists the accepted value prefixes.
	Prefixes []string
}

type CredentialSchema struct {
	Type   ProviderType
	Fields []CredentialField
}

var credentialSchemas = map[ProviderType]CredentialSchema{
	ProviderTypeSupabase: {
		Type: ProviderTypeSupabase,
		Fields: []CredentialField{
			{Name: "access_token", Required: true},
			{Name: "org_id", Required: true},
		},
	},
	ProviderTypeVercel: {
		Type: ProviderTypeVercel,
		Fields: []CredentialField{
			{Name: "api_token", Required: true},
			{Name: "team_id"},
		},
	},
	ProviderTypeResend: {
		Type: ProviderTypeResend,
		Fields: []CredentialField{
			{Name: "api_key", Required: true, Prefixes: []string{"re_"}},
		},
	},
	ProviderTypeStripe: {
		Type: ProviderTypeStripe,
		Fields: []CredentialField{
			{Name: "api_key", Required: true, Prefixes: []string{"sk_", "rk_"}},
		},
	},
	ProviderTypeOpenAI: {
		Type: ProviderTypeOpenAI,
		Fields: []CredentialField{
			{Name: "api_key", Required: true},
			{Name: "org_id"},
		},
	},
	ProviderTypeAnthropic: {
		Type: ProviderTypeAnthropic,
		Fields: []CredentialField{
			{Name: "api_key", Required: true},
		},
	},
}

func CredentialSchemaFor(providerType ProviderType) (CredentialSchema, error) {
	schema, ok := credentialSchemas[providerType]
	if !ok {
		return CredentialSchema{}, fmt.Errorf("%w: %q", ErrInvalidProviderType, providerType)
	}
	return schema, nil
}

func (s CredentialSchema) field(name string) (CredentialField, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return CredentialField{}, false
}

// Validate checks bundle against the schema. Unknown fields and empty values
// are always rejected; missing required fields only when partial is false.
func (s CredentialSchema) Validate(bundle CredentialBundle, partial bool) error {
	fields := make([]goerrors.FieldError, 0)
	for _, key := range bundle.Keys() {
		field, ok := s.field(key)
		if !ok {
			fields = append(fields, goerrors.FieldError{
				Field:   "credentials." + key,
				Message: fmt.Sprintf("unknown field for %s", s.Type),
			})
			continue
		}
		value := strings.TrimSpace(bundle[key])
		if value == "" {
			fields = append(fields, goerrors.FieldError{
				Field:   "credentials." + key,
				Message: "must not be empty",
			})
			continue
		}
		if len(field.Prefixes) > 0 && !hasAnyPrefix(value, field.Prefixes) {
			fields = append(fields, goerrors.FieldError{
				Field:   "credentials." + key,
				Message: "must start with " + strings.Join(field.Prefixes, " or "),
			})
		}
	}
	if !partial {
		for _, field := range s.Fields {
			if !field.Required {
				continue
			}
			if _, present := bundle[field.Name]; present {
				continue
			}
			fields = append(fields, goerrors.FieldError{
				Field:   "credentials." + field.Name,
				Message: "is required",
			})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sortFieldErrors(fields)
	return NewValidationError(fmt.Sprintf("invalid %s credentials", s.Type), fields...)
}

// ValidateCredentials validates a complete bundle for providerType.
func ValidateCredentials(providerType ProviderType, bundle CredentialBundle) error {
	schema, err := CredentialSchemaFor(providerType)
	if err != nil {
		return err
	}
	return schema.Validate(bundle, false)
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func sortFieldErrors(fields []goerrors.FieldError) {
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Field < fields[j].Field
	})
}
