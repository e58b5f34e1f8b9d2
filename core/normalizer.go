package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MaxServiceLabelLength = 100
	UnspecifiedService    = "unspecified"
	DefaultCurrency       = "USD"
)

// NormalizeUsage converts adapter output into canonical cost entries for one
// instance. Timestamps are reduced to UTC seconds, labels are trimmed and
// bounded, and duplicates on the dedup key collapse to the last occurrence.
func NormalizeUsage(providerID string, entries []UsageEntry) ([]CostEntry, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider id is required", ErrInvalidUsageEntry)
	}
	out := make([]CostEntry, 0, len(entries))
	positions := make(map[CostKey]int, len(entries))
	for index, entry := range entries {
		normalized, err := normalizeUsageEntry(providerID, entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", index, err)
		}
		key := normalized.Key()
		if existing, ok := positions[key]; ok {
			out[existing] = normalized
			continue
		}
		positions[key] = len(out)
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeUsageEntry(providerID string, entry UsageEntry) (CostEntry, error) {
	if entry.Amount.IsNegative() {
		return CostEntry{}, fmt.Errorf("%w: negative amount %s", ErrInvalidUsageEntry, entry.Amount)
	}
	period := Period{
		Start: NormalizeTimestamp(entry.Period.Start),
		End:   NormalizeTimestamp(entry.Period.End),
	}
	if !period.Valid() {
		return CostEntry{}, fmt.Errorf("%w: period end must be after start", ErrInvalidUsageEntry)
	}
	currency, err := normalizeCurrency(entry.Currency)
	if err != nil {
		return CostEntry{}, err
	}
	return CostEntry{
		ProviderID: providerID,
		Service:    NormalizeServiceLabel(entry.Service),
		Amount:     entry.Amount,
		Currency:   currency,
		Period:     period,
		Metadata:   copyAnyMap(entry.Metadata),
	}, nil
}

// NormalizeServiceLabel trims, bounds to MaxServiceLabelLength runes and
// substitutes UnspecifiedService for empty labels.
func NormalizeServiceLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return UnspecifiedService
	}
	if utf8.RuneCountInString(label) > MaxServiceLabelLength {
		runes := []rune(label)
		label = strings.TrimSpace(string(runes[:MaxServiceLabelLength]))
	}
	return label
}

func NormalizeTimestamp(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC().Truncate(time.Second)
}

func normalizeCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return DefaultCurrency, nil
	}
	if len(value) != 3 {
		return "", fmt.Errorf("%w: currency %q", ErrInvalidUsageEntry, value)
	}
	for _, r := range value {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return "", fmt.Errorf("%w: currency %q", ErrInvalidUsageEntry, value)
		}
	}
	return value, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
