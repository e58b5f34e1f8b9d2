package core

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ListCosts returns the caller's cost records, newest period first. A
// provider filter naming an instance the caller does not own yields an empty
// result rather than an error.
func (s *Service) ListCosts(ctx context.Context, filter CostFilter) ([]CostRecord, error) {
	filter.UserID = strings.TrimSpace(filter.UserID)
	if filter.UserID == "" {
		return nil, s.mapError(NewBadInputError("user id is required"))
	}
	filter.ProviderID = strings.TrimSpace(filter.ProviderID)
	if filter.ProviderType != "" {
		parsed, err := ParseProviderType(string(filter.ProviderType))
		if err != nil {
			return nil, s.mapError(NewValidationError("invalid cost filter", goerrors.FieldError{
				Field:   "provider_type",
				Message: "unknown provider type",
			}))
		}
		filter.ProviderType = parsed
	}
	if filter.StartDate != nil && filter.EndDate != nil && !filter.EndDate.After(*filter.StartDate) {
		return nil, s.mapError(NewValidationError("invalid cost filter", goerrors.FieldError{
			Field:   "end_date",
			Message: "must be after start_date",
		}))
	}
	records, err := s.costStore.List(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	if records == nil {
		records = []CostRecord{}
	}
	return records, nil
}
