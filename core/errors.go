package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput         = "COSTHOOK_BAD_INPUT"
	ServiceErrorProviderNotFound = "COSTHOOK_PROVIDER_NOT_FOUND"
	ServiceErrorNotFound         = "COSTHOOK_NOT_FOUND"
	ServiceErrorUnauthorized     = "COSTHOOK_UNAUTHORIZED"
	ServiceErrorForbidden        = "COSTHOOK_FORBIDDEN"
	ServiceErrorConflict         = "COSTHOOK_CONFLICT"
	ServiceErrorAuthExpired      = "COSTHOOK_AUTH_EXPIRED"
	ServiceErrorRateLimited      = "COSTHOOK_RATE_LIMITED"
	ServiceErrorUnsupported      = "COSTHOOK_UNSUPPORTED"
	ServiceErrorSyncFailed       = "COSTHOOK_SYNC_FAILED"
	ServiceErrorExternalFailure  = "COSTHOOK_EXTERNAL_FAILURE"
	ServiceErrorInternal         = "COSTHOOK_INTERNAL_ERROR"
)

// MapError converts any error into a go-errors envelope carrying an HTTP
// status code and a stable text code.
func MapError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}

// NewValidationError builds a validation envelope with per-field details.
func NewValidationError(message string, fields ...goerrors.FieldError) error {
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewBadInputError(message string) error {
	return newServiceError(message, goerrors.CategoryBadInput, ServiceErrorBadInput)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.ToServiceError()
	}

	switch {
	case errors.Is(err, ErrProviderNotFound):
		return newServiceError("Provider not found", goerrors.CategoryNotFound, ServiceErrorProviderNotFound)
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrCredentialsNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	case errors.Is(err, ErrInvalidProviderType),
		errors.Is(err, ErrProviderTypeImmutable),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidUsageEntry):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	case errors.Is(err, ErrInvalidProviderStatusTransition),
		errors.Is(err, ErrSyncLockHeld),
		errors.Is(err, ErrSyncCancelled):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ServiceErrorConflict)
	case errors.Is(err, context.DeadlineExceeded):
		return ensureServiceErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryExternal, "operation timed out").
				WithCode(http.StatusGatewayTimeout).
				WithTextCode(ServiceErrorExternalFailure),
		)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	case strings.Contains(msg, "lock already held"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ServiceErrorConflict)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorForbidden
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryOperation:
		return ServiceErrorSyncFailed
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
