package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type AdapterErrorKind string

const (
	AdapterErrorAuthExpired AdapterErrorKind = "auth_expired"
	AdapterErrorRateLimited AdapterErrorKind = "rate_limited"
	AdapterErrorTransient   AdapterErrorKind = "transient"
	AdapterErrorUnsupported AdapterErrorKind = "unsupported"
	// AdapterErrorValidation marks stored credentials that no longer satisfy
	// the provider schema or cannot be read back.
	AdapterErrorValidation AdapterErrorKind = "validation"
)

// Terminal kinds are never retried automatically.
func (k AdapterErrorKind) Terminal() bool {
	switch k {
	case AdapterErrorAuthExpired, AdapterErrorUnsupported, AdapterErrorValidation:
		return true
	default:
		return false
	}
}

func (k AdapterErrorKind) Retryable() bool {
	return k == AdapterErrorRateLimited || k == AdapterErrorTransient
}

type AdapterError struct {
	Kind       AdapterErrorKind
	Provider   ProviderType
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func NewAdapterError(kind AdapterErrorKind, provider ProviderType, message string, err error) *AdapterError {
	return &AdapterError{
		Kind:     kind,
		Provider: provider,
		Message:  strings.TrimSpace(message),
		Err:      err,
	}
}

func NewAuthExpiredError(provider ProviderType, message string) *AdapterError {
	return NewAdapterError(AdapterErrorAuthExpired, provider, message, nil)
}

func NewRateLimitedError(provider ProviderType, message string, retryAfter time.Duration) *AdapterError {
	err := NewAdapterError(AdapterErrorRateLimited, provider, message, nil)
	err.RetryAfter = retryAfter
	return err
}

func NewTransientError(provider ProviderType, message string, cause error) *AdapterError {
	return NewAdapterError(AdapterErrorTransient, provider, message, cause)
}

func NewUnsupportedError(provider ProviderType, message string) *AdapterError {
	return NewAdapterError(AdapterErrorUnsupported, provider, message, nil)
}

func (e *AdapterError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if e.Provider != "" {
		parts = append(parts, string(e.Provider))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else {
		parts = append(parts, string(e.Kind))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *AdapterError) WithStatusCode(code int) *AdapterError {
	if e != nil {
		e.StatusCode = code
	}
	return e
}

// Summary is the short, user-facing cause stored in last_error.
func (e *AdapterError) Summary() string {
	if e == nil {
		return ""
	}
	prefix := ""
	switch e.Kind {
	case AdapterErrorAuthExpired:
		prefix = "authentication failed"
	case AdapterErrorRateLimited:
		prefix = "rate limited by provider"
	case AdapterErrorTransient:
		prefix = "provider temporarily unavailable"
	case AdapterErrorUnsupported:
		prefix = "not supported"
	case AdapterErrorValidation:
		prefix = "invalid credentials"
	default:
		prefix = "sync failed"
	}
	detail := strings.TrimSpace(e.Message)
	if detail == "" {
		return prefix
	}
	if e.StatusCode > 0 {
		detail = fmt.Sprintf("%s (HTTP %d)", detail, e.StatusCode)
	}
	return prefix + ": " + detail
}

func (e *AdapterError) ToServiceError() *goerrors.Error {
	if e == nil {
		return nil
	}
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	textCode := ServiceErrorExternalFailure
	switch e.Kind {
	case AdapterErrorAuthExpired:
		textCode = ServiceErrorAuthExpired
	case AdapterErrorRateLimited:
		category = goerrors.CategoryRateLimit
		code = http.StatusTooManyRequests
		textCode = ServiceErrorRateLimited
	case AdapterErrorUnsupported:
		category = goerrors.CategoryOperation
		code = http.StatusUnprocessableEntity
		textCode = ServiceErrorUnsupported
	case AdapterErrorValidation:
		category = goerrors.CategoryValidation
		code = http.StatusBadRequest
		textCode = ServiceErrorBadInput
	}
	metadata := map[string]any{
		"provider_type": string(e.Provider),
		"error_kind":    string(e.Kind),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	if e.StatusCode > 0 {
		metadata["status_code"] = e.StatusCode
	}
	return goerrors.New(e.Summary(), category).
		WithCode(code).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

// ClassifyAdapterError folds any sync failure into the adapter taxonomy.
// Deadline overruns are transient; go-errors categories map onto the closest
// kind. Cancellation is not classified and yields nil.
func ClassifyAdapterError(provider ProviderType, err error) *AdapterError {
	if err == nil {
		return nil
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Provider == "" {
			adapterErr.Provider = provider
		}
		return adapterErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSyncCancelled) {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransientError(provider, "provider call timed out", err)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			return NewAdapterError(AdapterErrorAuthExpired, provider, richErr.Message, err)
		case goerrors.CategoryRateLimit:
			return NewAdapterError(AdapterErrorRateLimited, provider, richErr.Message, err)
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return NewAdapterError(AdapterErrorValidation, provider, richErr.Message, err)
		case goerrors.CategoryOperation:
			return NewAdapterError(AdapterErrorUnsupported, provider, richErr.Message, err)
		}
	}
	return NewTransientError(provider, "sync failed", err)
}
