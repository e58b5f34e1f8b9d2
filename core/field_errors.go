package core

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// FieldErrors collects per-field failures so a message reports every
// invalid field in one validation error.
type FieldErrors struct {
	scope  string
	fields []goerrors.FieldError
}

func NewFieldErrors(scope string) *FieldErrors {
	return &FieldErrors{scope: scope}
}

// Require records field when value is blank.
func (f *FieldErrors) Require(field, value string) *FieldErrors {
	return f.Check(strings.TrimSpace(value) != "", field, field+" is required")
}

// Check records message against field when ok is false.
func (f *FieldErrors) Check(ok bool, field, message string) *FieldErrors {
	if !ok {
		f.fields = append(f.fields, goerrors.FieldError{Field: field, Message: message})
	}
	return f
}

func (f *FieldErrors) Empty() bool {
	return len(f.fields) == 0
}

// Err returns nil when nothing was recorded. Fields keep the order they were
// checked in.
func (f *FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	scope := f.scope
	if scope == "" {
		scope = "costhook"
	}
	return NewValidationError(scope+": validation failed", f.fields...)
}

// NewDependencyError reports a handler that was built without a required
// collaborator.
func NewDependencyError(message string) error {
	return newServiceError(message, goerrors.CategoryInternal, ServiceErrorInternal)
}
