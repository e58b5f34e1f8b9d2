package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-costhook/core"
	goerrors "github.com/goliatone/go-errors"
)

type errorBody struct {
	Detail string                    `json:"detail"`
	Code   string                    `json:"code"`
	Fields goerrors.ValidationErrors `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.MapError(goerrors.New("internal error", goerrors.CategoryInternal))
	}
	status := mapped.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	body := errorBody{
		Detail: mapped.Message,
		Code:   mapped.TextCode,
	}
	if fields := mapped.AllValidationErrors(); len(fields) > 0 {
		body.Fields = fields
	}
	if status == http.StatusInternalServerError {
		body.Detail = "Internal server error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func unauthorized(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ServiceErrorUnauthorized)
}

func badRequest(message string) error {
	return core.NewBadInputError(message)
}

func missingDependency(name string) error {
	return goerrors.New("httpapi: "+name+" is required", goerrors.CategoryInternal).
		WithTextCode(core.ServiceErrorInternal)
}
