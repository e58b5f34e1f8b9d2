package auth

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-costhook/core"
	goerrors "github.com/goliatone/go-errors"
)

// ToServiceError renders verification failures with the public messages
// clients match on.
func ToServiceError(err error) *goerrors.Error {
	message := "Invalid token"
	if errors.Is(err, ErrTokenExpired) {
		message = "Token has expired"
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ServiceErrorUnauthorized)
}
