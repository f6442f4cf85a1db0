package httpx

import (
	"errors"
	"net/http"

	"github.com/dawnmoon/charon/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Expected outcomes keep their detail; infrastructure failures and unknown
// errors are reported without internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", err.Error())
	case errors.Is(err, shared.ErrAccountDisabled):
		Problem(w, http.StatusForbidden, "Account Disabled", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrDependencyUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Dependency Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
