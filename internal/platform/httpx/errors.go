// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain and access errors to HTTP responses using
// RFC7807. Access denials share one response whether the row is
// missing or merely hidden; the distinction must not leak.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions or record not found")
	case errors.Is(err, access.ErrInvalidPrincipal):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
