package http

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	// A PermissionError also reports as a validation error, so it goes first.
	var permErr *domain.PermissionError
	if errors.As(err, &permErr) {
		return huma.Error403Forbidden(permErr.Error())
	}

	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}

	if errors.Is(err, domain.ErrConflict) {
		return huma.Error409Conflict(err.Error())
	}

	if errors.Is(err, domain.ErrValidation) {
		return huma.Error422UnprocessableEntity(err.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}

// statusFor maps an ErrorInfo code to the HTTP status a composite failure is reported with.
func statusFor(info *domain.ErrorInfo) int {
	if info == nil {
		return http.StatusInternalServerError
	}
	switch info.Code {
	case domain.CodePermission:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
