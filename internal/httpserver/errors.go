package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/verify"
)

// httpError maps service sentinels to transport status codes. Unknown
// errors become opaque 500s so internals never leak.
func httpError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrRevoked),
		errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, verify.ErrInvalidToken),
		errors.Is(err, verify.ErrExpiredToken):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, verify.ErrUserNotFound),
		errors.Is(err, verify.ErrNotFound),
		errors.Is(err, complaint.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, complaint.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, verify.ErrWeakPassword):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, verify.ErrDeliveryFailure):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, verify.ErrEmailTaken),
		errors.Is(err, verify.ErrAlreadyVerified),
		errors.Is(err, verify.ErrInvalidOtp),
		errors.Is(err, verify.ErrSamePassword),
		errors.Is(err, verify.ErrWrongPassword),
		errors.Is(err, complaint.ErrInvalidTransition),
		errors.Is(err, complaint.ErrUnknownStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
