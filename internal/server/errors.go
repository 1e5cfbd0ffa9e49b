package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch swaperr.CodeOf(err) {
	case swaperr.CodeInvalid:
		return http.StatusBadRequest
	case swaperr.CodeTokenNotFound:
		return http.StatusNotFound
	case swaperr.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case swaperr.CodeSignatureDeclined:
		return http.StatusForbidden
	case swaperr.CodeQuoteUnavailable, swaperr.CodeApprovalFailed, swaperr.CodeSubmissionFailed, swaperr.CodeBalanceReadFailed:
		return http.StatusBadGateway
	case swaperr.CodeConfirmationTimeout:
		return http.StatusGatewayTimeout
	case swaperr.CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
