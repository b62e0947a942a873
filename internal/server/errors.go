package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
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
		var he *echo.HTTPError
		if errors.As(err, &he) {
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

// StatusFor maps a ledger error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	switch kind := ammerr.KindOf(err); kind {
	case ammerr.KindPoolNotFound, ammerr.KindPositionNotFound:
		return http.StatusNotFound
	case ammerr.KindDuplicatePool:
		return http.StatusConflict
	case ammerr.KindUnauthorized:
		return http.StatusForbidden
	case ammerr.KindUnknown:
		return http.StatusInternalServerError
	default:
		if ammerr.IsFatal(err) {
			return http.StatusInternalServerError
		}
		return http.StatusUnprocessableEntity
	}
}

// ledgerErr renders an engine error with its kind. Fatal errors hide their
// message outside dev mode.
func (h *Handlers) ledgerErr(c echo.Context, err error) error {
	code := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if kind := ammerr.KindOf(err); kind != ammerr.KindUnknown {
		resp.Kind = string(kind)
	}
	if code >= http.StatusInternalServerError {
		h.logger().WithError(err).WithField("path", c.Path()).Error("request failed")
		if !h.DevMode {
			resp.Error = http.StatusText(code)
		}
	}
	return c.JSON(code, resp)
}
