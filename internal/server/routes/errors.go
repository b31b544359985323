package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ineyio/sentimentgate"
)

// Messages returned in the {error} envelope.
const (
	msgUnauthorized  = "Unauthorized"
	msgThrottled     = "Too many failed authentication attempts"
	msgBadRequest    = "Invalid request body"
	msgMissingKey    = "Missing key"
	msgFileType      = "Unsupported file type"
	msgQuotaExceeded = "Monthly quota exceeded"
	msgNotFound      = "Uploaded file not found"
	msgEngine        = "Inference failed"
	msgUnavailable   = "Upload service unavailable"
	msgInternal      = "Internal server error"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the error taxonomy onto HTTP. Unknown errors are 500s whose
// text is never sent to the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sentimentgate.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, sentimentgate.ErrInvalidInput):
		return http.StatusBadRequest, msgFileType
	case errors.Is(err, sentimentgate.ErrQuotaExceeded):
		return http.StatusTooManyRequests, msgQuotaExceeded
	case errors.Is(err, sentimentgate.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, sentimentgate.ErrEngine):
		return http.StatusBadGateway, msgEngine
	case errors.Is(err, sentimentgate.ErrTransport):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeError(c echo.Context, log *slog.Logger, err error) error {
	status, msg := statusFor(err)
	ctx := c.Request().Context()
	switch {
	case status >= http.StatusInternalServerError:
		log.ErrorContext(ctx, "request failed", "status", status, "error", err)
	case status != http.StatusUnauthorized:
		log.InfoContext(ctx, "request rejected", "status", status, "error", err)
	}
	return c.JSON(status, errorResponse{Error: msg})
}

func writeMessage(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}
