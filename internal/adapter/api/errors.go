package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error    string         `json:"error"`
	Code     int            `json:"code"`
	Upstream *upstreamError `json:"upstream,omitempty"`
}

type upstreamError struct {
	Service string `json:"service"`
	Status  int    `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// handleError maps domain errors onto HTTP statuses.
func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	resp := toResponse(err)

	attrs := []any{"method", c.Request().Method, "path", c.Request().URL.Path, "status", resp.Code, "error", err}
	switch {
	case resp.Code >= http.StatusInternalServerError:
		h.logger.Error("request failed", attrs...)
	default:
		h.logger.Info("request rejected", attrs...)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(resp.Code)
	} else {
		err = c.JSON(resp.Code, resp)
	}
	if err != nil {
		h.logger.Warn("write error response failed", "error", err)
	}
}

func toResponse(err error) ErrorResponse {
	var (
		httpErr  *echo.HTTPError
		upErr    *domain.UpstreamError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &httpErr):
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok {
			msg = s
		}
		return ErrorResponse{Error: msg, Code: httpErr.Code}
	case errors.As(err, &tooLarge):
		return ErrorResponse{Error: "upload too large", Code: http.StatusRequestEntityTooLarge}
	case errors.Is(err, domain.ErrStudyNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrorResponse{Error: "not found", Code: http.StatusNotFound}
	case domain.IsInputError(err):
		return ErrorResponse{Error: err.Error(), Code: http.StatusBadRequest}
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return ErrorResponse{Error: err.Error(), Code: http.StatusServiceUnavailable}
	case errors.As(err, &upErr):
		return ErrorResponse{
			Error:    err.Error(),
			Code:     http.StatusBadGateway,
			Upstream: &upstreamError{Service: upErr.Service, Status: upErr.StatusCode, Detail: upErr.Body},
		}
	case domain.IsUpstreamError(err):
		return ErrorResponse{Error: err.Error(), Code: http.StatusBadGateway}
	default:
		return ErrorResponse{Error: "internal error", Code: http.StatusInternalServerError}
	}
}
