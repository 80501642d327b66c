// Package handler contains the HTTP handlers of the solarcheck JSON API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/middleware"
)

// retryAfterSeconds is sent with 409 and 503 responses.
const retryAfterSeconds = "5"

var codeStatus = map[string]int{
	domain.EINVALID:     http.StatusBadRequest,
	domain.ENOTFOUND:    http.StatusNotFound,
	domain.ECONFLICT:    http.StatusConflict,
	domain.ETOOLARGE:    http.StatusRequestEntityTooLarge,
	domain.EINTERNAL:    http.StatusInternalServerError,
	domain.EUNAVAILABLE: http.StatusServiceUnavailable,
}

// ErrorResponse translates err into a JSON error body. Internal details are
// logged and never sent.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, domain.ErrorOp(err), status)

	if domain.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSONError(w, status, code, domain.ErrorMessage(err), middleware.RequestID(r.Context()))
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
// Unknown codes are 500.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NotFoundResponse answers unmatched routes.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.ENOTFOUND, "", "No route for %s %s", r.Method, r.URL.Path))
}

func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}
	if id := middleware.RequestID(r.Context()); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	if status >= 500 {
		logger.Error("Server error", attrs...)
		return
	}
	logger.Info("Client error", attrs...)
}

// JSONError is the body of every error response.
type JSONError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId,omitempty"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message, requestID string) {
	var body JSONError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.RequestID = requestID
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
