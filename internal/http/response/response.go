// Package response writes JSON error bodies for requests that never reach a
// huma operation (rate limiting, unknown routes, panics) and maps store and
// domain errors to HTTP statuses for everything else.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	domainerrors "github.com/iemanja/iemanjad/internal/errors"
	"github.com/iemanja/iemanjad/internal/store"
)

// Problem is the error body returned by every endpoint.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Error writes a Problem body with the given status code.
func Error(w http.ResponseWriter, status int, p Problem, logger *slog.Logger) {
	JSON(w, status, p, logger)
}

// NotFound writes a 404 for an unknown route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusNotFound, Problem{
		Code:    string(domainerrors.CodeNotFound),
		Message: "no route for " + r.Method + " " + r.URL.Path,
	}, nil)
}

// MethodNotAllowed writes a 405 for a known path with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusMethodNotAllowed, Problem{
		Code:    string(domainerrors.CodeValidation),
		Message: "method " + r.Method + " not allowed on " + r.URL.Path,
	}, nil)
}

// TooManyRequests writes a 429 with a Retry-After header in whole seconds.
func TooManyRequests(w http.ResponseWriter, retryAfter time.Duration, logger *slog.Logger) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))

	err := domainerrors.RateLimited("too many requests, retry later")
	Error(w, err.HTTPStatus(), Problem{
		Code:    string(err.Code),
		Message: err.Message,
	}, logger)
}

// Describe maps err to a status code and body. It reports false when err is
// neither a domain error nor a store error.
//
// A store error wrapping ErrAlreadyExists is a conflict even when the outer
// error is a creation failure.
func Describe(err error) (int, Problem, bool) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), Problem{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}, true
	}

	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		return 0, Problem{}, false
	}

	status := storeErr.HTTPCode()
	if errors.Is(err, store.ErrAlreadyExists) {
		status = http.StatusConflict
	}
	return status, Problem{
		Code:    StatusCode(status),
		Message: err.Error(),
		Details: storeErr.Details,
	}, true
}

// StatusCode maps an HTTP status to the machine-readable error code.
func StatusCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusMethodNotAllowed:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}
