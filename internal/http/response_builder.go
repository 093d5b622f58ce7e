// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for JSON responses and the single
// place where domain errors become HTTP statuses.

package http

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	data       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response. A nil body writes only the status line.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"response encoding failed"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates an error response with a machine-readable code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// BadRequestError is used for bodies that are not valid JSON at all.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "malformed_request", message)
}

func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", "missing or expired session").
		Header("WWW-Authenticate", `Bearer realm="fintrack"`)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
}

// statusForError maps the domain error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientBalance), errors.Is(err, core.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, core.ErrAuthFailure):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// DomainError turns a service error into a response. Server-side failures are
// logged in full and reported to the client without internals.
func DomainError(r *http.Request, err error) *JSONResponseBuilder {
	status := statusForError(err)
	code := core.ErrorCode(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldErrorCode, code,
			log.FieldPath, r.URL.Path)
		message = "internal error, please retry later"
	}
	return ErrorResponse(status, code, message)
}
