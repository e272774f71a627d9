// Package http serves the expense service as a JSON API.
//
// This file implements the builder used by every handler to produce
// consistent JSON responses and error bodies.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expensebot/internal/core"
	applog "expensebot/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a 200 status.
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

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value serialized as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body before touching w so an encoding failure can
// still become a clean 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	var buf bytes.Buffer
	if b.body != nil {
		if err := json.NewEncoder(&buf).Encode(b.body); err != nil {
			slog.Error("Failed to encode response", "error", err)
			b.statusCode = http.StatusInternalServerError
			buf.Reset()
			_ = json.NewEncoder(&buf).Encode(ErrorBody{Error: "failed to encode response"})
		}
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if buf.Len() > 0 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if buf.Len() > 0 {
		_, _ = w.Write(buf.Bytes())
	}
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message, hint string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Hint: hint})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message, hint string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, hint)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message, "")
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message, "")
}

// ErrorFor maps a service error onto a response: validation errors keep
// their hint, collaborator failures become 502 and storage failures 500.
// Internal detail never reaches the body.
func ErrorFor(err error) *JSONResponseBuilder {
	var (
		ve *core.ValidationError
		ce *core.CollaboratorError
	)
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Body(ErrorBody{Error: ve.Message, Field: ve.Field, Hint: ve.Hint})
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, core.ErrMissingCredentials):
		return ErrorResponse(http.StatusServiceUnavailable,
			"email inbox is not connected", "Run oauth-init to authorize the inbox")
	case errors.As(err, &ce):
		return ErrorResponse(http.StatusBadGateway, ce.Collaborator+" is unavailable, please try again later", "")
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, "the request timed out", "")
	case core.IsStorage(err):
		return InternalServerError("could not access the expense store, please try again")
	default:
		return InternalServerError("internal error")
	}
}

// writeError logs err at a level matching its class and writes the
// mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := applog.FromContext(r.Context())
	switch {
	case core.IsValidation(err), errors.Is(err, core.ErrNotFound):
		logger.Debug("Request rejected", applog.FieldOperation, op, applog.FieldError, err.Error())
	case core.IsCollaborator(err):
		logger.Warn("Collaborator failure", applog.FieldOperation, op, applog.FieldError, err.Error())
	default:
		logger.LogError(r.Context(), "Request failed", err, op, nil)
	}
	ErrorFor(err).Write(w)
}
