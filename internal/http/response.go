// Package http serves the ledger as a JSON API.
//
// This file builds JSON and download responses and maps domain errors to
// status codes.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bilant/internal/backup"
	"bilant/internal/cashflow"
	"bilant/internal/core"
	"bilant/internal/lock"
	"bilant/internal/log"
	"bilant/internal/services"
	"bilant/internal/snapshot"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
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

func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body before touching w so an encoding failure can still
// become a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	var buf bytes.Buffer
	if b.body != nil {
		if err := json.NewEncoder(&buf).Encode(b.body); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return fmt.Errorf("encode response: %w", err)
		}
	}
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	_, err := w.Write(buf.Bytes())
	return err
}

// errorBody is the payload of every non-2xx JSON response.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := NewJSONResponse().Status(status).Body(v).Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Response write failed", log.FieldError, err)
	}
}

// writeError maps err to a status and writes it as JSON. Server errors are
// logged and their detail hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		msg = http.StatusText(status)
	}
	writeJSON(w, r, status, errorBody{
		Error:     msg,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// badRequest is a client error that is not one of the domain sentinels.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) (int, string) {
	var br badRequest
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, lock.ErrLocked):
		return http.StatusLocked, "locked"
	case errors.Is(err, lock.ErrBadCredential):
		return http.StatusUnauthorized, "bad_credential"
	case errors.Is(err, core.ErrUnknownDataset):
		return http.StatusNotFound, "unknown_dataset"
	case errors.Is(err, core.ErrInvalidDay), errors.Is(err, core.ErrInvalidYearMonth):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, snapshot.ErrRowIndex), errors.Is(err, snapshot.ErrUnknownField):
		return http.StatusBadRequest, "invalid_edit"
	case errors.Is(err, snapshot.ErrNothingToUndo):
		return http.StatusConflict, "nothing_to_undo"
	case errors.Is(err, backup.ErrInvalidBundle):
		return http.StatusUnprocessableEntity, "invalid_bundle"
	case errors.Is(err, services.ErrInvalidConfig), errors.Is(err, cashflow.ErrInvalidDueDate):
		return http.StatusUnprocessableEntity, "invalid_config"
	case errors.Is(err, services.ErrSheetsDisabled):
		return http.StatusNotImplemented, "sheets_disabled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeDownload sends data as an attachment.
func writeDownload(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
