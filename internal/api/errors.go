package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tube-curator/internal/i18n"
	"tube-curator/internal/observability/logging"
	"tube-curator/internal/storage"
)

// ErrorEnvelope is the single error shape every API failure resolves to.
// Handlers and middleware never write ad-hoc error bodies; they return or
// pass errors to WriteError, which normalizes them here.
type ErrorEnvelope struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	Timestamp string   `json:"timestamp"`
	TraceID   string   `json:"traceId,omitempty"`
}

// RequestError is an error with an explicit HTTP status. The message becomes
// the envelope's client-facing message verbatim, so it must not carry
// internal detail. MessageKey, when set, resolves the message through the
// i18n catalog instead and takes precedence over Message.
type RequestError struct {
	Status     int
	Message    string
	MessageKey string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *RequestError) Unwrap() error { return e.Err }

// FieldViolation names a single invalid request field.
type FieldViolation struct {
	Field   string
	Message string
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationError aggregates field violations into one 400 response.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		parts = append(parts, violation.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func badRequest(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(message string) error {
	return &RequestError{Status: http.StatusUnauthorized, Message: message}
}

func forbidden() error {
	return &RequestError{Status: http.StatusForbidden, Message: "forbidden"}
}

func notFound(resource string) error {
	return &RequestError{Status: http.StatusNotFound, Message: resource + " not found"}
}

func conflict(message string) error {
	return &RequestError{Status: http.StatusConflict, Message: message}
}

// storageError maps repository failures onto response statuses. Sentinel
// errors already carry a mapping in Normalize; the remaining storage errors
// are input problems with client-safe messages.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrInvalidCredentials),
		errors.Is(err, storage.ErrEmailInUse),
		errors.Is(err, storage.ErrProposalResolved):
		return err
	}
	message := err.Error()
	if strings.Contains(message, "already") || strings.Contains(message, "still referenced") {
		return &RequestError{Status: http.StatusConflict, Message: message, Err: err}
	}
	return &RequestError{Status: http.StatusBadRequest, Message: message, Err: err}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// Normalize maps any error to an HTTP status plus the envelope returned to
// the client. The message is the supplied reason when one exists, otherwise
// the localized default for the status; details carry only field-level
// violation strings. Unknown errors collapse to a generic 500 so internal
// failure detail never leaks.
func Normalize(err error, locale string) (int, ErrorEnvelope) {
	tag := i18n.Negotiate(locale)

	status := http.StatusInternalServerError
	message := ""
	var details []string

	var requestErr *RequestError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		details = make([]string, 0, len(validationErr.Violations))
		for _, violation := range validationErr.Violations {
			details = append(details, violation.String())
		}
	case errors.As(err, &requestErr):
		status = requestErr.Status
		switch {
		case requestErr.MessageKey != "":
			message = i18n.Message(tag, requestErr.MessageKey)
		case requestErr.Message != "":
			message = requestErr.Message
		}
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = i18n.Message(tag, i18n.KeyInvalidToken)
	case errors.Is(err, storage.ErrEmailInUse):
		status = http.StatusConflict
		message = "email is already registered"
	case errors.Is(err, storage.ErrProposalResolved):
		status = http.StatusConflict
		message = "proposal has already been resolved"
	}

	if message == "" {
		message = i18n.MessageForStatus(tag, status)
	}
	envelope := ErrorEnvelope{
		Error:     errorCode(status),
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return status, envelope
}

// WriteError renders err through Normalize, stamping the trace id from the
// request context so clients can correlate failures with server logs.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	locale := ""
	var traceID string
	if r != nil {
		locale = r.Header.Get("Accept-Language")
		traceID, _ = logging.TraceIDFromContext(r.Context())
	}
	status, envelope := Normalize(err, locale)
	envelope.TraceID = traceID

	if status >= http.StatusInternalServerError && r != nil {
		logging.LoggerFromContext(r.Context()).Error("request failed",
			"error", err,
			"status", status,
			"path", r.URL.Path)
	}
	writeJSON(w, status, envelope)
}

// WriteStatusError writes the canonical envelope for a bare status code.
func WriteStatusError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteError(w, r, &RequestError{Status: status, Message: message})
}

// WriteMethodNotAllowed sets the Allow header and renders the 405 envelope.
func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	WriteError(w, r, &RequestError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"})
}
