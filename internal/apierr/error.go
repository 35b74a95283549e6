// Package apierr defines the normalized error value used across the outbound
// request layer. Every failure (transport, HTTP, validation, or unknown)
// is converted into exactly one *Error with a stable code, a category, a
// derived severity, and a user-facing message.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Error is the normalized error value. Immutable after construction; the
// With* helpers are intended for use while building, before publication.
type Error struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Category      Category       `json:"category"`
	Severity      Severity       `json:"severity"`
	Retryable     bool           `json:"retryable"`
	Message       string         `json:"message"`
	UserMessage   string         `json:"userMessage"`
	RetryAfter    time.Duration  `json:"retryAfter,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`

	cause error
}

// New creates an error with the category's default retryability and the
// per-code default user message.
func New(code string, category Category, message string) *Error {
	return &Error{
		ID:          uuid.NewString(),
		Code:        code,
		Category:    category,
		Severity:    SeverityMedium,
		Retryable:   category.DefaultRetryable(),
		Message:     message,
		UserMessage: UserMessageFor(code),
		Timestamp:   time.Now(),
	}
}

// Wrap creates an error preserving cause for errors.Is/As chains.
func Wrap(cause error, code string, category Category, message string) *Error {
	e := New(code, category, message)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithSeverity overrides the default severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// WithRetryable overrides the category-derived retryability.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithUserMessage overrides the per-code default user message.
func (e *Error) WithUserMessage(msg string) *Error {
	e.UserMessage = msg
	return e
}

// WithRetryAfter records a server-specified wait that overrides computed backoff.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// WithCorrelationID links the error to its originating request.
func (e *Error) WithCorrelationID(id string) *Error {
	e.CorrelationID = id
	return e
}

// WithContext attaches a diagnostic key/value pair.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithDetails attaches the free-form diagnostic payload. Details may echo
// the failing request and are stripped by SafeJSON.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// SafeJSON serializes the error with Details and the cause chain removed.
// This is the only form permitted to cross a trust boundary.
func (e *Error) SafeJSON() ([]byte, error) {
	safe := struct {
		ID            string         `json:"id"`
		Code          string         `json:"code"`
		Category      Category       `json:"category"`
		Severity      Severity       `json:"severity"`
		Retryable     bool           `json:"retryable"`
		UserMessage   string         `json:"userMessage"`
		CorrelationID string         `json:"correlationId,omitempty"`
		Context       map[string]any `json:"context,omitempty"`
		Timestamp     time.Time      `json:"timestamp"`
	}{
		ID:            e.ID,
		Code:          e.Code,
		Category:      e.Category,
		Severity:      e.Severity,
		Retryable:     e.Retryable,
		UserMessage:   e.UserMessage,
		CorrelationID: e.CorrelationID,
		Context:       e.Context,
		Timestamp:     e.Timestamp,
	}
	return json.Marshal(safe)
}

// HTTPError carries the shape of a non-2xx response before normalization.
type HTTPError struct {
	Status     int
	StatusText string
	Body       string
	RetryAfter time.Duration
}

func (h *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s", h.Status, h.StatusText)
}

// Validation creates a non-retryable VALIDATION error with per-field details.
func Validation(message string, fields map[string]any) *Error {
	e := New(CodeValidation, CategoryValidation, message).WithSeverity(SeverityLow)
	if len(fields) > 0 {
		e.Details = fields
	}
	return e
}

// retryableStatuses are HTTP statuses worth retrying.
var retryableStatuses = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
}

// FromHTTPStatus maps an HTTP error response to a normalized error.
func FromHTTPStatus(h *HTTPError) *Error {
	var code string
	var category Category
	switch {
	case h.Status == 401:
		code, category = CodeAuthRequired, CategoryAuthentication
	case h.Status == 403:
		code, category = CodeForbidden, CategoryAuthorization
	case h.Status == 404:
		code, category = CodeNotFound, CategoryNotFound
	case h.Status == 422:
		code, category = CodeValidation, CategoryValidation
	case h.Status == 429:
		code, category = CodeRateLimited, CategoryRateLimit
	case h.Status >= 500:
		code, category = CodeServerError, CategoryServer
	default:
		code, category = CodeValidation, CategoryValidation
	}

	severity := SeverityMedium
	switch {
	case h.Status == 404 || h.Status == 422:
		severity = SeverityLow
	case h.Status >= 500:
		severity = SeverityHigh
	}

	e := Wrap(h, code, category, fmt.Sprintf("http %d %s", h.Status, h.StatusText))
	e.Severity = severity
	e.Retryable = retryableStatuses[h.Status]
	if h.Body != "" {
		e.Details = map[string]any{"body": h.Body}
	}
	if h.RetryAfter > 0 {
		e.RetryAfter = h.RetryAfter
	}
	return e.WithContext("status", h.Status)
}

// Normalize converts any error into a *Error. Already-normalized errors pass
// through unchanged, so Normalize(Normalize(err)) == Normalize(err).
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var std *Error
	if errors.As(err, &std) {
		return std
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return FromHTTPStatus(httpErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, CategoryTimeout, "operation timed out").
			WithSeverity(SeverityHigh)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, CodeNetwork, CategoryNetwork, "operation canceled").
			WithRetryable(false)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(err, CodeTimeout, CategoryTimeout, "network timeout").
				WithSeverity(SeverityHigh)
		}
		return Wrap(err, CodeNetwork, CategoryNetwork, "network failure")
	}

	return Wrap(err, CodeUnknown, CategoryUnknown, err.Error())
}
