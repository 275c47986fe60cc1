// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Error is a client-facing failure rendered as the JSON error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
}

// NewError builds an Error. A zero status means 500.
func NewError(code, message string, status int) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Status: status, Code: clean(code, 80), Message: clean(message, 512)}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var errInternal = &Error{Status: http.StatusInternalServerError, Code: "internal_server_error", Message: "internal server error"}

type envelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteError renders err as {error, message, status, request_id, trace_id}.
// Anything other than an *Error is reported as an opaque 500.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = errInternal
	}
	body := envelope{
		Error:     e.Code,
		Message:   e.Message,
		Status:    e.Status,
		RequestID: clean(middleware.GetReqID(ctx), 80),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		body.TraceID = sc.TraceID().String()
	}
	WriteJSON(w, e.Status, body)
}

// WriteJSON writes v with the given status. Responses are never cached by
// intermediaries since they mirror live backend state.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clean(s string, limit int) string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
