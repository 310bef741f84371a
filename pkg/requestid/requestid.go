// Package requestid attaches a unique ID to every HTTP request so log lines
// for one request can be tied together.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request-id"

// Header is the HTTP header carrying the request ID.
const Header = "X-Request-ID"

// WithID returns a context carrying the given request ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext returns the request ID from the context, or an empty string.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// New generates a fresh request ID.
func New() string {
	return uuid.New().String()
}

// Middleware ensures each request has an ID: it reuses the inbound
// X-Request-ID header when present, generates one otherwise, and echoes the
// ID on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = New()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
