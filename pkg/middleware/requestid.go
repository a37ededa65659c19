package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/gitter-badger/ashaw-notes/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags each request with an ID, honouring one supplied by the
// caller, and exposes it to handlers through the request context. The ID is
// echoed back in the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID set by the RequestID middleware, or ""
// when the context carries none.
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}
