package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shipops/docsearch/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns each request a unique ID,
// propagates it through the context for logging, and echoes it back in the
// response headers. A client-supplied X-Request-ID is preserved.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
