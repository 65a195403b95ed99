package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Tomlord1122/todo-api/internal/logging"
)

const (
	requestIDHeader = "X-Request-ID"
	// Longer client-supplied ids are replaced rather than logged.
	maxRequestIDLen = 128
)

// requestID tags each request with an id, reusing the client's X-Request-ID
// when it sent a usable one. The id is echoed in the response, attached to
// the request logger and stored where chi's request logger looks for it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logging.WithRequestID(r.Context(), id)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
