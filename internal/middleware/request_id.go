package middleware

import (
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"answersheet/internal/reqctx"

	"github.com/oklog/ulid/v2"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with the client's X-Request-ID or a fresh ULID.
func RequestID(next http.Handler) http.Handler {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			mu.Lock()
			id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
			mu.Unlock()
			if err == nil {
				requestID = id.String()
			}
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(reqctx.WithRequestID(r.Context(), requestID)))
	})
}
