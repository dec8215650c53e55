package middleware

import (
	"net/http"

	"answersheet/internal/apperrors"
	"answersheet/internal/auth"
	"answersheet/internal/logger"
	"answersheet/internal/response"
)

var publicPaths = map[string]bool{
	"/health":     true,
	"/auth/login": true,
}

// Auth requires a valid bearer token on every path except the public ones
// and CORS preflights. A nil issuer disables the check.
func Auth(issuer *auth.Issuer, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if issuer == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				// Browsers cannot set headers on websocket upgrades.
				if token := r.URL.Query().Get("token"); token != "" {
					header = "Bearer " + token
				}
			}

			if err := issuer.VerifyHeader(header); err != nil {
				response.Error(w, r, log, apperrors.NewUnauthorizedError("missing or invalid bearer token", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
