package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// requireDeviceSecret guards write endpoints with the shared device secret,
// accepted as X-Device-Secret or a bearer token. An empty configured secret
// disables the check (dev mode).
func (s *Server) requireDeviceSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deviceSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-Device-Secret")
		if provided == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				provided = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if provided != s.deviceSecret {
			writeError(w, http.StatusUnauthorized, "invalid or missing device secret")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
