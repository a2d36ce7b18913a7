package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/metrics"
)

const unmatchedRoute = "unmatched"

// observe records request metrics by route pattern and logs at debug level.
func (s *APIServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.RecordRequest(r.Method, route, status, elapsed)

		slog.Debug(config.MsgRequestDone,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyMethod, r.Method,
			config.LogKeyPath, route,
			config.LogKeyStatus, status,
			config.LogKeyDuration, elapsed.Milliseconds(),
		)
	})
}

// requireToken rejects requests without a valid bearer token. With
// allowQuery the token may also come from the ?token= parameter.
func (s *APIServer) requireToken(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && allowQuery {
				token = r.URL.Query().Get(config.QueryToken)
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, config.ErrMissingToken)
				return
			}

			if _, err := s.auth.Validate(token); err != nil {
				slog.Debug(config.ErrInvalidToken,
					config.LogKeyComponent, config.CompAuth,
					config.LogKeyError, err,
				)
				writeError(w, http.StatusUnauthorized, config.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(config.HeaderAuthorization)
	if len(h) < len(config.BearerPrefix) || !strings.EqualFold(h[:len(config.BearerPrefix)], config.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(config.BearerPrefix):])
}
