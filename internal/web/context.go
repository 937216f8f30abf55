package web

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/afterflow/internal/core"
)

// withRequestMeta attaches the request ID, client IP and User-Agent for the
// service's log lines.
func withRequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithRequestMeta(r.Context(), core.RequestMeta{
			RequestID: middleware.GetReqID(r.Context()),
			IPAddress: r.RemoteAddr, // Already processed by TrustedRealIP
			UserAgent: r.UserAgent(),
			Source:    "http",
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
