// Package server assembles the HTTP router: middleware chain, health probe,
// and the /auth routes.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authhandler "city-report/backend/internal/auth/handler"
	"city-report/backend/internal/security"
	"city-report/backend/internal/server/middleware"
)

// Options are the router assembly parameters.
type Options struct {
	Logger *slog.Logger
}

// NewRouter builds the http.Handler with chi and the middleware chain
// (outermost first: recover, request id, logging). Bearer authentication is
// applied per-route by the auth handler.
func NewRouter(h *authhandler.Handler, tokens *security.TokenProvider, revocations middleware.RevocationChecker, opts Options) http.Handler {
	root := chi.NewRouter()
	root.Use(
		middleware.Recover(opts.Logger),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
	)

	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	h.Mount(root, middleware.AuthBearer(tokens, revocations))
	return root
}
