// Package handler is the HTTP boundary for the /auth routes. It decodes
// requests, delegates to the auth service, and maps its sentinel errors to
// status codes.
package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountdomain "city-report/backend/internal/account/domain"
	"city-report/backend/internal/auth/service"
	"city-report/backend/internal/server/middleware"
)

// Handler aggregates the auth service and cookie settings.
type Handler struct {
	svc          *service.AuthService
	cookieSecure bool
}

// New returns a Handler. cookieSecure controls the Secure attribute on the
// refresh and CSRF cookies; it is only ever false in local development.
func New(svc *service.AuthService, cookieSecure bool) *Handler {
	return &Handler{svc: svc, cookieSecure: cookieSecure}
}

// Mount registers the /auth routes. authed wraps the routes that require a
// valid, non-revoked access token.
func (h *Handler) Mount(r chi.Router, authed middleware.Middleware) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/activate/{code}", h.Activate)

	r.Group(func(pr chi.Router) {
		pr.Use(authed)
		pr.Post("/auth/activation-link-email", h.SendActivationLink)
		pr.Get("/auth/whoami", h.WhoAmI)
		pr.Get("/auth/devices", h.ListDevices)
		pr.Delete("/auth/devices", h.LogoutAll)
		pr.Delete("/auth/devices/{id}", h.LogoutDevice)
	})
}

// writeJSON is the single JSON response path with the right Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict is a strict JSON decoder: unknown fields are rejected.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// writeError maps service errors to HTTP status codes. Unknown errors
// become an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidActivationCode):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, accountdomain.ErrPasswordPolicy):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidPassword):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrEmailAlreadyUsed),
		errors.Is(err, service.ErrAlreadyActivated):
		status, message = http.StatusConflict, err.Error()
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// deviceContext captures the caller's user agent and origin IP.
func deviceContext(r *http.Request) service.DeviceContext {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return service.DeviceContext{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	}
}
