package handler

import (
	"net/http"

	"city-report/backend/internal/auth/service"
)

const (
	refreshCookieName = "refresh_token_cookie"
	csrfCookieName    = "csrf_refresh_token"

	// The refresh cookie is scoped to the one endpoint that consumes it.
	refreshCookiePath = "/auth/refresh"
)

// setSessionCookies writes the refresh token and its CSRF double-submit
// value. The refresh cookie is HttpOnly; the CSRF cookie must stay readable
// by the client so it can be mirrored into the X-CSRF-TOKEN header.
func (h *Handler) setSessionCookies(w http.ResponseWriter, pair *service.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    pair.CSRFToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookies unsets both cookies.
func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
