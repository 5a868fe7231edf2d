package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"city-report/backend/internal/auth/service"
	"city-report/backend/internal/server/middleware"
	sessiondomain "city-report/backend/internal/session/domain"
)

const csrfHeader = "X-CSRF-TOKEN"

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type accountResponse struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	IsActivated bool      `json:"is_activated"`
	CreatedAt   time.Time `json:"created_at"`
}

type deviceResponse struct {
	ID        int64     `json:"id"`
	IPAddress string    `json:"ip_address"`
	Device    *string   `json:"device"`
	OS        *string   `json:"os"`
	Browser   *string   `json:"browser"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func deviceFromSession(s *sessiondomain.Session) deviceResponse {
	return deviceResponse{
		ID:        s.ID,
		IPAddress: s.IPAddress,
		Device:    s.Device,
		OS:        s.OS,
		Browser:   s.Browser,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// Register creates an account and logs the new account in on the presenting
// device in the same request.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	pair, err := h.svc.Register(r.Context(), service.RegisterInput{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  in.Password,
		Device:    deviceContext(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSessionCookies(w, pair)
	w.Header().Set("Location", fmt.Sprintf("/users/%d", pair.AccountID))
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
	})
}

// Login opens a new session for the presenting device. The access token goes
// in the body, the refresh token and its CSRF twin in cookies.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	pair, err := h.svc.Login(r.Context(), in.Email, in.Password, deviceContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
	})
}

// Refresh exchanges the refresh cookie plus CSRF header for a new access
// token. The refresh cookie is not reissued.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeError(w, service.ErrUnauthorized)
		return
	}
	grant, err := h.svc.Refresh(r.Context(), cookie.Value, r.Header.Get(csrfHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: grant.AccessToken,
		ExpiresAt:   grant.ExpiresAt,
	})
}

// Logout ends the caller's session using whichever token is at hand: the
// bearer access token, or the refresh cookie when the access token is
// already gone. Both cookies are unset either way.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		writeError(w, service.ErrUnauthorized)
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// Activate flips the account's activation flag from a mailed link.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Activate(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "account activated"})
}

// SendActivationLink re-sends the activation mail with a fresh code.
func (h *Handler) SendActivationLink(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, service.ErrUnauthorized)
		return
	}
	if err := h.svc.SendActivationLink(r.Context(), accountID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "activation link sent"})
}

// WhoAmI returns the authenticated account.
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, service.ErrUnauthorized)
		return
	}
	account, err := h.svc.WhoAmI(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		ID:          account.ID,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		Email:       account.Email,
		IsActivated: account.IsActivated,
		CreatedAt:   account.CreatedAt,
	})
}

// ListDevices returns the caller's live sessions.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, service.ErrUnauthorized)
		return
	}
	sessions, err := h.svc.ListDevices(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]deviceResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, deviceFromSession(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// LogoutAll deletes every session the caller owns, including the current
// one.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, service.ErrUnauthorized)
		return
	}
	if _, err := h.svc.LogoutAll(r.Context(), accountID); err != nil {
		writeError(w, err)
		return
	}
	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutDevice deletes one session by id. The caller's password is required
// in the body as a re-authentication step.
func (h *Handler) LogoutDevice(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, service.ErrUnauthorized)
		return
	}
	sessionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || sessionID <= 0 {
		writeError(w, service.ErrNotFound)
		return
	}
	var in passwordRequest
	if err := decodeStrict(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.svc.LogoutDevice(r.Context(), accountID, sessionID, in.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bearerToken returns the Authorization Bearer value, or "".
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):]
	}
	return ""
}
