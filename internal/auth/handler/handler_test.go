package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	accountdomain "city-report/backend/internal/account/domain"
	accountrepo "city-report/backend/internal/account/repository"
	"city-report/backend/internal/auth/service"
	"city-report/backend/internal/security"
	"city-report/backend/internal/server/middleware"
	sessiondomain "city-report/backend/internal/session/domain"
	sessionrepo "city-report/backend/internal/session/repository"
)

type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	m      map[int64]*accountdomain.Account
}

func (r *memAccounts) GetByID(ctx context.Context, id int64) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memAccounts) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAccounts) GetByActivationCode(ctx context.Context, code string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if a.ActivationCode == code {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAccounts) Create(ctx context.Context, a *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.m {
		if existing.Email == a.Email {
			return accountrepo.ErrDuplicateEmail
		}
	}
	r.nextID++
	a.ID = r.nextID
	a2 := *a
	r.m[a.ID] = &a2
	return nil
}

func (r *memAccounts) MarkActivated(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.m[id]
	if !ok || a.IsActivated {
		return false, nil
	}
	a.IsActivated = true
	return true, nil
}

func (r *memAccounts) UpdateActivationCode(ctx context.Context, id int64, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.m[id]; ok {
		a.ActivationCode = code
	}
	return nil
}

type memSessions struct {
	mu     sync.Mutex
	nextID int64
	m      map[int64]*sessiondomain.Session
}

func (r *memSessions) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.m {
		if existing.RefreshJti == s.RefreshJti || existing.AccessJti == s.AccessJti {
			return sessionrepo.ErrJtiConflict
		}
	}
	r.nextID++
	s.ID = r.nextID
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memSessions) GetByAccessJti(ctx context.Context, jti string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.AccessJti == jti {
			return s, nil
		}
	}
	return nil, nil
}

func (r *memSessions) GetByRefreshJti(ctx context.Context, jti string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.RefreshJti == jti {
			return s, nil
		}
	}
	return nil, nil
}

func (r *memSessions) ListByAccount(ctx context.Context, accountID int64) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.m {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSessions) RotateAccessJti(ctx context.Context, refreshJti, newAccessJti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.RefreshJti == refreshJti {
			s.AccessJti = newAccessJti
			return nil
		}
	}
	return sessionrepo.ErrNotFound
}

func (r *memSessions) DeleteByAccessJti(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.m {
		if s.AccessJti == jti {
			delete(r.m, id)
		}
	}
	return nil
}

func (r *memSessions) DeleteByRefreshJti(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.m {
		if s.RefreshJti == jti {
			delete(r.m, id)
		}
	}
	return nil
}

func (r *memSessions) DeleteByID(ctx context.Context, sessionID, accountID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[sessionID]
	if !ok || s.AccountID != accountID {
		return false, nil
	}
	delete(r.m, sessionID)
	return true, nil
}

func (r *memSessions) DeleteAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.m {
		if s.AccountID == accountID {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := service.NewAuthService(
		&memAccounts{m: make(map[int64]*accountdomain.Account)},
		&memSessions{m: make(map[int64]*sessiondomain.Session)},
		security.NewHasher(4),
		tokens,
		nil,
		nil,
	)
	h := New(svc, true)
	r := chi.NewRouter()
	h.Mount(r, middleware.AuthBearer(tokens, svc))
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type session struct {
	accessToken   string
	refreshCookie *http.Cookie
	csrfCookie    *http.Cookie
}

func registerAccount(t *testing.T, router http.Handler, email string) session {
	t.Helper()
	rr := postJSON(t, router, "/auth/register", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      email,
		"password":   "Password123!",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	s := session{accessToken: out.AccessToken}
	for _, c := range rr.Result().Cookies() {
		switch c.Name {
		case "refresh_token_cookie":
			s.refreshCookie = c
		case "csrf_refresh_token":
			s.csrfCookie = c
		}
	}
	if s.refreshCookie == nil || s.csrfCookie == nil {
		t.Fatal("register must set both session cookies")
	}
	return s
}

func TestRegister_CookiesAndLocation(t *testing.T) {
	router := newTestRouter(t)
	rr := postJSON(t, router, "/auth/register", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "user@example.com",
		"password":   "Password123!",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/users/1" {
		t.Errorf("Location = %q, want /users/1", loc)
	}

	var refresh, csrf *http.Cookie
	for _, c := range rr.Result().Cookies() {
		switch c.Name {
		case "refresh_token_cookie":
			refresh = c
		case "csrf_refresh_token":
			csrf = c
		}
	}
	if refresh == nil || csrf == nil {
		t.Fatal("missing session cookies")
	}
	if !refresh.HttpOnly || !refresh.Secure || refresh.Path != "/auth/refresh" || refresh.SameSite != http.SameSiteStrictMode {
		t.Errorf("refresh cookie attributes: %+v", refresh)
	}
	if csrf.HttpOnly {
		t.Error("csrf cookie must be readable by the client")
	}
	if !csrf.Secure || csrf.Path != "/auth/refresh" || csrf.SameSite != http.SameSiteStrictMode {
		t.Errorf("csrf cookie attributes: %+v", csrf)
	}
}

func TestRegister_ErrorStatuses(t *testing.T) {
	router := newTestRouter(t)
	registerAccount(t, router, "user@example.com")

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"duplicate email", map[string]string{"email": "user@example.com", "password": "Password123!"}, http.StatusConflict},
		{"invalid email", map[string]string{"email": "nope", "password": "Password123!"}, http.StatusBadRequest},
		{"weak password", map[string]string{"email": "a@b.co", "password": "weak"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if rr := postJSON(t, router, "/auth/register", tc.body); rr.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rr.Code, tc.want)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"unknown_field":1}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want 400", rr.Code)
	}
}

func TestLogin_Statuses(t *testing.T) {
	router := newTestRouter(t)
	registerAccount(t, router, "user@example.com")

	rr := postJSON(t, router, "/auth/login", map[string]string{"email": "user@example.com", "password": "Password123!"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rr.Code, rr.Body.String())
	}
	rr = postJSON(t, router, "/auth/login", map[string]string{"email": "user@example.com", "password": "Wrong123!pass"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", rr.Code)
	}
	rr = postJSON(t, router, "/auth/login", map[string]string{"email": "other@example.com", "password": "Password123!"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unknown email: status = %d, want 401", rr.Code)
	}
}

func TestRefresh(t *testing.T) {
	router := newTestRouter(t)
	s := registerAccount(t, router, "user@example.com")

	refresh := func(withCookie bool, csrf string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		if withCookie {
			req.AddCookie(s.refreshCookie)
		}
		if csrf != "" {
			req.Header.Set("X-CSRF-TOKEN", csrf)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := refresh(true, s.csrfCookie.Value)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil || out.AccessToken == "" {
		t.Fatalf("refresh response: %v, %s", err, rr.Body.String())
	}
	if out.AccessToken == s.accessToken {
		t.Error("refresh must mint a fresh access token")
	}
	// No new refresh cookie is issued.
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refresh_token_cookie" {
			t.Error("refresh must not reissue the refresh cookie")
		}
	}

	if rr := refresh(false, s.csrfCookie.Value); rr.Code != http.StatusUnauthorized {
		t.Errorf("missing cookie: status = %d, want 401", rr.Code)
	}
	if rr := refresh(true, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("missing CSRF header: status = %d, want 401", rr.Code)
	}
	if rr := refresh(true, "wrong"); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong CSRF header: status = %d, want 401", rr.Code)
	}
}

func TestLogout(t *testing.T) {
	router := newTestRouter(t)
	s := registerAccount(t, router, "user@example.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body = %s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge != -1 {
			t.Errorf("cookie %s must be unset, MaxAge = %d", c.Name, c.MaxAge)
		}
	}

	// Second logout with the same token is still 200.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req.Clone(req.Context()))
	if rr.Code != http.StatusOK {
		t.Errorf("repeated logout status = %d, want 200", rr.Code)
	}

	// Refresh cookie works as the fallback credential.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(s.refreshCookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("cookie logout status = %d, want 200", rr.Code)
	}

	// No credential at all.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bare logout status = %d, want 401", rr.Code)
	}
}

func TestWhoAmI(t *testing.T) {
	router := newTestRouter(t)
	s := registerAccount(t, router, "user@example.com")

	req := httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("whoami status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var out accountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Email != "user@example.com" || out.FirstName != "Jane" || out.IsActivated {
		t.Errorf("whoami = %+v", out)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/whoami", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated whoami status = %d, want 401", rr.Code)
	}
}

func TestDevices(t *testing.T) {
	router := newTestRouter(t)
	s := registerAccount(t, router, "user@example.com")
	postJSON(t, router, "/auth/login", map[string]string{"email": "user@example.com", "password": "Password123!"})

	list := func() []deviceResponse {
		req := httptest.NewRequest(http.MethodGet, "/auth/devices", nil)
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("devices status = %d, body = %s", rr.Code, rr.Body.String())
		}
		var out []deviceResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode devices: %v", err)
		}
		return out
	}

	devices := list()
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}

	// Revoke the second session by id with the account password. The second
	// session is the login one, so the bearer token stays valid.
	otherID := devices[0].ID
	for _, d := range devices {
		if d.ID > otherID {
			otherID = d.ID
		}
	}
	body, _ := json.Marshal(map[string]string{"password": "Password123!"})
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/auth/devices/%d", otherID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("device revoke status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Wrong password is rejected.
	body, _ = json.Marshal(map[string]string{"password": "Wrong123!pass"})
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/auth/devices/%d", otherID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized && rr.Code != http.StatusNotFound {
		t.Errorf("revoked twice: status = %d", rr.Code)
	}
}

func TestLogoutAll(t *testing.T) {
	router := newTestRouter(t)
	s := registerAccount(t, router, "user@example.com")
	postJSON(t, router, "/auth/login", map[string]string{"email": "user@example.com", "password": "Password123!"})

	req := httptest.NewRequest(http.MethodDelete, "/auth/devices", nil)
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout-all status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// The caller's own token is revoked with everything else.
	req = httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("whoami after logout-all: status = %d, want 401", rr.Code)
	}
}

func TestActivationFlow(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	accounts := &memAccounts{m: make(map[int64]*accountdomain.Account)}
	svc := service.NewAuthService(
		accounts,
		&memSessions{m: make(map[int64]*sessiondomain.Session)},
		security.NewHasher(4),
		tokens,
		nil,
		nil,
	)
	h := New(svc, true)
	router := chi.NewRouter()
	h.Mount(router, middleware.AuthBearer(tokens, svc))

	s := registerAccount(t, router, "user@example.com")

	accounts.mu.Lock()
	code := accounts.m[1].ActivationCode
	accounts.mu.Unlock()

	rr := postJSON(t, router, "/auth/activate/"+code, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("activate status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr := postJSON(t, router, "/auth/activate/"+code, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("spent code: status = %d, want 400", rr.Code)
	}

	// Already activated: re-sending the link conflicts.
	req := httptest.NewRequest(http.MethodPost, "/auth/activation-link-email", nil)
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("activation link after activation: status = %d, want 409", rr.Code)
	}
}

func TestActivationLinkEmail_Accepted(t *testing.T) {
	router := newTestRouter(t)
	s := registerAccount(t, router, "user@example.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/activation-link-email", nil)
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Errorf("activation link status = %d, want 202", rr.Code)
	}
}
