package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"city-report/backend/internal/security"
)

type staticRevocations struct {
	revoked bool
	err     error
	lastJti string
}

func (s *staticRevocations) IsRevoked(ctx context.Context, jti, tokenType string) (bool, error) {
	s.lastJti = jti
	return s.revoked, s.err
}

func protectedEcho(t *testing.T, wantAccountID int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := GetAccountID(r.Context())
		if !ok || accountID != wantAccountID {
			t.Errorf("account_id = %d, ok = %v, want %d", accountID, ok, wantAccountID)
		}
		if jti, ok := GetAccessJti(r.Context()); !ok || jti == "" {
			t.Error("access jti missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthBearer_ValidToken(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, jti, _, err := tokens.IssueAccess(42)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	revocations := &staticRevocations{}
	h := AuthBearer(tokens, revocations)(protectedEcho(t, 42))

	req := httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if revocations.lastJti != jti {
		t.Errorf("revocation checked jti %q, want %q", revocations.lastJti, jti)
	}
}

func TestAuthBearer_Rejections(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	accessToken, _, _, err := tokens.IssueAccess(42)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refreshToken, _, _, _, err := tokens.IssueRefresh(42)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	cases := []struct {
		name        string
		header      string
		revocations RevocationChecker
	}{
		{"no header", "", &staticRevocations{}},
		{"not bearer", "Basic abc", &staticRevocations{}},
		{"garbage token", "Bearer garbage", &staticRevocations{}},
		{"refresh token", "Bearer " + refreshToken, &staticRevocations{}},
		{"revoked", "Bearer " + accessToken, &staticRevocations{revoked: true}},
		{"registry error", "Bearer " + accessToken, &staticRevocations{err: context.DeadlineExceeded}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			h := AuthBearer(tokens, tc.revocations)(next)

			req := httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
			if called {
				t.Error("handler must not run")
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer tok", "tok"},
		{"bearer tok", "tok"},
		{"BEARER  tok ", "tok"},
		{"Bearertok", ""},
		{"Basic tok", ""},
		{"", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := extractBearer(req); got != tc.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
