// Package service implements the authentication and multi-device session
// lifecycle: login, refresh, logout, per-device termination, and the
// registry-backed revocation check.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	accountdomain "city-report/backend/internal/account/domain"
	accountrepo "city-report/backend/internal/account/repository"
	"city-report/backend/internal/audit"
	auditdomain "city-report/backend/internal/audit/domain"
	"city-report/backend/internal/mail"
	"city-report/backend/internal/security"
	sessiondomain "city-report/backend/internal/session/domain"
	sessionrepo "city-report/backend/internal/session/repository"
)

// Sentinel errors for the auth service; the handler maps them to HTTP status codes.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password, so
	// the response does not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyUsed   = errors.New("email already used")
	// ErrUnauthorized is returned for a missing, invalid, expired, or revoked
	// token, and for a CSRF mismatch on refresh.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidPassword is returned when re-authentication for device
	// termination fails.
	ErrInvalidPassword       = errors.New("invalid password")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyActivated      = errors.New("account already activated")
	ErrInvalidActivationCode = errors.New("invalid activation code")
	// ErrPersistenceConflict surfaces a jti unique-constraint violation.
	// Unreachable while jtis are fresh UUIDs.
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id int64) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	GetByActivationCode(ctx context.Context, code string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	MarkActivated(ctx context.Context, id int64) (bool, error)
	UpdateActivationCode(ctx context.Context, id int64, code string) error
}

// SessionRegistry is the session persistence needed by the auth service. Its
// contents are the single source of truth for "is this token still valid".
type SessionRegistry interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByAccessJti(ctx context.Context, jti string) (*sessiondomain.Session, error)
	GetByRefreshJti(ctx context.Context, jti string) (*sessiondomain.Session, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*sessiondomain.Session, error)
	RotateAccessJti(ctx context.Context, refreshJti, newAccessJti string) error
	DeleteByAccessJti(ctx context.Context, jti string) error
	DeleteByRefreshJti(ctx context.Context, jti string) error
	DeleteByID(ctx context.Context, sessionID, accountID int64) (bool, error)
	DeleteAllByAccount(ctx context.Context, accountID int64) (int64, error)
}

// DeviceContext carries the device metadata presented at login.
type DeviceContext struct {
	UserAgent string
	IPAddress string
}

// RegisterInput holds the fields of a registration request.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Device    DeviceContext
}

// TokenPair is the outcome of a successful login or registration: one access
// token for the response body and one refresh token for the cookie, with the
// CSRF value to mirror into the readable cookie.
type TokenPair struct {
	AccountID        int64
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	CSRFToken        string
}

// AccessGrant is the outcome of a successful refresh: a new access token
// only. The refresh token is deliberately left untouched.
type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService orchestrates accounts, tokens, and the session registry.
type AuthService struct {
	accounts AccountRepo
	sessions SessionRegistry
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	audit    audit.Recorder
	mailer   mail.Sender
}

// NewAuthService returns an AuthService with the given dependencies.
// audit and mailer may be nil; then events are discarded and no mail is sent.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRegistry,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	recorder audit.Recorder,
	mailer mail.Sender,
) *AuthService {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	if mailer == nil {
		mailer = mail.NoopSender{}
	}
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		audit:    recorder,
		mailer:   mailer,
	}
}

// Register creates an account, opens its first session, and queues the
// activation mail. The password policy runs before hashing so rejected
// passwords are never persisted in any form. Mail delivery is
// fire-and-forget and never rolls back registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*TokenPair, error) {
	email, err := accountdomain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := accountdomain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyUsed
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	account := &accountdomain.Account{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          email,
		PasswordHash:   hash,
		ActivationCode: uuid.NewString(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, accountrepo.ErrDuplicateEmail) {
			// Lost a race with a concurrent registration for the same email.
			return nil, ErrEmailAlreadyUsed
		}
		return nil, err
	}
	pair, err := s.startSession(ctx, account.ID, in.Device)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, account.ID, auditdomain.ActionRegister, in.Device.IPAddress, "")
	s.mailer.SendActivationLink(account.Email, account.ActivationCode)
	return pair, nil
}

// Login authenticates with email and password and opens a new session for
// the presenting device. Every login creates an independent session row;
// other devices' sessions are untouched.
func (s *AuthService) Login(ctx context.Context, email, password string, dev DeviceContext) (*TokenPair, error) {
	normalized, err := accountdomain.NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if account == nil || !s.checkPassword(account, password) {
		s.audit.Record(ctx, 0, auditdomain.ActionLoginFailure, dev.IPAddress, normalized)
		return nil, ErrInvalidCredentials
	}
	pair, err := s.startSession(ctx, account.ID, dev)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, account.ID, auditdomain.ActionLogin, dev.IPAddress, "")
	return pair, nil
}

// startSession issues one access and one refresh token and registers the
// session row binding both jtis. No token is handed to the caller unless the
// session row is durably committed: on a persistence failure the freshly
// issued tokens are discarded with the error.
func (s *AuthService) startSession(ctx context.Context, accountID int64, dev DeviceContext) (*TokenPair, error) {
	refreshToken, refreshJti, csrf, refreshExp, err := s.tokens.IssueRefresh(accountID)
	if err != nil {
		return nil, err
	}
	accessToken, accessJti, accessExp, err := s.tokens.IssueAccess(accountID)
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		AccountID:  accountID,
		RefreshJti: refreshJti,
		AccessJti:  accessJti,
		IPAddress:  dev.IPAddress,
		ExpiresAt:  refreshExp,
	}
	sess.ParseDevice(dev.UserAgent)
	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, sessionrepo.ErrJtiConflict) {
			return nil, ErrPersistenceConflict
		}
		return nil, err
	}
	return &TokenPair{
		AccountID:        accountID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		CSRFToken:        csrf,
	}, nil
}

// Refresh validates the refresh token and the double-submit CSRF header,
// then mints a new access token and overwrites the session's access jti.
// The refresh token itself is unchanged and keeps its original expiration.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, csrfHeader string) (*AccessGrant, error) {
	accountID, refreshJti, csrfClaim, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	sess, err := s.sessions.GetByRefreshJti(ctx, refreshJti)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		// Absent from the registry means revoked.
		return nil, ErrUnauthorized
	}
	if !security.CSRFTokenEqual(csrfHeader, csrfClaim) {
		return nil, ErrUnauthorized
	}
	accessToken, accessJti, accessExp, err := s.tokens.IssueAccess(accountID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RotateAccessJti(ctx, refreshJti, accessJti); err != nil {
		if errors.Is(err, sessionrepo.ErrNotFound) {
			// The session was deleted between lookup and rotation.
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	s.audit.Record(ctx, accountID, auditdomain.ActionRefresh, sess.IPAddress, "")
	return &AccessGrant{AccessToken: accessToken, ExpiresAt: accessExp}, nil
}

// Logout deletes the session matching the presented token, which may be of
// either type. Idempotent: logging out an already-deleted session is not an
// error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	accountID, jti, tokenType, err := s.tokens.Classify(token)
	if err != nil {
		return ErrUnauthorized
	}
	switch tokenType {
	case security.TokenTypeAccess:
		err = s.sessions.DeleteByAccessJti(ctx, jti)
	case security.TokenTypeRefresh:
		err = s.sessions.DeleteByRefreshJti(ctx, jti)
	}
	if err != nil {
		return err
	}
	s.audit.Record(ctx, accountID, auditdomain.ActionLogout, "", "")
	return nil
}

// LogoutDevice deletes one session by ID after re-verifying the caller's
// password, so a stolen access token alone cannot mass-revoke a victim's
// other sessions. The ownership check is part of the delete statement.
func (s *AuthService) LogoutDevice(ctx context.Context, accountID, sessionID int64, password string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrUnauthorized
	}
	if !s.checkPassword(account, password) {
		return ErrInvalidPassword
	}
	deleted, err := s.sessions.DeleteByID(ctx, sessionID, accountID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.audit.Record(ctx, accountID, auditdomain.ActionDeviceRevoke, "", "")
	return nil
}

// LogoutAll deletes every session owned by the account, including the
// caller's own. The caller's access token stays cryptographically valid
// until it expires but is unusable from the next request on, because its jti
// is no longer registered.
func (s *AuthService) LogoutAll(ctx context.Context, accountID int64) (int64, error) {
	count, err := s.sessions.DeleteAllByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, accountID, auditdomain.ActionLogoutAll, "", "")
	return count, nil
}

// ListDevices returns every live session owned by the account for
// self-service session review.
func (s *AuthService) ListDevices(ctx context.Context, accountID int64) ([]*sessiondomain.Session, error) {
	return s.sessions.ListByAccount(ctx, accountID)
}

// WhoAmI returns the account for the authenticated caller.
func (s *AuthService) WhoAmI(ctx context.Context, accountID int64) (*accountdomain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	return account, nil
}

// Activate flips the account's activation flag, triggered by presenting a
// matching, still-pending activation code. A spent or unknown code fails.
func (s *AuthService) Activate(ctx context.Context, code string) error {
	account, err := s.accounts.GetByActivationCode(ctx, code)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrInvalidActivationCode
	}
	activated, err := s.accounts.MarkActivated(ctx, account.ID)
	if err != nil {
		return err
	}
	if !activated {
		return ErrInvalidActivationCode
	}
	s.audit.Record(ctx, account.ID, auditdomain.ActionActivate, "", "")
	return nil
}

// SendActivationLink regenerates the account's activation code and re-sends
// the activation mail. Fails if the account is already activated.
func (s *AuthService) SendActivationLink(ctx context.Context, accountID int64) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrNotFound
	}
	if account.IsActivated {
		return ErrAlreadyActivated
	}
	code := uuid.NewString()
	if err := s.accounts.UpdateActivationCode(ctx, account.ID, code); err != nil {
		return err
	}
	s.mailer.SendActivationLink(account.Email, code)
	return nil
}

// IsRevoked reports whether the jti is absent from the session registry for
// its declared token type. Invoked by the bearer middleware on every
// authenticated request; absence from the registry is the blocklist. Expiry
// is checked independently by token verification.
func (s *AuthService) IsRevoked(ctx context.Context, jti, tokenType string) (bool, error) {
	var (
		sess *sessiondomain.Session
		err  error
	)
	switch tokenType {
	case security.TokenTypeAccess:
		sess, err = s.sessions.GetByAccessJti(ctx, jti)
	case security.TokenTypeRefresh:
		sess, err = s.sessions.GetByRefreshJti(ctx, jti)
	default:
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return sess == nil, nil
}

// checkPassword verifies a candidate against the account's stored hash.
// Oversized input is rejected before hashing; the answer is only
// match/no-match, never an error.
func (s *AuthService) checkPassword(account *accountdomain.Account, candidate string) bool {
	if len([]rune(candidate)) > accountdomain.PasswordMaxLength {
		return false
	}
	return s.hasher.Match(account.PasswordHash, candidate)
}
