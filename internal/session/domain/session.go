// Package domain holds the Session entity: one row per live device session.
package domain

import (
	"time"

	"github.com/mileusna/useragent"
)

// Session binds one access-token jti and one refresh-token jti to an account
// and the device that logged in. A session's presence is the authority for
// "this token is not revoked": absence of either jti means that token is
// revoked. Created once per login, mutated in place on refresh (AccessJti
// only), deleted on logout.
type Session struct {
	ID         int64
	AccountID  int64
	RefreshJti string
	// AccessJti is overwritten on every refresh; RefreshJti never changes.
	AccessJti string
	IPAddress string
	// Device, OS, and Browser are best-effort families parsed from the
	// login's User-Agent; nil when no family was recognized.
	Device    *string
	OS        *string
	Browser   *string
	CreatedAt time.Time
	// ExpiresAt mirrors the refresh token's expiry. Expired rows are pruned
	// lazily; token expiry itself is enforced by JWT exp verification.
	ExpiresAt time.Time
}

// ParseDevice fills Device, OS, and Browser from a raw User-Agent string.
// Unrecognized families stay nil; an empty or garbage user agent is not an
// error.
func (s *Session) ParseDevice(rawUserAgent string) {
	if rawUserAgent == "" {
		return
	}
	ua := useragent.Parse(rawUserAgent)
	s.Device = nonEmpty(deviceFamily(ua))
	s.OS = nonEmpty(ua.OS)
	s.Browser = nonEmpty(ua.Name)
}

func deviceFamily(ua useragent.UserAgent) string {
	if ua.Device != "" {
		return ua.Device
	}
	switch {
	case ua.Mobile:
		return "Mobile"
	case ua.Tablet:
		return "Tablet"
	case ua.Desktop:
		return "Desktop"
	default:
		return ""
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
