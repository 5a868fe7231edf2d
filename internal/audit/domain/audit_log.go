// Package domain holds the AuditLog entity.
package domain

import "time"

// Auth actions recorded in the audit trail.
const (
	ActionRegister     = "register"
	ActionActivate     = "activate"
	ActionLogin        = "login"
	ActionLoginFailure = "login_failure"
	ActionRefresh      = "refresh"
	ActionLogout       = "logout"
	ActionLogoutAll    = "logout_all"
	ActionDeviceRevoke = "device_revoke"
)

// AuditLog is one immutable record of an auth event. AccountID is 0 for
// events with no resolved account (e.g. login_failure on an unknown email).
type AuditLog struct {
	ID        string
	AccountID int64
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
