// Package domain holds the Account entity and its credential policy rules.
package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

// Password policy bounds. The upper bound exists so attacker-controlled
// oversized input is rejected before it ever reaches the hash function.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 128
)

var (
	// ErrPasswordPolicy is wrapped by all password policy violations.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidEmail is returned when an email address cannot be normalized.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Account is a registered user of the site. Email is stored normalized and is
// unique. PasswordHash is write-only: callers verify candidates through the
// hasher, never read the hash back out.
type Account struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	IsActivated    bool
	ActivationCode string
	CreatedAt      time.Time
}

// ValidatePassword checks the raw password against the policy: length within
// [PasswordMinLength, PasswordMaxLength] and at least one digit, one
// uppercase letter, one lowercase letter, and one non-alphanumeric character.
// Runs before hashing so rejected passwords are never persisted in any form.
func ValidatePassword(password string) error {
	runes := []rune(password)
	if len(runes) < PasswordMinLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrPasswordPolicy, PasswordMinLength)
	}
	if len(runes) > PasswordMaxLength {
		return fmt.Errorf("%w: must be at most %d characters long", ErrPasswordPolicy, PasswordMaxLength)
	}
	var hasDigit, hasUpper, hasLower, hasSpecial bool
	for _, r := range runes {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case !unicode.IsLetter(r):
			hasSpecial = true
		}
	}
	if !hasDigit {
		return fmt.Errorf("%w: must contain at least one digit", ErrPasswordPolicy)
	}
	if !hasUpper {
		return fmt.Errorf("%w: must contain at least one uppercase letter", ErrPasswordPolicy)
	}
	if !hasLower {
		return fmt.Errorf("%w: must contain at least one lowercase letter", ErrPasswordPolicy)
	}
	if !hasSpecial {
		return fmt.Errorf("%w: must contain at least one special character", ErrPasswordPolicy)
	}
	return nil
}

// NormalizeEmail validates the address structurally and returns its
// normalized (trimmed, lowercased addr-spec) form. The normalized form is
// used both for storage and for every lookup, so `Test@Foo.com` and
// `test@foo.com` resolve to the same account.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", ErrInvalidEmail
	}
	// Reject display-name forms like `Name <a@b.c>`; only a bare addr-spec
	// is a valid account email.
	if addr.Address != email {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
