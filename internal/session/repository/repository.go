package repository

import (
	"context"
	"errors"

	"city-report/backend/internal/session/domain"
)

var (
	// ErrJtiConflict is returned by Create when a session already references
	// one of the jtis. Should be unreachable while jtis are fresh UUIDs, but
	// the registry surfaces it rather than silently overwriting.
	ErrJtiConflict = errors.New("session jti already registered")
	// ErrNotFound is returned by RotateAccessJti when no session matches the
	// refresh jti.
	ErrNotFound = errors.New("session not found")
)

// Repository defines persistence for sessions. It is the single source of
// truth for "is this token still valid": lookups by jti back the revocation
// check, deletes implement logout.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByAccessJti(ctx context.Context, jti string) (*domain.Session, error)
	GetByRefreshJti(ctx context.Context, jti string) (*domain.Session, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.Session, error)
	RotateAccessJti(ctx context.Context, refreshJti, newAccessJti string) error
	DeleteByAccessJti(ctx context.Context, jti string) error
	DeleteByRefreshJti(ctx context.Context, jti string) error
	DeleteByID(ctx context.Context, sessionID, accountID int64) (bool, error)
	DeleteAllByAccount(ctx context.Context, accountID int64) (int64, error)
}
