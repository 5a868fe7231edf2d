package repository

import (
	"context"
	"errors"

	"city-report/backend/internal/account/domain"
)

// ErrDuplicateEmail is returned by Create when the normalized email is
// already taken (unique constraint on accounts.email).
var ErrDuplicateEmail = errors.New("email already used")

// Repository defines persistence for accounts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByActivationCode(ctx context.Context, code string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	MarkActivated(ctx context.Context, id int64) (bool, error)
	UpdateActivationCode(ctx context.Context, id int64, code string) error
}
