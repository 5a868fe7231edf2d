package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"city-report/backend/internal/account/domain"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an account repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const accountColumns = `id, first_name, last_name, email, password_hash, is_activated, activation_code, created_at`

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail returns the account for the normalized email, or nil if not found.
// Callers must normalize the email first; the lookup is an exact match.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// GetByActivationCode returns the account holding the given activation code, or nil if not found.
func (r *PostgresRepository) GetByActivationCode(ctx context.Context, code string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE activation_code = $1`, code)
	return scanAccount(row)
}

// Create persists the account and fills in its generated ID and creation time.
// Returns ErrDuplicateEmail if the email is already taken.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (first_name, last_name, email, password_hash, is_activated, activation_code)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		a.FirstName, a.LastName, a.Email, a.PasswordHash, a.IsActivated, a.ActivationCode,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// MarkActivated flips is_activated to true for the account. Returns false if
// the account does not exist or was already activated; the flag flips exactly
// once.
func (r *PostgresRepository) MarkActivated(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET is_activated = TRUE WHERE id = $1 AND is_activated = FALSE`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateActivationCode replaces the account's activation code; the previous
// code stops working immediately.
func (r *PostgresRepository) UpdateActivationCode(ctx context.Context, id int64, code string) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET activation_code = $1 WHERE id = $2`, code, id)
	return err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.IsActivated, &a.ActivationCode, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
