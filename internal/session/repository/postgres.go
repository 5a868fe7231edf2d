package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"city-report/backend/internal/session/domain"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, account_id, refresh_jti, access_jti, ip_address, device, os, browser, created_at, expires_at`

// Create persists the session and fills in its generated ID and creation time.
// Returns ErrJtiConflict if either jti is already registered.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (account_id, refresh_jti, access_jti, ip_address, device, os, browser, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		s.AccountID, s.RefreshJti, s.AccessJti, s.IPAddress, s.Device, s.OS, s.Browser, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrJtiConflict
		}
		return err
	}
	return nil
}

// GetByAccessJti returns the session referencing the access jti, or nil if none.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByAccessJti(ctx context.Context, jti string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE access_jti = $1`, jti)
	return scanSession(row)
}

// GetByRefreshJti returns the session referencing the refresh jti, or nil if none.
func (r *PostgresRepository) GetByRefreshJti(ctx context.Context, jti string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_jti = $1`, jti)
	return scanSession(row)
}

// ListByAccount returns all sessions owned by the account, oldest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RotateAccessJti overwrites the access jti of the single session whose
// refresh jti matches. Returns ErrNotFound when no session matches.
func (r *PostgresRepository) RotateAccessJti(ctx context.Context, refreshJti, newAccessJti string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET access_jti = $1 WHERE refresh_jti = $2`, newAccessJti, refreshJti)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByAccessJti deletes the session referencing the access jti.
// Idempotent: deleting zero rows is not an error.
func (r *PostgresRepository) DeleteByAccessJti(ctx context.Context, jti string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE access_jti = $1`, jti)
	return err
}

// DeleteByRefreshJti deletes the session referencing the refresh jti.
// Idempotent: deleting zero rows is not an error.
func (r *PostgresRepository) DeleteByRefreshJti(ctx context.Context, jti string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_jti = $1`, jti)
	return err
}

// DeleteByID deletes the session only if it belongs to the account. The
// ownership check is part of the statement, not a separate read, so there is
// no check-then-act race. Returns true when a row was deleted.
func (r *PostgresRepository) DeleteByID(ctx context.Context, sessionID, accountID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND account_id = $2`, sessionID, accountID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteAllByAccount deletes every session owned by the account and returns
// how many were deleted.
func (r *PostgresRepository) DeleteAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.AccountID, &s.RefreshJti, &s.AccessJti, &s.IPAddress,
		&s.Device, &s.OS, &s.Browser, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
