package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"city-report/backend/internal/audit/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an audit log repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var accountID *int64
	if a.AccountID != 0 {
		accountID = &a.AccountID
	}
	var metadata *string
	if a.Metadata != "" {
		metadata = &a.Metadata
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, account_id, action, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, accountID, a.Action, a.IP, metadata, a.CreatedAt)
	return err
}

// ListByAccount returns audit logs for the account, newest first, paginated
// by limit and offset.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, action, ip, metadata, created_at
		 FROM audit_logs WHERE account_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var acct *int64
		var metadata *string
		if err := rows.Scan(&a.ID, &acct, &a.Action, &a.IP, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		if acct != nil {
			a.AccountID = *acct
		}
		if metadata != nil {
			a.Metadata = *metadata
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
