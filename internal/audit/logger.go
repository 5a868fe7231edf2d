// Package audit records auth events to a best-effort audit trail.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"city-report/backend/internal/audit/domain"
	auditrepo "city-report/backend/internal/audit/repository"
)

// Recorder writes a single audit event. Used by the auth service code paths.
// Record is best-effort: failures are logged and do not affect the caller.
type Recorder interface {
	Record(ctx context.Context, accountID int64, action, ip, metadata string)
}

// Logger implements Recorder using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  *slog.Logger
}

// NewLogger returns a Recorder that persists to repo. log may be nil; then
// slog.Default is used for failure reporting.
func NewLogger(repo auditrepo.Repository, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, log: log}
}

// Record writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, accountID int64, action, ip, metadata string) {
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Action:    action,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("audit: failed to record event",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
	}
}

// Noop is a Recorder that discards events. Used in tests and when auditing is disabled.
type Noop struct{}

func (Noop) Record(context.Context, int64, string, string, string) {}
