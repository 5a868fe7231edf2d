package audit

import (
	"context"
	"sync"
	"testing"

	"city-report/backend/internal/audit/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	fail    error
}

func (r *memAuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.entries = append(r.entries, a)
	return nil
}

func (r *memAuditRepo) ListByAccount(ctx context.Context, accountID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for _, a := range r.entries {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestLogger_Record(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil)

	l.Record(context.Background(), 42, domain.ActionLogin, "203.0.113.9", "")

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" {
		t.Error("entry ID should be set")
	}
	if e.AccountID != 42 || e.Action != domain.ActionLogin || e.IP != "203.0.113.9" {
		t.Errorf("entry = %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestLogger_NilRepo(t *testing.T) {
	l := NewLogger(nil, nil)
	// Must not panic.
	l.Record(context.Background(), 1, domain.ActionLogout, "", "")
}

func TestLogger_RepoFailureIsSwallowed(t *testing.T) {
	repo := &memAuditRepo{fail: context.DeadlineExceeded}
	l := NewLogger(repo, nil)
	// Must not panic or propagate the error.
	l.Record(context.Background(), 1, domain.ActionRefresh, "", "")
}
