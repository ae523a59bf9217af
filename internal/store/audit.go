package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

// AuditRepository appends and queries the audit log backing the dashboard's
// audit viewer.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one entry. ID and CreatedAt are assigned here.
func (r *AuditRepository) Record(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO audit_log (id, actor, actor_role, action, target, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Actor, entry.ActorRole, entry.Action, entry.Target, entry.Detail, entry.CreatedAt)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("failed to record audit entry: %w", err)
	}
	return entry, nil
}

// AuditFilter narrows a List call. Zero values mean no filtering; Limit
// defaults to 100.
type AuditFilter struct {
	Actor  string
	Action string
	Limit  int
}

func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditEntry, error) {
	query := `SELECT id, actor, actor_role, action, target, detail, created_at FROM audit_log`
	var clauses []string
	var args []any
	if filter.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, filter.Action)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
