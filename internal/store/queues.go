package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

// QueueRepository reads and updates the per-domain queue summaries shown in
// the dashboard queue table.
type QueueRepository struct {
	db *sqlx.DB
}

func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) List(ctx context.Context) ([]models.QueueSummary, error) {
	var queues []models.QueueSummary
	query := `SELECT name, domain, message_count, deferred_count, status, updated_at
		FROM queue_summaries ORDER BY name`
	if err := r.db.SelectContext(ctx, &queues, query); err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	return queues, nil
}

func (r *QueueRepository) Get(ctx context.Context, name string) (*models.QueueSummary, error) {
	var queue models.QueueSummary
	query := r.db.Rebind(`SELECT name, domain, message_count, deferred_count, status, updated_at
		FROM queue_summaries WHERE name = ?`)
	err := r.db.GetContext(ctx, &queue, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load queue %s: %w", name, err)
	}
	return &queue, nil
}

// UpsertSummary records the latest MTA snapshot for a queue.
func (r *QueueRepository) UpsertSummary(ctx context.Context, q models.QueueSummary) error {
	q.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO queue_summaries (name, domain, message_count, deferred_count, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			domain = excluded.domain,
			message_count = excluded.message_count,
			deferred_count = excluded.deferred_count,
			status = excluded.status,
			updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, q.Name, q.Domain, q.MessageCount, q.DeferredCount, q.Status, q.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert queue %s: %w", q.Name, err)
	}
	return nil
}

// SetStatus flips a queue between active and suspended.
func (r *QueueRepository) SetStatus(ctx context.Context, name, status string) (*models.QueueSummary, error) {
	query := r.db.Rebind(`UPDATE queue_summaries SET status = ?, updated_at = ? WHERE name = ?`)
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to set queue %s status: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, name)
}
