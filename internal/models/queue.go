package models

import "time"

// Queue status values as reported by the MTA.
const (
	QueueStatusActive    = "active"
	QueueStatusSuspended = "suspended"
	QueueStatusDraining  = "draining"
)

// QueueSummary is one row of the dashboard queue table: the per-domain
// delivery queue as last reported by the MTA.
type QueueSummary struct {
	Name          string    `json:"name" db:"name"`
	Domain        string    `json:"domain" db:"domain"`
	MessageCount  int       `json:"message_count" db:"message_count"`
	DeferredCount int       `json:"deferred_count" db:"deferred_count"`
	Status        string    `json:"status" db:"status"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// AuditEntry records one administrative action for the audit-log viewer.
type AuditEntry struct {
	ID        string    `json:"id" db:"id"`
	Actor     string    `json:"actor" db:"actor"`
	ActorRole Role      `json:"actor_role" db:"actor_role"`
	Action    string    `json:"action" db:"action"`
	Target    string    `json:"target" db:"target"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
