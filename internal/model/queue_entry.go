// internal/model/queue_entry.go
package model

import "time"

// QueueEntry is a list mutation recorded while the provider was unavailable.
type QueueEntry struct {
	ID          int64             `db:"id" json:"id"`
	Seq         int64             `db:"seq" json:"seq"` // queue-wide order across kinds
	Kind        OperationKind     `db:"-" json:"kind"`
	Address     string            `db:"email" json:"email"`
	Info        map[string]string `db:"info" json:"info,omitempty"`
	SendWelcome bool              `db:"send_welcome" json:"send_welcome,omitempty"`
	TenantID    int64             `db:"tenant_id" json:"tenant_id"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// QueueNotification tells a drain worker that a tenant has pending entries.
type QueueNotification struct {
	TenantID int64         `json:"tenant_id"`
	Kind     OperationKind `json:"kind"`
}
