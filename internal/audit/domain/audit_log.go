package domain

import "time"

// AuditLog represents one recorded authentication event.
type AuditLog struct {
	ID        string
	AuthID    string
	Action    string
	Resource  string
	Metadata  string
	CreatedAt time.Time
}
