// Package telemetry emits audit events to observability backends (OTel Logs).
package telemetry

import (
	"context"

	"identity-core/internal/audit/domain"
)

// EventEmitter emits audit events (e.g. as OTel log records). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuditLog) error
}
