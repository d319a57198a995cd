// Package audit records authentication events. Recording is best-effort:
// a failed write is logged and never fails the operation that triggered it.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"identity-core/internal/audit/domain"
	auditrepo "identity-core/internal/audit/repository"
	"identity-core/internal/telemetry"
)

// Actions recorded by the auth flows. Metadata never contains secrets;
// failed logins record the attempted email, nothing else.
const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionLoginFailure   = "login_failure"
	ActionRefresh        = "token_refresh"
	ActionLogout         = "logout"
	ActionPasswordChange = "password_change"
	ActionDelete         = "identity_delete"
	ActionOAuthLogin     = "oauth_login"
)

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, authID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository, optionally
// mirroring each event to a telemetry emitter.
type Logger struct {
	repo    auditrepo.Repository
	emitter telemetry.EventEmitter
}

// NewLogger returns an AuditLogger that persists to repo and, when emitter is
// non-nil, emits each event asynchronously (e.g. to OTel Logs).
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter) *Logger {
	return &Logger{repo: repo, emitter: emitter}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and
// not returned.
func (l *Logger) LogEvent(ctx context.Context, authID, action, resource, metadata string) {
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		AuthID:    authID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
		}
	}
	telemetry.EmitAsync(l.emitter, ctx, entry)
}

// Nop is an AuditLogger that discards events. Used in tests and in
// deployments that disable audit persistence.
type Nop struct{}

func (Nop) LogEvent(ctx context.Context, authID, action, resource, metadata string) {}
