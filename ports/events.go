package ports

import (
	"context"

	"github.com/layer-3/keyauth/core"
)

// AuditRecorder receives audit events. Failures never affect the flow that
// produced the event.
type AuditRecorder interface {
	Record(ctx context.Context, event core.AuditEvent) error
}
