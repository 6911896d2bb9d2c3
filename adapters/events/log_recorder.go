package events

import (
	"context"
	"log/slog"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/logging"
	"github.com/layer-3/keyauth/ports"
)

// LogRecorder writes audit events to a structured logger. It is the default
// when no broker is configured.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger.With(slog.String("component", "audit"))}
}

var _ ports.AuditRecorder = (*LogRecorder)(nil)

func (r *LogRecorder) Record(ctx context.Context, event core.AuditEvent) error {
	level := slog.LevelInfo
	if !event.Succeeded() {
		level = slog.LevelWarn
	}

	r.logger.LogAttrs(ctx, level, string(event.Action),
		logging.EventID(event.ID),
		logging.IdentityID(event.IdentityID),
		logging.Address(event.Address),
		logging.Code(string(event.Code)),
		logging.IP(event.IP),
		slog.String("user_agent", event.UserAgent),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
