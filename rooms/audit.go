package rooms

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditEntry records one privileged action
type AuditEntry struct {
	Action       string
	RoomID       string
	ActorID      string
	TargetUserID string
	MessageIDs   []string
	Reason       *string
	At           time.Time
}

// Auditor receives privileged actions after they succeed
type Auditor interface {
	Record(ctx context.Context, e AuditEntry)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, AuditEntry) {}

// LogAuditor writes audit entries to a named zap logger
type LogAuditor struct {
	log *zap.Logger
}

// NewLogAuditor returns a LogAuditor writing through l, or the global logger when l is nil
func NewLogAuditor(l *zap.Logger) *LogAuditor {
	if l == nil {
		l = zap.L()
	}
	return &LogAuditor{log: l.Named("audit")}
}

// Record logs one audit entry
func (a *LogAuditor) Record(_ context.Context, e AuditEntry) {
	fields := []zap.Field{
		zap.String("action", e.Action),
		zap.String("roomId", e.RoomID),
		zap.String("actorId", e.ActorID),
		zap.Time("at", e.At),
	}
	if e.TargetUserID != "" {
		fields = append(fields, zap.String("targetUserId", e.TargetUserID))
	}
	if len(e.MessageIDs) > 0 {
		fields = append(fields, zap.Strings("messageIds", e.MessageIDs))
	}
	if e.Reason != nil {
		fields = append(fields, zap.String("reason", *e.Reason))
	}
	a.log.Info("audit", fields...)
}
