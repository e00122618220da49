package audit

import (
	"context"

	"github.com/streampulse/viewership-service/pkg/log"
)

// Audit actions for viewership-service.
const (
	ActionJoin  = "listener.join"
	ActionLeave = "listener.leave"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, streamID, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldStreamID, streamID).
		Str(log.FieldUserID, userID).
		Msg(msg)
}
