package cli

import (
	"context"
	"log/slog"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// DebugHooks logs every engine event at debug level.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			logger.Debug("session start", "session_id", e.SessionID, "steps", e.Steps)
		},
		OnScreen: func(ctx context.Context, e *domain.ScreenEvent) {
			logger.Debug("screen", "session_id", e.SessionID, "index", e.Index,
				"classification", e.Classification, "has_input", e.HasInput, "text", e.Text)
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Err != nil {
				logger.Debug("action failed", "session_id", e.SessionID, "kind", e.Kind, "label", e.Label, "err", e.Err)
				return
			}
			logger.Debug("action", "session_id", e.SessionID, "kind", e.Kind, "label", e.Label, "value", e.Value)
		},
		OnResolve: func(ctx context.Context, e *domain.ResolveEvent) {
			logger.Debug("resolve", "session_id", e.SessionID, "outcome", e.Result.Outcome)
		},
	}
}
