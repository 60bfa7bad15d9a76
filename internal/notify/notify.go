// Package notify holds ranking.Listener implementations: a zap log sink, a
// Redis publisher and a fan-out.
package notify

import (
	"context"

	"go.uber.org/zap"

	"ranking-service/internal/ranking"
)

// Multi forwards every event to each listener in order.
type Multi []ranking.Listener

func (m Multi) OnVoteResult(ctx context.Context, r ranking.VoteResult) {
	for _, l := range m {
		l.OnVoteResult(ctx, r)
	}
}

func (m Multi) OnRefreshed(ctx context.Context, namespace string, items []ranking.Item) {
	for _, l := range m {
		l.OnRefreshed(ctx, namespace, items)
	}
}

func (m Multi) OnUnauthorized(ctx context.Context) {
	for _, l := range m {
		l.OnUnauthorized(ctx)
	}
}

func (m Multi) OnForbidden(ctx context.Context) {
	for _, l := range m {
		l.OnForbidden(ctx)
	}
}

// Logger writes events to a zap logger.
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log}
}

func (l *Logger) OnVoteResult(_ context.Context, r ranking.VoteResult) {
	fields := []zap.Field{
		zap.String("namespace", r.Namespace),
		zap.String("item", r.ItemID),
		zap.String("name", r.Name),
		zap.String("outcome", string(r.Outcome)),
	}
	if r.Err != nil && r.Outcome == ranking.VoteError {
		l.log.Warn("notify: vote result", append(fields, zap.Error(r.Err))...)
		return
	}
	l.log.Info("notify: vote result", fields...)
}

func (l *Logger) OnRefreshed(_ context.Context, namespace string, items []ranking.Item) {
	l.log.Info("notify: ranking refreshed", zap.String("namespace", namespace), zap.Int("items", len(items)))
}

func (l *Logger) OnUnauthorized(context.Context) {
	l.log.Warn("notify: session expired, sign in again")
}

func (l *Logger) OnForbidden(context.Context) {
	l.log.Warn("notify: session lacks editor rights, back to public view")
}
