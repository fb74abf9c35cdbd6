package notify

import (
	"context"
	"log/slog"
)

// Log writes notifications to a logger instead of mailing them. It is the
// notifier used when no SMTP relay is configured.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendEmail(ctx context.Context, address, subject, message string) error {
	l.logger.InfoContext(ctx, "Notification", "to", address, "subject", subject, "body", message)
	return nil
}
