package notifier

import (
	"context"
	"log/slog"

	"github.com/skalra/auros/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes match alerts to the given logger. Used when no Slack
// webhook is configured but alerts should still be visible.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message and always reports success.
func (n *LogNotifier) Notify(_ context.Context, message string) bool {
	n.logger.Info("job match", "message", message)
	return true
}
