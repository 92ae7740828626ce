package leave

import (
	"context"
	"log"
)

// LogNotifier is a Notifier that only logs. Real delivery (email templates,
// queues) lives outside this engine.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) Notify(_ context.Context, recipientEmail string, kind NotificationKind, params map[string]string) error {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify %s: %s %v", recipientEmail, kind, params)
	return nil
}
