// Package notify turns order transition events into user-facing
// messages for buyers and channel owners.
package notify

import (
	"context"
	"log/slog"
)

// Message is one notification. Recipient is the chat identifier the
// party registered with; for Telegram delivery it must be a numeric
// chat id.
type Message struct {
	Recipient string
	Text      string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log. It stands in for the
// Telegram notifier when no bot token is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.Info("notification", "recipient", msg.Recipient, "text", msg.Text)
	return nil
}
