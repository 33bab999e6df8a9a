// Package notify delivers rendered validation messages to external sinks:
// Discord and Slack incoming webhooks, a Telegram bot, and a generic JSON
// webhook. Delivery is fire-and-forget and best-effort: a NotificationError
// is logged and swallowed, never propagated back into the observer loop.
package notify

import (
	"context"
)

// Level mirrors fsp/validate.Level without importing it, keeping notify
// decoupled from the validation engine; callers pass the numeric level and
// its rendered name.
type Level struct {
	Value int
	Name  string
}

// Sink delivers one already-rendered message. Implementations must not
// block the caller for longer than their own internal timeout and must
// never panic on delivery failure.
type Sink interface {
	Notify(ctx context.Context, level Level, text string) error
}

// NotificationError wraps a delivery failure from a specific sink. The
// observer loop logs and discards these; it never treats them as fatal.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string {
	return "notify: " + e.Sink + ": " + e.Err.Error()
}

func (e *NotificationError) Unwrap() error { return e.Err }
