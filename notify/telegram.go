package notify

import (
	"context"
	"fmt"
	"strings"
)

// TelegramSink posts to a Telegram bot's sendMessage endpoint.
type TelegramSink struct {
	d *dispatcher
}

// NewTelegramSink builds a sink for the given bot token and chat id. Both
// must be non-empty; spec.md §6 requires them together.
func NewTelegramSink(botToken, chatID string, opts ...dispatchOption) (*TelegramSink, error) {
	if strings.TrimSpace(botToken) == "" || strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("notify: telegram bot token and chat id are both required")
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)
	d, err := newDispatcher("telegram", endpoint, renderTelegram(chatID), nil, opts...)
	if err != nil {
		return nil, err
	}
	return &TelegramSink{d: d}, nil
}

func renderTelegram(chatID string) renderFunc {
	return func(level Level, text string) (any, error) {
		return map[string]string{
			"chat_id": chatID,
			"text":    fmt.Sprintf("%s %s", level.Name, text),
		}, nil
	}
}

func (s *TelegramSink) Notify(ctx context.Context, level Level, text string) error {
	return s.d.Notify(ctx, level, text)
}

// Close stops the sink's delivery worker.
func (s *TelegramSink) Close() { s.d.Close() }
