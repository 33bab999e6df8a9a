package notify

import (
	"context"
	"fmt"
)

// DiscordSink posts to a Discord incoming-webhook URL.
type DiscordSink struct {
	d *dispatcher
}

// NewDiscordSink builds a sink for the given webhook URL.
func NewDiscordSink(webhookURL string, opts ...dispatchOption) (*DiscordSink, error) {
	d, err := newDispatcher("discord", webhookURL, renderDiscord, nil, opts...)
	if err != nil {
		return nil, err
	}
	return &DiscordSink{d: d}, nil
}

func renderDiscord(level Level, text string) (any, error) {
	return map[string]string{"content": fmt.Sprintf("%s %s", level.Name, text)}, nil
}

func (s *DiscordSink) Notify(ctx context.Context, level Level, text string) error {
	return s.d.Notify(ctx, level, text)
}

// Close stops the sink's delivery worker.
func (s *DiscordSink) Close() { s.d.Close() }
