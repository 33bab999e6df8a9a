package notify

import (
	"context"
	"fmt"
)

// SlackSink posts to a Slack incoming-webhook URL.
type SlackSink struct {
	d *dispatcher
}

// NewSlackSink builds a sink for the given webhook URL.
func NewSlackSink(webhookURL string, opts ...dispatchOption) (*SlackSink, error) {
	d, err := newDispatcher("slack", webhookURL, renderSlack, nil, opts...)
	if err != nil {
		return nil, err
	}
	return &SlackSink{d: d}, nil
}

func renderSlack(level Level, text string) (any, error) {
	return map[string]string{"text": fmt.Sprintf("%s %s", level.Name, text)}, nil
}

func (s *SlackSink) Notify(ctx context.Context, level Level, text string) error {
	return s.d.Notify(ctx, level, text)
}

// Close stops the sink's delivery worker.
func (s *SlackSink) Close() { s.d.Close() }
