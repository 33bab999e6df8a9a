package notify

import "context"

// GenericWebhookSink posts a plain structured payload to an arbitrary
// endpoint, for operators wiring their own receiver.
type GenericWebhookSink struct {
	d *dispatcher
}

// NewGenericWebhookSink builds a sink for the given endpoint.
func NewGenericWebhookSink(endpoint string, opts ...dispatchOption) (*GenericWebhookSink, error) {
	d, err := newDispatcher("webhook", endpoint, renderGeneric, nil, opts...)
	if err != nil {
		return nil, err
	}
	return &GenericWebhookSink{d: d}, nil
}

func renderGeneric(level Level, text string) (any, error) {
	return map[string]any{"level": level.Value, "message": text}, nil
}

func (s *GenericWebhookSink) Notify(ctx context.Context, level Level, text string) error {
	return s.d.Notify(ctx, level, text)
}

// Close stops the sink's delivery worker.
func (s *GenericWebhookSink) Close() { s.d.Close() }
