package notify

import "context"

// MultiSink fans a single Notify call out to every configured sink. Each
// delivery is independent: one sink's error does not block or cancel the
// others, matching spec.md's "sinks hold no shared state" policy.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a fan-out over sinks, skipping any nil entries so
// callers can build the slice unconditionally from optional config.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Notify delivers to every sink, collecting but not stopping on errors.
func (m *MultiSink) Notify(ctx context.Context, level Level, text string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, level, text); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// Len reports how many sinks are wired.
func (m *MultiSink) Len() int { return len(m.sinks) }
