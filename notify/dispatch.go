package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultTimeout     = 10 * time.Second
	defaultQueueDepth  = 64
)

// renderFunc turns a level/text pair into the JSON body a sink's endpoint
// expects.
type renderFunc func(level Level, text string) (any, error)

// dispatcher is the shared queued, retrying HTTP delivery mechanism behind
// every concrete sink in this package: one worker goroutine drains a
// bounded queue and POSTs each body with exponential backoff, exactly as
// the webhook dispatcher this package generalizes already did.
type dispatcher struct {
	name     string
	endpoint string
	client   *http.Client
	render   renderFunc
	headers  map[string]string

	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan []byte
	wg     sync.WaitGroup
}

// dispatchOption mutates a dispatcher's retry/transport configuration
// before its worker starts.
type dispatchOption func(*dispatcher)

// withRetryPolicy overrides the retry/backoff schedule; used by tests that
// would otherwise wait out the default 2s-30s schedule.
func withRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) dispatchOption {
	return func(d *dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

func newDispatcher(name, endpoint string, render renderFunc, headers map[string]string, opts ...dispatchOption) (*dispatcher, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("notify: %s endpoint required", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &dispatcher{
		name:        name,
		endpoint:    endpoint,
		client:      &http.Client{Timeout: defaultTimeout},
		render:      render,
		headers:     headers,
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan []byte, defaultQueueDepth),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close stops accepting new deliveries, cancels any in-flight delivery or
// backoff wait, drops bodies still queued, and returns once the worker has
// exited.
func (d *dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}

func (d *dispatcher) Notify(ctx context.Context, level Level, text string) error {
	body, err := d.render(level, text)
	if err != nil {
		return &NotificationError{Sink: d.name, Err: err}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return &NotificationError{Sink: d.name, Err: err}
	}
	select {
	case d.queue <- data:
		return nil
	case <-d.ctx.Done():
		return &NotificationError{Sink: d.name, Err: errors.New("dispatcher closed")}
	case <-ctx.Done():
		return &NotificationError{Sink: d.name, Err: ctx.Err()}
	default:
		return &NotificationError{Sink: d.name, Err: errors.New("delivery queue full")}
	}
}

func (d *dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case body := <-d.queue:
			d.deliver(body)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *dispatcher) deliver(body []byte) {
	backoff := d.minBackoff
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, body)
		cancel()
		if err == nil {
			return
		}
		if attempt == d.maxAttempts {
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *dispatcher) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("notify: %s delivery failed with status %d", d.name, resp.StatusCode)
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
