// Package dispatcher routes recorded simulation events to topic handlers.
// Handlers run inline or behind a per-topic buffer drained by one goroutine,
// so events of a topic are handled in publish order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fpsframework/firearm/internal/dispatcher"

var (
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrUnknownTopic is returned by Dispatch for a topic without handler.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrQueueFull is returned by a non-blocking buffered topic that is full.
	ErrQueueFull = errors.New("queue full")
)

// Event is a published simulation record.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes one event.
type HandlerFunc func(Event) error

// Logger is the key/value logger the dispatcher reports through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

// Buffered makes the handler asynchronous behind a queue of the given size.
func Buffered(size int) Option {
	return func(r *route) { r.size = size }
}

// Blocking makes a buffered topic stall the publisher when full instead of
// dropping the event.
func Blocking() Option {
	return func(r *route) { r.blocking = true }
}

// Logged logs every event at debug level and failures at error level.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

// TopicStats counts the outcomes of one topic.
type TopicStats struct {
	Handled int64 `json:"handled"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
	Queued  int   `json:"queued"`
}

type route struct {
	topic    string
	handler  HandlerFunc
	size     int
	blocking bool
	logged   bool
	attr     attribute.KeyValue

	buffer  chan Event
	handled atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// Dispatcher routes events to registered handlers. Register every topic
// before the first Dispatch.
type Dispatcher struct {
	routes map[string]*route
	logger Logger
	events metric.Int64Counter

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// New creates a dispatcher reporting through the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		routes: make(map[string]*route),
		logger: logger,
	}
	m := otel.Meter(instrumentationName)

	var err error
	d.events, err = m.Int64Counter("dispatcher.events",
		metric.WithDescription("Events by topic and outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	queued, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a topic buffer"))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, r := range d.routes {
			if r.buffer != nil {
				o.ObserveInt64(queued, int64(len(r.buffer)), metric.WithAttributes(r.attr))
			}
		}
		return nil
	}, queued)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	return d, nil
}

// Register installs the handler of a topic, replacing any earlier one.
func (d *Dispatcher) Register(topic string, h HandlerFunc, opts ...Option) {
	r := &route{topic: topic, handler: h, attr: attribute.String("topic", topic)}
	for _, opt := range opts {
		opt(r)
	}
	if r.size > 0 {
		r.buffer = make(chan Event, r.size)
		d.workers.Add(1)
		go d.drain(r)
	}
	d.routes[topic] = r
}

// HasHandler reports whether a topic has a handler.
func (d *Dispatcher) HasHandler(topic string) bool {
	_, ok := d.routes[topic]
	return ok
}

// Dispatch routes an event to its topic. A zero Timestamp is set to the
// current wall time. For buffered topics the returned error only covers
// queueing; handler failures are logged and counted.
func (d *Dispatcher) Dispatch(e Event) error {
	r, ok := d.routes[e.Topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, e.Topic)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if r.buffer == nil {
		return d.handle(r, e)
	}
	if r.blocking {
		r.buffer <- e
		return nil
	}
	select {
	case r.buffer <- e:
		return nil
	default:
		r.dropped.Add(1)
		d.count(r, "dropped")
		return fmt.Errorf("%w: %s", ErrQueueFull, r.topic)
	}
}

func (d *Dispatcher) drain(r *route) {
	defer d.workers.Done()
	for e := range r.buffer {
		if err := d.handle(r, e); err != nil && !r.logged {
			d.logger.Error("buffered handler failed", "topic", r.topic, "error", err)
		}
	}
}

func (d *Dispatcher) handle(r *route, e Event) error {
	start := time.Now()
	if r.logged {
		d.logger.Debug("handling event", "topic", r.topic, "payload", fmt.Sprintf("%T", e.Payload))
	}
	err := r.handler(e)
	if err != nil {
		r.failed.Add(1)
		d.count(r, "failed")
		if r.logged {
			d.logger.Error("event failed", "topic", r.topic, "duration", time.Since(start), "error", err)
		}
		return err
	}
	r.handled.Add(1)
	d.count(r, "handled")
	if r.logged {
		d.logger.Debug("event complete", "topic", r.topic, "duration", time.Since(start))
	}
	return nil
}

func (d *Dispatcher) count(r *route, outcome string) {
	d.events.Add(context.Background(), 1, metric.WithAttributes(r.attr, attribute.String("outcome", outcome)))
}

// Pending returns the number of events waiting in all topic buffers.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, r := range d.routes {
		n += len(r.buffer)
	}
	return n
}

// Stats returns per-topic outcome counts.
func (d *Dispatcher) Stats() map[string]TopicStats {
	out := make(map[string]TopicStats, len(d.routes))
	for topic, r := range d.routes {
		out[topic] = TopicStats{
			Handled: r.handled.Load(),
			Failed:  r.failed.Load(),
			Dropped: r.dropped.Load(),
			Queued:  len(r.buffer),
		}
	}
	return out
}

// Topics returns the registered topics in sorted order.
func (d *Dispatcher) Topics() []string {
	out := make([]string, 0, len(d.routes))
	for topic := range d.routes {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting events, lets every buffer drain and waits for the
// drain goroutines to exit. It is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.buffer != nil {
			close(r.buffer)
		}
	}
	d.mu.Unlock()

	d.workers.Wait()
}
