// Package changefeed publishes activity cache changes to Kafka.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/activitysync/internal/cache"
)

// DefaultTopic receives cache change events unless configured otherwise.
const DefaultTopic = "activity_cache_changes"

// EventTypeHeader carries the change kind on every message.
const EventTypeHeader = "event_type"

// registryKey partitions changes that concern the whole cache.
const registryKey = "registry"

// ErrStarted is returned when Start is called more than once.
var ErrStarted = errors.New("changefeed: publisher already started")

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Event is the JSON payload written for one cache change.
type Event struct {
	EventID    string           `json:"event_id"`
	ActivityID string           `json:"activity_id,omitempty"`
	Kind       cache.ChangeKind `json:"kind"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// EventFromChange converts a registry change into an event with a fresh ID.
func EventFromChange(c cache.Change) Event {
	return Event{
		EventID:    uuid.NewString(),
		ActivityID: c.ActivityID,
		Kind:       c.Kind,
		OccurredAt: c.At.UTC(),
	}
}

func (e Event) message() (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal change event: %w", err)
	}
	key := e.ActivityID
	if key == "" {
		key = registryKey
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Time:    e.OccurredAt,
		Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte("activity." + string(e.Kind))}},
	}, nil
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger overrides the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBuffer sets how many events may wait for delivery before new ones are dropped.
func WithBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.bufferSize = size
		}
	}
}

// WithBatch bounds a Kafka write by size and by how long the first event waits.
func WithBatch(size int, interval time.Duration) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.batchSize = size
		}
		if interval > 0 {
			p.flushInterval = interval
		}
	}
}

// Publisher forwards cache changes to a Kafka topic. Enqueueing never blocks,
// so cache mutations are not slowed down by the broker.
type Publisher struct {
	producer      messageWriter
	topic         string
	logger        *slog.Logger
	bufferSize    int
	batchSize     int
	flushInterval time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	events  chan Event

	shutdownComplete chan struct{}
}

// NewPublisher constructs a Publisher writing to topic through producer.
func NewPublisher(producer messageWriter, topic string, opts ...Option) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &Publisher{
		producer:         producer,
		topic:            topic,
		logger:           slog.Default(),
		bufferSize:       256,
		batchSize:        50,
		flushInterval:    100 * time.Millisecond,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.events = make(chan Event, p.bufferSize)
	return p
}

// Attach subscribes the publisher to every change of registry.
func (p *Publisher) Attach(registry *cache.Registry) (detach func()) {
	return registry.Subscribe(func(c cache.Change) {
		p.Enqueue(EventFromChange(c))
	})
}

// Enqueue queues e for delivery. It reports false when the event was dropped.
func (p *Publisher) Enqueue(e Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		droppedCounter.Inc()
		return false
	}
	select {
	case p.events <- e:
		return true
	default:
		droppedCounter.Inc()
		return false
	}
}

// Start runs the delivery loop until Close is called or ctx ends. It should be
// called in a goroutine. Started after Close, it drains what is queued and returns.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrStarted
	}
	p.started = true
	p.mu.Unlock()
	defer close(p.shutdownComplete)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, p.batchSize)
	for {
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx), batch)
			return ctx.Err()
		case e, ok := <-p.events:
			if !ok {
				p.flush(ctx, batch)
				return nil
			}
			batch = append(batch, e)
			if len(batch) >= p.batchSize {
				p.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	close(p.events)
	p.mu.Unlock()

	if started {
		<-p.shutdownComplete
	}
}

func (p *Publisher) flush(ctx context.Context, batch []Event) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	msgs := make([]kafka.Message, 0, len(batch))
	for _, e := range batch {
		msg, err := e.message()
		if err != nil {
			failedCounter.Inc()
			p.logger.ErrorContext(ctx, "change event dropped", "event_id", e.EventID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}

	if err := p.producer.WriteMessages(ctx, p.topic, msgs...); err != nil {
		failedCounter.Add(float64(len(msgs)))
		p.logger.ErrorContext(ctx, "change feed delivery failed", "topic", p.topic, "events", len(msgs), "error", err)
		return
	}
	publishedCounter.Add(float64(len(msgs)))
}
