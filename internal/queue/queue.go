package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/model"
)

// ListQueueTopic carries tenant wake-ups for the queue drainer.
const ListQueueTopic = "mailing_list_queue"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers messages to in-process handlers with retry.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	log      *slog.Logger

	MaxRetries int
	Backoff    time.Duration
}

func NewInMemoryQueue(log *slog.Logger) *InMemoryQueue {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		log:        log,
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish hands the payload to every subscriber of topic.
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, JobPayload{Payload: payload, MaxRetries: q.MaxRetries})
	}
	return nil
}

// processJob retries with a linear backoff and drops the job after MaxRetries.
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job JobPayload) {
	for {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		q.log.Warn("job failed",
			slog.String("topic", topic),
			slog.Int("attempt", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
			slog.String("error", err.Error()),
		)

		if job.RetryCount > job.MaxRetries {
			q.log.Error("job permanently failed", slog.String("topic", topic), slog.Any("payload", job.Payload))
			return
		}

		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Notifier publishes queue wake-ups for the list gateway.
type Notifier struct {
	Queue Queue
	Topic string
}

func NewNotifier(q Queue) *Notifier {
	return &Notifier{Queue: q, Topic: ListQueueTopic}
}

func (n *Notifier) Notify(_ context.Context, note model.QueueNotification) error {
	return n.Queue.Publish(n.Topic, note)
}

var _ list.Notifier = (*Notifier)(nil)

// Drainer replays a tenant's queued list operations.
type Drainer interface {
	Drain(ctx context.Context, tenantID int64) (int, error)
}

// StartQueueDrainSubscriber drains the notified tenant's queue for every
// message on topic. Malformed payloads are dropped. Drain errors, including
// an unavailable provider, are returned so the queue retries them.
func StartQueueDrainSubscriber(q Queue, topic string, drainer Drainer, log *slog.Logger) error {
	return q.Subscribe(topic, func(payload any) error {
		note, err := DecodeNotification(payload)
		if err != nil {
			log.Warn("invalid queue notification", slog.String("error", err.Error()))
			return nil
		}

		n, err := drainer.Drain(context.Background(), note.TenantID)
		if errors.Is(err, list.ErrProviderUnavailable) {
			log.Info("provider unavailable, drain will be retried", slog.Int64("tenant_id", note.TenantID))
		}
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("drained queued list operations", slog.Int64("tenant_id", note.TenantID), slog.Int("entries", n))
		}
		return nil
	})
}

// DecodeNotification accepts in-process values and JSON broker bodies.
func DecodeNotification(payload any) (model.QueueNotification, error) {
	var note model.QueueNotification
	switch p := payload.(type) {
	case model.QueueNotification:
		return p, nil
	case *model.QueueNotification:
		if p == nil {
			return note, fmt.Errorf("nil notification")
		}
		return *p, nil
	case json.RawMessage:
		err := json.Unmarshal(p, &note)
		return note, err
	case []byte:
		err := json.Unmarshal(p, &note)
		return note, err
	}
	return note, fmt.Errorf("unexpected payload type %T", payload)
}
