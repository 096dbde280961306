package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// AMQPQueue implements Queue on durable RabbitMQ queues named after topics.
// Subscribers receive the raw JSON body as json.RawMessage.
type AMQPQueue struct {
	conn *amqp.Connection
	log  *slog.Logger

	mu     sync.Mutex
	ch     *amqp.Channel
	closed bool

	done     chan error
	failOnce sync.Once
}

func DialAMQP(url string, log *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q := &AMQPQueue{conn: conn, ch: ch, log: log, done: make(chan error, 1)}
	go q.watch("connection", conn.NotifyClose(make(chan *amqp.Error, 1)))
	return q, nil
}

// Done delivers one error when the broker closes the connection or a
// consumer stops. It is not signalled by Close.
func (q *AMQPQueue) Done() <-chan error {
	return q.done
}

// watch reports an unexpected close on closes. A graceful close closes the
// channel without an error.
func (q *AMQPQueue) watch(source string, closes <-chan *amqp.Error) {
	e, ok := <-closes
	if !ok || e == nil {
		return
	}
	q.fail(fmt.Errorf("rabbitmq %s closed: %w", source, e))
}

func (q *AMQPQueue) consumerStopped(topic string) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		q.log.Info("consumer stopped", slog.String("topic", topic))
		return
	}
	q.fail(fmt.Errorf("consumer for %s stopped", topic))
}

func (q *AMQPQueue) fail(err error) {
	q.failOnce.Do(func() {
		q.log.Error("rabbitmq unavailable", slog.String("error", err.Error()))
		q.done <- err
	})
}

func declare(ch *amqp.Channel, topic string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := declare(q.ch, topic); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return q.ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Subscribe consumes on its own channel. A failed delivery is requeued once
// and dropped if it fails again.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := declare(ch, topic); err != nil {
		ch.Close()
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	msgs, err := ch.Consume(
		topic,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			if err := handler(json.RawMessage(d.Body)); err != nil {
				q.log.Warn("message handling failed",
					slog.String("topic", topic),
					slog.Bool("redelivered", d.Redelivered),
					slog.String("error", err.Error()),
				)
				d.Nack(false, !d.Redelivered)
				continue
			}
			d.Ack(false)
		}
		q.consumerStopped(topic)
	}()
	return nil
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if err := q.ch.Close(); err != nil {
		q.log.Warn("close channel", slog.String("error", err.Error()))
	}
	return q.conn.Close()
}

var (
	_ Queue = (*InMemoryQueue)(nil)
	_ Queue = (*AMQPQueue)(nil)
)
