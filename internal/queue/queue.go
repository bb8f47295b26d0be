// Package queue carries raw Telegram updates from the poller process to the
// game process over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/update"
)

// DefaultQueue is the queue both processes use unless configured otherwise.
const DefaultQueue = "updates_for_game"

// ErrClosed is returned by Consumer.Run when the broker closes the delivery channel.
var ErrClosed = errors.New("delivery channel closed")

// Channel is the part of *amqp.Channel the feed uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
}

// Dial connects to the broker and opens a channel.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return conn, ch, nil
}

// Declare creates the durable update queue if it does not exist.
func Declare(ch Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Publisher sends updates to the queue.
type Publisher struct {
	ch    Channel
	queue string
}

// NewPublisher creates a publisher for the queue.
func NewPublisher(ch Channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

// Publish sends the update as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, u tele.Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish update %d: %w", u.ID, err)
	}

	log.Debug().Int("update_id", u.ID).Str("message_id", msg.MessageId).Msg("Update published")
	return nil
}

// Handler processes decoded updates.
type Handler interface {
	HandleUpdate(ctx context.Context, u update.Update) error
}

// Consumer reads updates from the queue and hands them to a Handler.
type Consumer struct {
	ch       Channel
	queue    string
	handler  Handler
	prefetch int
}

// NewConsumer creates a consumer.
func NewConsumer(ch Channel, queue string, handler Handler, prefetch int) *Consumer {
	return &Consumer{ch: ch, queue: queue, handler: handler, prefetch: prefetch}
}

// Run consumes until ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	if c.prefetch > 0 {
		if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set prefetch: %w", err)
		}
	}
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	log.Info().Str("queue", c.queue).Msg("Consuming updates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			c.process(ctx, d)
		}
	}
}

// process settles one delivery. Undecodable bodies are dropped. A failed
// update is requeued once and dropped when it fails again.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("message_id", d.MessageId).Msg("Recovered from panic in consumer")
			settle(d.Ack(false))
		}
	}()

	var tu tele.Update
	if err := json.Unmarshal(d.Body, &tu); err != nil {
		log.Warn().Err(err).Str("message_id", d.MessageId).Msg("Dropping undecodable update")
		settle(d.Ack(false))
		return
	}
	u, ok := update.FromTelegram(tu)
	if !ok {
		settle(d.Ack(false))
		return
	}

	if err := c.handler.HandleUpdate(ctx, u); err != nil {
		if d.Redelivered {
			log.Error().Err(err).Int("update_id", u.ID).Msg("Dropping update after retry")
			settle(d.Ack(false))
			return
		}
		settle(d.Nack(false, true))
		return
	}
	settle(d.Ack(false))
}

func settle(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("Failed to settle delivery")
	}
}
