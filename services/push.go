package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// PushMessage is the body published for the push worker.
type PushMessage struct {
	UserID  uint            `json:"userId"`
	Event   string          `json:"event"`
	Context DeliveryContext `json:"context"`
	SentAt  time.Time       `json:"sentAt"`
}

// AMQPDeliverer publishes events to a durable queue consumed by the push
// worker, which owns formatting, retries and foreground suppression.
type AMQPDeliverer struct {
	ch    *amqp.Channel
	queue string
}

func NewAMQPDeliverer(conn *amqp.Connection, queue string) (*AMQPDeliverer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPDeliverer{ch: ch, queue: q.Name}, nil
}

func (d *AMQPDeliverer) Deliver(ctx context.Context, userID uint, event string, dc DeliveryContext) error {
	body, err := json.Marshal(PushMessage{UserID: userID, Event: event, Context: dc, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return d.ch.PublishWithContext(ctx,
		"",
		d.queue,
		false,
		false, amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		})
}

func (d *AMQPDeliverer) Close() error {
	return d.ch.Close()
}

// LogDeliverer is used when no broker is configured.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ctx context.Context, userID uint, event string, dc DeliveryContext) error {
	log.Info().Uint("user", userID).Str("event", event).Str("room", dc.RoomCode).Bool("online", dc.Online).Msg("notification")
	return nil
}
