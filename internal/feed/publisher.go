package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// changeExchange is the fanout exchange all change notifications go
// through.  Fanout, because every connected client needs every event.
const changeExchange = "reservation.changes"

// Publisher emits change notifications to the broker.  Errors are
// logged and returned so callers can ignore them: a failed publish
// means the other clients catch up on their next full refresh, never
// that local state is wrong.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the given broker URL.  An
// empty URL yields a nil Publisher, which drops all notifications;
// callers may publish unconditionally.
func NewPublisher(url string) *Publisher {
	if url == "" {
		return nil
	}
	return &Publisher{url: url}
}

// Publish marshals the notification and sends it to the change
// exchange.  The connection is dialed per publish; mutations are rare
// enough that connection churn is cheaper than tending a long-lived
// channel through broker restarts.
func (p *Publisher) Publish(ctx context.Context, n Notification) error {
	if p == nil {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("feed: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("feed: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so the exchange survives broker restarts.
	if err := ch.ExchangeDeclare(changeExchange, "fanout", true, false, false, false, nil); err != nil {
		log.Printf("feed: exchange declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("feed: marshal notification failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, changeExchange, "", false, false, pub); err != nil {
		log.Printf("feed: publish failed: %v", err)
		return err
	}
	return nil
}
