package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler receives each decoded change notification.  Deliveries are
// acked after the handler returns; a notification the handler cannot
// use is simply dropped, which is acceptable because a later full
// refresh reconverges the state.
type Handler func(n Notification)

// StartConsumer connects to the broker, binds a private queue to the
// change exchange and delivers every notification to the handler.  It
// runs a reconnect loop with doubling backoff (capped at 30s) until
// the context is cancelled; transient broker outages only delay
// delivery.  The sessionID names the private queue so redeployments
// of the same client reuse it.
func StartConsumer(ctx context.Context, url, sessionID string, handle Handler) error {
	if url == "" {
		log.Printf("feed: no broker URL configured; change feed disabled")
		return nil
	}
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("feed: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(ctx, conn, sessionID, handle); err != nil {
			log.Printf("feed: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		_ = conn.Close()
		return nil
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sessionID string, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("feed: set QoS failed: %v", err)
	}

	if err := ch.ExchangeDeclare(changeExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	queueName := changeExchange + "." + sessionID
	q, err := ch.QueueDeclare(queueName, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", changeExchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			var n Notification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				log.Printf("feed: drop malformed notification: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue
				continue
			}
			handle(n)
			_ = d.Ack(false)
		}
	}
}
