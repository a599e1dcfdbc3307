package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessagePublisher publishes one booking request synchronously.
type MessagePublisher interface {
	Publish(ctx context.Context, req BookingRequest) error
}

// Publisher sends booking requests to the durable booking queue. It keeps
// one connection and channel open across calls, dials lazily, and drops
// both after any failure so the next call starts from a fresh connection.
// It is safe for concurrent use; publishes are serialised.
type Publisher struct {
	dial  Dialer
	url   string
	queue string

	mu   sync.Mutex
	conn Connection
	ch   Channel
}

// NewPublisher returns a Publisher for queue on the broker at url. A nil
// dial uses DialAMQP.
func NewPublisher(dial Dialer, url, queue string) *Publisher {
	if dial == nil {
		dial = DialAMQP
	}
	return &Publisher{dial: dial, url: url, queue: queue}
}

// Publish marshals req and publishes it as a persistent message routed
// through the default exchange to the booking queue.
func (p *Publisher) Publish(ctx context.Context, req BookingRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal booking request: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    req.BookingID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func (p *Publisher) channelLocked() (Channel, error) {
	if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareBookingQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
