package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of the consumer's broker connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConsuming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConsuming:
		return "consuming"
	default:
		return "disconnected"
	}
}

// Outcome tells the consumer what to do with a delivery once the handler
// has finished with it.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Requeue returns the message to the queue for another attempt.
	Requeue
)

// Handler processes one message body. It must not return before its side
// effects are durable, because the message is acknowledged right after.
type Handler func(ctx context.Context, body []byte) Outcome

// prefetch is fixed at one: the admission check relies on messages being
// processed strictly one at a time.
const prefetch = 1

const consumerTag = "booking-admission"

var errConnectionClosed = errors.New("broker connection closed")

// ConsumerOptions tunes reconnect and retry timing.
type ConsumerOptions struct {
	ReconnectInterval time.Duration        // wait between dial attempts
	RequeueDelay      time.Duration        // wait before requeueing a message
	OnStateChange     func(from, to State) // optional observer
}

// Consumer drains the booking queue with a single in-flight message and
// reconnects forever on broker failures.
type Consumer struct {
	dial    Dialer
	url     string
	queue   string
	handler Handler
	opts    ConsumerOptions

	mu    sync.Mutex
	state State
}

// NewConsumer builds a consumer for queue. A nil dial uses DialAMQP.
func NewConsumer(dial Dialer, url, queue string, handler Handler, opts ConsumerOptions) *Consumer {
	if dial == nil {
		dial = DialAMQP
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 5 * time.Second
	}
	return &Consumer{dial: dial, url: url, queue: queue, handler: handler, opts: opts}
}

// State reports the current connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev == s {
		return
	}
	logrus.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Info("booking-consumer: state change")
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(prev, s)
	}
}

// Run connects, consumes and reconnects until ctx is cancelled, then
// returns ctx.Err(). Broker failures never end the loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		c.setState(StateConnecting)
		conn, err := c.dial(c.url)
		if err != nil {
			c.setState(StateDisconnected)
			logrus.WithError(err).Warnf("booking-consumer: dial failed; retrying in %s", c.opts.ReconnectInterval)
			if !sleepCtx(ctx, c.opts.ReconnectInterval) {
				return ctx.Err()
			}
			continue
		}

		err = c.consume(ctx, conn)
		_ = conn.Close()
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logrus.WithError(err).Warnf("booking-consumer: consume loop ended; reconnecting in %s", c.opts.ReconnectInterval)
		if !sleepCtx(ctx, c.opts.ReconnectInterval) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := declareBookingQueue(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.setState(StateConsuming)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return fmt.Errorf("%w: %v", errConnectionClosed, amqpErr)
			}
			return errConnectionClosed
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

// deliver runs the handler and settles the delivery. A panicking handler
// is treated like any other terminal failure: logged and acknowledged so
// the queue keeps moving.
func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	outcome := c.safeHandle(ctx, d)
	if outcome == Requeue {
		sleepCtx(ctx, c.opts.RequeueDelay)
		if err := d.Nack(false, true); err != nil {
			logrus.WithError(err).WithField("message_id", d.MessageId).Error("booking-consumer: nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		logrus.WithError(err).WithField("message_id", d.MessageId).Error("booking-consumer: ack failed")
	}
}

func (c *Consumer) safeHandle(ctx context.Context, d amqp.Delivery) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("message_id", d.MessageId).Errorf("booking-consumer: handler panic: %v", r)
			outcome = Ack
		}
	}()
	return c.handler(ctx, d.Body)
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
