package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPublisherFull is returned by Enqueue when the buffer is full.
	ErrPublisherFull = errors.New("publish buffer full")
	// ErrPublisherClosed is returned by Enqueue after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

// AsyncPublisher decouples HTTP handlers from the broker. Requests are
// placed in a bounded buffer and published by a single background
// goroutine, so a slow or unreachable broker never blocks a request.
// A full buffer is reported to the caller immediately; a failed publish
// after hand-off is logged and passed to the OnError hook.
type AsyncPublisher struct {
	pub     MessagePublisher
	timeout time.Duration
	onError func(BookingRequest, error)

	jobs   chan BookingRequest
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncPublisher starts the background publisher. buffer is the number
// of requests that may wait for the broker; timeout bounds each publish.
// onError may be nil.
func NewAsyncPublisher(pub MessagePublisher, buffer int, timeout time.Duration, onError func(BookingRequest, error)) *AsyncPublisher {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &AsyncPublisher{
		pub:     pub,
		timeout: timeout,
		onError: onError,
		jobs:    make(chan BookingRequest, buffer),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Enqueue hands req to the background publisher without blocking.
func (p *AsyncPublisher) Enqueue(req BookingRequest) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.jobs <- req:
		return nil
	default:
		return ErrPublisherFull
	}
}

// Close stops accepting requests and waits until the buffered ones have
// been attempted.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *AsyncPublisher) run() {
	defer p.wg.Done()
	for req := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.pub.Publish(ctx, req)
		cancel()
		if err == nil {
			continue
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"booking_id":     req.BookingID,
			"ticket_type_id": req.TicketTypeID,
		}).Error("booking publish failed")
		if p.onError != nil {
			p.onError(req, err)
		}
	}
}
