// Package admission decides, one booking request at a time, whether a
// request fits into the remaining capacity of its ticket type and commits
// it as a confirmed booking when it does.
//
// Capacity is re-read from the store for every request inside the same
// transaction as the insert, and the ticket type row stays locked until
// commit. Together with the consumer's prefetch of one, the confirmed and
// pending quantity of a ticket type can never exceed its capacity.
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/queue"
	"github.com/iliyamo/concert-ticketing/internal/repository"
	"github.com/iliyamo/concert-ticketing/internal/status"
)

// Inventory runs a unit of work inside one store transaction.
type Inventory interface {
	WithinTx(ctx context.Context, fn func(repository.InventoryTx) error) error
}

// StatusRecorder stores booking outcomes for clients to poll.
type StatusRecorder interface {
	Set(ctx context.Context, bookingID, userID string, st status.Status, reason string) error
}

// Decision is the terminal state of one admission attempt.
type Decision int

const (
	// Committed: a confirmed booking row was inserted.
	Committed Decision = iota
	// Duplicate: the booking id was already admitted by an earlier delivery.
	Duplicate
	// Rejected: the request can never succeed (capacity, bad reference).
	Rejected
	// Retry: a transient store failure; the message should be redelivered.
	Retry
	// Failed: an unexpected error; the message is dropped.
	Failed
)

func (d Decision) String() string {
	switch d {
	case Committed:
		return "committed"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	case Retry:
		return "retry"
	default:
		return "failed"
	}
}

// Result describes what happened to one request.
type Result struct {
	Decision  Decision
	Reason    string // rejection reason, see status.Reason*
	Available int    // tickets available when the request was rejected for capacity
	Err       error  // set for Retry and Failed
}

// Admitter applies the admission rules to booking requests.
type Admitter struct {
	inv          Inventory
	status       StatusRecorder
	storeTimeout time.Duration
	now          func() time.Time
}

// NewAdmitter returns an Admitter over inv. rec may be nil.
func NewAdmitter(inv Inventory, rec StatusRecorder) *Admitter {
	return &Admitter{inv: inv, status: rec, storeTimeout: 10 * time.Second, now: time.Now}
}

// Admit validates req against current inventory and commits it when the
// ticket type has enough free capacity. Store work is detached from ctx
// cancellation so a shutdown lets the in-flight admission finish; only
// the store timeout bounds it.
func (a *Admitter) Admit(ctx context.Context, req queue.BookingRequest) Result {
	ctx = context.WithoutCancel(ctx)
	if a.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.storeTimeout)
		defer cancel()
	}

	var res Result
	err := a.inv.WithinTx(ctx, func(tx repository.InventoryTx) error {
		tt, err := tx.GetTicketType(ctx, req.TicketTypeID)
		if err != nil {
			return err
		}
		// The row lock is held, so an earlier delivery of this id has either
		// committed or will never be seen here.
		exists, err := tx.BookingExists(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if exists {
			res = Result{Decision: Duplicate}
			return nil
		}
		if tt.ConcertID != req.ConcertID {
			res = Result{Decision: Rejected, Reason: status.ReasonConcertMismatch}
			return nil
		}
		booked, err := tx.SumBookedQuantity(ctx, tt.ID, model.HeldStatuses)
		if err != nil {
			return err
		}
		available := tt.Available(booked)
		if req.Quantity > available {
			res = Result{Decision: Rejected, Reason: status.ReasonNotEnoughTickets, Available: available}
			return nil
		}
		b := &model.Booking{
			ID:           req.BookingID,
			UserID:       req.UserID,
			ConcertID:    req.ConcertID,
			TicketTypeID: req.TicketTypeID,
			Quantity:     req.Quantity,
			Status:       model.BookingConfirmed,
			CreatedAt:    a.now().UTC().Truncate(time.Second),
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		res = Result{Decision: Committed}
		return nil
	})

	switch {
	case err == nil:
		return res
	case errors.Is(err, repository.ErrTicketTypeNotFound):
		return Result{Decision: Rejected, Reason: status.ReasonTicketTypeNotFound}
	case errors.Is(err, repository.ErrDuplicateBooking):
		return Result{Decision: Duplicate}
	case IsTransient(err):
		return Result{Decision: Retry, Err: err}
	default:
		return Result{Decision: Failed, Reason: status.ReasonInternal, Err: err}
	}
}

// Handle is the queue.Handler for the booking queue. Only transient store
// failures requeue; malformed, rejected, duplicate and failed messages are
// all acknowledged.
func (a *Admitter) Handle(ctx context.Context, body []byte) queue.Outcome {
	req, err := queue.DecodeBookingRequest(body)
	if err != nil {
		logrus.WithError(err).WithField("body_bytes", len(body)).Warn("admission: discarding malformed message")
		return queue.Ack
	}
	log := logrus.WithFields(logrus.Fields{
		"booking_id":     req.BookingID,
		"user_id":        req.UserID,
		"concert_id":     req.ConcertID,
		"ticket_type_id": req.TicketTypeID,
		"quantity":       req.Quantity,
	})

	res := a.Admit(ctx, req)
	log = log.WithField("decision", res.Decision.String())
	switch res.Decision {
	case Committed:
		log.Info("admission: booking confirmed")
		a.record(ctx, req, status.Confirmed, "")
	case Duplicate:
		log.Info("admission: booking already admitted; redelivery ignored")
		a.record(ctx, req, status.Confirmed, "")
	case Rejected:
		if res.Reason == status.ReasonNotEnoughTickets {
			log.WithField("available", res.Available).Warn("admission: not enough tickets")
		} else {
			log.WithField("reason", res.Reason).Warn("admission: discarding request with bad reference")
		}
		a.record(ctx, req, status.Rejected, res.Reason)
	case Retry:
		log.WithError(res.Err).Warn("admission: transient store failure; requeueing")
		return queue.Requeue
	default:
		log.WithError(res.Err).Error("admission: unexpected failure; dropping message")
		a.record(ctx, req, status.Rejected, res.Reason)
	}
	return queue.Ack
}

func (a *Admitter) record(ctx context.Context, req queue.BookingRequest, st status.Status, reason string) {
	if a.status == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := a.status.Set(ctx, req.BookingID, req.UserID, st, reason); err != nil {
		logrus.WithError(err).WithField("booking_id", req.BookingID).Warn("admission: status record failed")
	}
}
