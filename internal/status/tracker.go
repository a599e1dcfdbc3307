// Package status records the outcome of each booking request in Redis so
// clients that were told "processing" can find out whether their booking
// was admitted.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status is the externally visible state of a booking request.
type Status string

const (
	Processing Status = "processing"
	Confirmed  Status = "confirmed"
	Rejected   Status = "rejected"
)

// Rejection reasons.
const (
	ReasonNotEnoughTickets   = "not_enough_tickets"
	ReasonTicketTypeNotFound = "ticket_type_not_found"
	ReasonConcertMismatch    = "ticket_type_not_in_concert"
	ReasonNotEnqueued        = "not_enqueued"
	ReasonInternal           = "internal_error"
)

// ErrNotFound is returned when no record exists for a booking id.
var ErrNotFound = errors.New("booking status not found")

// Record is what is stored per booking id.
type Record struct {
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker reads and writes status records. A Tracker built with a nil
// client is disabled: Set is a no-op and Get always returns ErrNotFound.
type Tracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewTracker returns a Tracker whose records expire after ttl.
func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{rdb: rdb, ttl: ttl, prefix: "booking:status:", now: time.Now}
}

// Enabled reports whether records are actually stored.
func (t *Tracker) Enabled() bool { return t != nil && t.rdb != nil }

// Set stores the status of a booking, replacing any earlier record.
func (t *Tracker) Set(ctx context.Context, bookingID, userID string, st Status, reason string) error {
	if !t.Enabled() {
		return nil
	}
	rec := Record{BookingID: bookingID, UserID: userID, Status: st, Reason: reason, UpdatedAt: t.now().UTC()}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.rdb.Set(ctx, t.prefix+bookingID, b, t.ttl).Err()
}

// Get returns the record for bookingID or ErrNotFound.
func (t *Tracker) Get(ctx context.Context, bookingID string) (Record, error) {
	if !t.Enabled() {
		return Record{}, ErrNotFound
	}
	b, err := t.rdb.Get(ctx, t.prefix+bookingID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
