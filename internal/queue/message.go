// Package queue carries booking requests from the intake API to the
// admission daemon over a durable RabbitMQ queue.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrMalformed marks a message that can never be processed. Such messages
// are acknowledged and dropped, never retried.
var ErrMalformed = errors.New("malformed booking request")

// MaxUserIDLength is the longest user id the bookings table can store,
// in characters.
const MaxUserIDLength = 64

// BookingRequest is the body of a message on the booking queue. BookingID
// is the idempotency id generated at intake; it becomes the primary key of
// the booking row.
type BookingRequest struct {
	BookingID    string `json:"booking_id"`
	UserID       string `json:"user_id"`
	ConcertID    uint64 `json:"concert_id"`
	TicketTypeID uint64 `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

// wireBookingRequest uses pointers so that absent fields can be told apart
// from zero values.
type wireBookingRequest struct {
	BookingID    *string `json:"booking_id"`
	UserID       *string `json:"user_id"`
	ConcertID    *uint64 `json:"concert_id"`
	TicketTypeID *uint64 `json:"ticket_type_id"`
	Quantity     *int    `json:"quantity"`
}

// DecodeBookingRequest parses and validates a message body. Every error it
// returns wraps ErrMalformed.
func DecodeBookingRequest(body []byte) (BookingRequest, error) {
	var w wireBookingRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return BookingRequest{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case w.BookingID == nil || *w.BookingID == "":
		return BookingRequest{}, fmt.Errorf("%w: booking_id is required", ErrMalformed)
	case w.UserID == nil || *w.UserID == "":
		return BookingRequest{}, fmt.Errorf("%w: user_id is required", ErrMalformed)
	case utf8.RuneCountInString(*w.UserID) > MaxUserIDLength:
		return BookingRequest{}, fmt.Errorf("%w: user_id is longer than %d characters", ErrMalformed, MaxUserIDLength)
	case w.ConcertID == nil || *w.ConcertID == 0:
		return BookingRequest{}, fmt.Errorf("%w: concert_id is required", ErrMalformed)
	case w.TicketTypeID == nil || *w.TicketTypeID == 0:
		return BookingRequest{}, fmt.Errorf("%w: ticket_type_id is required", ErrMalformed)
	case w.Quantity == nil:
		return BookingRequest{}, fmt.Errorf("%w: quantity is required", ErrMalformed)
	case *w.Quantity <= 0:
		return BookingRequest{}, fmt.Errorf("%w: quantity must be positive", ErrMalformed)
	}
	if _, err := uuid.Parse(*w.BookingID); err != nil {
		return BookingRequest{}, fmt.Errorf("%w: booking_id is not a uuid", ErrMalformed)
	}
	return BookingRequest{
		BookingID:    *w.BookingID,
		UserID:       *w.UserID,
		ConcertID:    *w.ConcertID,
		TicketTypeID: *w.TicketTypeID,
		Quantity:     *w.Quantity,
	}, nil
}
