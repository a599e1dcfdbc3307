package model

import "time"

// BookingStatus is the lifecycle state of a booking row.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
)

// HeldStatuses are the statuses whose quantities count against capacity.
var HeldStatuses = []BookingStatus{BookingConfirmed, BookingPending}

// Booking records tickets admitted for a user.  Rows are written only by
// the admission daemon and are never deleted.
//
// Fields:
//  ID           – idempotency id generated at intake (UUID); primary key.
//  UserID       – subject of the caller's access token.
//  ConcertID    – concert being booked.
//  TicketTypeID – ticket type being booked.
//  Quantity     – number of tickets, always positive.
//  Status       – pending, confirmed or rejected.
//  CreatedAt    – creation timestamp.
type Booking struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	ConcertID    uint64        `json:"concert_id"`
	TicketTypeID uint64        `json:"ticket_type_id"`
	Quantity     int           `json:"quantity"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}
