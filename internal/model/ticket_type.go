package model

import "fmt"

// TicketType is a category of tickets for one concert, e.g. "VIP" or
// "Standard", with a fixed capacity.  Capacity is never resized after
// creation; the admission daemon compares it against the quantity already
// booked before admitting a new booking.
//
// Fields:
//  ID            – primary key identifier.
//  ConcertID     – concert the tickets belong to.
//  Category      – label shown to customers (column "type").
//  PriceCents    – unit price in cents (column "price", DECIMAL(10,2)).
//  TotalQuantity – capacity; never negative.
type TicketType struct {
	ID            uint64 `json:"id"`             // ticket_types.id
	ConcertID     uint64 `json:"concert_id"`     // ticket_types.concert_id
	Category      string `json:"type"`           // ticket_types.type
	PriceCents    int64  `json:"price_cents"`    // ticket_types.price * 100
	TotalQuantity int    `json:"total_quantity"` // ticket_types.total_quantity
}

// Available returns how many tickets remain given the quantity already
// booked. The result is never negative.
func (t TicketType) Available(booked int) int {
	if booked >= t.TotalQuantity {
		return 0
	}
	return t.TotalQuantity - booked
}

// Price formats PriceCents as a decimal string with two places, e.g.
// "150.00".
func (t TicketType) Price() string {
	return fmt.Sprintf("%d.%02d", t.PriceCents/100, t.PriceCents%100)
}
