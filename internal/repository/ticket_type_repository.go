package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// TicketTypeRepo reads ticket types and the quantities booked against them.
type TicketTypeRepo struct {
	db *sql.DB
}

// NewTicketTypeRepo returns a new TicketTypeRepo bound to the given database.
func NewTicketTypeRepo(db *sql.DB) *TicketTypeRepo { return &TicketTypeRepo{db: db} }

// GetByIDTx loads a ticket type inside tx and locks its row until the
// transaction ends, so two admissions for the same ticket type cannot
// interleave their read and insert. Returns ErrTicketTypeNotFound when the
// id does not exist.
func (r *TicketTypeRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.TicketType, error) {
	const q = `SELECT id, concert_id, type, CAST(ROUND(price * 100) AS SIGNED), total_quantity FROM ticket_types WHERE id = ? FOR UPDATE`
	var t model.TicketType
	err := tx.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.ConcertID, &t.Category, &t.PriceCents, &t.TotalQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TicketType{}, ErrTicketTypeNotFound
	}
	if err != nil {
		return model.TicketType{}, err
	}
	return t, nil
}

// SumBookedQuantityTx returns the total quantity of bookings on a ticket
// type whose status is one of statuses. An empty statuses slice yields 0.
func (r *TicketTypeRepo) SumBookedQuantityTx(ctx context.Context, tx *sql.Tx, ticketTypeID uint64, statuses []model.BookingStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	q := `SELECT COALESCE(SUM(quantity), 0) FROM bookings WHERE ticket_type_id = ? AND status IN (` + placeholders(len(statuses)) + `)`
	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, ticketTypeID)
	for _, s := range statuses {
		args = append(args, string(s))
	}
	var sum int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// TicketAvailability is a ticket type together with how many tickets are
// still free. It is the public view used by the concert endpoint.
type TicketAvailability struct {
	ID                uint64 `json:"id"`
	Type              string `json:"type"`
	Price             string `json:"price"`
	PriceCents        int64  `json:"price_cents"`
	TotalQuantity     int    `json:"total_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

// ListAvailabilityByConcert returns every ticket type of a concert with its
// remaining quantity (capacity minus confirmed and pending bookings),
// ordered by id. The numbers are a snapshot; admission re-checks them.
func (r *TicketTypeRepo) ListAvailabilityByConcert(ctx context.Context, concertID uint64) ([]TicketAvailability, error) {
	held := model.HeldStatuses
	q := `SELECT t.id, t.concert_id, t.type, CAST(ROUND(t.price * 100) AS SIGNED), t.total_quantity, COALESCE(SUM(b.quantity), 0) ` +
		`FROM ticket_types t LEFT JOIN bookings b ON b.ticket_type_id = t.id AND b.status IN (` + placeholders(len(held)) + `) ` +
		`WHERE t.concert_id = ? GROUP BY t.id, t.concert_id, t.type, t.price, t.total_quantity ORDER BY t.id`
	args := make([]interface{}, 0, len(held)+1)
	for _, s := range held {
		args = append(args, string(s))
	}
	args = append(args, concertID)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TicketAvailability{}
	for rows.Next() {
		var t model.TicketType
		var booked int
		if err := rows.Scan(&t.ID, &t.ConcertID, &t.Category, &t.PriceCents, &t.TotalQuantity, &booked); err != nil {
			return nil, err
		}
		items = append(items, TicketAvailability{
			ID:                t.ID,
			Type:              t.Category,
			Price:             t.Price(),
			PriceCents:        t.PriceCents,
			TotalQuantity:     t.TotalQuantity,
			AvailableQuantity: t.Available(booked),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
