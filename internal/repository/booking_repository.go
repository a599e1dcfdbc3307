package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// BookingRepo provides access to the bookings table. Inserts happen only
// inside an admission transaction; reads serve the customer endpoints. All
// timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// InsertTx stores b within tx using b.ID as the primary key. CreatedAt is
// filled in when zero. A second insert with the same id returns
// ErrDuplicateBooking and leaves the first row untouched.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	const q = `INSERT INTO bookings (id, user_id, concert_id, ticket_type_id, quantity, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, b.ID, b.UserID, b.ConcertID, b.TicketTypeID, b.Quantity, string(b.Status), b.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateBooking
		}
		return err
	}
	return nil
}

// ExistsTx reports whether a booking with id is already stored. Read
// inside the admission transaction, after the ticket type row is locked.
func (r *BookingRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	const q = `SELECT 1 FROM bookings WHERE id = ?`
	var one int
	err := tx.QueryRowContext(ctx, q, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByUser returns all bookings of a user, newest first. It returns an
// empty slice when the user has none.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	const q = `SELECT id, user_id, concert_id, ticket_type_id, quantity, status, created_at FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.ConcertID, &b.TicketTypeID, &b.Quantity, &status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(status)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDForUser loads one booking. It returns ErrBookingNotFound when the
// id is unknown and ErrForbidden when it belongs to another user.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, id, userID string) (model.Booking, error) {
	const q = `SELECT id, user_id, concert_id, ticket_type_id, quantity, status, created_at FROM bookings WHERE id = ?`
	var b model.Booking
	var status string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.UserID, &b.ConcertID, &b.TicketTypeID, &b.Quantity, &status, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != userID {
		return model.Booking{}, ErrForbidden
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}
