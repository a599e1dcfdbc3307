package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// InventoryTx is the set of store operations available to one admission.
// Every call made through it belongs to the same database transaction.
type InventoryTx interface {
	GetTicketType(ctx context.Context, id uint64) (model.TicketType, error)
	BookingExists(ctx context.Context, id string) (bool, error)
	SumBookedQuantity(ctx context.Context, ticketTypeID uint64, statuses []model.BookingStatus) (int, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
}

// InventoryStore is the ticket inventory: ticket type capacities and the
// bookings held against them.
type InventoryStore struct {
	db       *sql.DB
	tickets  *TicketTypeRepo
	bookings *BookingRepo
}

// NewInventoryStore returns an InventoryStore over db.
func NewInventoryStore(db *sql.DB) *InventoryStore {
	return &InventoryStore{db: db, tickets: NewTicketTypeRepo(db), bookings: NewBookingRepo(db)}
}

// WithinTx runs fn inside a single transaction. The transaction commits
// when fn returns nil and rolls back otherwise; fn's error is returned
// unwrapped so callers can match sentinels with errors.Is. A failed commit
// wraps ErrCommitFailed.
func (s *InventoryStore) WithinTx(ctx context.Context, fn func(InventoryTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&inventoryTx{tx: tx, tickets: s.tickets, bookings: s.bookings}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	committed = true
	return nil
}

type inventoryTx struct {
	tx       *sql.Tx
	tickets  *TicketTypeRepo
	bookings *BookingRepo
}

func (t *inventoryTx) GetTicketType(ctx context.Context, id uint64) (model.TicketType, error) {
	return t.tickets.GetByIDTx(ctx, t.tx, id)
}

func (t *inventoryTx) BookingExists(ctx context.Context, id string) (bool, error) {
	return t.bookings.ExistsTx(ctx, t.tx, id)
}

func (t *inventoryTx) SumBookedQuantity(ctx context.Context, ticketTypeID uint64, statuses []model.BookingStatus) (int, error) {
	return t.tickets.SumBookedQuantityTx(ctx, t.tx, ticketTypeID, statuses)
}

func (t *inventoryTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.bookings.InsertTx(ctx, t.tx, b)
}
