package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

const (
	selectTicketForUpdate = `SELECT id, concert_id, type, CAST(ROUND(price * 100) AS SIGNED), total_quantity FROM ticket_types WHERE id = ? FOR UPDATE`
	sumBooked             = `SELECT COALESCE(SUM(quantity), 0) FROM bookings WHERE ticket_type_id = ? AND status IN (?, ?)`
	insertBooking         = `INSERT INTO bookings (id, user_id, concert_id, ticket_type_id, quantity, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

func newMock(t *testing.T) (*InventoryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewInventoryStore(db), mock
}

func booking(id string) *model.Booking {
	return &model.Booking{
		ID:           id,
		UserID:       "42",
		ConcertID:    1,
		TicketTypeID: 3,
		Quantity:     2,
		Status:       model.BookingConfirmed,
		CreatedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWithinTxCommits(t *testing.T) {
	store, mock := newMock(t)
	b := booking("b-1")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectTicketForUpdate)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "concert_id", "type", "price", "total_quantity"}).
			AddRow(3, 1, "VIP", 5000, 10))
	mock.ExpectQuery(regexp.QuoteMeta(sumBooked)).
		WithArgs(uint64(3), "confirmed", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta(insertBooking)).
		WithArgs(b.ID, b.UserID, b.ConcertID, b.TicketTypeID, b.Quantity, "confirmed", b.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx InventoryTx) error {
		tt, err := tx.GetTicketType(context.Background(), 3)
		if err != nil {
			return err
		}
		assert.Equal(t, model.TicketType{ID: 3, ConcertID: 1, Category: "VIP", PriceCents: 5000, TotalQuantity: 10}, tt)
		booked, err := tx.SumBookedQuantity(context.Background(), 3, model.HeldStatuses)
		if err != nil {
			return err
		}
		assert.Equal(t, 7, booked)
		return tx.InsertBooking(context.Background(), b)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectTicketForUpdate)).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "concert_id", "type", "price", "total_quantity"}))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx InventoryTx) error {
		_, err := tx.GetTicketType(context.Background(), 9)
		return err
	})
	assert.ErrorIs(t, err, ErrTicketTypeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDuplicateBooking(t *testing.T) {
	store, mock := newMock(t)
	b := booking("b-dup")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertBooking)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'b-dup' for key 'PRIMARY'"})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx InventoryTx) error {
		return tx.InsertBooking(context.Background(), b)
	})
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxCommitFailure(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

	err := store.WithinTx(context.Background(), func(InventoryTx) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Contains(t, err.Error(), "commit tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxCancelledBeforeCommit(t *testing.T) {
	store, mock := newMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(InventoryTx) error {
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.True(t, errors.Is(err, sql.ErrTxDone) || errors.Is(err, context.Canceled), err.Error())
}

func TestBookingExists(t *testing.T) {
	const existsQuery = `SELECT 1 FROM bookings WHERE id = ?`
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs("b-2").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx InventoryTx) error {
		found, err := tx.BookingExists(context.Background(), "b-1")
		require.NoError(t, err)
		assert.True(t, found)
		found, err = tx.BookingExists(context.Background(), "b-2")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumBookedQuantityNoStatuses(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx InventoryTx) error {
		n, err := tx.SumBookedQuantity(context.Background(), 3, nil)
		assert.Zero(t, n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
