// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as handlers
// and the admission daemon to distinguish between failure scenarios without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts to read a resource
// owned by someone else.
var ErrForbidden = errors.New("forbidden")

// ErrTicketTypeNotFound is returned when a ticket type id does not exist.
var ErrTicketTypeNotFound = errors.New("ticket type not found")

// ErrConcertNotFound is returned when a concert id does not exist.
var ErrConcertNotFound = errors.New("concert not found")

// ErrBookingNotFound is returned when a booking id does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrDuplicateBooking is returned when a booking with the same idempotency
// id has already been stored.
var ErrDuplicateBooking = errors.New("duplicate booking id")

// ErrCommitFailed wraps the error of a commit that did not succeed. The
// outcome of the transaction is unknown to the caller: it may have been
// rolled back (cancelled context, lost connection) or, rarely, applied.
var ErrCommitFailed = errors.New("commit tx")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
