package handler

import (
	"context"      // request-scoped deadlines for the status store
	"errors"       // errors.Is against repository and queue sentinels
	"net/http"     // HTTP status codes
	"time"         // status timestamps
	"unicode/utf8" // user id length in characters

	"github.com/google/uuid"      // idempotency ids
	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/sirupsen/logrus"  // structured logging

	"github.com/iliyamo/concert-ticketing/internal/middleware"
	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/queue"
	"github.com/iliyamo/concert-ticketing/internal/repository"
	"github.com/iliyamo/concert-ticketing/internal/status"
)

// Enqueuer accepts a booking request for asynchronous publication.
// *queue.AsyncPublisher implements it.
type Enqueuer interface {
	Enqueue(req queue.BookingRequest) error
}

// StatusStore is the booking status tracker. *status.Tracker implements it.
type StatusStore interface {
	Set(ctx context.Context, bookingID, userID string, st status.Status, reason string) error
	Get(ctx context.Context, bookingID string) (status.Record, error)
}

// BookingReader is the read side of the bookings table.
// *repository.BookingRepo implements it.
type BookingReader interface {
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	GetByIDForUser(ctx context.Context, id, userID string) (model.Booking, error)
}

// BookingHandler serves the booking intake and the caller's booking views.
// Intake never reads or writes the inventory: it only validates the request
// and hands it to the queue. Whether the booking fits is decided later by
// the admission daemon.
type BookingHandler struct {
	Publisher Enqueuer      // hands requests to the broker
	Tracker   StatusStore   // per-booking outcome, may be disabled
	Bookings  BookingReader // admitted bookings
	newID     func() string
}

// NewBookingHandler constructs a BookingHandler and panics if a dependency
// is nil.
func NewBookingHandler(pub Enqueuer, st StatusStore, bookings BookingReader) *BookingHandler {
	if pub == nil || st == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Publisher: pub, Tracker: st, Bookings: bookings, newID: uuid.NewString}
}

// createBookingRequest uses pointers so a missing field can be told apart
// from a zero value. A non-integer quantity fails to bind.
type createBookingRequest struct {
	ConcertID    *uint64 `json:"concert_id"`
	TicketTypeID *uint64 `json:"ticket_type_id"`
	Quantity     *int    `json:"quantity"`
}

// Create handles POST /v1/bookings. It validates the body, assigns an
// idempotency id and queues the request, answering 202 Accepted without
// waiting for the broker. When the publish buffer is full the request is
// refused with 503 and nothing is queued.
func (h *BookingHandler) Create(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if utf8.RuneCountInString(userID) > queue.MaxUserIDLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id is too long"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	switch {
	case body.ConcertID == nil || *body.ConcertID == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "concert_id is required"})
	case body.TicketTypeID == nil || *body.TicketTypeID == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_type_id is required"})
	case body.Quantity == nil:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity is required"})
	case *body.Quantity <= 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be a positive integer"})
	}

	req := queue.BookingRequest{
		BookingID:    h.newID(),
		UserID:       userID,
		ConcertID:    *body.ConcertID,
		TicketTypeID: *body.TicketTypeID,
		Quantity:     *body.Quantity,
	}
	log := logrus.WithFields(logrus.Fields{
		"booking_id":     req.BookingID,
		"user_id":        userID,
		"ticket_type_id": req.TicketTypeID,
		"quantity":       req.Quantity,
	})

	// processing is written first so a fast consumer's outcome is never
	// overwritten by it.
	ctx := c.Request().Context()
	if err := h.Tracker.Set(ctx, req.BookingID, userID, status.Processing, ""); err != nil {
		log.WithError(err).Warn("booking status not recorded")
	}
	if err := h.Publisher.Enqueue(req); err != nil {
		if errors.Is(err, queue.ErrPublisherFull) || errors.Is(err, queue.ErrPublisherClosed) {
			log.WithError(err).Warn("booking request refused")
			if serr := h.Tracker.Set(ctx, req.BookingID, userID, status.Rejected, status.ReasonNotEnqueued); serr != nil {
				log.WithError(serr).Warn("booking status not recorded")
			}
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking queue is busy, try again later"})
		}
		return err
	}
	log.Info("booking request queued")

	return c.JSON(http.StatusAccepted, echo.Map{
		"message":    "booking request received",
		"booking_id": req.BookingID,
		"status":     status.Processing,
	})
}

// ListMine handles GET /v1/my-bookings and returns the caller's admitted
// bookings, newest first.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type bookingStatusResponse struct {
	BookingID string        `json:"booking_id"`
	Status    status.Status `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Status handles GET /v1/bookings/:id/status. A final tracker record
// answers directly. A processing record, an expired one or an unavailable
// Redis is checked against MySQL, where admitted bookings are stored.
// Rejections are only known to the tracker.
func (h *BookingHandler) Status(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()

	rec, err := h.Tracker.Get(ctx, id)
	tracked := err == nil
	switch {
	case tracked:
		if rec.UserID != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		if rec.Status != status.Processing {
			return c.JSON(http.StatusOK, trackedStatus(id, rec))
		}
	case !errors.Is(err, status.ErrNotFound):
		logrus.WithError(err).WithField("booking_id", id).Warn("status lookup failed; falling back to store")
	}

	b, err := h.Bookings.GetByIDForUser(ctx, id, userID)
	switch {
	case tracked && err != nil:
		// still in the queue, or the store is unreachable
		if !errors.Is(err, repository.ErrBookingNotFound) {
			logrus.WithError(err).WithField("booking_id", id).Warn("booking lookup failed; reporting tracked status")
		}
		return c.JSON(http.StatusOK, trackedStatus(id, rec))
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, bookingStatusResponse{
		BookingID: b.ID,
		Status:    status.Status(b.Status),
		UpdatedAt: b.CreatedAt,
	})
}

func trackedStatus(id string, rec status.Record) bookingStatusResponse {
	return bookingStatusResponse{
		BookingID: id,
		Status:    rec.Status,
		Reason:    rec.Reason,
		UpdatedAt: rec.UpdatedAt,
	}
}
