package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/repository"
)

// ConcertReader loads concerts. *repository.ConcertRepo implements it.
type ConcertReader interface {
	GetByID(ctx context.Context, id uint64) (model.Concert, error)
	List(ctx context.Context) ([]model.Concert, error)
}

// AvailabilityReader lists ticket types with remaining quantities.
// *repository.TicketTypeRepo implements it.
type AvailabilityReader interface {
	ListAvailabilityByConcert(ctx context.Context, concertID uint64) ([]repository.TicketAvailability, error)
}

// ConcertHandler serves the public concert listing and detail data.
type ConcertHandler struct {
	Concerts ConcertReader
	Tickets  AvailabilityReader
}

// NewConcertHandler constructs a ConcertHandler.
func NewConcertHandler(concerts ConcertReader, tickets AvailabilityReader) *ConcertHandler {
	if concerts == nil || tickets == nil {
		panic("nil dependency passed to NewConcertHandler")
	}
	return &ConcertHandler{Concerts: concerts, Tickets: tickets}
}

// Get handles GET /v1/concerts/:id: the concert and each of its ticket
// types with available_quantity. The figures are a snapshot and may be
// served from cache; a booking request is only judged at admission.
func (h *ConcertHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	ctx := c.Request().Context()
	concert, err := h.Concerts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrConcertNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "concert not found"})
	}
	if err != nil {
		return err
	}
	tickets, err := h.Tickets.ListAvailabilityByConcert(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"concert":      concert,
		"ticket_types": tickets,
	})
}

type concertListing struct {
	model.Concert
	TicketTypes []repository.TicketAvailability `json:"ticket_types"`
}

// List handles GET /v1/concerts: every concert with its ticket types and
// their available_quantity.
func (h *ConcertHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	concerts, err := h.Concerts.List(ctx)
	if err != nil {
		return err
	}
	items := make([]concertListing, 0, len(concerts))
	for _, concert := range concerts {
		tickets, err := h.Tickets.ListAvailabilityByConcert(ctx, concert.ID)
		if err != nil {
			return err
		}
		items = append(items, concertListing{Concert: concert, TicketTypes: tickets})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
