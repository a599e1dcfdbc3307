package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/repository"
)

type fakeConcerts map[uint64]model.Concert

func (f fakeConcerts) GetByID(ctx context.Context, id uint64) (model.Concert, error) {
	c, ok := f[id]
	if !ok {
		return model.Concert{}, repository.ErrConcertNotFound
	}
	return c, nil
}

func (f fakeConcerts) List(ctx context.Context) ([]model.Concert, error) {
	out := []model.Concert{}
	for id := uint64(1); id <= uint64(len(f)); id++ {
		if c, ok := f[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAvailability []repository.TicketAvailability

func (f fakeAvailability) ListAvailabilityByConcert(ctx context.Context, concertID uint64) ([]repository.TicketAvailability, error) {
	return f, nil
}

func TestGetConcert(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	h := NewConcertHandler(
		fakeConcerts{1: {ID: 1, Title: "Summer Night", Date: time.Date(2026, 7, 1, 20, 0, 0, 0, time.UTC)}},
		fakeAvailability{{ID: 3, Type: "VIP", PriceCents: 15000, TotalQuantity: 10, AvailableQuantity: 4}},
	)
	e.GET("/v1/concerts/:id", h.Get)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/concerts/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Concert     model.Concert                   `json:"concert"`
		TicketTypes []repository.TicketAvailability `json:"ticket_types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Summer Night", resp.Concert.Title)
	require.Len(t, resp.TicketTypes, 1)
	assert.Equal(t, 4, resp.TicketTypes[0].AvailableQuantity)

	for path, code := range map[string]int{
		"/v1/concerts/2":   http.StatusNotFound,
		"/v1/concerts/abc": http.StatusBadRequest,
		"/v1/concerts/0":   http.StatusBadRequest,
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, rec.Code, path)
	}
}

func TestListConcerts(t *testing.T) {
	e := echo.New()
	date := time.Date(2026, 7, 1, 20, 0, 0, 0, time.UTC)
	h := NewConcertHandler(
		fakeConcerts{
			1: {ID: 1, Title: "Summer Night", Date: date},
			2: {ID: 2, Title: "Winter Jam", Date: date.AddDate(0, 5, 0)},
		},
		fakeAvailability{{ID: 3, Type: "VIP", Price: "150.00", PriceCents: 15000, TotalQuantity: 10, AvailableQuantity: 4}},
	)
	e.GET("/v1/concerts", h.List)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/concerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []struct {
			ID          uint64 `json:"id"`
			Title       string `json:"title"`
			TicketTypes []struct {
				Price             string `json:"price"`
				AvailableQuantity int    `json:"available_quantity"`
			} `json:"ticket_types"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Summer Night", resp.Items[0].Title)
	assert.Equal(t, uint64(2), resp.Items[1].ID)
	require.Len(t, resp.Items[0].TicketTypes, 1)
	assert.Equal(t, "150.00", resp.Items[0].TicketTypes[0].Price)
	assert.Equal(t, 4, resp.Items[0].TicketTypes[0].AvailableQuantity)
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health(failingPinger{}))
	e.GET("/down", Health(failingPinger{err: context.DeadlineExceeded}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
