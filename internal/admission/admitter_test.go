package admission

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/queue"
	"github.com/iliyamo/concert-ticketing/internal/repository"
	"github.com/iliyamo/concert-ticketing/internal/status"
)

// fakeInventory serialises transactions with a mutex, standing in for the
// row lock taken by the MySQL store. Inserts become visible on commit.
type fakeInventory struct {
	mu       sync.Mutex
	tickets  map[uint64]model.TicketType
	bookings map[string]model.Booking
	failNext error
	// failCommit is returned instead of applying the next successful tx.
	failCommit error
}

func newFakeInventory(tickets ...model.TicketType) *fakeInventory {
	inv := &fakeInventory{tickets: map[uint64]model.TicketType{}, bookings: map[string]model.Booking{}}
	for _, t := range tickets {
		inv.tickets[t.ID] = t
	}
	return inv
}

func (f *fakeInventory) WithinTx(ctx context.Context, fn func(repository.InventoryTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &fakeTx{inv: f, pending: map[string]model.Booking{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := f.failCommit; err != nil {
		f.failCommit = nil
		return err
	}
	for id, b := range tx.pending {
		f.bookings[id] = b
	}
	return nil
}

func (f *fakeInventory) confirmedQuantity(ticketTypeID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.TicketTypeID == ticketTypeID && b.Status == model.BookingConfirmed {
			n += b.Quantity
		}
	}
	return n
}

func (f *fakeInventory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

type fakeTx struct {
	inv     *fakeInventory
	pending map[string]model.Booking
}

func (t *fakeTx) GetTicketType(ctx context.Context, id uint64) (model.TicketType, error) {
	if err := t.inv.failNext; err != nil {
		t.inv.failNext = nil
		return model.TicketType{}, err
	}
	tt, ok := t.inv.tickets[id]
	if !ok {
		return model.TicketType{}, repository.ErrTicketTypeNotFound
	}
	return tt, nil
}

func (t *fakeTx) BookingExists(ctx context.Context, id string) (bool, error) {
	_, ok := t.inv.bookings[id]
	return ok, nil
}

func (t *fakeTx) SumBookedQuantity(ctx context.Context, ticketTypeID uint64, statuses []model.BookingStatus) (int, error) {
	held := map[model.BookingStatus]bool{}
	for _, s := range statuses {
		held[s] = true
	}
	sum := 0
	for _, set := range []map[string]model.Booking{t.inv.bookings, t.pending} {
		for _, b := range set {
			if b.TicketTypeID == ticketTypeID && held[b.Status] {
				sum += b.Quantity
			}
		}
	}
	return sum, nil
}

func (t *fakeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := t.inv.bookings[b.ID]; ok {
		return repository.ErrDuplicateBooking
	}
	if _, ok := t.pending[b.ID]; ok {
		return repository.ErrDuplicateBooking
	}
	t.pending[b.ID] = *b
	return nil
}

type recordedStatus struct {
	bookingID string
	status    status.Status
	reason    string
}

type fakeRecorder struct {
	mu   sync.Mutex
	sets []recordedStatus
}

func (r *fakeRecorder) Set(ctx context.Context, bookingID, userID string, st status.Status, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, recordedStatus{bookingID: bookingID, status: st, reason: reason})
	return nil
}

func (r *fakeRecorder) last() recordedStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sets[len(r.sets)-1]
}

const (
	concertID    = 7
	ticketTypeID = 70
)

func vip(capacity int) model.TicketType {
	return model.TicketType{ID: ticketTypeID, ConcertID: concertID, Category: "VIP", PriceCents: 5000, TotalQuantity: capacity}
}

func request(quantity int) queue.BookingRequest {
	return queue.BookingRequest{
		BookingID:    uuid.NewString(),
		UserID:       "42",
		ConcertID:    concertID,
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
	}
}

func body(t *testing.T, req queue.BookingRequest) []byte {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return b
}

func TestScenarioFillThenReject(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	ctx := context.Background()

	first := request(10)
	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, first)))
	assert.Equal(t, recordedStatus{first.BookingID, status.Confirmed, ""}, rec.last())

	second := request(1)
	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, second)))
	assert.Equal(t, recordedStatus{second.BookingID, status.Rejected, status.ReasonNotEnoughTickets}, rec.last())

	assert.Equal(t, 10, inv.confirmedQuantity(ticketTypeID))
	assert.Equal(t, 1, inv.count())
}

func TestAvailabilityBoundary(t *testing.T) {
	inv := newFakeInventory(vip(5))
	inv.bookings["held"] = model.Booking{ID: "held", TicketTypeID: ticketTypeID, Quantity: 2, Status: model.BookingPending}
	a := NewAdmitter(inv, nil)
	ctx := context.Background()

	over := a.Admit(ctx, request(4))
	assert.Equal(t, Rejected, over.Decision)
	assert.Equal(t, 3, over.Available)

	exact := a.Admit(ctx, request(3))
	assert.Equal(t, Committed, exact.Decision)

	none := a.Admit(ctx, request(1))
	assert.Equal(t, Rejected, none.Decision)
	assert.Equal(t, 0, none.Available)
}

func TestConcurrentRequestsOnlyOneFits(t *testing.T) {
	inv := newFakeInventory(vip(10))
	a := NewAdmitter(inv, nil)

	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Admit(context.Background(), request(6))
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, r := range results {
		if r.Decision == Committed {
			committed++
		} else {
			assert.Equal(t, Rejected, r.Decision)
			assert.Equal(t, 4, r.Available)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 6, inv.confirmedQuantity(ticketTypeID))
}

func TestNeverOversells(t *testing.T) {
	const capacity = 30
	inv := newFakeInventory(vip(capacity))
	a := NewAdmitter(inv, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			res := a.Admit(context.Background(), request(q))
			if res.Decision == Committed {
				mu.Lock()
				committed += q
				mu.Unlock()
			}
		}(i%4 + 1)
	}
	wg.Wait()

	assert.LessOrEqual(t, inv.confirmedQuantity(ticketTypeID), capacity)
	assert.Equal(t, committed, inv.confirmedQuantity(ticketTypeID))
}

func TestProcessingOrderDecidesWinner(t *testing.T) {
	for _, tc := range []struct {
		name  string
		order []string
	}{
		{"alice first", []string{"alice", "bob"}},
		{"bob first", []string{"bob", "alice"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inv := newFakeInventory(vip(10))
			a := NewAdmitter(inv, nil)
			var decisions []Decision
			for _, user := range tc.order {
				req := request(6)
				req.UserID = user
				decisions = append(decisions, a.Admit(context.Background(), req).Decision)
			}
			assert.Equal(t, []Decision{Committed, Rejected}, decisions)
			for _, b := range inv.bookings {
				assert.Equal(t, tc.order[0], b.UserID)
			}
		})
	}
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	msg := body(t, request(2))

	assert.Equal(t, queue.Ack, a.Handle(context.Background(), msg))
	assert.Equal(t, queue.Ack, a.Handle(context.Background(), msg))

	assert.Equal(t, 1, inv.count())
	assert.Equal(t, 2, inv.confirmedQuantity(ticketTypeID))
	assert.Equal(t, status.Confirmed, rec.last().status)
}

func TestRedeliveryOfSellOutBookingIsDuplicate(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	ctx := context.Background()
	req := request(10)

	require.Equal(t, Committed, a.Admit(ctx, req).Decision)
	again := a.Admit(ctx, req)
	assert.Equal(t, Duplicate, again.Decision)
	assert.Empty(t, again.Reason)

	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, req)))
	assert.Equal(t, recordedStatus{req.BookingID, status.Confirmed, ""}, rec.last())
	assert.Equal(t, 1, inv.count())
	assert.Equal(t, 10, inv.confirmedQuantity(ticketTypeID))
}

func TestCancelledContextStillAdmits(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := request(4)
	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, req)))
	assert.Equal(t, 4, inv.confirmedQuantity(ticketTypeID))
	assert.Equal(t, recordedStatus{req.BookingID, status.Confirmed, ""}, rec.last())
}

func TestFailedCommitRequeues(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	msg := body(t, request(3))

	inv.failCommit = fmt.Errorf("%w: %w", repository.ErrCommitFailed, sql.ErrTxDone)
	assert.Equal(t, queue.Requeue, a.Handle(context.Background(), msg))
	assert.Equal(t, 0, inv.count())
	assert.Empty(t, rec.sets)

	assert.Equal(t, queue.Ack, a.Handle(context.Background(), msg))
	assert.Equal(t, 3, inv.confirmedQuantity(ticketTypeID))
	assert.Equal(t, status.Confirmed, rec.last().status)
}

func TestDuplicateDecision(t *testing.T) {
	inv := newFakeInventory(vip(10))
	a := NewAdmitter(inv, nil)
	req := request(1)

	require.Equal(t, Committed, a.Admit(context.Background(), req).Decision)
	assert.Equal(t, Duplicate, a.Admit(context.Background(), req).Decision)
}

func TestMalformedMessageDoesNotBlockQueue(t *testing.T) {
	inv := newFakeInventory(vip(10))
	a := NewAdmitter(inv, nil)
	ctx := context.Background()

	missingQuantity := []byte(fmt.Sprintf(`{"booking_id":%q,"user_id":"42","concert_id":%d,"ticket_type_id":%d}`,
		uuid.NewString(), concertID, ticketTypeID))
	assert.Equal(t, queue.Ack, a.Handle(ctx, missingQuantity))
	assert.Equal(t, queue.Ack, a.Handle(ctx, []byte("not json")))
	assert.Equal(t, 0, inv.count())

	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, request(3))))
	assert.Equal(t, 3, inv.confirmedQuantity(ticketTypeID))
}

func TestBadReferencesAreDiscarded(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	ctx := context.Background()

	wrongConcert := request(1)
	wrongConcert.ConcertID = concertID + 1
	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, wrongConcert)))
	assert.Equal(t, status.ReasonConcertMismatch, rec.last().reason)

	unknown := request(1)
	unknown.TicketTypeID = 999
	assert.Equal(t, queue.Ack, a.Handle(ctx, body(t, unknown)))
	assert.Equal(t, status.ReasonTicketTypeNotFound, rec.last().reason)

	assert.Equal(t, 0, inv.count())
}

func TestTransientFailureRequeues(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)
	msg := body(t, request(2))

	inv.failNext = fmt.Errorf("get ticket type: %w", driver.ErrBadConn)
	assert.Equal(t, queue.Requeue, a.Handle(context.Background(), msg))
	assert.Equal(t, 0, inv.count())
	assert.Empty(t, rec.sets)

	assert.Equal(t, queue.Ack, a.Handle(context.Background(), msg))
	assert.Equal(t, 1, inv.count())
}

func TestUnexpectedFailureIsDropped(t *testing.T) {
	inv := newFakeInventory(vip(10))
	rec := &fakeRecorder{}
	a := NewAdmitter(inv, rec)

	inv.failNext = errors.New("boom")
	assert.Equal(t, queue.Ack, a.Handle(context.Background(), body(t, request(2))))
	assert.Equal(t, 0, inv.count())
	assert.Equal(t, status.Rejected, rec.last().status)
	assert.Equal(t, status.ReasonInternal, rec.last().reason)
}
