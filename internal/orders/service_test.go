package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tablet-sync-backend/config"
	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/store"
	"tablet-sync-backend/internal/testutil"
)

var base = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	store   store.Store
	clock   *testutil.Clock
	service *Service
}

func newFixture(t *testing.T) *fixture {
	gdb := testutil.NewDB(t)
	st := store.NewGormStore(gdb)
	clock := &testutil.Clock{T: base}
	svc := NewService(st, config.OrdersConfig{DefaultLimit: 50, MaxLimit: 100}, testutil.Logger).WithClock(clock.Now)
	testutil.Restaurant(t, gdb, 1, "Bistro")
	testutil.Restaurant(t, gdb, 2, "Diner")
	return &fixture{db: gdb, store: st, clock: clock, service: svc}
}

func TestService_ListScopedAndMasked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Order(t, f.db, 1, 1, "pending", base.Add(-2*time.Hour))
	testutil.Order(t, f.db, 2, 1, "ready", base.Add(-1*time.Hour))
	testutil.Order(t, f.db, 3, 2, "pending", base)

	page, err := f.service.List(ctx, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Equal(t, int64(2), page.Orders[0].ID)
	assert.Equal(t, int64(1), page.Orders[1].ID)

	o := page.Orders[0]
	assert.Equal(t, "ja***@example.com", o.Customer.Email)
	assert.Equal(t, "***-***-4242", o.Customer.Phone)
	assert.Equal(t, "Jane Doe", o.Customer.Name)
	require.Len(t, o.LineItems, 1)
	assert.Equal(t, "Pho", o.LineItems[0].Name)
	assert.InDelta(t, 11.5, float64(o.LineItems[0].UnitPrice), 0.001)
	assert.InDelta(t, 32.85, o.Totals.Total, 0.001)
	assert.Equal(t, "Springfield", o.DeliveryAddress["city"])
	assert.Equal(t, "asap", o.ServiceTime.Type)
}

func TestService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		status := "pending"
		if i%2 == 0 {
			status = "preparing"
		}
		testutil.Order(t, f.db, i, 1, status, base.Add(time.Duration(i)*time.Minute))
	}

	since := base.Add(3 * time.Minute)
	testCases := []struct {
		name     string
		filter   Filter
		expected []int64
		total    int64
	}{
		{name: "Status", filter: Filter{Status: "pending"}, expected: []int64{5, 3, 1}, total: 3},
		{name: "Since inclusive", filter: Filter{Since: &since}, expected: []int64{5, 4, 3}, total: 3},
		{name: "Limit", filter: Filter{Limit: 2}, expected: []int64{5, 4}, total: 5},
		{name: "Over max is clamped", filter: Filter{Limit: 1000}, expected: []int64{5, 4, 3, 2, 1}, total: 5},
		{name: "Combined", filter: Filter{Status: "preparing", Since: &since, Limit: 1}, expected: []int64{4}, total: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := f.service.List(ctx, 1, tc.filter)
			require.NoError(t, err)
			ids := make([]int64, 0, len(page.Orders))
			for _, o := range page.Orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tc.expected, ids)
			assert.Equal(t, tc.total, page.TotalCount)
		})
	}
}

func TestService_ListValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.List(context.Background(), 1, Filter{Status: "shipped", Limit: -1})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "status")
	assert.Contains(t, e.Fields, "limit")
}

func TestService_GetNotOwned(t *testing.T) {
	f := newFixture(t)
	testutil.Order(t, f.db, 1, 2, "pending", base)

	_, err := f.service.Get(context.Background(), 1, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.service.Get(context.Background(), 1, 404)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

// Every (from, to) pair succeeds exactly when the edge is in the table.
func TestService_TransitionProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var id int64
	for _, from := range Statuses {
		for _, to := range Statuses {
			id++
			testutil.Order(t, f.db, id, 1, string(from), base)

			res, err := f.service.Transition(ctx, 1, id, TransitionRequest{Status: to, DeviceID: 7})
			if CanTransition(from, to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, from, res.PreviousStatus)
				assert.Equal(t, to, res.NewStatus)
				continue
			}
			e, ok := apperr.As(err)
			require.True(t, ok, "%s -> %s", from, to)
			assert.Equal(t, apperr.KindInvalidTransition, e.Kind)
			assert.Equal(t, AllowedTransitions(from), e.Allowed)

			var o model.Order
			require.NoError(t, f.db.First(&o, id).Error)
			assert.Equal(t, string(from), o.Status, "status changed on rejected %s -> %s", from, to)
		}
	}
}

func TestService_TransitionDerivedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	minutes := 20

	testutil.Order(t, f.db, 1, 1, "pending", base)

	res, err := f.service.Transition(ctx, 1, 1, TransitionRequest{Status: StatusConfirmed, DeviceID: 7})
	require.NoError(t, err)
	require.Len(t, res.History, 1)
	assert.Equal(t, "Status updated by tablet device 7", res.History[0].Note)
	assert.Equal(t, "pending", res.History[0].PreviousStatus)

	f.clock.Advance(time.Minute)
	res, err = f.service.Transition(ctx, 1, 1, TransitionRequest{Status: StatusPreparing, EstimatedReadyMinutes: &minutes, Note: "Busy night", DeviceID: 7})
	require.NoError(t, err)
	require.Len(t, res.History, 2)
	assert.Equal(t, "Busy night", res.History[0].Note)
	assert.Equal(t, "preparing", res.History[0].Status)

	f.clock.Advance(time.Minute)
	_, err = f.service.Transition(ctx, 1, 1, TransitionRequest{Status: StatusReady, DeviceID: 7})
	require.NoError(t, err)
	_, err = f.service.Transition(ctx, 1, 1, TransitionRequest{Status: StatusCompleted, DeviceID: 7})
	require.NoError(t, err)

	var o model.Order
	require.NoError(t, f.db.First(&o, 1).Error)
	require.NotNil(t, o.ConfirmedAt)
	require.NotNil(t, o.EstimatedReadyAt)
	require.NotNil(t, o.CompletedAt)
	assert.Nil(t, o.CancelledAt)
	assert.True(t, base.Equal(*o.ConfirmedAt))
	assert.True(t, base.Add(21*time.Minute).Equal(*o.EstimatedReadyAt))
	assert.True(t, base.Add(2*time.Minute).Equal(*o.CompletedAt))
}

func TestService_TransitionCancelStampsCancelledAt(t *testing.T) {
	f := newFixture(t)
	testutil.Order(t, f.db, 1, 1, "out_for_delivery", base)

	_, err := f.service.Transition(context.Background(), 1, 1, TransitionRequest{Status: StatusCancelled, DeviceID: 7})
	require.NoError(t, err)

	var o model.Order
	require.NoError(t, f.db.First(&o, 1).Error)
	require.NotNil(t, o.CancelledAt)
	assert.Equal(t, "cancelled", o.Status)
}

func TestService_TransitionSkipConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.Order(t, f.db, 1, 1, "pending", base)

	_, err := f.service.Transition(ctx, 1, 1, TransitionRequest{Status: StatusPreparing, DeviceID: 7})
	require.NoError(t, err)

	_, err = f.service.Transition(ctx, 1, 1, TransitionRequest{Status: StatusConfirmed, DeviceID: 7})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidTransition, e.Kind)
	assert.Equal(t, []string{"ready", "cancelled"}, e.Allowed)
	assert.NotContains(t, e.Allowed, "confirmed")
}

func TestService_TransitionValidation(t *testing.T) {
	f := newFixture(t)
	testutil.Order(t, f.db, 1, 1, "pending", base)
	minutes := 0

	_, err := f.service.Transition(context.Background(), 1, 1, TransitionRequest{Status: StatusPreparing, EstimatedReadyMinutes: &minutes})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.service.Transition(context.Background(), 2, 1, TransitionRequest{Status: StatusConfirmed})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

// racingStore moves the order to another status just before the
// compare-and-set runs.
type racingStore struct {
	store.OrderStore
	db *gorm.DB
	to string
}

func (r *racingStore) TransitionOrder(ctx context.Context, restaurantID, orderID int64, from string, fields map[string]any, entry *model.OrderStatusHistory) (error, error) {
	if err := r.db.Model(&model.Order{}).Where("id = ?", orderID).Update("order_status", r.to).Error; err != nil {
		return nil, err
	}
	return r.OrderStore.TransitionOrder(ctx, restaurantID, orderID, from, fields, entry)
}

func TestService_TransitionLostRace(t *testing.T) {
	f := newFixture(t)
	testutil.Order(t, f.db, 1, 1, "pending", base)

	svc := NewService(&racingStore{OrderStore: f.store, db: f.db, to: "cancelled"}, config.OrdersConfig{}, testutil.Logger)
	_, err := svc.Transition(context.Background(), 1, 1, TransitionRequest{Status: StatusConfirmed, DeviceID: 7})

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidTransition, e.Kind)
	assert.Empty(t, e.Allowed)

	var n int64
	require.NoError(t, f.db.Model(&model.OrderStatusHistory{}).Count(&n).Error)
	assert.Zero(t, n)
}

// failingHistoryStore reports a history failure after a committed update.
type failingHistoryStore struct {
	store.OrderStore
}

func (s *failingHistoryStore) TransitionOrder(ctx context.Context, restaurantID, orderID int64, from string, fields map[string]any, _ *model.OrderStatusHistory) (error, error) {
	historyErr, err := s.OrderStore.TransitionOrder(ctx, restaurantID, orderID, from, fields, nil)
	if err != nil {
		return historyErr, err
	}
	return errors.New("history table unavailable"), nil
}

func TestService_TransitionHistoryFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	testutil.Order(t, f.db, 1, 1, "pending", base)

	svc := NewService(&failingHistoryStore{OrderStore: f.store}, config.OrdersConfig{}, testutil.Logger)
	res, err := svc.Transition(context.Background(), 1, 1, TransitionRequest{Status: StatusConfirmed, DeviceID: 7})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.NewStatus)
	assert.Empty(t, res.History)

	var o model.Order
	require.NoError(t, f.db.First(&o, 1).Error)
	assert.Equal(t, "confirmed", o.Status)
}

func TestService_AcknowledgeIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.Order(t, f.db, 1, 1, "pending", base)

	first, err := f.service.Acknowledge(ctx, 1, 1, 7)
	require.NoError(t, err)
	assert.False(t, first.AlreadyAcknowledged)
	assert.True(t, base.Equal(first.AcknowledgedAt))

	f.clock.Advance(5 * time.Minute)
	second, err := f.service.Acknowledge(ctx, 1, 1, 8)
	require.NoError(t, err)
	assert.True(t, second.AlreadyAcknowledged)
	assert.True(t, first.AcknowledgedAt.Equal(second.AcknowledgedAt))
	require.NotNil(t, second.AcknowledgedBy)
	assert.Equal(t, int64(7), *second.AcknowledgedBy)

	var n int64
	require.NoError(t, f.db.Model(&model.OrderStatusHistory{}).Count(&n).Error)
	assert.Zero(t, n, "acknowledgment writes no history")
}

func TestService_AcknowledgeNotOwned(t *testing.T) {
	f := newFixture(t)
	testutil.Order(t, f.db, 1, 2, "pending", base)

	_, err := f.service.Acknowledge(context.Background(), 1, 1, 7)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	var o model.Order
	require.NoError(t, f.db.First(&o, 1).Error)
	assert.Nil(t, o.AcknowledgedAt)
}

func ExampleAllowedTransitions() {
	fmt.Println(AllowedTransitions(StatusReady))
	// Output: [out_for_delivery completed cancelled]
}
