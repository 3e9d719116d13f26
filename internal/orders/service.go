package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tablet-sync-backend/config"
	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/store"
)

// MaxEstimatedReadyMinutes bounds the prep-time estimate a device may send.
const MaxEstimatedReadyMinutes = 24 * 60

// Filter narrows an order listing.
type Filter struct {
	Status string
	Since  *time.Time
	Limit  int
}

// Page is one listing result.
type Page struct {
	Orders     []View
	TotalCount int64
}

// Detail is a single order with its history, newest first.
type Detail struct {
	Order   View
	History []HistoryEntry
}

// TransitionRequest asks to move an order to Status.
type TransitionRequest struct {
	Status                Status
	Note                  string
	EstimatedReadyMinutes *int
	DeviceID              int64
}

// TransitionResult reports a committed status change.
type TransitionResult struct {
	OrderID        int64
	PreviousStatus Status
	NewStatus      Status
	History        []HistoryEntry
}

// Ack reports the acknowledgment state after Acknowledge.
type Ack struct {
	AcknowledgedAt      time.Time
	AcknowledgedBy      *int64
	AlreadyAcknowledged bool
}

// Service implements order listing, transitions and acknowledgment for a
// restaurant's devices.
type Service struct {
	orders store.OrderStore
	limits config.OrdersConfig
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(orders store.OrderStore, limits config.OrdersConfig, log zerolog.Logger) *Service {
	if limits.MaxLimit <= 0 {
		limits.MaxLimit = 100
	}
	if limits.DefaultLimit <= 0 || limits.DefaultLimit > limits.MaxLimit {
		limits.DefaultLimit = limits.MaxLimit
	}
	return &Service{
		orders: orders,
		limits: limits,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns the restaurant's orders newest first. TotalCount ignores the
// limit.
func (s *Service) List(ctx context.Context, restaurantID int64, f Filter) (*Page, error) {
	fields := map[string]string{}
	if f.Status != "" && !Status(f.Status).Valid() {
		fields["status"] = "is not a known order status"
	}
	switch {
	case f.Limit < 0:
		fields["limit"] = "must be at least 1"
	case f.Limit == 0:
		f.Limit = s.limits.DefaultLimit
	case f.Limit > s.limits.MaxLimit:
		f.Limit = s.limits.MaxLimit
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("request validation failed", fields)
	}

	rows, total, err := s.orders.ListOrders(ctx, restaurantID, store.OrderFilter{
		Status: f.Status,
		Since:  f.Since,
		Limit:  f.Limit,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, NewView(&rows[i]))
	}
	return &Page{Orders: views, TotalCount: total}, nil
}

// Get returns one order of the restaurant with its history.
func (s *Service) Get(ctx context.Context, restaurantID, orderID int64) (*Detail, error) {
	o, err := s.find(ctx, restaurantID, orderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.orders.ListStatusHistory(ctx, o.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Detail{Order: NewView(o), History: NewHistory(rows)}, nil
}

// Transition moves an order along one legal edge and appends a history row.
// A failed history append is logged; the status change stands.
func (s *Service) Transition(ctx context.Context, restaurantID, orderID int64, req TransitionRequest) (*TransitionResult, error) {
	if m := req.EstimatedReadyMinutes; m != nil && (*m < 1 || *m > MaxEstimatedReadyMinutes) {
		return nil, apperr.Validation("request validation failed", map[string]string{
			"estimated_ready_minutes": fmt.Sprintf("must be between 1 and %d", MaxEstimatedReadyMinutes),
		})
	}

	o, err := s.find(ctx, restaurantID, orderID)
	if err != nil {
		return nil, err
	}

	from, to := Status(o.Status), req.Status
	if !CanTransition(from, to) {
		return nil, apperr.InvalidTransition(string(from), string(to), AllowedTransitions(from))
	}

	now := s.now()
	fields := map[string]any{"order_status": string(to)}
	switch to {
	case StatusConfirmed:
		fields["confirmed_at"] = now
	case StatusCompleted, StatusDelivered:
		fields["completed_at"] = now
	case StatusCancelled:
		fields["cancelled_at"] = now
	case StatusPreparing:
		if req.EstimatedReadyMinutes != nil {
			fields["estimated_ready_at"] = now.Add(time.Duration(*req.EstimatedReadyMinutes) * time.Minute)
		}
	}

	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Status updated by tablet device %d", req.DeviceID)
	}
	deviceID := req.DeviceID
	entry := &model.OrderStatusHistory{
		OrderID:        o.ID,
		PreviousStatus: string(from),
		Status:         string(to),
		Note:           note,
		DeviceID:       &deviceID,
		CreatedAt:      now,
	}

	historyErr, err := s.orders.TransitionOrder(ctx, restaurantID, o.ID, string(from), fields, entry)
	if errors.Is(err, store.ErrConflict) {
		return nil, s.lostRace(ctx, restaurantID, o.ID, to)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	logEvent := s.log.Info()
	if historyErr != nil {
		logEvent = s.log.Error().Err(historyErr)
	}
	logEvent.
		Int64("order_id", o.ID).
		Int64("device_id", req.DeviceID).
		Str("from", string(from)).
		Str("to", string(to)).
		Bool("confirm_skipped", from == StatusPending && to == StatusPreparing).
		Bool("history_written", historyErr == nil).
		Msg("order status changed")

	history, err := s.orders.ListStatusHistory(ctx, o.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("order_id", o.ID).Msg("failed to load history after transition")
	}

	return &TransitionResult{
		OrderID:        o.ID,
		PreviousStatus: from,
		NewStatus:      to,
		History:        NewHistory(history),
	}, nil
}

// lostRace reports a compare-and-set miss against the order's current status.
func (s *Service) lostRace(ctx context.Context, restaurantID, orderID int64, to Status) error {
	current, err := s.find(ctx, restaurantID, orderID)
	if err != nil {
		return err
	}
	s.log.Warn().
		Int64("order_id", orderID).
		Str("current", current.Status).
		Str("to", string(to)).
		Msg("concurrent status change")
	from := Status(current.Status)
	return apperr.InvalidTransition(string(from), string(to), AllowedTransitions(from))
}

// Acknowledge records the first device to confirm receipt. Repeat calls
// return the original timestamp.
func (s *Service) Acknowledge(ctx context.Context, restaurantID, orderID, deviceID int64) (*Ack, error) {
	o, applied, err := s.orders.AcknowledgeOrder(ctx, restaurantID, orderID, deviceID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if o.AcknowledgedAt == nil {
		return nil, apperr.Internal(fmt.Errorf("order %d has no acknowledgment after write", orderID))
	}
	if applied {
		s.log.Info().Int64("order_id", orderID).Int64("device_id", deviceID).Msg("order acknowledged")
	}
	return &Ack{
		AcknowledgedAt:      *o.AcknowledgedAt,
		AcknowledgedBy:      o.AcknowledgedByDeviceID,
		AlreadyAcknowledged: !applied,
	}, nil
}

func (s *Service) find(ctx context.Context, restaurantID, orderID int64) (*model.Order, error) {
	o, err := s.orders.FindOrder(ctx, restaurantID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return o, nil
}
