package orders

import (
	"time"

	"tablet-sync-backend/internal/mask"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/parse"
)

// Customer is the contact block a device may display.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Totals are the order amounts as numbers.
type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Tip         float64 `json:"tip"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
	Currency    string  `json:"currency,omitempty"`
}

// View is an order prepared for transport to a device. Contact details are
// masked.
type View struct {
	ID                     int64             `json:"id"`
	OrderNumber            string            `json:"order_number"`
	OrderType              string            `json:"order_type"`
	Status                 string            `json:"status"`
	Customer               Customer          `json:"customer"`
	LineItems              []parse.LineItem  `json:"line_items"`
	DeliveryAddress        map[string]any    `json:"delivery_address"`
	ServiceTime            parse.ServiceTime `json:"service_time"`
	Notes                  string            `json:"notes,omitempty"`
	Totals                 Totals            `json:"totals"`
	EstimatedReadyAt       *time.Time        `json:"estimated_ready_at"`
	ConfirmedAt            *time.Time        `json:"confirmed_at"`
	CompletedAt            *time.Time        `json:"completed_at"`
	CancelledAt            *time.Time        `json:"cancelled_at"`
	AcknowledgedAt         *time.Time        `json:"acknowledged_at"`
	AcknowledgedByDeviceID *int64            `json:"acknowledged_by_device_id"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// HistoryEntry is one status change as sent to a device.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status"`
	Note           string    `json:"note,omitempty"`
	DeviceID       *int64    `json:"device_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewView converts a stored order for transport.
func NewView(o *model.Order) View {
	addr := parse.Address(o.DeliveryAddress)
	return View{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		OrderType:   o.OrderType,
		Status:      o.Status,
		Customer: Customer{
			Name:  o.CustomerName,
			Email: mask.Email(o.CustomerEmail),
			Phone: mask.Phone(o.CustomerPhone),
		},
		LineItems:       parse.LineItems(o.LineItems),
		DeliveryAddress: addr,
		ServiceTime:     parse.ServiceTimeOf(addr),
		Notes:           o.Notes,
		Totals: Totals{
			Subtotal:    parse.Money(o.Subtotal),
			Tax:         parse.Money(o.Tax),
			DeliveryFee: parse.Money(o.DeliveryFee),
			Tip:         parse.Money(o.Tip),
			Discount:    parse.Money(o.Discount),
			Total:       parse.Money(o.Total),
			Currency:    o.Currency,
		},
		EstimatedReadyAt:       o.EstimatedReadyAt,
		ConfirmedAt:            o.ConfirmedAt,
		CompletedAt:            o.CompletedAt,
		CancelledAt:            o.CancelledAt,
		AcknowledgedAt:         o.AcknowledgedAt,
		AcknowledgedByDeviceID: o.AcknowledgedByDeviceID,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
}

// NewHistory converts stored history rows, preserving order. Never nil.
func NewHistory(rows []model.OrderStatusHistory) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(rows))
	for _, h := range rows {
		out = append(out, HistoryEntry{
			ID:             h.ID,
			PreviousStatus: h.PreviousStatus,
			Status:         h.Status,
			Note:           h.Note,
			DeviceID:       h.DeviceID,
			CreatedAt:      h.CreatedAt,
		})
	}
	return out
}
