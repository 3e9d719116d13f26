package model

import "time"

// Order is written by checkout; this service only mutates the status and
// acknowledgment columns.
type Order struct {
	ID              int64  `gorm:"primaryKey"`
	RestaurantID    int64  `gorm:"index:idx_orders_restaurant_created,priority:1;not null"`
	OrderNumber     string `gorm:"size:32"`
	OrderType       string `gorm:"size:32"` // pickup, delivery, dine_in
	CustomerName    string `gorm:"size:256"`
	CustomerEmail   string `gorm:"size:256"`
	CustomerPhone   string `gorm:"size:64"`
	LineItems       string `gorm:"type:text"` // JSON array
	DeliveryAddress string `gorm:"type:text"` // JSON object
	Notes           string `gorm:"type:text"`
	Subtotal        string `gorm:"type:numeric(12,2)"`
	Tax             string `gorm:"type:numeric(12,2)"`
	DeliveryFee     string `gorm:"type:numeric(12,2)"`
	Tip             string `gorm:"type:numeric(12,2)"`
	Discount        string `gorm:"type:numeric(12,2)"`
	Total           string `gorm:"type:numeric(12,2)"`
	Currency        string `gorm:"size:3"`

	Status                 string `gorm:"column:order_status;size:32;index;not null"`
	EstimatedReadyAt       *time.Time
	ConfirmedAt            *time.Time
	CompletedAt            *time.Time
	CancelledAt            *time.Time
	AcknowledgedAt         *time.Time
	AcknowledgedByDeviceID *int64

	CreatedAt time.Time `gorm:"index:idx_orders_restaurant_created,priority:2;not null"`
	UpdatedAt time.Time
}

// OrderStatusHistory is the append-only audit trail of status transitions.
type OrderStatusHistory struct {
	ID             int64     `gorm:"primaryKey"`
	OrderID        int64     `gorm:"index;not null"`
	PreviousStatus string    `gorm:"size:32"`
	Status         string    `gorm:"size:32;not null"`
	Note           string    `gorm:"type:text"`
	DeviceID       *int64    `gorm:"index"`
	CreatedAt      time.Time `gorm:"index;not null"`
}

// TableName overrides the pluralized default.
func (OrderStatusHistory) TableName() string { return "order_status_history" }
