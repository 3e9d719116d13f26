package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tablet-sync-backend/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost a race.
	ErrConflict = errors.New("conflicting concurrent update")
)

// DeviceStore persists device identity and configuration.
type DeviceStore interface {
	CreateDevice(ctx context.Context, d *model.Device) error
	FindDeviceByUUID(ctx context.Context, uuid string) (*model.Device, error)
	FindDeviceByID(ctx context.Context, id int64) (*model.Device, error)
	ListDevices(ctx context.Context, restaurantID *int64) ([]model.Device, error)
	UpdateDevice(ctx context.Context, id int64, fields map[string]any) error
	SetDeviceSecret(ctx context.Context, id int64, hash string) error
	DeleteDevice(ctx context.Context, id int64) error
	MarkBoot(ctx context.Context, id int64, at time.Time) error
	MarkHeartbeat(ctx context.Context, id int64, at time.Time) error
	UpsertDeviceConfig(ctx context.Context, cfg *model.DeviceConfig) error
	FindRestaurant(ctx context.Context, id int64) (*model.Restaurant, error)
}

// SessionStore persists device sessions.
type SessionStore interface {
	ReplaceSessions(ctx context.Context, s *model.DeviceSession) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (*model.DeviceSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	RotateSessionToken(ctx context.Context, id, oldHash, newHash string, expiresAt, at time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsForDevice(ctx context.Context, deviceID int64) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// OrderStore reads orders and owns the status and acknowledgment columns.
type OrderStore interface {
	ListOrders(ctx context.Context, restaurantID int64, filter OrderFilter) ([]model.Order, int64, error)
	FindOrder(ctx context.Context, restaurantID, orderID int64) (*model.Order, error)
	ListStatusHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
	TransitionOrder(ctx context.Context, restaurantID, orderID int64, from string, fields map[string]any, entry *model.OrderStatusHistory) (historyErr error, err error)
	AcknowledgeOrder(ctx context.Context, restaurantID, orderID, deviceID int64, at time.Time) (*model.Order, bool, error)
}

// Store defines the interface for all database operations.
type Store interface {
	DeviceStore
	SessionStore
	OrderStore
	Ping(ctx context.Context) error
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	Status string
	Since  *time.Time
	Limit  int
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
