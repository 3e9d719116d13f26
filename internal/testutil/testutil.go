// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tablet-sync-backend/config"
	"tablet-sync-backend/internal/credential"
	"tablet-sync-backend/internal/db"
	"tablet-sync-backend/internal/model"
)

// Secret is the raw key given to every seeded device.
const Secret = "dk_test-secret"

// Hasher is cheap enough for tests.
var Hasher = credential.NewHasher(4)

// Logger discards output.
var Logger = zerolog.Nop()

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	gdb, err := db.Init(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		sqlDB.Close()
	})
	return gdb
}

// Restaurant inserts a restaurant.
func Restaurant(t *testing.T, gdb *gorm.DB, id int64, name string) *model.Restaurant {
	t.Helper()
	r := &model.Restaurant{ID: id, Name: name}
	require.NoError(t, gdb.Create(r).Error)
	return r
}

// Device inserts an active device for restaurantID whose key is Secret.
// A zero restaurantID leaves it unassigned.
func Device(t *testing.T, gdb *gorm.DB, uuid string, restaurantID int64) *model.Device {
	t.Helper()
	hash, err := Hasher.Hash(Secret)
	require.NoError(t, err)
	d := &model.Device{UUID: uuid, Name: "Tablet " + uuid, SecretHash: hash, IsActive: true}
	if restaurantID != 0 {
		d.RestaurantID = &restaurantID
	}
	require.NoError(t, gdb.Create(d).Error)
	return d
}

// Order inserts an order with the given status.
func Order(t *testing.T, gdb *gorm.DB, id, restaurantID int64, status string, createdAt time.Time) *model.Order {
	t.Helper()
	o := &model.Order{
		ID:              id,
		RestaurantID:    restaurantID,
		OrderNumber:     fmt.Sprintf("A-%04d", id),
		OrderType:       "delivery",
		CustomerName:    "Jane Doe",
		CustomerEmail:   "jane.doe@example.com",
		CustomerPhone:   "(555) 010-4242",
		LineItems:       `[{"name":"Pho","quantity":2,"unit_price":"11.50","modifiers":[{"name":"Extra basil","price":"0.50"}]}]`,
		DeliveryAddress: `{"street":"1 Main St","city":"Springfield","service_time":"asap"}`,
		Subtotal:        "23.50",
		Tax:             "2.35",
		DeliveryFee:     "3.00",
		Tip:             "4.00",
		Discount:        "0",
		Total:           "32.85",
		Currency:        "USD",
		Status:          status,
		CreatedAt:       createdAt,
	}
	require.NoError(t, gdb.Create(o).Error)
	return o
}

// Clock is a settable time source.
type Clock struct{ T time.Time }

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
