package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItems(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected []LineItem
	}{
		{
			name: "Numeric prices",
			raw:  `[{"name":"Pad Thai","quantity":2,"unit_price":12.5,"modifiers":[{"name":"Extra egg","price":1}]}]`,
			expected: []LineItem{{
				Name: "Pad Thai", Quantity: 2, UnitPrice: 12.5,
				Modifiers: []Modifier{{Name: "Extra egg", Price: 1}},
			}},
		},
		{
			name: "String prices",
			raw:  `[{"name":"Soup","quantity":1,"unit_price":"4.25"}]`,
			expected: []LineItem{{
				Name: "Soup", Quantity: 1, UnitPrice: 4.25, Modifiers: []Modifier{},
			}},
		},
		{
			name:     "Empty",
			raw:      "",
			expected: []LineItem{},
		},
		{
			name:     "Malformed",
			raw:      `[{"name":`,
			expected: []LineItem{},
		},
		{
			name:     "Object instead of list",
			raw:      `{"name":"Soup"}`,
			expected: []LineItem{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, LineItems(tc.raw))
		})
	}
}

func TestAddress(t *testing.T) {
	addr := Address(`{"street":"1 Main St","city":"Springfield"}`)
	require.NotNil(t, addr)
	assert.Equal(t, "Springfield", addr["city"])

	assert.Nil(t, Address(""))
	assert.Nil(t, Address("not json"))
	assert.Nil(t, Address(`["a","b"]`))
}

func TestServiceTimeOf(t *testing.T) {
	at := time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		addr     map[string]any
		expected ServiceTime
	}{
		{
			name:     "Nil address",
			addr:     nil,
			expected: ServiceTime{Type: ServiceASAP},
		},
		{
			name:     "Scheduled for",
			addr:     map[string]any{"scheduled_for": "2026-10-14T20:30:00+02:00"},
			expected: ServiceTime{Type: ServiceScheduled, ScheduledFor: &at},
		},
		{
			name:     "Service time with scheduled time",
			addr:     map[string]any{"service_time": "later", "scheduled_time": "2026-10-14T18:30:00Z"},
			expected: ServiceTime{Type: ServiceScheduled, ScheduledFor: &at},
		},
		{
			name:     "Explicit asap ignores scheduled time",
			addr:     map[string]any{"service_time": "ASAP", "scheduled_time": "2026-10-14T18:30:00Z"},
			expected: ServiceTime{Type: ServiceASAP},
		},
		{
			name:     "Unparseable schedule",
			addr:     map[string]any{"scheduled_for": "tonight"},
			expected: ServiceTime{Type: ServiceASAP},
		},
		{
			name:     "Wrong type",
			addr:     map[string]any{"scheduled_for": 1234},
			expected: ServiceTime{Type: ServiceASAP},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ServiceTimeOf(tc.addr))
		})
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, 12.5, Money("12.50"))
	assert.Equal(t, 10.0, Money("10"))
	assert.Equal(t, 0.0, Money(""))
	assert.Equal(t, 0.0, Money("abc"))
	assert.Equal(t, 3.0, Money(" 3.00 "))
}
