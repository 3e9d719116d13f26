package parse

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Service time descriptors.
const (
	ServiceASAP      = "asap"
	ServiceScheduled = "scheduled"
)

// Amount is a monetary value that accepts both JSON numbers and numeric strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(Money(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Modifier is an option chosen for a line item.
type Modifier struct {
	Name  string `json:"name"`
	Price Amount `json:"price"`
}

// LineItem is a single dish in an order.
type LineItem struct {
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	UnitPrice Amount     `json:"unit_price"`
	Modifiers []Modifier `json:"modifiers"`
	Notes     string     `json:"notes,omitempty"`
}

// ServiceTime describes when the restaurant is expected to fulfil an order.
type ServiceTime struct {
	Type         string     `json:"type"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// LineItems decodes the line item payload written by checkout.
// Malformed input yields an empty list.
func LineItems(raw string) []LineItem {
	items := []LineItem{}
	if strings.TrimSpace(raw) == "" {
		return items
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []LineItem{}
	}
	for i := range items {
		if items[i].Modifiers == nil {
			items[i].Modifiers = []Modifier{}
		}
	}
	return items
}

// Address decodes the delivery address payload. Malformed or non-object input
// yields nil.
func Address(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var addr map[string]any
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return nil
	}
	return addr
}

// ServiceTimeOf derives the service time from a decoded address payload.
func ServiceTimeOf(addr map[string]any) ServiceTime {
	if t, ok := timeField(addr, "scheduled_for"); ok {
		return ServiceTime{Type: ServiceScheduled, ScheduledFor: &t}
	}
	mode, _ := addr["service_time"].(string)
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "" && mode != ServiceASAP {
		if t, ok := timeField(addr, "scheduled_time"); ok {
			return ServiceTime{Type: ServiceScheduled, ScheduledFor: &t}
		}
	}
	return ServiceTime{Type: ServiceASAP}
}

func timeField(addr map[string]any, key string) (time.Time, bool) {
	s, ok := addr[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Money converts a stored numeric column to a float. Unparseable values are 0.
func Money(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}
