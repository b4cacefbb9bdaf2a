package models

import (
	"fmt"
	"time"
)

// instantLayout is the naive UTC form instants take in persisted JSON and in
// wire payloads. Clients may also submit RFC 3339 with a zone suffix; the
// suffix is dropped on the way in.
const instantLayout = "2006-01-02T15:04:05"

// ParseInstant parses a client-supplied timestamp. RFC 3339 (with or without
// fractional seconds) and the naive layout are accepted; naive values are
// taken as UTC.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(instantLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatInstant renders an instant in the persisted form.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}
