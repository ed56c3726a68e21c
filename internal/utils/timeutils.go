package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// WithinWindow reports whether ts falls inside the window ending at now.
func WithinWindow(ts, now time.Time, window time.Duration) bool {
	if ts.After(now) {
		return true
	}
	return now.Sub(ts) <= window
}
