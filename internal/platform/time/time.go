// Package time holds small time helpers shared across services
package time

import "time"

// Ptr returns a pointer to t, mapping the zero time to nil so optional
// timestamp columns round-trip as NULL
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
