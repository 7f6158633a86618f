package clock

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Date and time-of-day layouts used throughout the attendance ledger.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Clock provides the current time to components that make time-based
// decisions. Injecting it keeps the decision engine testable without
// waiting on the wall clock.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock in a fixed location.
type Real struct {
	location *time.Location
}

// NewReal creates a Real clock for the named timezone. An unknown or empty
// name falls back to UTC.
func NewReal(tzName string) *Real {
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warnf("Failed to load timezone %s: %v. Falling back to UTC.", tzName, err)
		loc = time.UTC
	}
	return &Real{location: loc}
}

// Now returns the current time in the configured timezone.
func (c *Real) Now() time.Time {
	return time.Now().In(c.location)
}

// Date formats t as a ledger date (YYYY-MM-DD).
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// TimeOfDay formats t as a ledger time-of-day (HH:MM:SS).
func TimeOfDay(t time.Time) string {
	return t.Format(TimeLayout)
}
