// Package system provides the wall-clock implementation of the Clock interface.
package system

import "time"

// Clock returns the current UTC time.
type Clock struct{}

// New constructs a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (c *Clock) Now() time.Time {
	return time.Now().UTC()
}
