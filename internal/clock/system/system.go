// Package system provides a real clock implementation.
package system

import "time"

// Clock implements ingest.Clock using time.Now.
type Clock struct{}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
