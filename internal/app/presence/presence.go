/*
Package presence records which users are online.

A Record holds a status and a freshness deadline. An absent or expired record reads as offline,
so a crashed server cannot leave users marked online forever. Service wraps a Store and never
returns store errors to callers: they are logged and surface as StatusUnknown.
*/
package presence

import (
	"context"
	"time"
)

// Status is a user's presence as seen by the rest of the system.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"

	// StatusUnknown is reported when the store could not be consulted.
	StatusUnknown Status = "unknown"
)

// IsOnline reports whether s is StatusOnline. Unknown counts as offline.
func (s Status) IsOnline() bool {
	return s == StatusOnline
}

// Record is the stored presence of one identity.
type Record struct {
	Identity  string
	Status    Status
	ExpiresAt time.Time
}

// StatusAt returns the status the record stands for at now.
func (r Record) StatusAt(now time.Time) Status {
	if r.Status != StatusOnline || !now.Before(r.ExpiresAt) {
		return StatusOffline
	}
	return StatusOnline
}

// Store persists presence records. Writes for one identity are last-writer-wins.
type Store interface {
	Set(ctx context.Context, rec Record) error

	// Get returns ok=false when identity has never been recorded.
	Get(ctx context.Context, identity string) (rec Record, ok bool, err error)

	// GetMany returns the records that exist among identities in one round trip.
	GetMany(ctx context.Context, identities []string) (map[string]Record, error)
}
