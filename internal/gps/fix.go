// Package gps defines the position-fix contract consumed by the fusion loop.
// How fixes are obtained is out of scope; a producer delivers them
// asynchronously on a channel and the holder keeps only the latest one,
// subject to an explicit expiry window.
package gps

import (
	"sync"
	"time"
)

// Fix is one position fix from the satellite receiver. HasSpeed is false when
// the receiver could not derive a ground speed for this fix.
type Fix struct {
	SpeedMps float64
	HasSpeed bool
	Accuracy float64 // reported horizontal accuracy, metres
	Lat      float64
	Lon      float64
}

// LatestFix holds the most recent fix with its arrival time. The producer
// writes at its own cadence; the fusion loop reads with an expiry window so a
// frozen receiver cannot keep an outdated speed trusted forever.
type LatestFix struct {
	mu         sync.Mutex
	fix        Fix
	receivedAt time.Time
}

// Set stores a fix received at now, replacing any previous one.
func (l *LatestFix) Set(fix Fix, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fix = fix
	l.receivedAt = now
}

// Get returns the held fix if one arrived within the expiry window ending at
// now. The second return is false when no fix was ever received or the held
// one has expired.
func (l *LatestFix) Get(now time.Time, expiry time.Duration) (Fix, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.receivedAt.IsZero() || now.Sub(l.receivedAt) > expiry {
		return Fix{}, false
	}
	return l.fix, true
}
