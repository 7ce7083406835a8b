package util

import (
	"sync"
	"time"
)

// ResetTimer is a restartable deadline timer. Reset pushes the deadline out by
// the configured duration; Stop makes every later Reset a no-op. It is safe for
// concurrent use.
//
// Typical use is a long-horizon inactivity window:
//
//	rt := NewResetTimer(6 * time.Hour)
//	defer rt.Stop()
//
//	for {
//	    select {
//	    case <-rt.C():
//	        checkStillAlive()
//	    case <-done:
//	        return
//	    }
//	}
type ResetTimer struct {
	duration time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	stopped  bool
}

// NewResetTimer creates a timer armed for the given duration.
func NewResetTimer(duration time.Duration) *ResetTimer {
	return &ResetTimer{
		duration: duration,
		timer:    time.NewTimer(duration),
	}
}

// Reset re-arms the timer for a full duration from now.
func (rt *ResetTimer) Reset() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.stopped {
		return
	}

	if !rt.timer.Stop() {
		select {
		case <-rt.timer.C:
		default:
		}
	}
	rt.timer.Reset(rt.duration)
}

// C returns the channel the timer fires on.
func (rt *ResetTimer) C() <-chan time.Time {
	return rt.timer.C
}

// Stop disarms the timer permanently. Safe to call more than once.
func (rt *ResetTimer) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.stopped {
		rt.timer.Stop()
		rt.stopped = true
	}
}
