// Package monitoring holds the process-wide diagnostic logger used by the
// simulation packages. Per-tick faults are advisory: they are reported here
// and never halt a tick.
package monitoring

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Throttle limits repeated diagnostics to one line per key per interval.
// A missing wheel actuator is reported every tick by the drive loop; at
// 50 Hz that would flood the log, so callers route those lines through a
// Throttle keyed by the wheel name.
type Throttle struct {
	mu         sync.Mutex
	interval   time.Duration
	now        func() time.Time
	last       map[string]time.Time
	suppressed map[string]int
}

// NewThrottle creates a Throttle with the given interval. now may be nil,
// in which case time.Now is used.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		interval:   interval,
		now:        now,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
	}
}

// Logf emits the message through the package logger unless a line with the
// same key was emitted within the interval. When a line is finally emitted
// after suppression, the number of dropped lines is appended.
// Returns true when the line was written.
func (t *Throttle) Logf(key, format string, v ...interface{}) bool {
	t.mu.Lock()
	now := t.now()
	last, seen := t.last[key]
	if seen && now.Sub(last) < t.interval {
		t.suppressed[key]++
		t.mu.Unlock()
		return false
	}
	dropped := t.suppressed[key]
	t.last[key] = now
	t.suppressed[key] = 0
	t.mu.Unlock()

	msg := fmt.Sprintf(format, v...)
	if dropped > 0 {
		msg = fmt.Sprintf("%s (suppressed %d similar)", msg, dropped)
	}
	Logf("%s", msg)
	return true
}

// Suppressed returns the number of lines dropped for key since it was last
// written.
func (t *Throttle) Suppressed(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suppressed[key]
}
