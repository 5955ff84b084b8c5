package drive

import "sync"

// Twist is a commanded body velocity: forward speed in m/s and turn rate.
// Positive AngularY speeds up the right side and turns the body left.
type Twist struct {
	LinearZ  float64 `json:"linear_z"`
	AngularY float64 `json:"angular_y"`
}

// TwistHolder owns the commanded twist. The command bridge writes it from
// its own goroutine while the drive loop reads and updates it each tick.
type TwistHolder struct {
	mu sync.Mutex
	t  Twist
}

// Get returns the current twist.
func (h *TwistHolder) Get() Twist {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.t
}

// Set replaces the twist.
func (h *TwistHolder) Set(t Twist) {
	h.mu.Lock()
	h.t = t
	h.mu.Unlock()
}

// Update applies fn to the twist under the lock and stores the result, so
// a read-modify-write cannot interleave with Set.
func (h *TwistHolder) Update(fn func(Twist) Twist) Twist {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.t = fn(h.t)
	return h.t
}
