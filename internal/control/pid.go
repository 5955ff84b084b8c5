// Package control provides the feedback primitives used by the drive loop.
package control

// Gains are the proportional, integral and derivative coefficients of a PID.
type Gains struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// PID is a textbook velocity PID controller. Gains are configuration; the
// integral and last error are the only mutable state and Reset clears them.
type PID struct {
	Gains

	integral  float64
	lastError float64
}

// NewPID returns a PID with the given gains and zeroed history.
func NewPID(g Gains) *PID {
	return &PID{Gains: g}
}

// Update advances the controller by one tick and returns the correction.
//
// dt must be positive. A non-positive dt has no defined derivative, so the
// integral is left untouched, the derivative term is dropped and only the
// proportional and accumulated integral terms are returned.
func (p *PID) Update(target, current, dt float64) float64 {
	err := target - current
	if dt <= 0 {
		p.lastError = err
		return p.Kp*err + p.Ki*p.integral
	}

	p.integral += err * dt
	derivative := (err - p.lastError) / dt
	p.lastError = err

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

// Reset discards accumulated history. Gains are preserved.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
}

// Integral returns the accumulated integral term (sum of error*dt).
func (p *PID) Integral() float64 { return p.integral }

// LastError returns the error seen on the most recent Update.
func (p *PID) LastError() float64 { return p.lastError }
