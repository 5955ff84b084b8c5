package physics

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/spatial"
)

// WheelParams describes the rigid wheel used by SimWheel.
type WheelParams struct {
	Radius  float64
	Inertia float64 // kg·m², rotational inertia about the axle
	// RollingResistance is the viscous drag torque per rad/s of spin.
	RollingResistance float64
	// Mount is the axle centre relative to the chassis.
	Mount r3.Vec
}

// SimWheel is a headless WheelActuator. Spin is integrated from the last
// commanded motor and brake torques on every Integrate call.
type SimWheel struct {
	mu       sync.RWMutex
	params   WheelParams
	parent   PoseSource
	omega    float64
	spin     float64
	motor    float64
	brake    float64
	friction [2]float64
}

// NewSimWheel creates a wheel attached to parent. parent may be nil, in
// which case the wheel sits at the world origin.
func NewSimWheel(p WheelParams, parent PoseSource) *SimWheel {
	if p.Inertia <= 0 {
		p.Inertia = 1
	}
	return &SimWheel{params: p, parent: parent}
}

func (w *SimWheel) Radius() float64 { return w.params.Radius }

func (w *SimWheel) RotationalSpeed() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.omega
}

func (w *SimWheel) SetMotorTorque(t float64) {
	w.mu.Lock()
	w.motor = t
	w.mu.Unlock()
}

func (w *SimWheel) SetBrakeTorque(t float64) {
	w.mu.Lock()
	w.brake = math.Abs(t)
	w.mu.Unlock()
}

// MotorTorque returns the last commanded motor torque.
func (w *SimWheel) MotorTorque() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.motor
}

// BrakeTorque returns the last commanded brake torque.
func (w *SimWheel) BrakeTorque() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.brake
}

func (w *SimWheel) Friction(side FrictionSide) float64 {
	if side != ForwardFriction && side != SideFriction {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.friction[side]
}

func (w *SimWheel) SetFriction(side FrictionSide, stiffness float64) {
	if side != ForwardFriction && side != SideFriction {
		return
	}
	w.mu.Lock()
	w.friction[side] = stiffness
	w.mu.Unlock()
}

// LinearSpeed returns the contact patch speed in m/s.
func (w *SimWheel) LinearSpeed() float64 {
	return w.RotationalSpeed() * w.params.Radius
}

// Integrate advances the wheel spin by dt seconds. Brake torque decelerates
// toward zero and never reverses the spin direction.
func (w *SimWheel) Integrate(dt float64) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.params.Inertia
	net := w.motor - w.params.RollingResistance*w.omega
	w.omega += net / i * dt

	if w.brake > 0 && w.omega != 0 {
		dv := w.brake / i * dt
		if dv >= math.Abs(w.omega) {
			w.omega = 0
		} else {
			w.omega -= math.Copysign(dv, w.omega)
		}
	}
	w.spin = math.Mod(w.spin+w.omega*dt, 2*math.Pi)
}

// WorldPose returns the wheel hub pose including its spin about the axle.
func (w *SimWheel) WorldPose() spatial.Pose {
	w.mu.RLock()
	spin := w.spin
	w.mu.RUnlock()

	local := spatial.Pose{Position: w.params.Mount, Rotation: spatial.PitchRotation(spin)}
	if w.parent == nil {
		return local
	}
	return w.parent.WorldPose().Mul(local)
}
