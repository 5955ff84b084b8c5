package drive

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/rover-sim/internal/control"
	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/physics"
	"github.com/banshee-data/rover-sim/internal/spatial"
)

var (
	// ErrMissingActuator is returned when a wheel has no physics actuator.
	// The wheel is skipped for the tick; other wheels are unaffected.
	ErrMissingActuator = errors.New("wheel actuator missing")
	// ErrInvalidConfig is returned for wheel or vehicle settings that cannot
	// drive a tick.
	ErrInvalidConfig = errors.New("invalid drive config")
	// ErrInvalidTick is returned when a tick is stepped with dt <= 0.
	ErrInvalidTick = errors.New("non-positive tick duration")
)

// WheelSpec is the static description of one driven wheel.
type WheelSpec struct {
	Name             string        `json:"name"`
	MaxRPM           float64       `json:"max_rpm"`
	Inertia          float64       `json:"inertia"`
	ForwardStiffness float64       `json:"forward_stiffness"`
	SideStiffness    float64       `json:"side_stiffness"`
	Gains            control.Gains `json:"pid"`
}

// DefaultWheelSpec returns the stock drive wheel.
func DefaultWheelSpec(name string) WheelSpec {
	return WheelSpec{
		Name:             name,
		MaxRPM:           76,
		Inertia:          0.01,
		ForwardStiffness: 1.5,
		SideStiffness:    2.0,
		Gains:            control.Gains{Kp: 5, Ki: 1, Kd: 0},
	}
}

// Validate reports the first invalid field.
func (s WheelSpec) Validate() error {
	if !(s.MaxRPM > 0) || math.IsInf(s.MaxRPM, 0) {
		return fmt.Errorf("%w: wheel %s max_rpm must be positive, got %g", ErrInvalidConfig, s.Name, s.MaxRPM)
	}
	if !(s.Inertia > 0) || math.IsInf(s.Inertia, 0) {
		return fmt.Errorf("%w: wheel %s inertia must be positive, got %g", ErrInvalidConfig, s.Name, s.Inertia)
	}
	if s.ForwardStiffness < 0 || s.SideStiffness < 0 {
		return fmt.Errorf("%w: wheel %s friction stiffness must be >= 0", ErrInvalidConfig, s.Name)
	}
	return nil
}

// WheelOutput is the computed actuation for one wheel on one tick.
type WheelOutput struct {
	Name          string
	Target        float64 // m/s
	CurrentSpeed  float64 // m/s
	Correction    float64
	RawTorque     float64
	MotorTorque   float64
	MaxTorque     float64
	BrakeTorque   float64
	SideStiffness float64
	Clamped       bool
	Skipped       bool
}

// Wheel is the per-wheel velocity controller. It reads wheel speed from the
// actuator, runs its PID against a target linear speed and writes a clamped
// motor torque and brake torque back.
type Wheel struct {
	spec     WheelSpec
	act      physics.WheelActuator
	pid      *control.PID
	strategy TorqueStrategy
	throttle *monitoring.Throttle

	radius         float64
	maxLinearSpeed float64
	visual         spatial.Pose
}

// NewWheel creates a wheel controller. act may be nil; the wheel then
// reports ErrMissingActuator on every tick instead of actuating.
func NewWheel(spec WheelSpec, act physics.WheelActuator) (*Wheel, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if act != nil {
		if r := act.Radius(); !(r > 0) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: wheel %s actuator radius must be positive, got %g", ErrInvalidConfig, spec.Name, r)
		}
	}
	w := &Wheel{
		spec:     spec,
		act:      act,
		pid:      control.NewPID(spec.Gains),
		strategy: PIDTorqueControl{},
		throttle: monitoring.NewThrottle(5*time.Second, nil),
		visual:   spatial.Pose{Rotation: spatial.Identity},
	}
	w.Init()
	return w, nil
}

// Init reads the actuator radius, derives the maximum linear speed and
// applies nominal friction.
func (w *Wheel) Init() {
	if w.act == nil {
		monitoring.Logf("[Wheel] %s: no actuator attached, wheel will be skipped", w.spec.Name)
		return
	}
	w.radius = w.act.Radius()
	w.maxLinearSpeed = maxLinearSpeed(w.spec.MaxRPM, w.radius)
	w.act.SetFriction(physics.ForwardFriction, w.spec.ForwardStiffness)
	w.act.SetFriction(physics.SideFriction, w.spec.SideStiffness)
}

func maxLinearSpeed(rpm, radius float64) float64 {
	return rpm * radius * math.Pi / 30
}

// SetMaxRPM changes the speed limit and recomputes the derived maximum
// linear speed.
func (w *Wheel) SetMaxRPM(rpm float64) {
	w.spec.MaxRPM = rpm
	w.maxLinearSpeed = maxLinearSpeed(rpm, w.radius)
}

// SetStrategy replaces the torque strategy. nil restores PID control.
func (w *Wheel) SetStrategy(s TorqueStrategy) {
	if s == nil {
		s = PIDTorqueControl{}
	}
	w.strategy = s
}

// Name returns the wheel's configured name.
func (w *Wheel) Name() string { return w.spec.Name }

// Spec returns the wheel's static description.
func (w *Wheel) Spec() WheelSpec { return w.spec }

// PID exposes the wheel's controller for inspection.
func (w *Wheel) PID() *control.PID { return w.pid }

// ResetPID discards accumulated controller history.
func (w *Wheel) ResetPID() { w.pid.Reset() }

// MaxLinearSpeed returns the derived speed limit in m/s.
func (w *Wheel) MaxLinearSpeed() float64 { return w.maxLinearSpeed }

// MaxTorque returns the clamp applied to motor torque for a scale factor.
func (w *Wheel) MaxTorque(scale float64) float64 {
	if w.radius == 0 {
		return 0
	}
	return w.maxLinearSpeed / w.radius * w.spec.Inertia * scale
}

// VisualPose returns the wheel pose last synchronised from the actuator.
func (w *Wheel) VisualPose() spatial.Pose { return w.visual }

// Compute reads the wheel speed and runs the controller. It writes nothing
// to the actuator. While braking the drive torque is zero whatever the
// brake force is.
func (w *Wheel) Compute(target float64, braking bool, brake, scale, dt float64) (WheelOutput, error) {
	out := WheelOutput{Name: w.spec.Name, Target: target, BrakeTorque: brake}
	if w.act == nil {
		w.throttle.Logf(w.spec.Name, "[Wheel] %s: actuator missing, skipping actuation", w.spec.Name)
		return out, fmt.Errorf("wheel %s: %w", w.spec.Name, ErrMissingActuator)
	}
	if !(dt > 0) {
		return out, fmt.Errorf("wheel %s: %w: %g", w.spec.Name, ErrInvalidTick, dt)
	}

	out.CurrentSpeed = w.act.RotationalSpeed() * w.radius
	out.Correction, out.RawTorque = w.strategy.Torque(w.pid, TorqueInput{
		Target:  target,
		Current: out.CurrentSpeed,
		Radius:  w.radius,
		Inertia: w.spec.Inertia,
		Scale:   scale,
		Dt:      dt,
	})
	out.MaxTorque = w.MaxTorque(scale)
	out.MotorTorque = clamp(out.RawTorque, out.MaxTorque)
	out.Clamped = out.MotorTorque != out.RawTorque
	if braking {
		out.MotorTorque = 0
	}
	out.SideStiffness = w.spec.SideStiffness
	return out, nil
}

// Write applies a computed output to the actuator and re-synchronises the
// visual pose.
func (w *Wheel) Write(out WheelOutput) error {
	if w.act == nil {
		return fmt.Errorf("wheel %s: %w", w.spec.Name, ErrMissingActuator)
	}
	w.act.SetFriction(physics.SideFriction, out.SideStiffness)
	w.act.SetMotorTorque(out.MotorTorque)
	w.act.SetBrakeTorque(out.BrakeTorque)
	w.visual = w.act.WorldPose()
	return nil
}

// Actuate computes and writes in one call.
func (w *Wheel) Actuate(target float64, braking bool, brake, scale, dt float64) (WheelOutput, error) {
	out, err := w.Compute(target, braking, brake, scale, dt)
	if err != nil {
		return out, err
	}
	return out, w.Write(out)
}
