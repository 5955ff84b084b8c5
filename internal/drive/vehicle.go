// Package drive turns a commanded body twist into per-wheel torque and
// brake commands using differential-drive kinematics and per-wheel PID
// velocity control. Manual keyboard input can override the twist.
package drive

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/rover-sim/internal/monitoring"
)

// VehicleConfig tunes the drive controller.
type VehicleConfig struct {
	WheelBase            float64      `json:"wheel_base"`
	TorqueScale          float64      `json:"torque_scale"`
	BrakeForce           float64      `json:"brake_force"`
	TurningSideStiffness float64      `json:"turning_side_stiffness"`
	StopThreshold        float64      `json:"stop_threshold"`
	Manual               ManualConfig `json:"manual"`
}

// DefaultVehicleConfig returns the stock rover drive.
func DefaultVehicleConfig() VehicleConfig {
	return VehicleConfig{
		WheelBase:            0.555,
		TorqueScale:          1,
		BrakeForce:           10,
		TurningSideStiffness: 0,
		StopThreshold:        0.01,
		Manual:               DefaultManualConfig(),
	}
}

// Validate reports the first invalid field.
func (c VehicleConfig) Validate() error {
	switch {
	case !(c.WheelBase > 0):
		return fmt.Errorf("%w: wheel_base must be positive, got %g", ErrInvalidConfig, c.WheelBase)
	case !(c.TorqueScale > 0):
		return fmt.Errorf("%w: torque_scale must be positive, got %g", ErrInvalidConfig, c.TorqueScale)
	case c.BrakeForce < 0 || math.IsNaN(c.BrakeForce):
		return fmt.Errorf("%w: brake_force must be >= 0, got %g", ErrInvalidConfig, c.BrakeForce)
	case c.TurningSideStiffness < 0:
		return fmt.Errorf("%w: turning_side_stiffness must be >= 0, got %g", ErrInvalidConfig, c.TurningSideStiffness)
	case !(c.StopThreshold > 0):
		return fmt.Errorf("%w: stop_threshold must be positive, got %g", ErrInvalidConfig, c.StopThreshold)
	case !(c.Manual.Step > 0), !(c.Manual.Limit > 0):
		return fmt.Errorf("%w: manual step and limit must be positive", ErrInvalidConfig)
	case !(c.Manual.Decay > 0) || c.Manual.Decay >= 1:
		return fmt.Errorf("%w: manual decay must be in (0,1), got %g", ErrInvalidConfig, c.Manual.Decay)
	case c.Manual.ReverseBoost < 0 || !(c.Manual.SnapThreshold > 0):
		return fmt.Errorf("%w: manual reverse_boost must be >= 0 and snap_threshold positive", ErrInvalidConfig)
	}
	return nil
}

// SpeedSource reports the chassis forward speed in m/s.
type SpeedSource interface {
	ForwardSpeed() float64
}

// DrivePlan is the pure result of planning one tick from a twist.
type DrivePlan struct {
	Twist       Twist
	LeftTarget  float64
	RightTarget float64
	Brake       float64
	Braking     bool
	Turning     bool
}

// TickReport summarises one drive step.
type TickReport struct {
	Plan     DrivePlan
	Left     []WheelOutput
	Right    []WheelOutput
	PIDReset bool
	Faults   int
}

// Vehicle is the drive controller for a differential-drive base.
type Vehicle struct {
	cfg    VehicleConfig
	left   []*Wheel
	right  []*Wheel
	twist  *TwistHolder
	manual *ManualOverride
	speed  SpeedSource
	faults *monitoring.Throttle
}

// NewVehicle wires wheels to a twist holder. twist may be nil, in which case
// the vehicle owns a private holder.
func NewVehicle(cfg VehicleConfig, left, right []*Wheel, twist *TwistHolder) (*Vehicle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(left) == 0 || len(right) == 0 {
		return nil, fmt.Errorf("%w: need at least one wheel per side, got %d left %d right", ErrInvalidConfig, len(left), len(right))
	}
	if twist == nil {
		twist = &TwistHolder{}
	}
	monitoring.Logf("[Drive] %d left / %d right wheels, wheel base %.3fm, brake %.1f",
		len(left), len(right), cfg.WheelBase, cfg.BrakeForce)
	return &Vehicle{
		cfg:    cfg,
		left:   left,
		right:  right,
		twist:  twist,
		manual: NewManualOverride(cfg.Manual),
		faults: monitoring.NewThrottle(5*time.Second, nil),
	}, nil
}

// Twist returns the holder the command source writes to.
func (v *Vehicle) Twist() *TwistHolder { return v.twist }

// ManualActive reports whether keyboard input currently owns the twist.
func (v *Vehicle) ManualActive() bool { return v.manual.Active() }

// SetSpeedSource attaches a chassis speed source for ForwardSpeed.
func (v *Vehicle) SetSpeedSource(s SpeedSource) { v.speed = s }

// ForwardSpeed returns the chassis speed along its heading, or 0 without a
// speed source.
func (v *Vehicle) ForwardSpeed() float64 {
	if v.speed == nil {
		return 0
	}
	return v.speed.ForwardSpeed()
}

// Wheels returns every wheel, left side first.
func (v *Vehicle) Wheels() []*Wheel {
	out := make([]*Wheel, 0, len(v.left)+len(v.right))
	out = append(out, v.left...)
	return append(out, v.right...)
}

// ResetPIDs discards controller history on every wheel.
func (v *Vehicle) ResetPIDs() {
	for _, w := range v.Wheels() {
		w.ResetPID()
	}
}

// Plan maps a twist to wheel targets, brake and friction mode. It has no
// side effects.
func (v *Vehicle) Plan(t Twist) DrivePlan {
	half := t.AngularY * v.cfg.WheelBase / 2
	p := DrivePlan{
		Twist:       t,
		LeftTarget:  t.LinearZ - half,
		RightTarget: t.LinearZ + half,
		Turning:     t.AngularY != 0,
	}
	if math.Abs(t.LinearZ) < v.cfg.StopThreshold && math.Abs(t.AngularY) < v.cfg.StopThreshold {
		p.Braking = true
		p.Brake = v.cfg.BrakeForce
	}
	return p
}

// Step runs one drive tick: apply manual input to the twist, plan, compute
// every wheel and finally write all actuator outputs.
func (v *Vehicle) Step(ev InputEvent, dt float64) TickReport {
	var reset bool
	t := v.twist.Update(func(cur Twist) Twist {
		next, r := v.manual.Apply(ev, cur)
		reset = r
		return next
	})
	if reset {
		v.ResetPIDs()
	}

	report := v.Apply(v.Plan(t), dt)
	report.PIDReset = reset
	return report
}

// Apply computes and writes the outputs for a plan. Wheel faults are
// logged and counted; they never abort the remaining wheels.
func (v *Vehicle) Apply(plan DrivePlan, dt float64) TickReport {
	report := TickReport{Plan: plan}
	if !(dt > 0) {
		v.faults.Logf("dt", "[Drive] skipping tick: %v (dt=%g)", ErrInvalidTick, dt)
		report.Faults = len(v.left) + len(v.right)
		return report
	}

	compute := func(ws []*Wheel, target float64) []WheelOutput {
		outs := make([]WheelOutput, len(ws))
		for i, w := range ws {
			out, err := w.Compute(target, plan.Braking, plan.Brake, v.cfg.TorqueScale, dt)
			if err != nil {
				if !errors.Is(err, ErrMissingActuator) {
					v.faults.Logf(w.Name(), "[Drive] %v", err)
				}
				report.Faults++
				out.Skipped = true
			}
			if plan.Turning {
				out.SideStiffness = v.cfg.TurningSideStiffness
			}
			outs[i] = out
		}
		return outs
	}
	report.Left = compute(v.left, plan.LeftTarget)
	report.Right = compute(v.right, plan.RightTarget)

	// write phase
	write := func(ws []*Wheel, outs []WheelOutput) {
		for i, w := range ws {
			if outs[i].Skipped {
				continue
			}
			if err := w.Write(outs[i]); err != nil {
				v.faults.Logf(w.Name(), "[Drive] %v", err)
			}
		}
	}
	write(v.left, report.Left)
	write(v.right, report.Right)
	return report
}
