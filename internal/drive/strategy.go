package drive

import "github.com/banshee-data/rover-sim/internal/control"

// TorqueInput is what a strategy sees for one wheel on one tick.
type TorqueInput struct {
	Target  float64 // m/s
	Current float64 // m/s
	Radius  float64
	Inertia float64
	Scale   float64
	Dt      float64
}

// TorqueStrategy converts a wheel speed target into a raw, unclamped motor
// torque. correction is the velocity correction applied, if any.
type TorqueStrategy interface {
	Torque(pid *control.PID, in TorqueInput) (correction, torque float64)
}

// PIDTorqueControl closes the loop on measured wheel speed.
type PIDTorqueControl struct{}

func (PIDTorqueControl) Torque(pid *control.PID, in TorqueInput) (float64, float64) {
	correction := pid.Update(in.Target, in.Current, in.Dt)
	controlSpeed := in.Current + correction
	controlOmega := controlSpeed / in.Radius
	return correction, controlOmega * in.Inertia * in.Scale / in.Dt
}

// DirectTorqueControl drives the wheel open loop from the target speed and
// ignores the PID.
type DirectTorqueControl struct{}

func (DirectTorqueControl) Torque(_ *control.PID, in TorqueInput) (float64, float64) {
	targetOmega := in.Target / in.Radius
	return 0, targetOmega * in.Inertia * in.Scale / in.Dt
}
