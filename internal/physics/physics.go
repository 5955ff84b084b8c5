// Package physics defines the engine boundary consumed by the sensor and the
// drive loop, plus a small headless engine that implements it: a static
// scene of primitive colliders, wheel actuators integrating spin from
// torque, and a differential-drive chassis.
package physics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/spatial"
)

// LayerMask selects collider layers. Bit i set means layer i is included.
type LayerMask uint32

// AllLayers matches every collider.
const AllLayers LayerMask = 0xFFFFFFFF

// Includes reports whether layer is selected by the mask.
func (m LayerMask) Includes(layer int) bool {
	if layer < 0 || layer > 31 {
		return false
	}
	return m&(1<<uint(layer)) != 0
}

// Hit is the result of a successful ray cast.
type Hit struct {
	Distance float64
	Point    r3.Vec
	Layer    int
}

// GeometryQuery casts rays against collision geometry. dir must be a unit
// vector; hits farther than maxDistance are not reported.
type GeometryQuery interface {
	Cast(origin, dir r3.Vec, maxDistance float64, mask LayerMask) (Hit, bool)
}

// FrictionSide selects the forward (longitudinal) or sideways (lateral)
// friction curve of a wheel.
type FrictionSide int

const (
	ForwardFriction FrictionSide = iota
	SideFriction
)

func (s FrictionSide) String() string {
	switch s {
	case ForwardFriction:
		return "forward"
	case SideFriction:
		return "side"
	default:
		return "unknown"
	}
}

// WheelActuator is the per-wheel engine handle. RotationalSpeed is in rad/s.
type WheelActuator interface {
	Radius() float64
	RotationalSpeed() float64
	SetMotorTorque(torque float64)
	SetBrakeTorque(torque float64)
	Friction(side FrictionSide) float64
	SetFriction(side FrictionSide, stiffness float64)
	WorldPose() spatial.Pose
}

// PoseSource provides a live world pose. Implementations are read every
// tick; callers must not cache the result across ticks.
type PoseSource interface {
	WorldPose() spatial.Pose
}
