// Package spatial holds the rigid-body pose math shared by the sensor, the
// wheel actuators and the pose broadcaster.
//
// The simulator frame is Y-up and left-handed: X right, Y up, Z forward.
// Heading (yaw) rotates +Z toward +X. The robotics frame used by
// ToRobotFrame is Z-up and right-handed: X forward, Y left, Z up.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// Up is the simulator's vertical axis.
	Up = r3.Vec{Y: 1}
	// Forward is the simulator's forward axis.
	Forward = r3.Vec{Z: 1}
	// Right is the simulator's lateral axis.
	Right = r3.Vec{X: 1}
)

// Identity is the rotation that leaves vectors unchanged. The zero value of
// r3.Rotation is not a rotation and collapses every vector to zero.
var Identity = r3.Rotation{Real: 1}

// Pose is a position and orientation in the simulator frame.
type Pose struct {
	Position r3.Vec
	Rotation r3.Rotation
}

// NewPose returns a pose at p with identity rotation.
func NewPose(p r3.Vec) Pose {
	return Pose{Position: p, Rotation: Identity}
}

// YawRotation returns a rotation of rad about the up axis.
func YawRotation(rad float64) r3.Rotation {
	return r3.NewRotation(rad, Up)
}

// PitchRotation returns a rotation of rad about the lateral axis.
func PitchRotation(rad float64) r3.Rotation {
	return r3.NewRotation(rad, Right)
}

// Compose returns the rotation b followed by a (a*b).
func Compose(a, b r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Mul(quat.Number(a), quat.Number(b)))
}

// Normalize rescales r to unit length. Repeated composition drifts the
// quaternion norm; callers integrating orientation normalize each tick.
func Normalize(r r3.Rotation) r3.Rotation {
	n := quat.Abs(quat.Number(r))
	if n == 0 {
		return Identity
	}
	return r3.Rotation(quat.Scale(1/n, quat.Number(r)))
}

// Apply transforms p from the pose's local frame into the parent frame.
func (p Pose) Apply(local r3.Vec) r3.Vec {
	return r3.Add(p.Position, p.Rotation.Rotate(local))
}

// Direction rotates a local direction into the parent frame.
func (p Pose) Direction(local r3.Vec) r3.Vec {
	return p.Rotation.Rotate(local)
}

// Mul returns the pose of child (expressed in p's frame) in p's parent frame.
func (p Pose) Mul(child Pose) Pose {
	return Pose{
		Position: p.Apply(child.Position),
		Rotation: Normalize(Compose(p.Rotation, child.Rotation)),
	}
}

// BeamDirection returns the unit direction for an azimuth and elevation in
// degrees, in the frame whose forward is +Z. Azimuth turns toward +X and
// positive elevation points up.
func BeamDirection(azimuthDeg, elevationDeg float64) r3.Vec {
	az := azimuthDeg * math.Pi / 180.0
	el := elevationDeg * math.Pi / 180.0
	cosEl := math.Cos(el)
	return r3.Vec{
		X: cosEl * math.Sin(az),
		Y: math.Sin(el),
		Z: cosEl * math.Cos(az),
	}
}

// Quat returns the rotation as (x, y, z, w) components.
func Quat(r r3.Rotation) (x, y, z, w float64) {
	return r.Imag, r.Jmag, r.Kmag, r.Real
}

// ToRobotFrame converts a simulator pose into the Z-up robotics convention
// used on the transform stream: position (x, y, z) becomes (z, x, y) and
// rotation (x, y, z, w) becomes (z, x, -y, w).
func ToRobotFrame(p Pose) (pos [3]float64, rot [4]float64) {
	x, y, z, w := Quat(p.Rotation)
	pos = [3]float64{p.Position.Z, p.Position.X, p.Position.Y}
	rot = [4]float64{z, x, -y, w}
	return pos, rot
}
