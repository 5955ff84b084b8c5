package physics

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/spatial"
)

// Body is a differential-drive chassis. Its pose is integrated from the
// mean contact speed of the left and right wheel sets. Positive heading
// turns +Z toward +X, so a faster left side turns the body right.
type Body struct {
	mu      sync.RWMutex
	track   float64
	pos     r3.Vec
	heading float64
	speed   float64
	yawRate float64
	left    []*SimWheel
	right   []*SimWheel
}

// NewBody creates a chassis at start facing heading (radians) with the
// given track width (distance between left and right wheel centres).
func NewBody(start r3.Vec, heading, track float64) *Body {
	return &Body{pos: start, heading: heading, track: track}
}

// Attach registers wheels on the left and right side of the chassis.
func (b *Body) Attach(left, right []*SimWheel) {
	b.mu.Lock()
	b.left = append(b.left, left...)
	b.right = append(b.right, right...)
	b.mu.Unlock()
}

func meanSpeed(ws []*SimWheel) float64 {
	if len(ws) == 0 {
		return 0
	}
	var sum float64
	for _, w := range ws {
		sum += w.LinearSpeed()
	}
	return sum / float64(len(ws))
}

// Integrate advances every attached wheel and then the chassis pose.
func (b *Body) Integrate(dt float64) {
	if dt <= 0 {
		return
	}
	b.mu.RLock()
	left := b.left
	right := b.right
	b.mu.RUnlock()

	for _, w := range left {
		w.Integrate(dt)
	}
	for _, w := range right {
		w.Integrate(dt)
	}

	vl, vr := meanSpeed(left), meanSpeed(right)
	speed := (vl + vr) / 2
	var yawRate float64
	if b.track > 0 {
		yawRate = (vl - vr) / b.track
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// midpoint heading keeps arcs symmetric at coarse dt
	mid := b.heading + yawRate*dt/2
	dir := r3.Vec{X: math.Sin(mid), Z: math.Cos(mid)}
	b.pos = r3.Add(b.pos, r3.Scale(speed*dt, dir))
	b.heading = math.Remainder(b.heading+yawRate*dt, 2*math.Pi)
	b.speed = speed
	b.yawRate = yawRate
}

// WorldPose implements PoseSource.
func (b *Body) WorldPose() spatial.Pose {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return spatial.Pose{Position: b.pos, Rotation: spatial.YawRotation(b.heading)}
}

// Heading returns the current heading in radians in (-π, π].
func (b *Body) Heading() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.heading
}

// ForwardSpeed returns the chassis speed along its heading in m/s.
func (b *Body) ForwardSpeed() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.speed
}

// YawRate returns the last integrated yaw rate in rad/s.
func (b *Body) YawRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.yawRate
}

// Mounted is a PoseSource rigidly attached to a parent at a local offset.
type Mounted struct {
	Parent PoseSource
	Local  spatial.Pose
}

// WorldPose implements PoseSource.
func (m Mounted) WorldPose() spatial.Pose {
	return m.Parent.WorldPose().Mul(m.Local)
}
