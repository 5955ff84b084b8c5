package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/spatial"
)

func spunWheel(body *Body, omega float64) *SimWheel {
	w := NewSimWheel(WheelParams{Radius: 0.1, Inertia: 1}, body)
	w.omega = omega
	return w
}

func TestBody_StraightLine(t *testing.T) {
	b := NewBody(r3.Vec{}, 0, 0.5)
	b.Attach([]*SimWheel{spunWheel(b, 10)}, []*SimWheel{spunWheel(b, 10)})
	for i := 0; i < 10; i++ {
		b.Integrate(0.1)
	}
	p := b.WorldPose()
	assert.InDelta(t, 1.0, p.Position.Z, 1e-9)
	assert.InDelta(t, 0.0, p.Position.X, 1e-9)
	assert.InDelta(t, 1.0, b.ForwardSpeed(), 1e-12)
	assert.Equal(t, 0.0, b.YawRate())
}

func TestBody_FasterLeftTurnsRight(t *testing.T) {
	b := NewBody(r3.Vec{}, 0, 0.5)
	b.Attach([]*SimWheel{spunWheel(b, 10)}, []*SimWheel{spunWheel(b, 5)})
	b.Integrate(0.1)
	assert.InDelta(t, (1.0-0.5)/0.5, b.YawRate(), 1e-12)
	assert.Greater(t, b.Heading(), 0.0)
	assert.Greater(t, b.WorldPose().Position.X, 0.0)
}

func TestBody_SpinInPlace(t *testing.T) {
	b := NewBody(r3.Vec{}, 0, 0.5)
	b.Attach([]*SimWheel{spunWheel(b, -5)}, []*SimWheel{spunWheel(b, 5)})
	b.Integrate(0.1)
	assert.InDelta(t, 0.0, b.ForwardSpeed(), 1e-12)
	assert.InDelta(t, -0.2, b.Heading(), 1e-12)
	assert.InDelta(t, 0.0, r3.Norm(b.WorldPose().Position), 1e-12)
}

func TestMounted_WorldPose(t *testing.T) {
	b := NewBody(r3.Vec{Z: 5}, math.Pi, 0.5)
	m := Mounted{Parent: b, Local: spatial.NewPose(r3.Vec{Y: 0.3, Z: 0.2})}
	p := m.WorldPose()
	assert.InDelta(t, 0.3, p.Position.Y, 1e-9)
	assert.InDelta(t, 4.8, p.Position.Z, 1e-9)
	fwd := p.Direction(spatial.Forward)
	assert.InDelta(t, -1.0, fwd.Z, 1e-9)
}
