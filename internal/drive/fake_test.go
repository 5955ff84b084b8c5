package drive

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/physics"
	"github.com/banshee-data/rover-sim/internal/spatial"
)

func init() {
	monitoring.SetLogger(nil)
}

type fakeActuator struct {
	radius   float64
	omega    float64
	motor    float64
	brake    float64
	friction [2]float64
	writes   int
	pose     spatial.Pose
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{radius: 0.1, pose: spatial.NewPose(r3.Vec{X: 1})}
}

func (f *fakeActuator) Radius() float64          { return f.radius }
func (f *fakeActuator) RotationalSpeed() float64 { return f.omega }
func (f *fakeActuator) SetMotorTorque(t float64) { f.motor = t; f.writes++ }
func (f *fakeActuator) SetBrakeTorque(t float64) { f.brake = t; f.writes++ }
func (f *fakeActuator) Friction(s physics.FrictionSide) float64 {
	return f.friction[s]
}
func (f *fakeActuator) SetFriction(s physics.FrictionSide, v float64) { f.friction[s] = v }
func (f *fakeActuator) WorldPose() spatial.Pose                        { return f.pose }

// testVehicle builds a vehicle with two wheels per side on fake actuators.
func testVehicle(t interface {
	Fatalf(string, ...interface{})
}, cfg VehicleConfig) (*Vehicle, []*fakeActuator) {
	var acts []*fakeActuator
	mk := func(name string) *Wheel {
		a := newFakeActuator()
		acts = append(acts, a)
		w, err := NewWheel(DefaultWheelSpec(name), a)
		if err != nil {
			t.Fatalf("NewWheel: %v", err)
		}
		return w
	}
	left := []*Wheel{mk("fl"), mk("rl")}
	right := []*Wheel{mk("fr"), mk("rr")}
	v, err := NewVehicle(cfg, left, right, nil)
	if err != nil {
		t.Fatalf("NewVehicle: %v", err)
	}
	return v, acts
}
