// Package sim composes the chassis, wheels, drive controller and range
// sensor into a fixed-tick world and runs it.
package sim

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/config"
	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/lidarsim"
	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/physics"
	"github.com/banshee-data/rover-sim/internal/spatial"
	"github.com/banshee-data/rover-sim/internal/telemetry"
)

// TickResult is everything one tick produced.
type TickResult struct {
	Tick   int
	Events drive.InputEvent
	Drive  drive.TickReport
	Frame  *lidarsim.Frame
	Sample telemetry.DriveSample
}

// World is one simulated rover in a static scene. Tick is not safe for
// concurrent use; pose accessors are.
type World struct {
	dt       float64
	scenario *Scenario
	body     *physics.Body
	wheels   []*physics.SimWheel
	vehicle  *drive.Vehicle
	sensor   *lidarsim.Sensor
	mount    physics.Mounted
	tick     int
	simTime  float64

	frameSinks  []lidarsim.FrameSink
	sampleSinks []func(telemetry.DriveSample)
}

// NewWorld builds a world from a validated configuration and scenario.
func NewWorld(cfg *config.SimConfig, sc *Scenario) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sc == nil {
		sc = OpenGround()
	}

	vcfg := cfg.VehicleConfig()
	radius := cfg.GetWheelRadius()
	perSide := cfg.GetVehicleWheelsPerSide()
	spacing := cfg.GetVehicleAxleSpacing()

	w := &World{
		dt:       cfg.GetFixedDt().Seconds(),
		scenario: sc,
		body:     physics.NewBody(sc.Start, sc.Heading, vcfg.WheelBase),
	}

	build := func(side string, x float64) ([]*physics.SimWheel, []*drive.Wheel, error) {
		sims := make([]*physics.SimWheel, perSide)
		ctrls := make([]*drive.Wheel, perSide)
		for i := 0; i < perSide; i++ {
			z := 0.0
			if perSide > 1 {
				z = spacing/2 - float64(i)*spacing/float64(perSide-1)
			}
			sims[i] = physics.NewSimWheel(physics.WheelParams{
				Radius:            radius,
				Inertia:           cfg.WheelSpec("").Inertia,
				RollingResistance: cfg.GetWheelRollingResistance(),
				Mount:             r3.Vec{X: x, Y: radius, Z: z},
			}, w.body)
			ctrl, err := drive.NewWheel(cfg.WheelSpec(fmt.Sprintf("%s%d", side, i)), sims[i])
			if err != nil {
				return nil, nil, err
			}
			ctrls[i] = ctrl
		}
		return sims, ctrls, nil
	}

	leftSims, left, err := build("left", -vcfg.WheelBase/2)
	if err != nil {
		return nil, err
	}
	rightSims, right, err := build("right", vcfg.WheelBase/2)
	if err != nil {
		return nil, err
	}
	w.body.Attach(leftSims, rightSims)
	w.wheels = append(leftSims, rightSims...)

	w.vehicle, err = drive.NewVehicle(vcfg, left, right, nil)
	if err != nil {
		return nil, err
	}
	w.vehicle.SetSpeedSource(w.body)

	w.mount = physics.Mounted{
		Parent: w.body,
		Local:  spatial.NewPose(r3.Vec{Y: cfg.GetSensorMountHeight()}),
	}
	noise := lidarsim.NewNoiseModel(rand.New(rand.NewSource(cfg.GetSeed())))
	w.sensor, err = lidarsim.NewSensor(cfg.SensorConfig(), sc.Scene, w.mount, noise)
	if err != nil {
		return nil, err
	}
	w.sensor.SetSink(w.publishFrame)

	monitoring.Logf("[Sim] world %q: %d colliders, dt=%s, seed=%d",
		sc.Name, sc.Scene.Len(), cfg.GetFixedDt(), cfg.GetSeed())
	return w, nil
}

func (w *World) publishFrame(f *lidarsim.Frame) {
	for _, sink := range w.frameSinks {
		sink(f)
	}
}

// OnFrame registers a callback for every published sensor frame.
// Register sinks before the first Tick.
func (w *World) OnFrame(sink lidarsim.FrameSink) {
	w.frameSinks = append(w.frameSinks, sink)
}

// OnSample registers a callback for every drive sample.
func (w *World) OnSample(sink func(telemetry.DriveSample)) {
	w.sampleSinks = append(w.sampleSinks, sink)
}

// Dt returns the fixed tick duration in seconds.
func (w *World) Dt() float64 { return w.dt }

// TickCount returns the number of completed ticks.
func (w *World) TickCount() int { return w.tick }

// SimTime returns the simulated seconds elapsed.
func (w *World) SimTime() float64 { return w.simTime }

// Vehicle returns the drive controller; its Twist holder is where external
// commands are written.
func (w *World) Vehicle() *drive.Vehicle { return w.vehicle }

// Sensor returns the range sensor.
func (w *World) Sensor() *lidarsim.Sensor { return w.sensor }

// Wheels returns the simulated wheel actuators, left side first.
func (w *World) Wheels() []*physics.SimWheel { return w.wheels }

// Body returns the chassis.
func (w *World) Body() *physics.Body { return w.body }

// BasePose returns the chassis pose in the world frame.
func (w *World) BasePose() spatial.Pose { return w.body.WorldPose() }

// SensorMount returns the sensor pose relative to the chassis.
func (w *World) SensorMount() spatial.Pose { return w.mount.Local }

// Tick advances the world by one fixed step. Scripted events for the
// current tick are merged with extra.
func (w *World) Tick(extra drive.InputEvent) TickResult {
	ev := w.scenario.Script.EventsAt(w.tick) | extra

	report := w.vehicle.Step(ev, w.dt)
	w.body.Integrate(w.dt)
	frame := w.sensor.Step(w.dt)

	pose := w.body.WorldPose()
	sample := telemetry.DriveSample{
		Tick:         w.tick,
		SimTime:      w.simTime,
		ForwardSpeed: w.vehicle.ForwardSpeed(),
		Heading:      w.body.Heading(),
		PosX:         pose.Position.X,
		PosZ:         pose.Position.Z,
		Manual:       w.vehicle.ManualActive(),
	}
	sample.FillDrive(report)
	for _, sink := range w.sampleSinks {
		sink(sample)
	}

	res := TickResult{Tick: w.tick, Events: ev, Drive: report, Frame: frame, Sample: sample}
	w.tick++
	w.simTime += w.dt
	return res
}
