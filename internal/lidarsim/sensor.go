// Package lidarsim synthesises point clouds from a rotating multi-beam range
// sensor by casting a beam grid against scene geometry every tick.
package lidarsim

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/physics"
	"github.com/banshee-data/rover-sim/internal/spatial"
)

// FrameSink receives every published frame on the stepping goroutine.
type FrameSink func(*Frame)

// Sensor is a beam-grid range sensor. Step is not safe for concurrent use;
// Latest may be called from any goroutine.
type Sensor struct {
	cfg   SensorConfig
	noise *NoiseModel
	geom  physics.GeometryQuery
	pose  physics.PoseSource

	angle   float64
	simTime float64
	frameID uint64
	work    []Point
	latest  atomic.Pointer[Frame]
	sink    FrameSink
}

// NewSensor validates cfg and allocates the point buffer.
func NewSensor(cfg SensorConfig, geom physics.GeometryQuery, pose physics.PoseSource, noise *NoiseModel) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if geom == nil {
		return nil, fmt.Errorf("%w: geometry query is required", ErrInvalidConfig)
	}
	if pose == nil {
		return nil, fmt.Errorf("%w: pose source is required", ErrInvalidConfig)
	}
	if noise == nil {
		noise = NewNoiseModel(nil)
	}
	monitoring.Logf("[Sensor] %dx%d beams, %.1f..%.1f deg, range %.1fm, %.1f Hz",
		cfg.HorizontalCount, cfg.VerticalCount, cfg.VerticalMinDeg, cfg.VerticalMaxDeg, cfg.MaxRange, cfg.RotationHz)
	return &Sensor{
		cfg:   cfg,
		noise: noise,
		geom:  geom,
		pose:  pose,
		work:  make([]Point, cfg.Slots()),
	}, nil
}

// SetSink registers a callback for every published frame.
func (s *Sensor) SetSink(sink FrameSink) { s.sink = sink }

// Config returns a copy of the sensor configuration.
func (s *Sensor) Config() SensorConfig { return s.cfg }

// SweepAngle returns the angle the next sweep will start from, in [0,360).
func (s *Sensor) SweepAngle() float64 { return s.angle }

// Latest returns the most recently published frame, or nil before the first.
func (s *Sensor) Latest() *Frame { return s.latest.Load() }

// Step performs one full sweep at the current angle, publishes it and then
// advances the sweep angle by 360*freq*dt.
func (s *Sensor) Step(dt float64) *Frame {
	pose := s.pose.WorldPose()
	cfg := &s.cfg

	hStep := 360.0 / float64(cfg.HorizontalCount)
	vStep := (cfg.VerticalMaxDeg - cfg.VerticalMinDeg) / float64(cfg.VerticalCount-1)

	for h := 0; h < cfg.HorizontalCount; h++ {
		az := s.angle + float64(h)*hStep
		for v := 0; v < cfg.VerticalCount; v++ {
			el := cfg.VerticalMinDeg + float64(v)*vStep
			s.work[h*cfg.VerticalCount+v] = s.castBeam(pose, az, el)
		}
	}

	points := make([]Point, len(s.work))
	copy(points, s.work)
	s.frameID++
	frame := &Frame{
		FrameID:       s.frameID,
		SimTime:       s.simTime,
		SweepAngleDeg: s.angle,
		SensorPose:    pose,
		Horizontal:    cfg.HorizontalCount,
		Vertical:      cfg.VerticalCount,
		Points:        points,
		Stats:         ComputeStats(points),
	}
	s.latest.Store(frame)
	if s.sink != nil {
		s.sink(frame)
	}

	s.angle = wrapDegrees(s.angle + 360*cfg.RotationHz*dt)
	s.simTime += dt
	return frame
}

// castBeam evaluates one slot: dropout, then cast, then ghost on a miss.
func (s *Sensor) castBeam(pose spatial.Pose, az, el float64) Point {
	cfg := &s.cfg
	az = s.noise.Jitter(az, cfg.AngularJitterDeg)
	el = s.noise.Jitter(el, cfg.AngularJitterDeg)
	dir := pose.Direction(spatial.BeamDirection(az, el))

	if s.noise.Dropout(cfg.DropoutProb) {
		return Point{}
	}

	if hit, ok := s.geom.Cast(pose.Position, dir, cfg.MaxRange, cfg.Layers); ok {
		d := s.noise.Jitter(hit.Distance, cfg.DistanceJitter)
		if d > cfg.BlindZone && d <= cfg.MaxRange {
			return Point{
				Position: r3.Add(pose.Position, r3.Scale(d, dir)),
				Range:    d,
				Visible:  true,
				Kind:     Real,
			}
		}
		return Point{}
	}

	if s.noise.Ghost(cfg.GhostProb) {
		d := s.noise.GhostDepth(cfg.GhostMinRange, cfg.MaxRange)
		return Point{
			Position: r3.Add(pose.Position, r3.Scale(d, dir)),
			Range:    d,
			Visible:  true,
			Kind:     Ghost,
		}
	}
	return Point{}
}

func wrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
