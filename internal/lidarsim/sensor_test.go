package lidarsim

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/physics"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestSensorConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SensorConfig)
	}{
		{"single vertical beam", func(c *SensorConfig) { c.VerticalCount = 1 }},
		{"zero vertical beams", func(c *SensorConfig) { c.VerticalCount = 0 }},
		{"zero horizontal beams", func(c *SensorConfig) { c.HorizontalCount = 0 }},
		{"inverted vertical range", func(c *SensorConfig) { c.VerticalMinDeg, c.VerticalMaxDeg = 10, -10 }},
		{"zero range", func(c *SensorConfig) { c.MaxRange = 0 }},
		{"negative rotation", func(c *SensorConfig) { c.RotationHz = -1 }},
		{"negative jitter", func(c *SensorConfig) { c.DistanceJitter = -0.1 }},
		{"NaN angular jitter", func(c *SensorConfig) { c.AngularJitterDeg = math.NaN() }},
		{"dropout above one", func(c *SensorConfig) { c.DropoutProb = 1.5 }},
		{"negative ghost", func(c *SensorConfig) { c.GhostProb = -0.1 }},
		{"blind zone beyond range", func(c *SensorConfig) { c.BlindZone = 200 }},
		{"ghost min beyond range", func(c *SensorConfig) { c.GhostMinRange = 100 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSensorConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

			_, err = NewSensor(cfg, &fakeGeometry{}, origin, nil)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
	assert.NoError(t, DefaultSensorConfig().Validate())
}

func TestNewSensor_RequiresCollaborators(t *testing.T) {
	_, err := NewSensor(quietConfig(), nil, origin, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	_, err = NewSensor(quietConfig(), &fakeGeometry{}, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSensor_SweepAngleWrapsModulo360(t *testing.T) {
	cfg := quietConfig()
	cfg.RotationHz = 10
	s, err := NewSensor(cfg, &fakeGeometry{}, origin, seeded(1))
	require.NoError(t, err)

	const dt = 0.013
	for k := 1; k <= 200; k++ {
		f := s.Step(dt)
		want := math.Mod(float64(k)*360*cfg.RotationHz*dt, 360)
		got := s.SweepAngle()
		// compare on the circle so 359.9999 and 0 are considered close
		diff := math.Abs(math.Remainder(got-want, 360))
		require.Less(t, diff, 1e-6, "tick %d: got %v want %v", k, got, want)
		require.GreaterOrEqual(t, got, 0.0)
		require.Less(t, got, 360.0)
		// the published frame uses the pre-advance angle
		prev := math.Mod(float64(k-1)*360*cfg.RotationHz*dt, 360)
		require.Less(t, math.Abs(math.Remainder(f.SweepAngleDeg-prev, 360)), 1e-6)
	}
}

func TestSensor_BufferLengthInvariant(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.HorizontalCount = 36
	cfg.VerticalCount = 5
	s, err := NewSensor(cfg, &fakeGeometry{distance: 10}, origin, seeded(5))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		f := s.Step(0.02)
		require.Len(t, f.Points, 36*5)
		assert.Equal(t, 36*5, f.Stats.Real+f.Stats.Ghost+f.Stats.Hidden)
	}
}

func TestSensor_FullDropoutHidesEverySlotWithoutCasting(t *testing.T) {
	cfg := quietConfig()
	cfg.DropoutProb = 1
	cfg.GhostProb = 1
	geom := &fakeGeometry{}
	s, err := NewSensor(cfg, geom, origin, seeded(2))
	require.NoError(t, err)

	f := s.Step(0.02)
	for i, p := range f.Points {
		assert.Equal(t, Hidden, p.Kind, "slot %d", i)
		assert.False(t, p.Visible)
	}
	assert.Equal(t, 0, geom.casts)
	assert.Equal(t, 0, f.Stats.Ghost)
}

func TestSensor_NoNoiseAgainstSceneIsAllReal(t *testing.T) {
	cfg := quietConfig()
	cfg.Layers = physics.LayerMask(1 << 4)
	geom := &fakeGeometry{distance: 12}
	s, err := NewSensor(cfg, geom, origin, seeded(2))
	require.NoError(t, err)

	f := s.Step(0.02)
	for i, p := range f.Points {
		require.Equal(t, Real, p.Kind, "slot %d", i)
		assert.True(t, p.Visible)
		assert.InDelta(t, 12.0, p.Range, 1e-12)
		assert.InDelta(t, 12.0, r3.Norm(p.Position), 1e-9)
	}
	assert.Equal(t, cfg.Slots(), geom.casts)
	assert.Equal(t, physics.LayerMask(1<<4), geom.lastMask)
	assert.Equal(t, cfg.Slots(), f.Stats.Real)
	assert.InDelta(t, 12.0, f.Stats.MeanRange, 1e-12)
}

func TestSensor_GhostOnlyOnMiss(t *testing.T) {
	cfg := quietConfig()
	cfg.GhostProb = 1

	// every beam hits: ghosts are never evaluated
	s, err := NewSensor(cfg, &fakeGeometry{distance: 30}, origin, seeded(3))
	require.NoError(t, err)
	f := s.Step(0.02)
	assert.Equal(t, cfg.Slots(), f.Stats.Real)
	assert.Equal(t, 0, f.Stats.Ghost)

	// every beam misses: every slot becomes a ghost in [ghost_min, max)
	s, err = NewSensor(cfg, &fakeGeometry{}, origin, seeded(3))
	require.NoError(t, err)
	f = s.Step(0.02)
	assert.Equal(t, cfg.Slots(), f.Stats.Ghost)
	for _, p := range f.Points {
		assert.True(t, p.Visible)
		assert.GreaterOrEqual(t, p.Range, cfg.GhostMinRange)
		assert.Less(t, p.Range, cfg.MaxRange)
	}
}

func TestSensor_BlindZoneBoundary(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     Kind
	}{
		{"exactly blind zone", 2.5, Hidden},
		{"just beyond blind zone", 2.50001, Real},
		{"inside blind zone", 1.0, Hidden},
		{"at max range", 100, Real},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := quietConfig()
			cfg.HorizontalCount = 1
			cfg.VerticalCount = 2
			s, err := NewSensor(cfg, &fakeGeometry{distance: tc.distance}, origin, seeded(1))
			require.NoError(t, err)
			f := s.Step(0.02)
			for _, p := range f.Points {
				assert.Equal(t, tc.want, p.Kind)
			}
		})
	}
}

// A hit at 99.99 with large distance jitter lands past max range about
// half the time.
func TestSensor_NoisePastMaxRangeRejected(t *testing.T) {
	cfg := quietConfig()
	cfg.DistanceJitter = 5
	s, err := NewSensor(cfg, &fakeGeometry{distance: 99.99}, origin, seeded(11))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		f := s.Step(0.02)
		for _, p := range f.Points {
			if p.Kind == Real {
				assert.LessOrEqual(t, p.Range, cfg.MaxRange)
				assert.Greater(t, p.Range, cfg.BlindZone)
			}
		}
	}
}

func TestSensor_SlotOrdering(t *testing.T) {
	cfg := quietConfig()
	cfg.HorizontalCount = 4
	cfg.VerticalCount = 3
	cfg.VerticalMinDeg = -10
	cfg.VerticalMaxDeg = 10
	s, err := NewSensor(cfg, &fakeGeometry{distance: 10}, origin, seeded(1))
	require.NoError(t, err)
	f := s.Step(0.02)

	// h=1 is 90 degrees to the right, v=2 is the top beam
	p := f.At(1, 2)
	assert.Equal(t, f.Points[1*3+2], p)
	assert.InDelta(t, 10*math.Cos(10*math.Pi/180), p.Position.X, 1e-9)
	assert.InDelta(t, 10*math.Sin(10*math.Pi/180), p.Position.Y, 1e-9)
	assert.InDelta(t, 0.0, p.Position.Z, 1e-9)

	// h=0 v=0 is straight ahead, bottom beam
	p = f.At(0, 0)
	assert.InDelta(t, -10*math.Sin(10*math.Pi/180), p.Position.Y, 1e-9)
	assert.Greater(t, p.Position.Z, 9.0)
}

func TestSensor_PublishesImmutableSnapshots(t *testing.T) {
	cfg := quietConfig()
	geom := &fakeGeometry{distance: 10}
	s, err := NewSensor(cfg, geom, origin, seeded(1))
	require.NoError(t, err)
	assert.Nil(t, s.Latest())

	var sunk []*Frame
	s.SetSink(func(f *Frame) { sunk = append(sunk, f) })

	first := s.Step(0.02)
	assert.Same(t, first, s.Latest())
	before := append([]Point(nil), first.Points...)

	geom.distance = 20
	second := s.Step(0.02)
	assert.Same(t, second, s.Latest())
	assert.Equal(t, before, first.Points, "earlier frame must not change")
	assert.Equal(t, uint64(1), first.FrameID)
	assert.Equal(t, uint64(2), second.FrameID)
	assert.InDelta(t, 0.02, second.SimTime, 1e-12)
	require.Len(t, sunk, 2)
	assert.Same(t, second, sunk[1])
}

func TestSensor_DeterministicForSeed(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.HorizontalCount = 90
	cfg.GhostProb = 0.2
	cfg.DropoutProb = 0.2

	run := func() []*Frame {
		s, err := NewSensor(cfg, &fakeGeometry{distance: 40}, origin, seeded(1234))
		require.NoError(t, err)
		var out []*Frame
		for i := 0; i < 3; i++ {
			out = append(out, s.Step(0.05))
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("frames differ for identical seed (-first +second):\n%s", diff)
	}
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats([]Point{
		{Kind: Real, Range: 3},
		{Kind: Real, Range: 5},
		{Kind: Ghost, Range: 50},
		{Kind: Hidden},
	})
	assert.Equal(t, 2, s.Real)
	assert.Equal(t, 1, s.Ghost)
	assert.Equal(t, 1, s.Hidden)
	assert.InDelta(t, 4.0, s.MeanRange, 1e-12)
	assert.InDelta(t, math.Sqrt2, s.StdRange, 1e-12)

	one := ComputeStats([]Point{{Kind: Real, Range: 7}})
	assert.Equal(t, 7.0, one.MeanRange)
	assert.Equal(t, 0.0, one.StdRange)
	assert.Equal(t, "ghost", Ghost.String())
}
