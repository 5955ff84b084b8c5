package lidarsim

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rover-sim/internal/physics"
	"github.com/banshee-data/rover-sim/internal/spatial"
)

// fakeGeometry reports the same distance for every ray, or a miss when
// distance is zero. It counts casts.
type fakeGeometry struct {
	distance float64
	casts    int
	lastMask physics.LayerMask
}

func (g *fakeGeometry) Cast(origin, dir r3.Vec, maxDistance float64, mask physics.LayerMask) (physics.Hit, bool) {
	g.casts++
	g.lastMask = mask
	if g.distance == 0 || g.distance > maxDistance {
		return physics.Hit{}, false
	}
	return physics.Hit{Distance: g.distance, Point: r3.Add(origin, r3.Scale(g.distance, dir))}, true
}

type staticPose spatial.Pose

func (p staticPose) WorldPose() spatial.Pose { return spatial.Pose(p) }

var origin = staticPose(spatial.NewPose(r3.Vec{}))

// quietConfig is a small grid with every noise source disabled.
func quietConfig() SensorConfig {
	cfg := DefaultSensorConfig()
	cfg.HorizontalCount = 8
	cfg.VerticalCount = 4
	cfg.DistanceJitter = 0
	cfg.AngularJitterDeg = 0
	cfg.DropoutProb = 0
	cfg.GhostProb = 0
	return cfg
}

func seeded(seed int64) *NoiseModel {
	return NewNoiseModel(rand.New(rand.NewSource(seed)))
}
