package bridge

import (
	"context"
	"time"

	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/spatial"
	"github.com/banshee-data/rover-sim/internal/timeutil"
)

// Frame names used on the transform stream.
const (
	WorldFrame = "world"
	BaseFrame  = "base_link"
)

// PoseReader supplies the live chassis pose and the sensor's fixed mount
// relative to the chassis.
type PoseReader interface {
	BasePose() spatial.Pose
	SensorMount() spatial.Pose
}

// TransformSink receives each broadcast.
type TransformSink func(TransformSet)

// PoseBroadcaster republishes world->base_link and base_link->sensor
// transforms on a fixed interval.
type PoseBroadcaster struct {
	poses       PoseReader
	sink        TransformSink
	clock       timeutil.Clock
	interval    time.Duration
	sensorFrame string
}

// NewPoseBroadcaster creates a broadcaster. clock may be nil for the wall
// clock; interval defaults to 100ms.
func NewPoseBroadcaster(poses PoseReader, sensorFrame string, interval time.Duration, clock timeutil.Clock, sink TransformSink) *PoseBroadcaster {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &PoseBroadcaster{
		poses:       poses,
		sink:        sink,
		clock:       clock,
		interval:    interval,
		sensorFrame: sensorFrame,
	}
}

func toTransform(parent, child string, p spatial.Pose) Transform {
	pos, rot := spatial.ToRobotFrame(p)
	return Transform{Parent: parent, Child: child, Translation: pos, Rotation: rot}
}

// Snapshot reads the current transforms.
func (b *PoseBroadcaster) Snapshot() TransformSet {
	return TransformSet{
		Stamp: b.clock.Now(),
		Transforms: []Transform{
			toTransform(WorldFrame, BaseFrame, b.poses.BasePose()),
			toTransform(BaseFrame, b.sensorFrame, b.poses.SensorMount()),
		},
	}
}

// Broadcast publishes one snapshot to the sink.
func (b *PoseBroadcaster) Broadcast() TransformSet {
	set := b.Snapshot()
	if b.sink != nil {
		b.sink(set)
	}
	return set
}

// Run broadcasts once immediately and then every interval until ctx is
// cancelled.
func (b *PoseBroadcaster) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()
	monitoring.Logf("[Bridge] broadcasting transforms every %s", b.interval)

	b.Broadcast()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			b.Broadcast()
		}
	}
}
