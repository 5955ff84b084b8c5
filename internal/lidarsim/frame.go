package lidarsim

import (
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rover-sim/internal/spatial"
)

// Kind classifies a point-buffer slot.
type Kind uint8

const (
	Hidden Kind = iota
	Real
	Ghost
)

func (k Kind) String() string {
	switch k {
	case Hidden:
		return "hidden"
	case Real:
		return "real"
	case Ghost:
		return "ghost"
	default:
		return "unknown"
	}
}

// Point is one beam slot. Range is the post-noise distance from the sensor
// origin and is zero for hidden slots.
type Point struct {
	Position r3.Vec
	Range    float64
	Visible  bool
	Kind     Kind
}

// Frame is one published sweep. Points is indexed h*VerticalCount+v and is
// never modified after publication.
type Frame struct {
	FrameID       uint64
	SimTime       float64 // seconds since the first sweep
	SweepAngleDeg float64
	SensorPose    spatial.Pose
	Horizontal    int
	Vertical      int
	Points        []Point
	Stats         ScanStats
}

// At returns the slot for beam (h, v).
func (f *Frame) At(h, v int) Point {
	return f.Points[h*f.Vertical+v]
}

// ScanStats summarises a frame.
type ScanStats struct {
	Real      int
	Ghost     int
	Hidden    int
	MeanRange float64 // real returns only
	StdRange  float64
}

// ComputeStats counts slot kinds and summarises real-return range.
func ComputeStats(points []Point) ScanStats {
	var s ScanStats
	ranges := make([]float64, 0, len(points))
	for _, p := range points {
		switch p.Kind {
		case Real:
			s.Real++
			ranges = append(ranges, p.Range)
		case Ghost:
			s.Ghost++
		default:
			s.Hidden++
		}
	}
	switch len(ranges) {
	case 0:
	case 1:
		s.MeanRange = ranges[0]
	default:
		s.MeanRange, s.StdRange = stat.MeanStdDev(ranges, nil)
	}
	return s
}
