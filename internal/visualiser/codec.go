// Package visualiser streams simulated point clouds to external viewers
// over gRPC. Frames are encoded with protowire into a compact columnar
// payload carried inside a google.protobuf.BytesValue.
package visualiser

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/rover-sim/internal/lidarsim"
)

// Point classifications on the wire.
const (
	ClassHidden uint8 = 0
	ClassReal   uint8 = 1
	ClassGhost  uint8 = 2
)

// Display intensity per classification. Ghost returns render dimmer than
// real returns.
const (
	IntensityReal  uint8 = 255
	IntensityGhost uint8 = 77
)

// Wire field numbers.
const (
	fieldFrameID        protowire.Number = 1
	fieldSimTime        protowire.Number = 2
	fieldSweepAngle     protowire.Number = 3
	fieldSensorID       protowire.Number = 4
	fieldX              protowire.Number = 5
	fieldY              protowire.Number = 6
	fieldZ              protowire.Number = 7
	fieldIntensity      protowire.Number = 8
	fieldClassification protowire.Number = 9
	fieldPointCount     protowire.Number = 10
	fieldDecimation     protowire.Number = 11
)

// ErrMalformedFrame is returned when a payload cannot be decoded.
var ErrMalformedFrame = errors.New("malformed point cloud frame")

// PointCloud is the columnar, visible-points-only representation of a
// sensor frame. Coordinates are world-frame metres.
type PointCloud struct {
	FrameID         uint64
	SimTime         float64
	SweepAngleDeg   float64
	SensorID        string
	X, Y, Z         []float32
	Intensity       []uint8
	Classification  []uint8
	PointCount      int
	DecimationRatio float32
}

func classify(k lidarsim.Kind) (class, intensity uint8) {
	switch k {
	case lidarsim.Real:
		return ClassReal, IntensityReal
	case lidarsim.Ghost:
		return ClassGhost, IntensityGhost
	default:
		return ClassHidden, 0
	}
}

// NewPointCloud flattens the visible slots of f. Hidden slots are dropped.
func NewPointCloud(sensorID string, f *lidarsim.Frame) *PointCloud {
	n := f.Stats.Real + f.Stats.Ghost
	pc := &PointCloud{
		FrameID:         f.FrameID,
		SimTime:         f.SimTime,
		SweepAngleDeg:   f.SweepAngleDeg,
		SensorID:        sensorID,
		X:               make([]float32, 0, n),
		Y:               make([]float32, 0, n),
		Z:               make([]float32, 0, n),
		Intensity:       make([]uint8, 0, n),
		Classification:  make([]uint8, 0, n),
		DecimationRatio: 1,
	}
	for _, p := range f.Points {
		if !p.Visible {
			continue
		}
		class, intensity := classify(p.Kind)
		pc.X = append(pc.X, float32(p.Position.X))
		pc.Y = append(pc.Y, float32(p.Position.Y))
		pc.Z = append(pc.Z, float32(p.Position.Z))
		pc.Intensity = append(pc.Intensity, intensity)
		pc.Classification = append(pc.Classification, class)
	}
	pc.PointCount = len(pc.X)
	return pc
}

// Decimate keeps every Nth point so that roughly ratio of the points
// remain. Ratios outside (0, 1) leave the cloud unchanged.
func (pc *PointCloud) Decimate(ratio float32) {
	if ratio <= 0 || ratio >= 1 || pc.PointCount == 0 {
		return
	}
	target := int(float32(pc.PointCount) * ratio)
	if target <= 0 {
		target = 1
	}
	stride := pc.PointCount / target
	if stride < 1 {
		stride = 1
	}

	keep := 0
	for i := 0; i < pc.PointCount && keep < target; i += stride {
		pc.X[keep] = pc.X[i]
		pc.Y[keep] = pc.Y[i]
		pc.Z[keep] = pc.Z[i]
		pc.Intensity[keep] = pc.Intensity[i]
		pc.Classification[keep] = pc.Classification[i]
		keep++
	}
	pc.X = pc.X[:keep]
	pc.Y = pc.Y[:keep]
	pc.Z = pc.Z[:keep]
	pc.Intensity = pc.Intensity[:keep]
	pc.Classification = pc.Classification[:keep]
	pc.PointCount = keep
	pc.DecimationRatio = ratio
}

func appendFloats(b []byte, num protowire.Number, vs []float32) []byte {
	if len(vs) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

// Marshal encodes the cloud.
func (pc *PointCloud) Marshal() []byte {
	b := make([]byte, 0, 64+pc.PointCount*14)
	b = protowire.AppendTag(b, fieldFrameID, protowire.VarintType)
	b = protowire.AppendVarint(b, pc.FrameID)
	b = protowire.AppendTag(b, fieldSimTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(pc.SimTime))
	b = protowire.AppendTag(b, fieldSweepAngle, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(pc.SweepAngleDeg))
	if pc.SensorID != "" {
		b = protowire.AppendTag(b, fieldSensorID, protowire.BytesType)
		b = protowire.AppendString(b, pc.SensorID)
	}
	b = appendFloats(b, fieldX, pc.X)
	b = appendFloats(b, fieldY, pc.Y)
	b = appendFloats(b, fieldZ, pc.Z)
	if len(pc.Intensity) > 0 {
		b = protowire.AppendTag(b, fieldIntensity, protowire.BytesType)
		b = protowire.AppendBytes(b, pc.Intensity)
	}
	if len(pc.Classification) > 0 {
		b = protowire.AppendTag(b, fieldClassification, protowire.BytesType)
		b = protowire.AppendBytes(b, pc.Classification)
	}
	b = protowire.AppendTag(b, fieldPointCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(pc.PointCount))
	b = protowire.AppendTag(b, fieldDecimation, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(pc.DecimationRatio))
	return b
}

func consumeFloats(v []byte) ([]float32, error) {
	if len(v)%4 != 0 {
		return nil, fmt.Errorf("%w: packed float length %d", ErrMalformedFrame, len(v))
	}
	out := make([]float32, 0, len(v)/4)
	for len(v) > 0 {
		bits, n := protowire.ConsumeFixed32(v)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		out = append(out, math.Float32frombits(bits))
		v = v[n:]
	}
	return out, nil
}

// UnmarshalPointCloud decodes a payload produced by Marshal. Unknown
// fields are skipped.
func UnmarshalPointCloud(b []byte) (*PointCloud, error) {
	pc := &PointCloud{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num == fieldFrameID && typ == protowire.VarintType:
			pc.FrameID, n = protowire.ConsumeVarint(b)
		case num == fieldPointCount && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			pc.PointCount = int(v)
		case num == fieldSimTime && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			pc.SimTime = math.Float64frombits(v)
		case num == fieldSweepAngle && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			pc.SweepAngleDeg = math.Float64frombits(v)
		case num == fieldDecimation && typ == protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			pc.DecimationRatio = math.Float32frombits(v)
		case typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n < 0 {
				break
			}
			switch num {
			case fieldSensorID:
				pc.SensorID = string(v)
			case fieldX:
				pc.X, err = consumeFloats(v)
			case fieldY:
				pc.Y, err = consumeFloats(v)
			case fieldZ:
				pc.Z, err = consumeFloats(v)
			case fieldIntensity:
				pc.Intensity = append([]uint8(nil), v...)
			case fieldClassification:
				pc.Classification = append([]uint8(nil), v...)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
		}
		if err != nil {
			return nil, err
		}
		b = b[n:]
	}

	if len(pc.X) != pc.PointCount || len(pc.Y) != pc.PointCount || len(pc.Z) != pc.PointCount ||
		len(pc.Intensity) != pc.PointCount || len(pc.Classification) != pc.PointCount {
		return nil, fmt.Errorf("%w: column lengths disagree with point count %d", ErrMalformedFrame, pc.PointCount)
	}
	return pc, nil
}
