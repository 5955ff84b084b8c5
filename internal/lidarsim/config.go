package lidarsim

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/rover-sim/internal/physics"
)

// ErrInvalidConfig is returned when a SensorConfig cannot drive a sweep.
var ErrInvalidConfig = errors.New("invalid sensor config")

// SensorConfig describes a rotating multi-beam range sensor. It is copied
// into the Sensor at construction and never changes afterwards.
type SensorConfig struct {
	HorizontalCount int
	VerticalCount   int
	VerticalMinDeg  float64
	VerticalMaxDeg  float64
	MaxRange        float64
	RotationHz      float64

	DistanceJitter   float64 // stddev, metres
	AngularJitterDeg float64 // stddev, degrees
	DropoutProb      float64
	GhostProb        float64

	// BlindZone rejects real returns at or closer than this distance.
	BlindZone float64
	// GhostMinRange is the nearest depth a ghost return is placed at.
	GhostMinRange float64

	Layers physics.LayerMask
}

// DefaultSensorConfig returns a 16-channel, 1800-column sensor spinning at
// 10 Hz with 100 m range.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		HorizontalCount:  1800,
		VerticalCount:    16,
		VerticalMinDeg:   -15,
		VerticalMaxDeg:   15,
		MaxRange:         100,
		RotationHz:       10,
		DistanceJitter:   0.02,
		AngularJitterDeg: 0.2,
		DropoutProb:      0.01,
		GhostProb:        0.005,
		BlindZone:        2.5,
		GhostMinRange:    2,
		Layers:           physics.AllLayers,
	}
}

// Slots returns the fixed point-buffer length.
func (c SensorConfig) Slots() int {
	return c.HorizontalCount * c.VerticalCount
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func probability(name string, p float64) error {
	if !finite(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %g", ErrInvalidConfig, name, p)
	}
	return nil
}

// Validate reports the first configuration fault.
func (c SensorConfig) Validate() error {
	if c.HorizontalCount < 1 {
		return fmt.Errorf("%w: horizontal_count must be >= 1, got %d", ErrInvalidConfig, c.HorizontalCount)
	}
	if c.VerticalCount < 2 {
		return fmt.Errorf("%w: vertical_count must be >= 2, got %d", ErrInvalidConfig, c.VerticalCount)
	}
	if !finite(c.VerticalMinDeg) || !finite(c.VerticalMaxDeg) || c.VerticalMinDeg > c.VerticalMaxDeg {
		return fmt.Errorf("%w: vertical range [%g,%g] is invalid", ErrInvalidConfig, c.VerticalMinDeg, c.VerticalMaxDeg)
	}
	if !finite(c.MaxRange) || c.MaxRange <= 0 {
		return fmt.Errorf("%w: max_range must be positive, got %g", ErrInvalidConfig, c.MaxRange)
	}
	if !finite(c.RotationHz) || c.RotationHz < 0 {
		return fmt.Errorf("%w: rotation_hz must be >= 0, got %g", ErrInvalidConfig, c.RotationHz)
	}
	if !finite(c.DistanceJitter) || c.DistanceJitter < 0 {
		return fmt.Errorf("%w: distance_jitter must be >= 0, got %g", ErrInvalidConfig, c.DistanceJitter)
	}
	if !finite(c.AngularJitterDeg) || c.AngularJitterDeg < 0 {
		return fmt.Errorf("%w: angular_jitter must be >= 0, got %g", ErrInvalidConfig, c.AngularJitterDeg)
	}
	if err := probability("dropout_probability", c.DropoutProb); err != nil {
		return err
	}
	if err := probability("ghost_probability", c.GhostProb); err != nil {
		return err
	}
	if !finite(c.BlindZone) || c.BlindZone < 0 || c.BlindZone >= c.MaxRange {
		return fmt.Errorf("%w: blind_zone must be in [0,max_range), got %g", ErrInvalidConfig, c.BlindZone)
	}
	if !finite(c.GhostMinRange) || c.GhostMinRange < 0 || c.GhostMinRange >= c.MaxRange {
		return fmt.Errorf("%w: ghost_min_range must be in [0,max_range), got %g", ErrInvalidConfig, c.GhostMinRange)
	}
	return nil
}
