// Package config loads the simulator's JSON run configuration. Fields are
// pointers so a partial file only overrides what it names; the Get* methods
// supply defaults for everything else.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rover-sim/internal/control"
	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/lidarsim"
	"github.com/banshee-data/rover-sim/internal/physics"
	"github.com/banshee-data/rover-sim/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/sim.defaults.json"

// ErrInvalidConfig is returned by Validate and LoadSimConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

// SimConfig is the root run configuration.
type SimConfig struct {
	// Tick params
	FixedDt  *string `json:"fixed_dt,omitempty"` // duration string like "20ms"
	Ticks    *int    `json:"ticks,omitempty"`
	Realtime *bool   `json:"realtime,omitempty"`
	Seed     *int64  `json:"seed,omitempty"`

	// Sensor params
	SensorName            *string  `json:"sensor_name,omitempty"`
	SensorHorizontalCount *int     `json:"sensor_horizontal_count,omitempty"`
	SensorVerticalCount   *int     `json:"sensor_vertical_count,omitempty"`
	SensorVerticalMinDeg  *float64 `json:"sensor_vertical_min_deg,omitempty"`
	SensorVerticalMaxDeg  *float64 `json:"sensor_vertical_max_deg,omitempty"`
	SensorMaxRange        *float64 `json:"sensor_max_range,omitempty"`
	SensorRotationHz      *float64 `json:"sensor_rotation_hz,omitempty"`
	SensorDistanceJitter  *float64 `json:"sensor_distance_jitter,omitempty"`
	SensorAngularJitter   *float64 `json:"sensor_angular_jitter_deg,omitempty"`
	SensorDropoutProb     *float64 `json:"sensor_dropout_probability,omitempty"`
	SensorGhostProb       *float64 `json:"sensor_ghost_probability,omitempty"`
	SensorBlindZone       *float64 `json:"sensor_blind_zone_m,omitempty"`
	SensorGhostMinRange   *float64 `json:"sensor_ghost_min_range_m,omitempty"`
	SensorLayerMask       *uint32  `json:"sensor_layer_mask,omitempty"`
	SensorMountHeight     *float64 `json:"sensor_mount_height,omitempty"`

	// Vehicle params
	VehicleWheelBase            *float64 `json:"vehicle_wheel_base,omitempty"`
	VehicleTorqueScaling        *float64 `json:"vehicle_torque_scaling,omitempty"`
	VehicleBrakeForce           *float64 `json:"vehicle_brake_force,omitempty"`
	VehicleTurningSideStiffness *float64 `json:"vehicle_turning_side_stiffness,omitempty"`
	VehicleWheelsPerSide        *int     `json:"vehicle_wheels_per_side,omitempty"`
	VehicleAxleSpacing          *float64 `json:"vehicle_axle_spacing,omitempty"`

	// Wheel params
	WheelRadius            *float64 `json:"wheel_radius,omitempty"`
	WheelMaxRPM            *float64 `json:"wheel_max_rpm,omitempty"`
	WheelInertia           *float64 `json:"wheel_inertia,omitempty"`
	WheelForwardStiffness  *float64 `json:"wheel_forward_stiffness,omitempty"`
	WheelSideStiffness     *float64 `json:"wheel_side_stiffness,omitempty"`
	WheelKp                *float64 `json:"wheel_kp,omitempty"`
	WheelKi                *float64 `json:"wheel_ki,omitempty"`
	WheelKd                *float64 `json:"wheel_kd,omitempty"`
	WheelRollingResistance *float64 `json:"wheel_rolling_resistance,omitempty"`

	// Bridge params
	PoseBroadcastInterval *string `json:"pose_broadcast_interval,omitempty"` // duration string like "100ms"
	StatusLogInterval     *string `json:"status_log_interval,omitempty"`
	StatusSpeedUnits      *string `json:"status_speed_units,omitempty"` // mps, mph, kmph or kph
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }
func ptrUint32(v uint32) *uint32    { return &v }

// EmptySimConfig returns a SimConfig with every field nil.
func EmptySimConfig() *SimConfig {
	return &SimConfig{}
}

// DefaultSimConfig returns a SimConfig with every field set to its default.
func DefaultSimConfig() *SimConfig {
	e := EmptySimConfig()
	return &SimConfig{
		FixedDt:  ptrString("20ms"),
		Ticks:    ptrInt(e.GetTicks()),
		Realtime: ptrBool(e.GetRealtime()),
		Seed:     ptrInt64(e.GetSeed()),

		SensorName:            ptrString(e.GetSensorName()),
		SensorHorizontalCount: ptrInt(1800),
		SensorVerticalCount:   ptrInt(16),
		SensorVerticalMinDeg:  ptrFloat64(-15),
		SensorVerticalMaxDeg:  ptrFloat64(15),
		SensorMaxRange:        ptrFloat64(100),
		SensorRotationHz:      ptrFloat64(10),
		SensorDistanceJitter:  ptrFloat64(0.02),
		SensorAngularJitter:   ptrFloat64(0.2),
		SensorDropoutProb:     ptrFloat64(0.01),
		SensorGhostProb:       ptrFloat64(0.005),
		SensorBlindZone:       ptrFloat64(2.5),
		SensorGhostMinRange:   ptrFloat64(2),
		SensorLayerMask:       ptrUint32(uint32(physics.AllLayers)),
		SensorMountHeight:     ptrFloat64(e.GetSensorMountHeight()),

		VehicleWheelBase:            ptrFloat64(0.555),
		VehicleTorqueScaling:        ptrFloat64(1),
		VehicleBrakeForce:           ptrFloat64(10),
		VehicleTurningSideStiffness: ptrFloat64(0),
		VehicleWheelsPerSide:        ptrInt(e.GetVehicleWheelsPerSide()),
		VehicleAxleSpacing:          ptrFloat64(e.GetVehicleAxleSpacing()),

		WheelRadius:            ptrFloat64(e.GetWheelRadius()),
		WheelMaxRPM:            ptrFloat64(76),
		WheelInertia:           ptrFloat64(0.01),
		WheelForwardStiffness:  ptrFloat64(1.5),
		WheelSideStiffness:     ptrFloat64(2.0),
		WheelKp:                ptrFloat64(5),
		WheelKi:                ptrFloat64(1),
		WheelKd:                ptrFloat64(0),
		WheelRollingResistance: ptrFloat64(e.GetWheelRollingResistance()),

		PoseBroadcastInterval: ptrString("100ms"),
		StatusLogInterval:     ptrString("5s"),
		StatusSpeedUnits:      ptrString(e.GetStatusSpeedUnits()),
	}
}

// LoadSimConfig loads a SimConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults, so partial configs are safe.
func LoadSimConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories so it works from package test directories. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSimConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func validDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%w: invalid %s '%s': %w", ErrInvalidConfig, name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, *v)
	}
	return nil
}

// Validate checks every set field and the domain configs built from the
// result. All faults are configuration faults: callers should refuse to
// start.
func (c *SimConfig) Validate() error {
	if err := validDuration("fixed_dt", c.FixedDt); err != nil {
		return err
	}
	if err := validDuration("pose_broadcast_interval", c.PoseBroadcastInterval); err != nil {
		return err
	}
	if err := validDuration("status_log_interval", c.StatusLogInterval); err != nil {
		return err
	}
	if c.StatusSpeedUnits != nil && !units.IsValid(*c.StatusSpeedUnits) {
		return fmt.Errorf("%w: status_speed_units '%s' must be one of %v", ErrInvalidConfig, *c.StatusSpeedUnits, units.ValidUnits)
	}
	if c.Ticks != nil && *c.Ticks < 0 {
		return fmt.Errorf("%w: ticks must be non-negative, got %d", ErrInvalidConfig, *c.Ticks)
	}
	if c.VehicleWheelsPerSide != nil && *c.VehicleWheelsPerSide < 1 {
		return fmt.Errorf("%w: vehicle_wheels_per_side must be >= 1, got %d", ErrInvalidConfig, *c.VehicleWheelsPerSide)
	}
	if r := c.GetWheelRadius(); !(r > 0) {
		return fmt.Errorf("%w: wheel_radius must be positive, got %g", ErrInvalidConfig, r)
	}
	if rr := c.GetWheelRollingResistance(); rr < 0 {
		return fmt.Errorf("%w: wheel_rolling_resistance must be non-negative, got %g", ErrInvalidConfig, rr)
	}
	if err := c.SensorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.VehicleConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.WheelSpec("wheel").Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SensorConfig builds the sensor configuration.
func (c *SimConfig) SensorConfig() lidarsim.SensorConfig {
	d := lidarsim.DefaultSensorConfig()
	return lidarsim.SensorConfig{
		HorizontalCount:  intOr(c.SensorHorizontalCount, d.HorizontalCount),
		VerticalCount:    intOr(c.SensorVerticalCount, d.VerticalCount),
		VerticalMinDeg:   floatOr(c.SensorVerticalMinDeg, d.VerticalMinDeg),
		VerticalMaxDeg:   floatOr(c.SensorVerticalMaxDeg, d.VerticalMaxDeg),
		MaxRange:         floatOr(c.SensorMaxRange, d.MaxRange),
		RotationHz:       floatOr(c.SensorRotationHz, d.RotationHz),
		DistanceJitter:   floatOr(c.SensorDistanceJitter, d.DistanceJitter),
		AngularJitterDeg: floatOr(c.SensorAngularJitter, d.AngularJitterDeg),
		DropoutProb:      floatOr(c.SensorDropoutProb, d.DropoutProb),
		GhostProb:        floatOr(c.SensorGhostProb, d.GhostProb),
		BlindZone:        floatOr(c.SensorBlindZone, d.BlindZone),
		GhostMinRange:    floatOr(c.SensorGhostMinRange, d.GhostMinRange),
		Layers:           c.GetSensorLayerMask(),
	}
}

// VehicleConfig builds the drive controller configuration.
func (c *SimConfig) VehicleConfig() drive.VehicleConfig {
	d := drive.DefaultVehicleConfig()
	d.WheelBase = floatOr(c.VehicleWheelBase, d.WheelBase)
	d.TorqueScale = floatOr(c.VehicleTorqueScaling, d.TorqueScale)
	d.BrakeForce = floatOr(c.VehicleBrakeForce, d.BrakeForce)
	d.TurningSideStiffness = floatOr(c.VehicleTurningSideStiffness, d.TurningSideStiffness)
	return d
}

// WheelSpec builds the spec for a named wheel.
func (c *SimConfig) WheelSpec(name string) drive.WheelSpec {
	d := drive.DefaultWheelSpec(name)
	return drive.WheelSpec{
		Name:             name,
		MaxRPM:           floatOr(c.WheelMaxRPM, d.MaxRPM),
		Inertia:          floatOr(c.WheelInertia, d.Inertia),
		ForwardStiffness: floatOr(c.WheelForwardStiffness, d.ForwardStiffness),
		SideStiffness:    floatOr(c.WheelSideStiffness, d.SideStiffness),
		Gains: control.Gains{
			Kp: floatOr(c.WheelKp, d.Gains.Kp),
			Ki: floatOr(c.WheelKi, d.Gains.Ki),
			Kd: floatOr(c.WheelKd, d.Gains.Kd),
		},
	}
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetFixedDt returns the simulation tick duration.
func (c *SimConfig) GetFixedDt() time.Duration {
	return durationOr(c.FixedDt, 20*time.Millisecond)
}

// GetTicks returns the number of ticks to run.
func (c *SimConfig) GetTicks() int {
	if c.Ticks == nil {
		return 500
	}
	return *c.Ticks
}

// GetRealtime reports whether ticks are paced to the wall clock.
func (c *SimConfig) GetRealtime() bool {
	if c.Realtime == nil {
		return false
	}
	return *c.Realtime
}

// GetSeed returns the noise seed.
func (c *SimConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetSensorName returns the sensor frame name.
func (c *SimConfig) GetSensorName() string {
	if c.SensorName == nil || *c.SensorName == "" {
		return "lidar_link"
	}
	return *c.SensorName
}

// GetSensorLayerMask returns the sensor collision filter.
func (c *SimConfig) GetSensorLayerMask() physics.LayerMask {
	if c.SensorLayerMask == nil {
		return physics.AllLayers
	}
	return physics.LayerMask(*c.SensorLayerMask)
}

// GetSensorMountHeight returns the sensor height above the chassis origin.
func (c *SimConfig) GetSensorMountHeight() float64 {
	return floatOr(c.SensorMountHeight, 0.5)
}

// GetVehicleWheelsPerSide returns the number of driven wheels per side.
func (c *SimConfig) GetVehicleWheelsPerSide() int {
	return intOr(c.VehicleWheelsPerSide, 2)
}

// GetVehicleAxleSpacing returns the distance between front and rear axles.
func (c *SimConfig) GetVehicleAxleSpacing() float64 {
	return floatOr(c.VehicleAxleSpacing, 0.5)
}

// GetWheelRadius returns the wheel radius of the simulated actuators.
func (c *SimConfig) GetWheelRadius() float64 {
	return floatOr(c.WheelRadius, 0.1)
}

// GetWheelRollingResistance returns the viscous drag on simulated wheels.
func (c *SimConfig) GetWheelRollingResistance() float64 {
	return floatOr(c.WheelRollingResistance, 0.01)
}

// GetPoseBroadcastInterval returns the transform publishing period.
func (c *SimConfig) GetPoseBroadcastInterval() time.Duration {
	return durationOr(c.PoseBroadcastInterval, 100*time.Millisecond)
}

// GetStatusLogInterval returns how often run status is logged.
func (c *SimConfig) GetStatusLogInterval() time.Duration {
	return durationOr(c.StatusLogInterval, 5*time.Second)
}

// GetStatusSpeedUnits returns the unit used for speeds in status lines.
func (c *SimConfig) GetStatusSpeedUnits() string {
	if c.StatusSpeedUnits == nil {
		return units.MPS
	}
	return *c.StatusSpeedUnits
}
