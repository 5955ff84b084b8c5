// Package telemetry defines the per-tick records produced by a run and a
// recorder that accumulates them for storage and reporting.
package telemetry

import (
	"sync"

	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/lidarsim"
)

// DriveSample is one tick of drive telemetry.
type DriveSample struct {
	Tick         int     `csv:"tick" json:"tick"`
	SimTime      float64 `csv:"sim_time_s" json:"sim_time_s"`
	CmdLinear    float64 `csv:"cmd_linear" json:"cmd_linear"`
	CmdAngular   float64 `csv:"cmd_angular" json:"cmd_angular"`
	LeftTarget   float64 `csv:"left_target" json:"left_target"`
	RightTarget  float64 `csv:"right_target" json:"right_target"`
	LeftSpeed    float64 `csv:"left_speed" json:"left_speed"`
	RightSpeed   float64 `csv:"right_speed" json:"right_speed"`
	LeftTorque   float64 `csv:"left_torque" json:"left_torque"`
	RightTorque  float64 `csv:"right_torque" json:"right_torque"`
	Brake        float64 `csv:"brake" json:"brake"`
	ForwardSpeed float64 `csv:"forward_speed" json:"forward_speed"`
	Heading      float64 `csv:"heading_rad" json:"heading_rad"`
	PosX         float64 `csv:"pos_x" json:"pos_x"`
	PosZ         float64 `csv:"pos_z" json:"pos_z"`
	Manual       bool    `csv:"manual" json:"manual"`
	Faults       int     `csv:"faults" json:"faults"`
}

// ScanSample summarises one published sensor frame.
type ScanSample struct {
	FrameID    uint64  `csv:"frame_id" json:"frame_id"`
	SimTime    float64 `csv:"sim_time_s" json:"sim_time_s"`
	SweepAngle float64 `csv:"sweep_angle_deg" json:"sweep_angle_deg"`
	Real       int     `csv:"real" json:"real"`
	Ghost      int     `csv:"ghost" json:"ghost"`
	Hidden     int     `csv:"hidden" json:"hidden"`
	MeanRange  float64 `csv:"mean_range" json:"mean_range"`
	StdRange   float64 `csv:"std_range" json:"std_range"`
}

// NewScanSample summarises a frame.
func NewScanSample(f *lidarsim.Frame) ScanSample {
	return ScanSample{
		FrameID:    f.FrameID,
		SimTime:    f.SimTime,
		SweepAngle: f.SweepAngleDeg,
		Real:       f.Stats.Real,
		Ghost:      f.Stats.Ghost,
		Hidden:     f.Stats.Hidden,
		MeanRange:  f.Stats.MeanRange,
		StdRange:   f.Stats.StdRange,
	}
}

func mean(outs []drive.WheelOutput, field func(drive.WheelOutput) float64) float64 {
	var sum float64
	var n int
	for _, o := range outs {
		if o.Skipped {
			continue
		}
		sum += field(o)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// FillDrive copies the drive report for a tick into s. Per-side speeds and
// torques are averaged over the wheels that actuated.
func (s *DriveSample) FillDrive(r drive.TickReport) {
	s.CmdLinear = r.Plan.Twist.LinearZ
	s.CmdAngular = r.Plan.Twist.AngularY
	s.LeftTarget = r.Plan.LeftTarget
	s.RightTarget = r.Plan.RightTarget
	s.Brake = r.Plan.Brake
	speed := func(o drive.WheelOutput) float64 { return o.CurrentSpeed }
	torque := func(o drive.WheelOutput) float64 { return o.MotorTorque }
	s.LeftSpeed = mean(r.Left, speed)
	s.RightSpeed = mean(r.Right, speed)
	s.LeftTorque = mean(r.Left, torque)
	s.RightTorque = mean(r.Right, torque)
	s.Faults = r.Faults
}

// Recorder accumulates samples. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	drive []DriveSample
	scans []ScanSample
}

// AddDrive appends a drive sample.
func (r *Recorder) AddDrive(s DriveSample) {
	r.mu.Lock()
	r.drive = append(r.drive, s)
	r.mu.Unlock()
}

// AddScan appends a scan sample.
func (r *Recorder) AddScan(s ScanSample) {
	r.mu.Lock()
	r.scans = append(r.scans, s)
	r.mu.Unlock()
}

// Drive returns a copy of the drive samples.
func (r *Recorder) Drive() []DriveSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DriveSample(nil), r.drive...)
}

// Scans returns a copy of the scan samples.
func (r *Recorder) Scans() []ScanSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ScanSample(nil), r.scans...)
}
