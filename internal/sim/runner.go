package sim

import (
	"context"
	"math"
	"time"

	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/spatial"
	"github.com/banshee-data/rover-sim/internal/timeutil"
	"github.com/banshee-data/rover-sim/internal/units"
)

// Summary describes a finished run.
type Summary struct {
	Ticks     int
	SimTime   float64
	Frames    int
	Faults    int
	FinalPose spatial.Pose
	Distance  float64
}

// Runner drives a World at a fixed tick.
type Runner struct {
	World *World
	// Clock paces ticks when Realtime is set. Defaults to the wall clock.
	Clock    timeutil.Clock
	Realtime bool
	// StatusInterval is the simulated time between status log lines. Zero
	// disables status logging.
	StatusInterval time.Duration
	// Input supplies live manual input each tick. May be nil.
	Input func() drive.InputEvent
	// SpeedUnits selects the display unit for status lines (default m/s).
	SpeedUnits string
}

// Run executes ticks steps, or runs until ctx is cancelled when ticks <= 0.
// Cancellation stops the run between ticks and returns ctx.Err() along
// with the summary so far.
func (r *Runner) Run(ctx context.Context, ticks int) (Summary, error) {
	w := r.World
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	var tickC <-chan time.Time
	if r.Realtime {
		ticker := clock.NewTicker(time.Duration(w.Dt() * float64(time.Second)))
		defer ticker.Stop()
		tickC = ticker.C()
	}

	statusEvery := 0
	if r.StatusInterval > 0 {
		statusEvery = int(math.Max(1, math.Round(r.StatusInterval.Seconds()/w.Dt())))
	}

	var sum Summary
	start := w.BasePose().Position
	finish := func() Summary {
		sum.SimTime = w.SimTime()
		sum.FinalPose = w.BasePose()
		d := sum.FinalPose.Position
		sum.Distance = math.Hypot(d.X-start.X, d.Z-start.Z)
		return sum
	}

	for i := 0; ticks <= 0 || i < ticks; i++ {
		if tickC != nil {
			select {
			case <-ctx.Done():
				return finish(), ctx.Err()
			case <-tickC:
			}
		} else if err := ctx.Err(); err != nil {
			return finish(), err
		}

		var extra drive.InputEvent
		if r.Input != nil {
			extra = r.Input()
		}
		res := w.Tick(extra)
		sum.Ticks++
		if res.Frame != nil {
			sum.Frames++
		}
		sum.Faults += res.Drive.Faults

		if statusEvery > 0 && res.Tick%statusEvery == 0 {
			p := w.BasePose().Position
			monitoring.Logf("[Sim] tick %d t=%.2fs pos=(%.2f, %.2f) heading=%.1fdeg speed=%s cmd=(%.2f, %.2f) real=%d ghost=%d",
				res.Tick, res.Sample.SimTime, p.X, p.Z, res.Sample.Heading*180/math.Pi, units.FormatSpeed(res.Sample.ForwardSpeed, r.SpeedUnits),
				res.Sample.CmdLinear, res.Sample.CmdAngular, res.Frame.Stats.Real, res.Frame.Stats.Ghost)
		}
	}
	return finish(), nil
}
