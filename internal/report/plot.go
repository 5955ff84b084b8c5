package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/rover-sim/internal/lidarsim"
	"github.com/banshee-data/rover-sim/internal/telemetry"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to plot")

var (
	realColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	ghostColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0x80}
	pathColor  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
)

// PlotScan saves a top-down (X/Z) scatter of a frame's visible points. The
// output format follows the file extension.
func PlotScan(f *lidarsim.Frame, path string) error {
	var realPts, ghostPts plotter.XYs
	for _, p := range f.Points {
		switch p.Kind {
		case lidarsim.Real:
			realPts = append(realPts, plotter.XY{X: p.Position.X, Y: p.Position.Z})
		case lidarsim.Ghost:
			ghostPts = append(ghostPts, plotter.XY{X: p.Position.X, Y: p.Position.Z})
		}
	}
	if len(realPts)+len(ghostPts) == 0 {
		return fmt.Errorf("frame %d: %w", f.FrameID, ErrNoData)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Scan %d at %.2fs (real=%d ghost=%d)", f.FrameID, f.SimTime, f.Stats.Real, f.Stats.Ghost)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Z (m)"
	p.Add(plotter.NewGrid())

	if err := addScatter(p, "real", realPts, realColor, 1.5); err != nil {
		return err
	}
	if err := addScatter(p, "ghost", ghostPts, ghostColor, 2); err != nil {
		return err
	}
	sensor := plotter.XYs{{X: f.SensorPose.Position.X, Y: f.SensorPose.Position.Z}}
	if err := addScatter(p, "sensor", sensor, color.Black, 4); err != nil {
		return err
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save scan plot: %w", err)
	}
	return nil
}

func addScatter(p *plot.Plot, name string, pts plotter.XYs, c color.Color, radius float64) error {
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("%s scatter: %w", name, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(radius)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)
	p.Legend.Add(name, s)
	return nil
}

// PlotTrajectory saves the chassis path from drive samples.
func PlotTrajectory(samples []telemetry.DriveSample, path string) error {
	if len(samples) == 0 {
		return ErrNoData
	}
	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: s.PosX, Y: s.PosZ}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectory (%d ticks)", len(samples))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Z (m)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("trajectory line: %w", err)
	}
	line.Width = vg.Points(1.5)
	line.Color = pathColor
	p.Add(line)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save trajectory plot: %w", err)
	}
	return nil
}
