package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rover-sim/internal/telemetry"
)

// maxChartPoints caps series length; longer runs are strided.
const maxChartPoints = 2000

func lineSeries(samples []telemetry.DriveSample, stride int, field func(telemetry.DriveSample) float64) []opts.LineData {
	out := make([]opts.LineData, 0, len(samples)/stride+1)
	for i := 0; i < len(samples); i += stride {
		out = append(out, opts.LineData{Value: field(samples[i])})
	}
	return out
}

func newLineChart(title, subtitle, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	return line
}

// WheelChart renders an HTML page with wheel speed, torque and heading
// charts for a run.
func WheelChart(w io.Writer, title string, samples []telemetry.DriveSample) error {
	if len(samples) == 0 {
		return ErrNoData
	}
	stride := len(samples)/maxChartPoints + 1

	xs := make([]string, 0, len(samples)/stride+1)
	for i := 0; i < len(samples); i += stride {
		xs = append(xs, strconv.FormatFloat(samples[i].SimTime, 'f', 2, 64))
	}
	subtitle := fmt.Sprintf("ticks=%d stride=%d", len(samples), stride)

	speed := newLineChart(title+": wheel speed", subtitle, "m/s")
	speed.SetXAxis(xs).
		AddSeries("left target", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.LeftTarget })).
		AddSeries("left actual", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.LeftSpeed })).
		AddSeries("right target", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.RightTarget })).
		AddSeries("right actual", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.RightSpeed })).
		AddSeries("forward", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.ForwardSpeed }))

	torque := newLineChart(title+": motor torque", subtitle, "N·m")
	torque.SetXAxis(xs).
		AddSeries("left", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.LeftTorque })).
		AddSeries("right", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.RightTorque })).
		AddSeries("brake", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.Brake }))

	cmd := newLineChart(title+": command", subtitle, "")
	cmd.SetXAxis(xs).
		AddSeries("linear", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.CmdLinear })).
		AddSeries("angular", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.CmdAngular })).
		AddSeries("heading (rad)", lineSeries(samples, stride, func(s telemetry.DriveSample) float64 { return s.Heading }))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(speed, torque, cmd)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

// SaveWheelChart writes WheelChart output to path.
func SaveWheelChart(path, title string, samples []telemetry.DriveSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WheelChart(f, title, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
