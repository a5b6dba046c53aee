// Package report draws metric trend charts for parameter sweeps.
package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/kozaktomas/face-verify/internal/evaluate"
)

// Chart dimensions in pixels.
const (
	Width  = 1200
	Height = 600
)

var (
	// ErrLengthMismatch is returned when values and metrics are not aligned.
	ErrLengthMismatch = errors.New("values and metrics must have the same length")
	// ErrNoData is returned for an empty chart.
	ErrNoData = errors.New("chart has no data points")
)

// Series names in legend order.
var Series = []string{"Accuracy", "Precision", "Recall", "F1-score"}

var palette = []color.RGBA{
	{31, 119, 180, 255},
	{255, 127, 14, 255},
	{44, 160, 44, 255},
	{214, 39, 40, 255},
}

// Chart is one metrics-versus-parameter plot.
type Chart struct {
	// Prefix starts the title, e.g. "Fixed LR" gives "Fixed LR vs Epochs".
	Prefix  string
	XLabel  string
	Values  []float64
	Metrics []evaluate.Metrics
	// LogX plots the parameter on a log10 axis; all values must be positive.
	LogX bool
}

// Title returns "<prefix> vs <x label>".
func (c Chart) Title() string {
	if c.Prefix == "" {
		return "Metrics vs " + c.XLabel
	}
	return c.Prefix + " vs " + c.XLabel
}

func (c Chart) validate() error {
	if len(c.Values) != len(c.Metrics) {
		return fmt.Errorf("%w: %d values, %d metrics", ErrLengthMismatch, len(c.Values), len(c.Metrics))
	}
	if len(c.Values) == 0 {
		return ErrNoData
	}
	for _, v := range c.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid parameter value %v", v)
		}
		if c.LogX && v <= 0 {
			return fmt.Errorf("log axis needs positive values, got %v", v)
		}
	}
	return nil
}

// points returns metric i of every point against the swept values.
func (c Chart) points(i int) plotter.XYs {
	xys := make(plotter.XYs, len(c.Metrics))
	for j, m := range c.Metrics {
		xys[j].X = c.Values[j]
		switch i {
		case 0:
			xys[j].Y = m.Accuracy
		case 1:
			xys[j].Y = m.Precision
		case 2:
			xys[j].Y = m.Recall
		default:
			xys[j].Y = m.F1
		}
	}
	return xys
}

// Plot builds the chart: one line per metric, a grid, a legend and one x
// tick per swept value.
func (c Chart) Plot() (*plot.Plot, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = c.Title()
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = "Score"
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for i, name := range Series {
		line, points, err := plotter.NewLinePoints(c.points(i))
		if err != nil {
			return nil, fmt.Errorf("failed to build %s series: %w", name, err)
		}
		line.Color = palette[i]
		line.Width = vg.Points(2)
		points.Color = palette[i]
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(3)
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}

	ticks := make([]plot.Tick, len(c.Values))
	lo, hi := c.Values[0], c.Values[0]
	for i, v := range c.Values {
		ticks[i] = plot.Tick{Value: v, Label: formatValue(v)}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	if c.LogX {
		p.X.Scale = plot.LogScale{}
		if lo == hi {
			lo, hi = lo/2, hi*2
		}
	} else if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	p.X.Min, p.X.Max = lo, hi
	return p, nil
}

func size() (vg.Length, vg.Length) {
	return vg.Length(Width) * vg.Inch / vgimg.DefaultDPI, vg.Length(Height) * vg.Inch / vgimg.DefaultDPI
}

// Image rasterizes the chart.
func (c Chart) Image() (image.Image, error) {
	p, err := c.Plot()
	if err != nil {
		return nil, err
	}
	w, h := size()
	canvas := vgimg.New(w, h)
	p.Draw(draw.New(canvas))
	return canvas.Image(), nil
}

// Render writes the chart to w as PNG.
func Render(w io.Writer, c Chart) error {
	p, err := c.Plot()
	if err != nil {
		return err
	}
	width, height := size()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create chart canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	return nil
}

// SaveFile renders the chart into a PNG file.
func SaveFile(path string, c Chart) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := Render(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatValue(v float64) string {
	if v != 0 && (math.Abs(v) < 1e-2 || math.Abs(v) >= 1e5) {
		return strconv.FormatFloat(v, 'e', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}
