// Package viz serves decode results and pulse-train plots over HTTP.
package viz

import (
	"bytes"
	"errors"
	"image/color"
	"io"

	"github.com/norasector/irdecode/pkg/ir"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var errNoEntries = errors.New("capture has no entries")

var (
	markColor = color.RGBA{R: 0x40, G: 0xff, B: 0x40, A: 0xff}
	gridColor = color.Gray{Y: 0x40}
)

type PlotOptions func(p *plot.Plot)

// newPlot returns a titled plot drawn white on black.
func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.Color = color.White
		ax.Label.TextStyle.Color = color.White
		ax.Tick.Color = color.White
		ax.Tick.Label.Color = color.White
	}
	p.Title.TextStyle.Color = color.White
	p.Legend.TextStyle.Color = color.White

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)
	return p
}

// PulseTrain renders the capture as a square wave over time in ms.
func PulseTrain(title string, c *ir.Capture, opts ...PlotOptions) ([]byte, error) {
	window := c.Window()
	if len(window) == 0 {
		return nil, errNoEntries
	}
	tick := float64(c.Tick)
	if tick == 0 {
		tick = 1
	}

	xys := make(plotter.XYs, 0, 2*len(window)+2)
	t := 0.0
	xys = append(xys, plotter.XY{X: 0, Y: 0})
	for i, v := range window {
		level := 0.0
		if i%2 == 0 {
			level = 1
		}
		xys = append(xys, plotter.XY{X: t, Y: level})
		t += float64(v) * tick / 1000
		xys = append(xys, plotter.XY{X: t, Y: level})
	}
	xys = append(xys, plotter.XY{X: t, Y: 0})

	p := newPlot(title, "t (ms)", "IR")
	p.Y.Min = -0.25
	p.Y.Max = 1.25
	for _, opt := range opts {
		opt(p)
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = markColor
	p.Add(line)

	return render(p.WriterTo(12*vg.Inch, 3*vg.Inch, "png"))
}

// Histogram renders the distribution of durations in the capture.
func Histogram(title string, c *ir.Capture, bins int) ([]byte, error) {
	window := c.Window()
	if len(window) == 0 {
		return nil, errNoEntries
	}
	tick := float64(c.Tick)
	if tick == 0 {
		tick = 1
	}
	values := make(plotter.Values, len(window))
	for i, v := range window {
		values[i] = float64(v) * tick
	}

	p := newPlot(title, "duration (us)", "count")
	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return nil, err
	}
	h.LineStyle.Color = markColor
	p.Add(h)

	return render(p.WriterTo(8*vg.Inch, 4*vg.Inch, "png"))
}

func render(w io.WriterTo, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	var imageData bytes.Buffer
	if _, err := w.WriteTo(&imageData); err != nil {
		return nil, err
	}
	return imageData.Bytes(), nil
}
