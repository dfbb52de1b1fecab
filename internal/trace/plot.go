package trace

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// fieldGrid exposes the vertical displacement history as a GridXYZ:
// columns are ticks, rows are array positions.
type fieldGrid struct {
	frames []Frame
	dt     float64 // seconds per tick, 0 plots raw ticks
}

func (g fieldGrid) Dims() (c, r int) {
	if len(g.frames) == 0 {
		return 0, 0
	}
	return len(g.frames), len(g.frames[0].Vertical)
}

func (g fieldGrid) Z(c, r int) float64 { return g.frames[c].Vertical[r] }
func (g fieldGrid) X(c int) float64    { return g.at(g.frames[c].Tick) }
func (g fieldGrid) Y(r int) float64    { return float64(r) }

func (g fieldGrid) at(tick uint64) float64 {
	if g.dt > 0 {
		return float64(tick) * g.dt
	}
	return float64(tick)
}

func (t *Trace) grid() fieldGrid {
	return fieldGrid{frames: t.Frames, dt: t.Interval.Seconds()}
}

func (t *Trace) timeLabel() string {
	if t.Interval > 0 {
		return "rig time (s)"
	}
	return "tick"
}

// Heatmap plots vertical displacement over time.
func (t *Trace) Heatmap() (*plot.Plot, error) {
	g := t.grid()
	if c, r := g.Dims(); c < 2 || r < 2 {
		return nil, fmt.Errorf("heatmap needs at least 2 ticks and 2 positions")
	}
	p := plot.New()
	p.Title.Text = "Vertical displacement"
	p.X.Label.Text = t.timeLabel()
	p.Y.Label.Text = "position"
	stylePlot(p)

	pal := moreland.Kindlmann().Palette(255)
	hm := plotter.NewHeatMap(g, pal)
	// Symmetric range keeps zero in the middle of the palette.
	lim := 0.0
	for _, f := range t.Frames {
		for _, v := range f.Vertical {
			lim = math.Max(lim, math.Abs(v))
		}
	}
	if lim > 0 {
		hm.Min, hm.Max = -lim, lim
	}
	p.Add(hm)
	return p, nil
}

// Horizontal plots the horizontal displacement over time.
func (t *Trace) Horizontal() (*plot.Plot, error) {
	return t.line("Horizontal displacement", "h", func(f Frame) float64 { return f.Horizontal })
}

// Energy plots the horizontal energy over time.
func (t *Trace) Energy() (*plot.Plot, error) {
	return t.line("Horizontal energy", "k h² + h'²", func(f Frame) float64 { return f.Energy })
}

func (t *Trace) line(title, ylabel string, value func(Frame) float64) (*plot.Plot, error) {
	if len(t.Frames) == 0 {
		return nil, fmt.Errorf("empty trace")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = t.timeLabel()
	p.Y.Label.Text = ylabel
	stylePlot(p)

	g := t.grid()
	pts := make(plotter.XYs, len(t.Frames))
	for i, f := range t.Frames {
		pts[i].X = g.at(f.Tick)
		pts[i].Y = value(f)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("line plot: %w", err)
	}
	line.LineStyle.Width = vg.Points(2.0)
	p.Add(line)
	return p, nil
}

// Render writes heatmap.png, horizontal.png and energy.png into dir and
// returns the paths written.
func (t *Trace) Render(dir string, widthIn, heightIn float64) ([]string, error) {
	type named struct {
		file string
		make func() (*plot.Plot, error)
	}
	var written []string
	for _, n := range []named{
		{"heatmap.png", t.Heatmap},
		{"horizontal.png", t.Horizontal},
		{"energy.png", t.Energy},
	} {
		p, err := n.make()
		if err != nil {
			return written, fmt.Errorf("%s: %w", n.file, err)
		}
		path := filepath.Join(dir, n.file)
		if err := SavePNG(p, widthIn, heightIn, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(18)
	p.Title.Padding = vg.Points(10)
	p.X.Label.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.TextStyle.Font.Size = vg.Points(14)
	p.X.Padding = vg.Points(12)
	p.Y.Padding = vg.Points(12)
	p.X.Tick.Label.Font.Size = vg.Points(11)
	p.Y.Tick.Label.Font.Size = vg.Points(11)
	p.X.Tick.Marker = limitedTicker(8, "%.1f")
	p.Y.Tick.Marker = limitedTicker(8, "%.2f")
}

// SavePNG renders p to a 150 DPI PNG. Sizes are in inches.
func SavePNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return bw.Flush()
}
