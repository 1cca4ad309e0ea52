// Package timeline plots when each sensor's messages were emitted during a
// replay, one row per message kind.
package timeline

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/kitti.replay/internal/kitti"
)

// ErrEmpty is returned when rendering a timeline with no messages.
var ErrEmpty = errors.New("timeline has no messages")

var kindColors = [kitti.NumKinds]color.Color{
	color.RGBA{R: 90, G: 90, B: 90, A: 255},
	color.RGBA{R: 220, G: 50, B: 47, A: 255},
	color.RGBA{R: 38, G: 139, B: 210, A: 255},
	color.RGBA{R: 133, G: 153, B: 0, A: 255},
}

// Timeline accumulates emitted message timestamps. It is safe for
// concurrent use.
type Timeline struct {
	mu     sync.Mutex
	title  string
	origin int64
	points [kitti.NumKinds]plotter.XYs
	count  int
}

// New creates an empty timeline.
func New(title string) *Timeline {
	return &Timeline{title: title}
}

// Add records a message. The first message sets the time origin.
func (t *Timeline) Add(kind kitti.Kind, timestampMs int64) {
	if !kind.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		t.origin = timestampMs
	}
	t.count++
	x := float64(timestampMs-t.origin) / 1000
	t.points[kind] = append(t.points[kind], plotter.XY{X: x, Y: float64(kind)})
}

// Len returns how many messages have been added.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Counts returns the number of messages added per kind.
func (t *Timeline) Counts() [kitti.NumKinds]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [kitti.NumKinds]int
	for k, pts := range t.points {
		out[k] = len(pts)
	}
	return out
}

// Plot builds the scatter plot without writing it anywhere.
func (t *Timeline) Plot() (*plot.Plot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return nil, ErrEmpty
	}

	p := plot.New()
	p.Title.Text = t.title
	p.X.Label.Text = "Time since first message (s)"
	p.Y.Min = -0.5
	p.Y.Max = float64(kitti.NumKinds) - 0.5

	ticks := make([]plot.Tick, 0, kitti.NumKinds)
	for _, k := range kitti.AllKinds {
		ticks = append(ticks, plot.Tick{Value: float64(k), Label: k.String()})

		if len(t.points[k]) == 0 {
			continue
		}
		s, err := plotter.NewScatter(t.points[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		s.GlyphStyle.Color = kindColors[k]
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("%s (%d)", k, len(t.points[k])), s)
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.Add(plotter.NewGrid())

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// Render writes the timeline to path. A .html path gets the interactive
// chart; anything else is drawn by gonum/plot in the format its extension
// names (png, svg, pdf, ...).
func (t *Timeline) Render(path string) error {
	if t.Len() == 0 {
		return ErrEmpty
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".html") {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create timeline: %w", err)
		}
		if err := t.WriteHTML(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	p, err := t.Plot()
	if err != nil {
		return err
	}
	if err := p.Save(12*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	return nil
}
