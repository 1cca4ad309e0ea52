package timeline

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/kitti.replay/internal/kitti"
)

var kindHexColors = [kitti.NumKinds]string{"#5a5a5a", "#dc322f", "#268bd2", "#859900"}

// WriteHTML renders the timeline as an interactive go-echarts page.
func (t *Timeline) WriteHTML(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return ErrEmpty
	}

	names := make([]string, 0, kitti.NumKinds)
	for _, k := range kitti.AllKinds {
		names = append(names, k.String())
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Replay Timeline", Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: t.title, Subtitle: fmt.Sprintf("messages=%d", t.count)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: names}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
	)

	for _, k := range kitti.AllKinds {
		pts := t.points[k]
		if len(pts) == 0 {
			continue
		}
		data := make([]opts.ScatterData, 0, len(pts))
		for _, p := range pts {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, int(p.Y)}})
		}
		scatter.AddSeries(k.String(), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: kindHexColors[k]}),
		)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render timeline html: %w", err)
	}
	return nil
}
