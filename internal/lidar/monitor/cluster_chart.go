package monitor

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rangeseg/internal/lidar/l4perception"
)

// echartsAssetsPrefix is where the generated pages load the echarts script from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxSeriesPoints bounds the points drawn per cluster; larger clusters are strided.
const maxSeriesPoints = 2000

// RenderClustersHTML writes an HTML page with a top-down scatter of clusters
// (one series per cluster) followed by a bar chart of cluster sizes.
func RenderClustersHTML(w io.Writer, clusters []l4perception.Cluster, title string) error {
	total := 0
	pad := 10.0
	for _, c := range clusters {
		total += len(c.Points)
		for _, pt := range c.Points {
			pad = math.Max(pad, math.Max(math.Abs(pt.X), math.Abs(pt.Y)))
		}
	}
	pad = math.Ceil(pad)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("clusters=%d points=%d", len(clusters), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(clusters) <= maxLegendEntries)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	colors := generateColors(len(clusters))
	names := make([]string, 0, len(clusters))
	sizes := make([]opts.BarData, 0, len(clusters))
	for i, c := range clusters {
		name := fmt.Sprintf("cluster %d", c.ID)
		names = append(names, name)
		sizes = append(sizes, opts.BarData{Value: len(c.Points)})

		stride := 1
		if len(c.Points) > maxSeriesPoints {
			stride = (len(c.Points) + maxSeriesPoints - 1) / maxSeriesPoints
		}
		data := make([]opts.ScatterData, 0, len(c.Points)/stride+1)
		for j := 0; j < len(c.Points); j += stride {
			pt := c.Points[j]
			data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y, pt.Z}})
		}
		scatter.AddSeries(name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}),
		)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "400px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Cluster sizes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("points", sizes)

	page := components.NewPage()
	page.PageTitle = title
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render clusters page: %w", err)
	}
	return nil
}
