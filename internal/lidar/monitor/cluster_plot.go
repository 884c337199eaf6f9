package monitor

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/rangeseg/internal/lidar/l4perception"
)

// maxLegendEntries caps the legend; further clusters are still drawn.
const maxLegendEntries = 12

// PlotClustersPNG writes a top-down XY scatter of clusters to path, one
// colour per cluster. The image format follows the file extension.
func PlotClustersPNG(clusters []l4perception.Cluster, path, title string) error {
	if len(clusters) == 0 {
		return fmt.Errorf("no clusters to plot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	colors := generateColors(len(clusters))
	for i, c := range clusters {
		if len(c.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(c.Points))
		for j, pt := range c.Points {
			pts[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}

		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("cluster %d scatter: %w", c.ID, err)
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		if i < maxLegendEntries {
			p.Legend.Add(fmt.Sprintf("cluster %d (%d)", c.ID, len(c.Points)), s)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// PlotClusterSizesPNG writes a histogram of cluster point counts to path.
func PlotClusterSizesPNG(clusters []l4perception.Cluster, path, title string, bins int) error {
	if len(clusters) == 0 {
		return fmt.Errorf("no clusters to plot")
	}
	if bins <= 0 {
		bins = 20
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	sizes := make(plotter.Values, len(clusters))
	for i, c := range clusters {
		sizes[i] = float64(len(c.Points))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Points per cluster"
	p.Y.Label.Text = "Clusters"

	h, err := plotter.NewHist(sizes, bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
