// Package chart renders the scree curve and the cluster scatter.
package chart

import (
	"fmt"
	"image/color"
	"sort"
	"stockcluster/internal/domain"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	width  = 8 * vg.Inch
	height = 6 * vg.Inch
)

// Scree draws total within-cluster sum of squares against center count.
// the file format follows the extension of path
func Scree(points []domain.ScreePoint, path string) error {
	if len(points) == 0 {
		return fmt.Errorf("no scree points to plot")
	}
	p := plot.New()
	p.Title.Text = "K-Means scree"
	p.X.Label.Text = "centers"
	p.Y.Label.Text = "total within-cluster sum of squares"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.CenterCount)
		xys[i].Y = pt.TotalWithinSS
	}
	line, dots, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("failed to build scree line: %w", err)
	}
	line.Color = plotutil.Color(0)
	dots.GlyphStyle.Shape = draw.CircleGlyph{}
	dots.GlyphStyle.Color = plotutil.Color(0)
	p.Add(line, dots)

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save scree chart to %s: %w", path, err)
	}
	return nil
}

// Scatter draws every symbol at its embedding coordinate colored by
// cluster. rows without a coordinate are left out of the picture only
func Scatter(results []domain.AnnotatedResult, title, path string) error {
	byCluster := map[int]plotter.XYs{}
	for _, r := range results {
		if r.V1 == nil || r.V2 == nil {
			continue
		}
		byCluster[r.Cluster] = append(byCluster[r.Cluster], plotter.XY{X: *r.V1, Y: *r.V2})
	}
	if len(byCluster) == 0 {
		return fmt.Errorf("no embedded symbols to plot")
	}

	clusters := make([]int, 0, len(byCluster))
	for c := range byCluster {
		clusters = append(clusters, c)
	}
	sort.Ints(clusters)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "v1"
	p.Y.Label.Text = "v2"
	p.Legend.Top = true

	for _, c := range clusters {
		s, err := plotter.NewScatter(byCluster[c])
		if err != nil {
			return fmt.Errorf("failed to build scatter for cluster %d: %w", c, err)
		}
		s.GlyphStyle.Color = clusterColor(c)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster %d", c), s)
	}

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save scatter chart to %s: %w", path, err)
	}
	return nil
}

func clusterColor(c int) color.Color {
	return plotutil.Color(c)
}
