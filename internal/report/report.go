// Package report renders build summaries for a generated mesh: a
// tetrahedron quality histogram as a PNG and a standalone HTML page
// with per-region element counts.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/qdevlab/devicegen/internal/mesh"
)

const qualityBins = 20

// SaveQualityHistogram writes a histogram of per-tetrahedron quality
// values to a PNG file.
func SaveQualityHistogram(path string, quality []float64) error {
	if len(quality) == 0 {
		return fmt.Errorf("no quality values to plot")
	}

	p := plot.New()
	p.Title.Text = "Tetrahedron Quality"
	p.X.Label.Text = "Quality (3 r_in / r_circ)"
	p.Y.Label.Text = "Elements"
	p.X.Min, p.X.Max = 0, 1

	h, err := plotter.NewHist(plotter.Values(quality), qualityBins)
	if err != nil {
		return err
	}
	p.Add(h)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// WriteHTML renders an HTML report for the mesh: element counts per
// named region and boundary, plus the quality distribution.
func WriteHTML(w io.Writer, m *mesh.Mesh, title string) error {
	page := components.NewPage()
	page.PageTitle = title

	page.AddCharts(groupChart(m), qualityChart(m))
	return page.Render(w)
}

// SaveHTML writes the HTML report to a file.
func SaveHTML(path string, m *mesh.Mesh, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteHTML(f, m, title)
}

func groupChart(m *mesh.Mesh) *charts.Bar {
	names := make([]mesh.PhysicalName, len(m.Physical))
	copy(names, m.Physical)
	sort.Slice(names, func(i, j int) bool {
		if names[i].Dim != names[j].Dim {
			return names[i].Dim < names[j].Dim
		}
		return names[i].Tag < names[j].Tag
	})

	var labels []string
	var data []opts.BarData
	for _, pn := range names {
		n := m.GroupElements(pn.Dim, pn.Tag)
		labels = append(labels, fmt.Sprintf("%s (%dD)", pn.Name, pn.Dim))
		data = append(data, opts.BarData{Value: n})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Elements per Region",
			Subtitle: fmt.Sprintf("nodes=%d triangles=%d tetrahedra=%d order=%d", len(m.Nodes), len(m.Triangles), len(m.Tetrahedra), m.Order),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
	)
	bar.SetXAxis(labels).AddSeries("elements", data)
	return bar
}

func qualityChart(m *mesh.Mesh) *charts.Bar {
	stats, quality := m.Quality()

	counts := make([]int, qualityBins)
	for _, q := range quality {
		bin := int(q * qualityBins)
		if bin >= qualityBins {
			bin = qualityBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	labels := make([]string, qualityBins)
	data := make([]opts.BarData, qualityBins)
	for i := range counts {
		labels[i] = fmt.Sprintf("%.2f", (float64(i)+0.5)/qualityBins)
		data[i] = opts.BarData{Value: counts[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Tetrahedron Quality",
			Subtitle: fmt.Sprintf("min=%.3f mean=%.3f max=%.3f", stats.Min, stats.Mean, stats.Max),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("tetrahedra", data)
	return bar
}
