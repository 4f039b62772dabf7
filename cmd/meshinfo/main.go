// Command meshinfo prints a summary of a generated MSH 2.2 mesh:
// node and element counts, per-region totals, extent, and the
// tetrahedron quality distribution. It can also render the HTML and
// PNG reports for an existing mesh.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/qdevlab/devicegen/internal/mesh"
	"github.com/qdevlab/devicegen/internal/report"
	"github.com/qdevlab/devicegen/internal/units"
)

var (
	htmlOut    = flag.String("html", "", "Write an HTML report to this file")
	qualityOut = flag.String("quality", "", "Write a quality histogram PNG to this file")
	unit       = flag.String("units", units.UM, "Units for printed extents: "+units.GetValidUnitsString())
)

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: meshinfo [-html report.html] [-quality quality.png] <mesh.msh2>")
	}
	if !units.IsValid(*unit) {
		log.Fatalf("Invalid units %q, expected one of: %s", *unit, units.GetValidUnitsString())
	}

	path := flag.Arg(0)
	m, err := mesh.ReadMSH2File(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	printSummary(path, m)

	if *htmlOut != "" {
		if err := report.SaveHTML(*htmlOut, m, path); err != nil {
			log.Fatalf("Failed to write HTML report: %v", err)
		}
		fmt.Printf("wrote %s\n", *htmlOut)
	}
	if *qualityOut != "" {
		_, quality := m.Quality()
		if err := report.SaveQualityHistogram(*qualityOut, quality); err != nil {
			log.Fatalf("Failed to write quality histogram: %v", err)
		}
		fmt.Printf("wrote %s\n", *qualityOut)
	}
}

func printSummary(path string, m *mesh.Mesh) {
	fmt.Printf("%s: order %d, %d nodes, %d triangles, %d tetrahedra\n",
		path, m.Order, len(m.Nodes), len(m.Triangles), len(m.Tetrahedra))

	if len(m.Nodes) > 0 {
		min := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		max := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		for _, n := range m.Nodes {
			for i, v := range [3]float64{n.X, n.Y, n.Z} {
				min[i] = math.Min(min[i], v)
				max[i] = math.Max(max[i], v)
			}
		}
		fmt.Printf("extent (%s): x %g..%g  y %g..%g  z %g..%g\n", *unit,
			units.ConvertLength(min[0], *unit), units.ConvertLength(max[0], *unit),
			units.ConvertLength(min[1], *unit), units.ConvertLength(max[1], *unit),
			units.ConvertLength(min[2], *unit), units.ConvertLength(max[2], *unit))
	}

	for _, pn := range m.Physical {
		fmt.Printf("  %dD %-20s %d elements\n", pn.Dim, pn.Name, m.GroupElements(pn.Dim, pn.Tag))
	}

	if len(m.Tetrahedra) > 0 {
		stats, _ := m.Quality()
		fmt.Printf("quality: min %.3f  mean %.3f  max %.3f  stddev %.3f\n",
			stats.Min, stats.Mean, stats.Max, stats.StdDev)
		fmt.Printf("volume: %g\n", m.Volume())
	}
}
