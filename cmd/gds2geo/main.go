// Command gds2geo translates a GDS-ASCII layout into a Gmsh .geo
// script, one plane surface per polygon with a trailing fragment of
// all surfaces.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/qdevlab/devicegen/internal/gds"
	"github.com/qdevlab/devicegen/internal/geoscript"
	"github.com/qdevlab/devicegen/internal/units"
)

var (
	outPath  = flag.String("o", "", "Output .geo file (default: input with .geo extension)")
	meshSize = flag.Float64("h", 10, "Characteristic mesh length at each point, in layout units")
	unit     = flag.String("units", units.UM, "Units for the printed layout summary: "+units.GetValidUnitsString())
)

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: gds2geo [-o out.geo] [-h size] <layout.txt>")
	}
	if !units.IsValid(*unit) {
		log.Fatalf("Invalid units %q, expected one of: %s", *unit, units.GetValidUnitsString())
	}

	in := flag.Arg(0)
	layout, err := gds.ParseFile(in)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", in, err)
	}

	out := *outPath
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".geo"
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", out, err)
	}
	defer f.Close()

	if err := geoscript.Write(f, layout.Layers, *meshSize); err != nil {
		log.Fatalf("Failed to write %s: %v", out, err)
	}

	polys := layout.Polygons()
	fmt.Printf("%s: %d polygons on %d layers, db unit %g %s\n",
		out, len(polys), len(layout.Layers),
		units.ConvertLength(layout.Unit, *unit), *unit)
}
