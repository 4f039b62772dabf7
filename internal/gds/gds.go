// Package gds reads GDSII layouts in their ASCII dump form (the
// record-per-line text produced by strm-to-text tools: UNITS, LAYER,
// XY, ENDEL). Binary GDSII streams are not supported.
package gds

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qdevlab/devicegen/internal/geom"
)

// Layout is a parsed 2-D layout: polygons grouped by GDS layer
// number, with coordinates scaled to microns.
type Layout struct {
	// Unit is the database unit in microns.
	Unit float64
	// Layers maps a GDS layer number to its polygons.
	Layers map[int][]geom.Polygon
}

// LayerNumbers returns the layer numbers present, ascending. Later
// layers sit above earlier ones in the gate stack, matching the
// fragment order used when loading the layout.
func (l *Layout) LayerNumbers() []int {
	nums := make([]int, 0, len(l.Layers))
	for n := range l.Layers {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Polygons returns all polygons in layer order.
func (l *Layout) Polygons() []geom.Polygon {
	var out []geom.Polygon
	for _, n := range l.LayerNumbers() {
		out = append(out, l.Layers[n]...)
	}
	return out
}

const (
	modeIdle = iota
	modeElement
	modePoints
)

// ParseFile parses the GDS ASCII dump at path.
func ParseFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	layout, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return layout, nil
}

// Parse parses a GDS ASCII dump. Only BOUNDARY-style elements with
// LAYER and XY records are read; everything else is skipped.
func Parse(r io.Reader) (*Layout, error) {
	layout := &Layout{Unit: 1e-3, Layers: make(map[int][]geom.Polygon)}

	mode := modeIdle
	layer := 0
	var pts []r2.Vec
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)

		switch mode {
		case modeIdle:
			switch tokens[0] {
			case "UNITS":
				if err := layout.parseUnits(tokens[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
			case "BOUNDARY", "BOX":
				mode = modeElement
				layer = 0
				pts = nil
			}

		case modeElement:
			switch tokens[0] {
			case "LAYER":
				if len(tokens) < 2 {
					return nil, fmt.Errorf("line %d: LAYER record without a number", lineNo)
				}
				n, err := strconv.Atoi(strings.TrimSuffix(tokens[1], ";"))
				if err != nil {
					return nil, fmt.Errorf("line %d: bad layer number %q", lineNo, tokens[1])
				}
				layer = n
			case "XY":
				p, err := parsePoint(strings.TrimPrefix(line, "XY"))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				pts = append(pts, p)
				mode = modePoints
			case "ENDEL":
				mode = modeIdle
			}

		case modePoints:
			switch tokens[0] {
			case "ENDEL":
				poly, err := layout.finishElement(pts)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				layout.Layers[layer] = append(layout.Layers[layer], poly)
				mode = modeIdle
			default:
				p, err := parsePoint(line)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				pts = append(pts, p)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if mode != modeIdle {
		return nil, fmt.Errorf("unterminated element at end of input")
	}
	if len(layout.Layers) == 0 {
		return nil, fmt.Errorf("no boundary elements found")
	}
	return layout, nil
}

// parseUnits reads "UNITS <user units per db unit> <db unit in m>"
// and records the database unit in microns.
func (l *Layout) parseUnits(fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("UNITS record needs two values")
	}
	userPerDB, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("bad UNITS value %q", fields[0])
	}
	dbMeters, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return fmt.Errorf("bad UNITS value %q", fields[1])
	}
	if userPerDB <= 0 || dbMeters <= 0 {
		return fmt.Errorf("non-positive units %g %g", userPerDB, dbMeters)
	}
	l.Unit = dbMeters * 1e6
	return nil
}

// parsePoint reads one "x: y" coordinate pair in database units.
func parsePoint(s string) (r2.Vec, error) {
	parts := strings.Split(strings.TrimSuffix(strings.TrimSpace(s), ";"), ":")
	if len(parts) != 2 {
		return r2.Vec{}, fmt.Errorf("bad coordinate pair %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return r2.Vec{}, fmt.Errorf("bad x coordinate %q", parts[0])
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return r2.Vec{}, fmt.Errorf("bad y coordinate %q", parts[1])
	}
	return r2.Vec{X: x, Y: y}, nil
}

// finishElement scales the accumulated points to microns and closes
// the polygon (GDS repeats the first point at the end).
func (l *Layout) finishElement(pts []r2.Vec) (geom.Polygon, error) {
	poly := make(geom.Polygon, 0, len(pts))
	for _, p := range pts {
		poly = append(poly, r2.Vec{
			X: round6(p.X * l.Unit),
			Y: round6(p.Y * l.Unit),
		})
	}
	if len(poly) > 1 && samePt(poly[0], poly[len(poly)-1]) {
		poly = poly[:len(poly)-1]
	}
	if len(poly) < 3 {
		return nil, fmt.Errorf("boundary with %d distinct points", len(poly))
	}
	if poly.Area() <= geom.Eps {
		return nil, fmt.Errorf("boundary encloses no area")
	}
	return poly, nil
}

// round6 rounds to nanometre precision (6 decimals in microns), the
// same rounding the layout files carry.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func samePt(a, b r2.Vec) bool {
	return math.Abs(a.X-b.X) <= geom.Eps && math.Abs(a.Y-b.Y) <= geom.Eps
}
