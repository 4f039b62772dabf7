// Package geoscript writes and reads the subset of the gmsh .geo
// scripting language that device layouts use: OpenCASCADE points,
// lines, curve loops, plane surfaces and boolean fragments.
package geoscript

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

// Model is the result of reading a .geo script.
type Model struct {
	// Surfaces in tag order. Plane surfaces with several curve loops
	// carry the extra loops as holes.
	Surfaces []Surface
	// MeshSize is the smallest characteristic length attached to any
	// point, or 0 when the script carries none.
	MeshSize float64
	// Fragments reports whether the script requests boolean
	// fragmentation of its surfaces.
	Fragments bool
}

// Surface is one plane surface from a .geo script.
type Surface struct {
	Tag    int
	Region geom.Region
}

// Write emits a .geo script for the given layer polygons, one plane
// surface per polygon, with boolean fragments between consecutive
// layers so overlapping gate levels mesh conformally. h is the
// characteristic length written on every point.
func Write(w io.Writer, layers map[int][]geom.Polygon, h float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "SetFactory(\"OpenCASCADE\");\n\n")

	nums := make([]int, 0, len(layers))
	for n := range layers {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	pt, ln, cl, sf := 1, 1, 1, 1
	surfsByLayer := make(map[int][]int)
	for _, n := range nums {
		for _, poly := range layers[n] {
			first := pt
			for _, v := range poly {
				fmt.Fprintf(bw, "Point(%d) = {%s, %s, 0, %s}; \n", pt, ftoa(v.X), ftoa(v.Y), ftoa(h))
				pt++
			}
			firstLine := ln
			for i := first; i < pt-1; i++ {
				fmt.Fprintf(bw, "Line(%d) = {%d, %d}; \n", ln, i, i+1)
				ln++
			}
			fmt.Fprintf(bw, "Line(%d) = {%d, %d}; \n", ln, pt-1, first)
			ln++

			refs := make([]string, 0, ln-firstLine)
			for i := firstLine; i < ln; i++ {
				refs = append(refs, strconv.Itoa(i))
			}
			fmt.Fprintf(bw, "Curve Loop(%d) = {%s};\n", cl, strings.Join(refs, ", "))
			fmt.Fprintf(bw, "Plane Surface(%d) = {%d};\n\n", sf, cl)
			surfsByLayer[n] = append(surfsByLayer[n], sf)
			cl++
			sf++
		}
	}

	for i := 0; i+1 < len(nums); i++ {
		tags := append(append([]int{}, surfsByLayer[nums[i]]...), surfsByLayer[nums[i+1]]...)
		refs := make([]string, len(tags))
		for j, t := range tags {
			refs[j] = strconv.Itoa(t)
		}
		fmt.Fprintf(bw, "BooleanFragments{ Surface{%s}; Delete; }{}\n", strings.Join(refs, ", "))
	}
	return bw.Flush()
}

// ftoa formats a coordinate without trailing zeros.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseFile reads the .geo script at path.
func ParseFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

type point struct {
	pos r2.Vec
	h   float64
}

// Parse reads a .geo script. Statements outside the supported subset
// (physical groups, mesh options) are skipped.
func Parse(r io.Reader) (*Model, error) {
	points := make(map[int]point)
	lines := make(map[int][2]int)
	loops := make(map[int][]int)
	var surfaceDefs []struct {
		tag   int
		loops []int
	}
	m := &Model{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		stmt := strings.TrimSpace(scanner.Text())
		if i := strings.Index(stmt, "//"); i >= 0 {
			stmt = strings.TrimSpace(stmt[:i])
		}
		if stmt == "" {
			continue
		}
		switch {
		case strings.HasPrefix(stmt, "Point"):
			tag, args, err := tagAndArgs(stmt)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if len(args) < 2 {
				return nil, fmt.Errorf("line %d: point needs at least x and y", lineNo)
			}
			p := point{pos: r2.Vec{X: args[0], Y: args[1]}}
			if len(args) >= 4 {
				p.h = args[3]
			}
			points[tag] = p
		case strings.HasPrefix(stmt, "Line") && !strings.HasPrefix(stmt, "Line Loop"):
			tag, args, err := tagAndArgs(stmt)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if len(args) != 2 {
				return nil, fmt.Errorf("line %d: line needs two points", lineNo)
			}
			lines[tag] = [2]int{int(args[0]), int(args[1])}
		case strings.HasPrefix(stmt, "Curve Loop"), strings.HasPrefix(stmt, "Line Loop"):
			tag, args, err := tagAndArgs(stmt)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			refs := make([]int, len(args))
			for i, a := range args {
				refs[i] = int(a)
			}
			loops[tag] = refs
		case strings.HasPrefix(stmt, "Plane Surface"):
			tag, args, err := tagAndArgs(stmt)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			def := struct {
				tag   int
				loops []int
			}{tag: tag}
			for _, a := range args {
				def.loops = append(def.loops, int(a))
			}
			surfaceDefs = append(surfaceDefs, def)
		case strings.HasPrefix(stmt, "BooleanFragments"):
			m.Fragments = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, def := range surfaceDefs {
		if len(def.loops) == 0 {
			return nil, fmt.Errorf("plane surface %d has no curve loop", def.tag)
		}
		var reg geom.Region
		for i, lt := range def.loops {
			refs, ok := loops[lt]
			if !ok {
				return nil, fmt.Errorf("plane surface %d: unknown curve loop %d", def.tag, lt)
			}
			poly, err := chainLoop(refs, lines, points)
			if err != nil {
				return nil, fmt.Errorf("plane surface %d: %w", def.tag, err)
			}
			if i == 0 {
				reg.Outer = poly
			} else {
				reg.Holes = append(reg.Holes, poly)
			}
		}
		m.Surfaces = append(m.Surfaces, Surface{Tag: def.tag, Region: reg})
	}
	sort.Slice(m.Surfaces, func(i, j int) bool { return m.Surfaces[i].Tag < m.Surfaces[j].Tag })

	h := math.Inf(1)
	for _, p := range points {
		if p.h > 0 {
			h = math.Min(h, p.h)
		}
	}
	if !math.IsInf(h, 1) {
		m.MeshSize = h
	}
	return m, nil
}

// tagAndArgs parses `Name(tag) = {a, b, ...};` statements.
func tagAndArgs(stmt string) (int, []float64, error) {
	open := strings.Index(stmt, "(")
	closeIdx := strings.Index(stmt, ")")
	if open < 0 || closeIdx < open {
		return 0, nil, fmt.Errorf("malformed statement %q", stmt)
	}
	tag, err := strconv.Atoi(strings.TrimSpace(stmt[open+1 : closeIdx]))
	if err != nil {
		return 0, nil, fmt.Errorf("bad tag in %q", stmt)
	}
	lb := strings.Index(stmt, "{")
	rb := strings.LastIndex(stmt, "}")
	if lb < 0 || rb < lb {
		return 0, nil, fmt.Errorf("missing braces in %q", stmt)
	}
	var args []float64
	for _, f := range strings.Split(stmt[lb+1:rb], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("bad value %q in %q", f, stmt)
		}
		args = append(args, v)
	}
	return tag, args, nil
}

// chainLoop walks signed line references into a closed polygon.
// A negative reference traverses the line end-to-start.
func chainLoop(refs []int, lines map[int][2]int, points map[int]point) (geom.Polygon, error) {
	var poly geom.Polygon
	prevEnd := -1
	for _, ref := range refs {
		lt := ref
		if lt < 0 {
			lt = -lt
		}
		ends, ok := lines[lt]
		if !ok {
			return nil, fmt.Errorf("unknown line %d", lt)
		}
		a, b := ends[0], ends[1]
		if ref < 0 {
			a, b = b, a
		}
		if prevEnd >= 0 && a != prevEnd {
			return nil, fmt.Errorf("line %d does not continue the loop", ref)
		}
		p, ok := points[a]
		if !ok {
			return nil, fmt.Errorf("unknown point %d", a)
		}
		poly = append(poly, p.pos)
		prevEnd = b
	}
	if len(poly) < 3 {
		return nil, fmt.Errorf("loop with %d points", len(poly))
	}
	return poly, nil
}
