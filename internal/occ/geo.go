package occ

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// WriteGeo writes an unrolled textual description of the model:
// every horizontal surface as explicit points, lines and a plane
// surface, vertical surfaces and volumes as extent comments, then
// physical groups, colors and size fields. The output is meant for
// inspection and for diffing geometries between runs.
func (m *Model) WriteGeo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "SetFactory(\"OpenCASCADE\");\n")

	pt, ln := 1, 1
	for _, dt := range m.Entities(2) {
		if s, ok := m.surfaces[dt.Tag]; ok {
			fmt.Fprintf(bw, "\n// surface %d, z = %g\n", s.tag, s.z)
			loops := make([]int, 0, 1+len(s.region.Holes))
			first := pt
			n := len(s.region.Outer)
			for _, p := range s.region.Outer {
				fmt.Fprintf(bw, "Point(%d) = {%g, %g, %g};\n", pt, p.X, p.Y, s.z)
				pt++
			}
			loopStart := ln
			for i := 0; i < n; i++ {
				fmt.Fprintf(bw, "Line(%d) = {%d, %d};\n", ln, first+i, first+(i+1)%n)
				ln++
			}
			fmt.Fprintf(bw, "Curve Loop(%d) = {", s.tag)
			for i := 0; i < n; i++ {
				if i > 0 {
					fmt.Fprintf(bw, ", ")
				}
				fmt.Fprintf(bw, "%d", loopStart+i)
			}
			fmt.Fprintf(bw, "};\n")
			loops = append(loops, s.tag)
			for _, h := range s.region.Holes {
				hfirst := pt
				hn := len(h)
				for _, p := range h {
					fmt.Fprintf(bw, "Point(%d) = {%g, %g, %g};\n", pt, p.X, p.Y, s.z)
					pt++
				}
				hstart := ln
				for i := 0; i < hn; i++ {
					fmt.Fprintf(bw, "Line(%d) = {%d, %d};\n", ln, hfirst+i, hfirst+(i+1)%hn)
					ln++
				}
				hloop := 1000*s.tag + len(loops)
				fmt.Fprintf(bw, "Curve Loop(%d) = {", hloop)
				for i := 0; i < hn; i++ {
					if i > 0 {
						fmt.Fprintf(bw, ", ")
					}
					fmt.Fprintf(bw, "%d", hstart+i)
				}
				fmt.Fprintf(bw, "};\n")
				loops = append(loops, hloop)
			}
			fmt.Fprintf(bw, "Plane Surface(%d) = {", s.tag)
			for i, l := range loops {
				if i > 0 {
					fmt.Fprintf(bw, ", ")
				}
				fmt.Fprintf(bw, "%d", l)
			}
			fmt.Fprintf(bw, "};\n")
			continue
		}
		if s, ok := m.sides[dt.Tag]; ok {
			fmt.Fprintf(bw, "// surface %d (lateral): (%g, %g)-(%g, %g), z = [%g, %g], volume %d\n",
				s.tag, s.a.X, s.a.Y, s.b.X, s.b.Y, s.z0, s.z1, s.volume)
		}
	}

	for _, dt := range m.Entities(3) {
		v := m.volumes[dt.Tag]
		fmt.Fprintf(bw, "// volume %d: footprint %d, z = [%g, %g], %d sublayers\n",
			v.tag, v.footprint, v.zBot, v.zTop, v.sublayers)
	}

	fmt.Fprintf(bw, "\n")
	for _, dim := range []int{2, 3} {
		kind := "Surface"
		if dim == 3 {
			kind = "Volume"
		}
		tags := make([]int, 0, len(m.groups[dim]))
		for tag := range m.groups[dim] {
			tags = append(tags, tag)
		}
		sort.Ints(tags)
		for _, tag := range tags {
			pg := m.groups[dim][tag]
			fmt.Fprintf(bw, "Physical %s(\"%s\", %d) = {", kind, pg.name, pg.tag)
			ents := append([]int{}, pg.ents...)
			sort.Ints(ents)
			for i, e := range ents {
				if i > 0 {
					fmt.Fprintf(bw, ", ")
				}
				fmt.Fprintf(bw, "%d", e)
			}
			fmt.Fprintf(bw, "};\n")
		}
	}

	if m.meshSizeMax > 0 {
		fmt.Fprintf(bw, "Mesh.MeshSizeMax = %g;\n", m.meshSizeMax)
	}
	for _, f := range m.fields {
		switch f.kind {
		case fieldBox:
			fmt.Fprintf(bw, "Field[%d] = Box;\n", f.tag)
			fmt.Fprintf(bw, "Field[%d].VIn = %g;\nField[%d].VOut = %g;\n", f.tag, f.vin, f.tag, f.vout)
			fmt.Fprintf(bw, "Field[%d].XMin = %g;\nField[%d].XMax = %g;\n", f.tag, f.box.Min.X, f.tag, f.box.Max.X)
			fmt.Fprintf(bw, "Field[%d].YMin = %g;\nField[%d].YMax = %g;\n", f.tag, f.box.Min.Y, f.tag, f.box.Max.Y)
			fmt.Fprintf(bw, "Field[%d].ZMin = %g;\nField[%d].ZMax = %g;\n", f.tag, f.zMin, f.tag, f.zMax)
		case fieldConstant:
			fmt.Fprintf(bw, "Field[%d] = Constant; // VIn = %g, VOut = %g, %d regions\n",
				f.tag, f.vin, f.vout, len(f.regions))
		case fieldMin:
			fmt.Fprintf(bw, "Field[%d] = Min;\nField[%d].FieldsList = {", f.tag, f.tag)
			for i, t := range f.members {
				if i > 0 {
					fmt.Fprintf(bw, ", ")
				}
				fmt.Fprintf(bw, "%d", t)
			}
			fmt.Fprintf(bw, "};\n")
		}
	}
	if m.background != 0 {
		fmt.Fprintf(bw, "Background Field = %d;\n", m.background)
	}
	return bw.Flush()
}
