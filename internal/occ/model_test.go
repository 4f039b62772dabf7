package occ

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/qdevlab/devicegen/internal/geom"
	"github.com/qdevlab/devicegen/internal/mesh"
)

func TestAddRectangleAndEntities(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 2, 1)
	b := m.AddRectangle(5, 5, 1, 1)
	ents := m.Entities(2)
	require.Equal(t, []DimTag{{2, a}, {2, b}}, ents)
	require.Empty(t, m.Entities(3))
}

func TestFragmentDisjoint(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	b := m.AddRectangle(3, 0, 1, 1)
	out, mapping, err := m.Fragment([]DimTag{{2, a}}, []DimTag{{2, b}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, [][]DimTag{{{2, a}}, {{2, b}}}, mapping)
}

func TestFragmentContainment(t *testing.T) {
	m := NewModel()
	outer := m.AddRectangle(0, 0, 10, 10)
	inner := m.AddRectangle(4, 4, 2, 2)
	out, mapping, err := m.Fragment([]DimTag{{2, outer}}, []DimTag{{2, inner}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// The big rectangle maps to both pieces, the small one to itself.
	require.Len(t, mapping[0], 2)
	require.Len(t, mapping[1], 1)

	small := mapping[1][0].Tag
	s := m.surfaces[small]
	require.Empty(t, s.region.Holes)
	require.InDelta(t, 4.0, s.region.Area(), 1e-9)

	var big *planarSurface
	for _, dt := range mapping[0] {
		if dt.Tag != small {
			big = m.surfaces[dt.Tag]
		}
	}
	require.NotNil(t, big)
	require.Len(t, big.region.Holes, 1)
	require.InDelta(t, 96.0, big.region.Area(), 1e-9)
}

func TestFragmentPartialRectOverlap(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 4, 2)
	b := m.AddRectangle(3, 0, 4, 2)
	out, mapping, err := m.Fragment([]DimTag{{2, a}}, []DimTag{{2, b}})
	require.NoError(t, err)
	require.Len(t, out, 3)

	var total float64
	for _, dt := range out {
		total += m.surfaces[dt.Tag].region.Area()
	}
	require.InDelta(t, 14.0, total, 1e-9)

	// Each input covers two pieces, sharing the overlap strip.
	require.Len(t, mapping[0], 2)
	require.Len(t, mapping[1], 2)
	shared := 0
	for _, x := range mapping[0] {
		for _, y := range mapping[1] {
			if x == y {
				shared++
			}
		}
	}
	require.Equal(t, 1, shared)
}

func TestFragmentRectOverlapsConcaveSurface(t *testing.T) {
	// A rectangle poking into the notch of an L-shaped surface: the
	// pieces must cover the whole union, including the rectangle
	// corner outside the L.
	m := NewModel()
	l := m.AddSurface(geom.Region{Outer: geom.Polygon{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5},
		{X: 5, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 10},
	}})
	r := m.AddRectangle(4, 4, 2, 2)
	out, mapping, err := m.Fragment([]DimTag{{2, l}}, []DimTag{{2, r}})
	require.NoError(t, err)

	var total float64
	for _, dt := range out {
		total += m.surfaces[dt.Tag].region.Area()
	}
	require.InDelta(t, 76.0, total, 1e-9)

	pt := r2.Vec{X: 5.5, Y: 5.5}
	covered := false
	for _, dt := range mapping[1] {
		if m.surfaces[dt.Tag].region.Contains(pt) {
			covered = true
		}
	}
	require.True(t, covered, "rectangle corner outside the L is not covered")

	require.InDelta(t, 76.0, meshedArea(t, m), 1e-9)
}

func TestFragmentConcaveOverlapsRectSurface(t *testing.T) {
	// Same shapes in the opposite insertion order: the overlap is cut
	// out of the rectangle's outer boundary, never carved as a hole,
	// and the arrangement still meshes.
	m := NewModel()
	r := m.AddRectangle(4, 4, 2, 2)
	l := m.AddSurface(geom.Region{Outer: geom.Polygon{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5},
		{X: 5, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 10},
	}})
	out, mapping, err := m.Fragment([]DimTag{{2, r}}, []DimTag{{2, l}})
	require.NoError(t, err)

	var total float64
	for _, dt := range out {
		s := m.surfaces[dt.Tag]
		require.Empty(t, s.region.Holes)
		total += s.region.Area()
	}
	require.InDelta(t, 76.0, total, 1e-9)

	pt := r2.Vec{X: 5.5, Y: 5.5}
	covered := false
	for _, dt := range mapping[0] {
		if m.surfaces[dt.Tag].region.Contains(pt) {
			covered = true
		}
	}
	require.True(t, covered, "rectangle corner outside the L is not covered")

	require.InDelta(t, 76.0, meshedArea(t, m), 1e-9)
}

// meshedArea groups every surface, meshes in 2-D and sums the
// triangle areas.
func meshedArea(t *testing.T, m *Model) float64 {
	t.Helper()
	for _, dt := range m.Entities(2) {
		g := m.AddPhysicalGroup(2, []int{dt.Tag})
		m.SetPhysicalName(2, g, "plane")
	}
	m.SetMeshSizeMax(2)
	msh, err := m.Mesh(2, 1)
	require.NoError(t, err)

	var area float64
	for _, e := range msh.Triangles {
		p0, p1, p2 := msh.Nodes[e.Nodes[0]], msh.Nodes[e.Nodes[1]], msh.Nodes[e.Nodes[2]]
		area += math.Abs((p1.X-p0.X)*(p2.Y-p0.Y)-(p2.X-p0.X)*(p1.Y-p0.Y)) / 2
	}
	return area
}

func TestFragmentAfterExtrudeFails(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	_, err := m.Extrude([]DimTag{{2, a}}, -1, 1)
	require.NoError(t, err)
	_, _, err = m.Fragment([]DimTag{{2, a}}, nil)
	require.Error(t, err)
}

func TestExtrudeReturnOrder(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 2, 1)
	out, err := m.Extrude([]DimTag{{2, a}}, -0.5, 2)
	require.NoError(t, err)
	// Translated copy, volume, then one side per edge.
	require.Len(t, out, 2+4)
	require.Equal(t, 2, out[0].Dim)
	require.Equal(t, DimTag{3, 1}, out[1])
	for _, dt := range out[2:] {
		require.Equal(t, 2, dt.Dim)
		_, ok := m.sides[dt.Tag]
		require.True(t, ok)
	}

	// Extruding downward keeps the input surface on top.
	v := m.volumes[out[1].Tag]
	require.Equal(t, a, v.topTag)
	require.Equal(t, out[0].Tag, v.botTag)
	require.Equal(t, 2, v.sublayers)

	bnd, err := m.Boundary(out[1])
	require.NoError(t, err)
	require.Len(t, bnd, 6)
}

func TestPhysicalGroups(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	g := m.AddPhysicalGroup(2, []int{a})
	m.SetPhysicalName(2, g, "gate")
	require.Equal(t, "gate", m.PhysicalName(2, g))
	require.Equal(t, []int{g}, m.PhysicalGroupsForEntity(2, a))
	require.Equal(t, []int{a}, m.EntitiesForPhysicalGroup(2, g))

	m.RemovePhysicalGroups([]DimTag{{2, g}})
	require.Empty(t, m.PhysicalGroups(2))
}

func TestMeshSingleLayer(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	out, err := m.Extrude([]DimTag{{2, a}}, -1, 1)
	require.NoError(t, err)
	vol := out[1].Tag

	vg := m.AddPhysicalGroup(3, []int{vol})
	m.SetPhysicalName(3, vg, "body")
	sg := m.AddPhysicalGroup(2, []int{a})
	m.SetPhysicalName(2, sg, "top")
	m.SetMeshSizeMax(0.5)

	msh, err := m.Mesh(3, 1)
	require.NoError(t, err)
	require.NotEmpty(t, msh.Tetrahedra)
	require.NotEmpty(t, msh.Triangles)

	// Tet volumes sum to the prism volume.
	var total float64
	for _, e := range msh.Tetrahedra {
		total += tetVolume(msh, e)
	}
	require.InDelta(t, 1.0, total, 1e-9)

	// Surface triangles tile the top face.
	var area float64
	for _, e := range msh.Triangles {
		p0, p1, p2 := msh.Nodes[e.Nodes[0]], msh.Nodes[e.Nodes[1]], msh.Nodes[e.Nodes[2]]
		area += math.Abs((p1.X-p0.X)*(p2.Y-p0.Y)-(p2.X-p0.X)*(p1.Y-p0.Y)) / 2
		require.Equal(t, 0.0, p0.Z)
	}
	require.InDelta(t, 1.0, area, 1e-9)
}

func TestMeshSecondOrder(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	out, err := m.Extrude([]DimTag{{2, a}}, -1, 1)
	require.NoError(t, err)
	vg := m.AddPhysicalGroup(3, []int{out[1].Tag})
	m.SetPhysicalName(3, vg, "body")

	msh, err := m.Mesh(3, 2)
	require.NoError(t, err)
	require.Equal(t, 2, msh.Order)
	for _, e := range msh.Tetrahedra {
		require.Len(t, e.Nodes, 10)
	}
}

func TestMeshSideSurfaceConformal(t *testing.T) {
	// Two stacked layers sharing the footprint: side triangles of the
	// grouped side surface must be faces of the volume tetrahedra.
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	out, err := m.Extrude([]DimTag{{2, a}}, -1, 2)
	require.NoError(t, err)
	vol := out[1].Tag
	side := out[2].Tag

	vg := m.AddPhysicalGroup(3, []int{vol})
	m.SetPhysicalName(3, vg, "body")
	sg := m.AddPhysicalGroup(2, []int{side})
	m.SetPhysicalName(2, sg, "wall")

	msh, err := m.Mesh(3, 1)
	require.NoError(t, err)

	faces := make(map[[3]int32]bool)
	for _, e := range msh.Tetrahedra {
		n := e.Nodes
		for _, f := range [4][3]int32{
			{n[0], n[1], n[2]}, {n[0], n[1], n[3]},
			{n[0], n[2], n[3]}, {n[1], n[2], n[3]},
		} {
			faces[sortedFace(f)] = true
		}
	}
	require.NotEmpty(t, msh.Triangles)
	for _, e := range msh.Triangles {
		f := sortedFace([3]int32{e.Nodes[0], e.Nodes[1], e.Nodes[2]})
		require.True(t, faces[f], "side triangle %v is not a tet face", e.Nodes)
	}
}

func TestMeshConstantField(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 4, 4)
	fine := m.AddRectangle(1, 1, 1, 1)
	_, mapping, err := m.Fragment([]DimTag{{2, a}}, []DimTag{{2, fine}})
	require.NoError(t, err)

	var all []DimTag
	for _, dts := range mapping {
		all = append(all, dts...)
	}
	_, err = m.Extrude(dedupe(all), -1, 1)
	require.NoError(t, err)
	for _, dt := range m.Entities(3) {
		g := m.AddPhysicalGroup(3, []int{dt.Tag})
		m.SetPhysicalName(3, g, "body")
	}

	ft, err := m.AddConstantField(0.1, 1.0, []int{mapping[1][0].Tag})
	require.NoError(t, err)
	require.NoError(t, m.SetBackgroundField(ft))
	m.SetMeshSizeMax(2.0)

	msh, err := m.Mesh(3, 1)
	require.NoError(t, err)

	// Nodes must be denser inside the fine region.
	inside, outside := 0, 0
	for _, n := range msh.Nodes {
		if n.Z != 0 {
			continue
		}
		if n.X > 1 && n.X < 2 && n.Y > 1 && n.Y < 2 {
			inside++
		} else {
			outside++
		}
	}
	require.Greater(t, inside, outside/4)
	require.Greater(t, inside, 8)
}

func TestWriteGeo(t *testing.T) {
	m := NewModel()
	a := m.AddRectangle(0, 0, 1, 1)
	g := m.AddPhysicalGroup(2, []int{a})
	m.SetPhysicalName(2, g, "gate")
	m.SetMeshSizeMax(0.25)

	var buf bytes.Buffer
	require.NoError(t, m.WriteGeo(&buf))
	s := buf.String()
	require.True(t, strings.HasPrefix(s, "SetFactory(\"OpenCASCADE\");"))
	require.Contains(t, s, "Plane Surface(1)")
	require.Contains(t, s, "Physical Surface(\"gate\", 1) = {1};")
	require.Contains(t, s, "Mesh.MeshSizeMax = 0.25;")
}

func TestSplitPrismSharedFaces(t *testing.T) {
	// Two prisms sharing a vertical quad face must split it the same
	// way regardless of vertex order.
	pa := [6]int32{0, 1, 2, 10, 11, 12}
	pb := [6]int32{1, 3, 2, 11, 13, 12}
	fa := quadDiagonals(splitPrism(pa))
	fb := quadDiagonals(splitPrism(pb))
	// Shared quad corners: 1, 2, 11, 12.
	for d := range fa {
		if isSubset(d, []int32{1, 2, 11, 12}) {
			require.True(t, fb[d], "diagonal %v not shared", d)
		}
	}
}

func quadDiagonals(tets [3][4]int32) map[[2]int32]bool {
	out := make(map[[2]int32]bool)
	for _, tet := range tets {
		for i := 0; i < 4; i++ {
			for j := i + 1; j < 4; j++ {
				a, b := tet[i], tet[j]
				if a > b {
					a, b = b, a
				}
				out[[2]int32{a, b}] = true
			}
		}
	}
	return out
}

func isSubset(edge [2]int32, set []int32) bool {
	n := 0
	for _, v := range set {
		if v == edge[0] || v == edge[1] {
			n++
		}
	}
	return n == 2
}

func sortedFace(f [3]int32) [3]int32 {
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}

func dedupe(dts []DimTag) []DimTag {
	seen := make(map[DimTag]bool)
	var out []DimTag
	for _, dt := range dts {
		if !seen[dt] {
			seen[dt] = true
			out = append(out, dt)
		}
	}
	return out
}

func tetVolume(m *mesh.Mesh, e mesh.Element) float64 {
	p0 := m.Nodes[e.Nodes[0]]
	d1 := r3.Sub(m.Nodes[e.Nodes[1]], p0)
	d2 := r3.Sub(m.Nodes[e.Nodes[2]], p0)
	d3 := r3.Sub(m.Nodes[e.Nodes[3]], p0)
	return math.Abs(r3.Dot(r3.Cross(d1, d2), d3)) / 6
}
