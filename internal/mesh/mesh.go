// Package mesh holds the finite-element mesh produced by the
// geometry kernel and its file format writers (Gmsh MSH 2.2, legacy
// VTK).
package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Element types as numbered by the MSH 2.2 format.
const (
	TypeLine2  = 1
	TypeTri3   = 2
	TypeTet4   = 4
	TypeTri6   = 9
	TypeTet10  = 11
	TypePoint  = 15
	TypeLine3  = 8
	maxMshType = 140
)

// PhysicalName attaches a solver-visible name to a physical group.
type PhysicalName struct {
	Dim  int
	Tag  int
	Name string
}

// Element is one mesh element. Nodes has 3 entries for first-order
// triangles, 6 for second order, 4 for first-order tetrahedra and 10
// for second order. Phys and Ent are the MSH element tags: physical
// group and source geometric entity.
type Element struct {
	Nodes []int32
	Phys  int32
	Ent   int32
}

// Mesh is a tagged tetrahedral mesh with its boundary and interface
// triangles.
type Mesh struct {
	// Order is 1 (linear) or 2 (straight-sided quadratic).
	Order int
	Nodes []r3.Vec
	// Physical lists the named physical groups referenced by the
	// elements.
	Physical []PhysicalName
	// Triangles are surface elements on named physical surfaces.
	Triangles []Element
	// Tetrahedra are the volume elements.
	Tetrahedra []Element
}

// NumElements returns the total element count.
func (m *Mesh) NumElements() int {
	return len(m.Triangles) + len(m.Tetrahedra)
}

// GroupElements returns the number of elements tagged with the
// physical group (dim, tag).
func (m *Mesh) GroupElements(dim, tag int) int {
	n := 0
	switch dim {
	case 2:
		for _, e := range m.Triangles {
			if int(e.Phys) == tag {
				n++
			}
		}
	case 3:
		for _, e := range m.Tetrahedra {
			if int(e.Phys) == tag {
				n++
			}
		}
	}
	return n
}

// TetQuality returns the quality of one tetrahedron in [0, 1]: three
// times the ratio of inradius to circumradius, 1 for the regular
// tetrahedron, 0 for a degenerate sliver.
func (m *Mesh) TetQuality(e Element) float64 {
	if len(e.Nodes) < 4 {
		return 0
	}
	a := m.Nodes[e.Nodes[0]]
	b := m.Nodes[e.Nodes[1]]
	c := m.Nodes[e.Nodes[2]]
	d := m.Nodes[e.Nodes[3]]

	vol := math.Abs(r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))) / 6
	if vol <= 0 {
		return 0
	}
	// Surface area of the four faces.
	area := triArea3(a, b, c) + triArea3(a, b, d) + triArea3(a, c, d) + triArea3(b, c, d)
	inradius := 3 * vol / area

	// Circumradius from the standard determinant-free formula.
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ad := r3.Sub(d, a)
	num := r3.Add(
		r3.Scale(r3.Dot(ad, ad), r3.Cross(ab, ac)),
		r3.Add(
			r3.Scale(r3.Dot(ac, ac), r3.Cross(ad, ab)),
			r3.Scale(r3.Dot(ab, ab), r3.Cross(ac, ad)),
		),
	)
	circum := r3.Norm(num) / (12 * vol)
	if circum <= 0 {
		return 0
	}
	return 3 * inradius / circum
}

func triArea3(a, b, c r3.Vec) float64 {
	return r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
}

// QualityStats summarizes tetrahedron quality.
type QualityStats struct {
	Count          int
	Min, Mean, Max float64
	StdDev         float64
}

// Quality returns the quality distribution over all tetrahedra
// together with the raw per-element values.
func (m *Mesh) Quality() (QualityStats, []float64) {
	if len(m.Tetrahedra) == 0 {
		return QualityStats{}, nil
	}
	q := make([]float64, len(m.Tetrahedra))
	s := QualityStats{Count: len(m.Tetrahedra), Min: math.Inf(1), Max: math.Inf(-1)}
	for i, e := range m.Tetrahedra {
		q[i] = m.TetQuality(e)
		s.Min = math.Min(s.Min, q[i])
		s.Max = math.Max(s.Max, q[i])
	}
	s.Mean, s.StdDev = stat.MeanStdDev(q, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s, q
}

// Volume returns the total volume enclosed by the tetrahedra.
func (m *Mesh) Volume() float64 {
	total := 0.0
	for _, e := range m.Tetrahedra {
		a := m.Nodes[e.Nodes[0]]
		b := m.Nodes[e.Nodes[1]]
		c := m.Nodes[e.Nodes[2]]
		d := m.Nodes[e.Nodes[3]]
		total += math.Abs(r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))) / 6
	}
	return total
}
