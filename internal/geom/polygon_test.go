package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestRectangle(t *testing.T) {
	p := Rectangle(1, 2, 3, 4)
	require.Len(t, p, 4)
	require.True(t, p.IsCCW())
	require.InDelta(t, 12, p.Area(), 1e-12)
	require.True(t, p.IsAxisAlignedRect())
}

func TestSignedAreaOrientation(t *testing.T) {
	p := Rectangle(0, 0, 2, 2)
	require.Greater(t, p.SignedArea(), 0.0)

	q := p.Reversed()
	require.Less(t, q.SignedArea(), 0.0)
	require.False(t, q.IsCCW())
	require.InDelta(t, p.Area(), q.Area(), 1e-12)
}

func TestContains(t *testing.T) {
	p := Rectangle(0, 0, 10, 10)
	require.True(t, p.Contains(r2.Vec{X: 5, Y: 5}))
	require.False(t, p.Contains(r2.Vec{X: 11, Y: 5}))
	require.False(t, p.Contains(r2.Vec{X: -1, Y: -1}))
}

func TestOnBoundary(t *testing.T) {
	p := Rectangle(0, 0, 10, 10)
	require.True(t, p.OnBoundary(r2.Vec{X: 5, Y: 0}))
	require.True(t, p.OnBoundary(r2.Vec{X: 10, Y: 10}))
	require.False(t, p.OnBoundary(r2.Vec{X: 5, Y: 5}))
}

func TestCentroid(t *testing.T) {
	p := Rectangle(0, 0, 4, 2)
	c := p.Centroid()
	require.InDelta(t, 2, c.X, 1e-12)
	require.InDelta(t, 1, c.Y, 1e-12)
}

func TestIsAxisAlignedRect(t *testing.T) {
	tri := Polygon{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	require.False(t, tri.IsAxisAlignedRect())

	rot := Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 2}, {X: -1, Y: 1}}
	require.False(t, rot.IsAxisAlignedRect())
}

func TestIsRectilinear(t *testing.T) {
	require.True(t, Rectangle(0, 0, 2, 3).IsRectilinear())

	ell := Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5},
		{X: 5, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 10}}
	require.True(t, ell.IsRectilinear())

	tri := Polygon{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}}
	require.False(t, tri.IsRectilinear())

	rot := Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 2}, {X: -1, Y: 1}}
	require.False(t, rot.IsRectilinear())
}

func TestBoxes(t *testing.T) {
	rect := Rectangle(1, 2, 3, 4)
	boxes := rect.Boxes()
	require.Len(t, boxes, 1)
	require.Equal(t, rect.BBox(), boxes[0])

	ell := Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5},
		{X: 5, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 10}}
	boxes = ell.Boxes()
	require.Len(t, boxes, 2)

	var total float64
	for _, b := range boxes {
		total += b.Polygon().Area()
	}
	require.InDelta(t, ell.Area(), total, 1e-12)
	for i, a := range boxes {
		for _, b := range boxes[i+1:] {
			require.False(t, a.Intersects(b))
		}
	}

	// U-shape: a slab sweep needs two boxes in the middle column's
	// complement, three in total.
	u := Polygon{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3},
		{X: 2, Y: 3}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 3}, {X: 0, Y: 3}}
	boxes = u.Boxes()
	require.Len(t, boxes, 3)
	total = 0
	for _, b := range boxes {
		total += b.Polygon().Area()
	}
	require.InDelta(t, u.Area(), total, 1e-12)
}

func TestContainsPolygon(t *testing.T) {
	outer := Rectangle(0, 0, 10, 10)
	inner := Rectangle(2, 2, 3, 3)
	require.True(t, outer.ContainsPolygon(inner))
	require.False(t, inner.ContainsPolygon(outer))

	shifted := Rectangle(8, 8, 5, 5)
	require.False(t, outer.ContainsPolygon(shifted))
}

func TestEdgesCross(t *testing.T) {
	a := Rectangle(0, 0, 10, 10)
	b := Rectangle(5, 5, 10, 10)
	require.True(t, a.EdgesCross(b))

	// Containment without boundary crossing.
	c := Rectangle(2, 2, 3, 3)
	require.False(t, a.EdgesCross(c))

	// Touching along an edge is not a proper crossing.
	d := Rectangle(10, 0, 5, 10)
	require.False(t, a.EdgesCross(d))
}

func TestOverlaps(t *testing.T) {
	a := Rectangle(0, 0, 10, 10)
	require.True(t, a.Overlaps(Rectangle(5, 5, 10, 10)))
	require.True(t, a.Overlaps(Rectangle(2, 2, 3, 3)))
	require.False(t, a.Overlaps(Rectangle(20, 20, 5, 5)))
	require.False(t, a.Overlaps(Rectangle(10, 0, 5, 10)))
}

func TestInteriorPoint(t *testing.T) {
	p := Rectangle(0, 0, 10, 10)
	pt, ok := p.InteriorPoint()
	require.True(t, ok)
	require.True(t, p.Contains(pt))
}

func TestRegionContainsWithHole(t *testing.T) {
	reg := Region{
		Outer: Rectangle(0, 0, 10, 10),
		Holes: []Polygon{Rectangle(4, 4, 2, 2)},
	}
	require.True(t, reg.Contains(r2.Vec{X: 1, Y: 1}))
	require.False(t, reg.Contains(r2.Vec{X: 5, Y: 5}))
	require.InDelta(t, 96, reg.Area(), 1e-12)
}

func TestRegionInteriorPointAvoidsHole(t *testing.T) {
	reg := Region{
		Outer: Rectangle(0, 0, 10, 10),
		Holes: []Polygon{Rectangle(1, 1, 8, 8)},
	}
	pt, ok := reg.InteriorPoint()
	require.True(t, ok)
	require.True(t, reg.Contains(pt))
}

func TestRegionClone(t *testing.T) {
	reg := Region{
		Outer: Rectangle(0, 0, 10, 10),
		Holes: []Polygon{Rectangle(4, 4, 2, 2)},
	}
	cp := reg.Clone()
	cp.Outer[0].X = 99
	cp.Holes[0][0].Y = 99
	require.Equal(t, 0.0, reg.Outer[0].X)
	require.Equal(t, 4.0, reg.Holes[0][0].Y)
}

func TestBBox(t *testing.T) {
	p := Polygon{{X: -3, Y: 2}, {X: 5, Y: 2}, {X: 5, Y: 7}, {X: -3, Y: 7}}
	bb := p.BBox()
	require.Equal(t, -3.0, bb.Min.X)
	require.Equal(t, 7.0, bb.Max.Y)

	require.True(t, bb.Intersects(NewRect(4, 6, 10, 10)))
	require.False(t, bb.Intersects(NewRect(6, 8, 1, 1)))
}
