// Package geom provides the planar geometry used to build device
// layouts: polygons with holes, rectangle clipping, and conforming
// triangulation with size-field refinement.
package geom

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"
)

// Eps is the coordinate tolerance in layout units (microns).
// Layout files carry nanometre resolution, so anything below a
// femtometre is treated as coincident.
const Eps = 1e-9

// Polygon is a simple closed polygon. Vertices are stored once; the
// closing edge from the last vertex back to the first is implicit.
type Polygon []r2.Vec

// Rectangle returns the axis-aligned rectangle with lower-left corner
// (x, y) and side lengths dx, dy, wound counter-clockwise.
func Rectangle(x, y, dx, dy float64) Polygon {
	return Polygon{
		{X: x, Y: y},
		{X: x + dx, Y: y},
		{X: x + dx, Y: y + dy},
		{X: x, Y: y + dy},
	}
}

// SignedArea returns the shoelace area: positive for counter-clockwise
// winding, negative for clockwise.
func (p Polygon) SignedArea() float64 {
	if len(p) < 3 {
		return 0
	}
	sum := 0.0
	for i, a := range p {
		b := p[(i+1)%len(p)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// IsCCW reports whether the polygon winds counter-clockwise.
func (p Polygon) IsCCW() bool {
	return p.SignedArea() > 0
}

// Reversed returns a copy of p with opposite winding.
func (p Polygon) Reversed() Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[len(p)-1-i] = v
	}
	return out
}

// Clone returns a deep copy of p.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// BBox returns the axis-aligned bounding box of p.
func (p Polygon) BBox() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	r := Rect{Min: p[0], Max: p[0]}
	for _, v := range p[1:] {
		r.Min.X = math.Min(r.Min.X, v.X)
		r.Min.Y = math.Min(r.Min.Y, v.Y)
		r.Max.X = math.Max(r.Max.X, v.X)
		r.Max.Y = math.Max(r.Max.Y, v.Y)
	}
	return r
}

// Contains reports whether pt lies strictly inside p (even-odd rule).
// Points on the boundary are not contained.
func (p Polygon) Contains(pt r2.Vec) bool {
	if len(p) < 3 {
		return false
	}
	inside := false
	for i, a := range p {
		b := p[(i+1)%len(p)]
		if onSegment(a, b, pt) {
			return false
		}
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := a.X + (pt.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if x > pt.X {
				inside = !inside
			}
		}
	}
	return inside
}

// OnBoundary reports whether pt lies on an edge of p.
func (p Polygon) OnBoundary(pt r2.Vec) bool {
	for i, a := range p {
		b := p[(i+1)%len(p)]
		if onSegment(a, b, pt) {
			return true
		}
	}
	return false
}

// Centroid returns the area centroid of p.
func (p Polygon) Centroid() r2.Vec {
	a := p.SignedArea()
	if math.Abs(a) < Eps {
		// Degenerate: fall back to the vertex mean.
		var c r2.Vec
		for _, v := range p {
			c = r2.Add(c, v)
		}
		return r2.Scale(1/float64(len(p)), c)
	}
	var c r2.Vec
	for i, v := range p {
		w := p[(i+1)%len(p)]
		cross := v.X*w.Y - w.X*v.Y
		c.X += (v.X + w.X) * cross
		c.Y += (v.Y + w.Y) * cross
	}
	return r2.Scale(1/(6*a), c)
}

// IsAxisAlignedRect reports whether p is a four-vertex axis-aligned
// rectangle.
func (p Polygon) IsAxisAlignedRect() bool {
	if len(p) != 4 {
		return false
	}
	for i, a := range p {
		b := p[(i+1)%len(p)]
		dx := math.Abs(a.X - b.X)
		dy := math.Abs(a.Y - b.Y)
		if dx > Eps && dy > Eps {
			return false
		}
	}
	return p.Area() > Eps
}

// IsRectilinear reports whether every edge of p is axis-parallel.
func (p Polygon) IsRectilinear() bool {
	if len(p) < 4 {
		return false
	}
	for i, a := range p {
		b := p[(i+1)%len(p)]
		if math.Abs(a.X-b.X) > Eps && math.Abs(a.Y-b.Y) > Eps {
			return false
		}
	}
	return true
}

// Boxes decomposes a rectilinear polygon into disjoint axis-aligned
// rectangles, one column per vertical slab between adjacent vertex
// x-coordinates. The polygon must satisfy IsRectilinear.
func (p Polygon) Boxes() []Rect {
	xs := make([]float64, len(p))
	for i, v := range p {
		xs[i] = v.X
	}
	sort.Float64s(xs)
	var out []Rect
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		if x1-x0 <= Eps {
			continue
		}
		// Horizontal edges spanning the slab midline bound the covered
		// y-intervals.
		mid := (x0 + x1) / 2
		var ys []float64
		for j, a := range p {
			b := p[(j+1)%len(p)]
			if (a.X < mid) != (b.X < mid) {
				ys = append(ys, a.Y)
			}
		}
		sort.Float64s(ys)
		for j := 0; j+1 < len(ys); j += 2 {
			if ys[j+1]-ys[j] > Eps {
				out = append(out, Rect{
					Min: r2.Vec{X: x0, Y: ys[j]},
					Max: r2.Vec{X: x1, Y: ys[j+1]},
				})
			}
		}
	}
	return out
}

// ContainsPolygon reports whether q lies entirely inside p: every
// vertex of q is inside or on the boundary of p and no edges cross.
func (p Polygon) ContainsPolygon(q Polygon) bool {
	for _, v := range q {
		if !p.Contains(v) && !p.OnBoundary(v) {
			return false
		}
	}
	return !p.EdgesCross(q)
}

// EdgesCross reports whether any edge of p properly crosses an edge
// of q. Shared endpoints and collinear touching do not count.
func (p Polygon) EdgesCross(q Polygon) bool {
	for i, a := range p {
		b := p[(i+1)%len(p)]
		for j, c := range q {
			d := q[(j+1)%len(q)]
			if segmentsCross(a, b, c, d) {
				return true
			}
		}
	}
	return false
}

// Overlaps reports whether p and q share interior area.
func (p Polygon) Overlaps(q Polygon) bool {
	if !p.BBox().Intersects(q.BBox()) {
		return false
	}
	if p.EdgesCross(q) {
		return true
	}
	if ip, ok := q.InteriorPoint(); ok && p.Contains(ip) {
		return true
	}
	ip, ok := p.InteriorPoint()
	return ok && q.Contains(ip)
}

// InteriorPoint returns a point strictly inside the polygon. The
// centroid works for convex shapes; otherwise midpoints of ear
// diagonals are probed.
func (p Polygon) InteriorPoint() (r2.Vec, bool) {
	if len(p) < 3 {
		return r2.Vec{}, false
	}
	if c := p.Centroid(); p.Contains(c) {
		return c, true
	}
	for i := range p {
		a := p[i]
		c := p[(i+2)%len(p)]
		m := r2.Scale(0.5, r2.Add(a, c))
		if p.Contains(m) {
			return m, true
		}
	}
	return r2.Vec{}, false
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min, Max r2.Vec
}

// NewRect returns the rectangle spanning (x, y) to (x+dx, y+dy).
func NewRect(x, y, dx, dy float64) Rect {
	return Rect{Min: r2.Vec{X: x, Y: y}, Max: r2.Vec{X: x + dx, Y: y + dy}}
}

// Contains reports whether pt lies inside or on the boundary of r.
func (r Rect) Contains(pt r2.Vec) bool {
	return pt.X >= r.Min.X-Eps && pt.X <= r.Max.X+Eps &&
		pt.Y >= r.Min.Y-Eps && pt.Y <= r.Max.Y+Eps
}

// Intersects reports whether r and s share any area.
func (r Rect) Intersects(s Rect) bool {
	return r.Min.X < s.Max.X-Eps && s.Min.X < r.Max.X-Eps &&
		r.Min.Y < s.Max.Y-Eps && s.Min.Y < r.Max.Y-Eps
}

// Polygon returns r as a counter-clockwise Polygon.
func (r Rect) Polygon() Polygon {
	return Rectangle(r.Min.X, r.Min.Y, r.Max.X-r.Min.X, r.Max.Y-r.Min.Y)
}

// Region is a polygon with zero or more holes. The outer boundary
// winds counter-clockwise, holes clockwise is not required: windings
// are normalized where it matters.
type Region struct {
	Outer Polygon
	Holes []Polygon
}

// Area returns the outer area minus the hole areas.
func (g Region) Area() float64 {
	a := g.Outer.Area()
	for _, h := range g.Holes {
		a -= h.Area()
	}
	return a
}

// Contains reports whether pt is inside the region: inside the outer
// boundary and outside every hole.
func (g Region) Contains(pt r2.Vec) bool {
	if !g.Outer.Contains(pt) {
		return false
	}
	for _, h := range g.Holes {
		if h.Contains(pt) || h.OnBoundary(pt) {
			return false
		}
	}
	return true
}

// InteriorPoint returns a point strictly inside the region.
func (g Region) InteriorPoint() (r2.Vec, bool) {
	if len(g.Holes) == 0 {
		return g.Outer.InteriorPoint()
	}
	// Probe midpoints between hole vertices and nearby outer edges.
	t := Triangulation{}
	if err := t.AddRegion(g, 0); err != nil {
		return r2.Vec{}, false
	}
	for _, tri := range t.Tris {
		a, b, c := t.Nodes[tri[0]], t.Nodes[tri[1]], t.Nodes[tri[2]]
		cen := r2.Scale(1.0/3.0, r2.Add(a, r2.Add(b, c)))
		if g.Contains(cen) {
			return cen, true
		}
	}
	return r2.Vec{}, false
}

// Clone returns a deep copy of g.
func (g Region) Clone() Region {
	out := Region{Outer: g.Outer.Clone()}
	for _, h := range g.Holes {
		out.Holes = append(out.Holes, h.Clone())
	}
	return out
}

// BBox returns the bounding box of the outer boundary.
func (g Region) BBox() Rect {
	return g.Outer.BBox()
}

func cross2(o, a, b r2.Vec) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// onSegment reports whether pt lies on the segment ab.
func onSegment(a, b, pt r2.Vec) bool {
	if math.Abs(cross2(a, b, pt)) > Eps*math.Max(1, r2.Norm(r2.Sub(b, a))) {
		return false
	}
	return pt.X >= math.Min(a.X, b.X)-Eps && pt.X <= math.Max(a.X, b.X)+Eps &&
		pt.Y >= math.Min(a.Y, b.Y)-Eps && pt.Y <= math.Max(a.Y, b.Y)+Eps
}

// segmentsCross reports whether ab and cd intersect at a single point
// interior to both segments.
func segmentsCross(a, b, c, d r2.Vec) bool {
	d1 := cross2(c, d, a)
	d2 := cross2(c, d, b)
	d3 := cross2(a, b, c)
	d4 := cross2(a, b, d)
	scale := math.Max(1, r2.Norm(r2.Sub(b, a))*r2.Norm(r2.Sub(d, c)))
	tol := Eps * scale
	return ((d1 > tol && d2 < -tol) || (d1 < -tol && d2 > tol)) &&
		((d3 > tol && d4 < -tol) || (d3 < -tol && d4 > tol))
}

// samePoint reports coordinate equality within Eps.
func samePoint(a, b r2.Vec) bool {
	return scalar.EqualWithinAbs(a.X, b.X, Eps) && scalar.EqualWithinAbs(a.Y, b.Y, Eps)
}
