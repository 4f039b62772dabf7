package geom

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// snap is the node deduplication quantum. Two nodes closer than this
// in either coordinate are merged into one.
const snap = 1e-7

// ErrBadPolygon is returned when a boundary cannot be triangulated.
var ErrBadPolygon = errors.New("geom: cannot triangulate polygon")

// Triangulation is a set of triangles over a shared node pool.
// Nodes are deduplicated on insertion, so triangulations of adjacent
// regions that share boundary vertices are conformal.
type Triangulation struct {
	Nodes []r2.Vec
	Tris  [][3]int32
	Tags  []int32 // per-triangle region tag

	lookup map[[2]int64]int32
}

// NodeID returns the index for the node at p, inserting it if new.
func (t *Triangulation) NodeID(p r2.Vec) int32 {
	if t.lookup == nil {
		t.lookup = make(map[[2]int64]int32)
	}
	key := [2]int64{int64(math.Round(p.X / snap)), int64(math.Round(p.Y / snap))}
	if id, ok := t.lookup[key]; ok {
		return id
	}
	id := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, p)
	t.lookup[key] = id
	return id
}

// AddRegion triangulates reg by ear clipping and appends the result
// with the given tag. Holes are bridged into the outer boundary
// before clipping.
func (t *Triangulation) AddRegion(reg Region, tag int32) error {
	ring, err := bridgeHoles(reg)
	if err != nil {
		return err
	}
	tris, err := earClip(ring)
	if err != nil {
		return err
	}
	for _, tri := range tris {
		t.Tris = append(t.Tris, [3]int32{
			t.NodeID(tri[0]), t.NodeID(tri[1]), t.NodeID(tri[2]),
		})
		t.Tags = append(t.Tags, tag)
	}
	return nil
}

// InsertCollinearPoints returns reg with every point of pts that lies
// strictly inside one of its edges inserted as a vertex. Fragmented
// layouts need this so that pieces sharing a partial edge also share
// the intermediate vertices.
func InsertCollinearPoints(reg Region, pts []r2.Vec) Region {
	out := Region{Outer: insertOnRing(reg.Outer, pts)}
	for _, h := range reg.Holes {
		out.Holes = append(out.Holes, insertOnRing(h, pts))
	}
	return out
}

func insertOnRing(ring Polygon, pts []r2.Vec) Polygon {
	var out Polygon
	for i, a := range ring {
		b := ring[(i+1)%len(ring)]
		out = append(out, a)
		var mid []r2.Vec
		for _, p := range pts {
			if samePoint(p, a) || samePoint(p, b) {
				continue
			}
			if onSegment(a, b, p) {
				mid = append(mid, p)
			}
		}
		sort.Slice(mid, func(i, j int) bool {
			return r2.Norm(r2.Sub(mid[i], a)) < r2.Norm(r2.Sub(mid[j], a))
		})
		for _, p := range mid {
			if !samePoint(out[len(out)-1], p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// bridgeHoles merges the holes of reg into its outer boundary with
// zero-width bridges, producing a single ring suitable for ear
// clipping. Holes are connected rightmost-first, each to the nearest
// visible vertex on its right.
func bridgeHoles(reg Region) (Polygon, error) {
	outer := reg.Outer.Clone()
	if !outer.IsCCW() {
		outer = outer.Reversed()
	}
	if len(reg.Holes) == 0 {
		return outer, nil
	}

	holes := make([]Polygon, len(reg.Holes))
	for i, h := range reg.Holes {
		hc := h.Clone()
		if hc.IsCCW() {
			hc = hc.Reversed() // holes wind clockwise
		}
		holes[i] = hc
	}
	// Bridge holes in order of decreasing rightmost x so bridges never
	// cross holes not yet merged.
	sort.Slice(holes, func(i, j int) bool {
		return maxX(holes[i]) > maxX(holes[j])
	})

	for _, hole := range holes {
		merged, err := bridgeHole(outer, hole)
		if err != nil {
			return nil, err
		}
		outer = merged
	}
	return outer, nil
}

func maxX(p Polygon) float64 {
	m := p[0].X
	for _, v := range p[1:] {
		m = math.Max(m, v.X)
	}
	return m
}

// bridgeHole joins hole into ring via a mutually visible vertex pair.
func bridgeHole(ring, hole Polygon) (Polygon, error) {
	// Rightmost hole vertex.
	hi := 0
	for i, v := range hole {
		if v.X > hole[hi].X {
			hi = i
		}
	}
	hv := hole[hi]

	// Candidate ring vertices, nearest first, that see hv.
	order := make([]int, len(ring))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return r2.Norm(r2.Sub(ring[order[a]], hv)) < r2.Norm(r2.Sub(ring[order[b]], hv))
	})
	for _, ri := range order {
		if visible(ring, hole, ring[ri], hv) {
			return spliceRings(ring, ri, hole, hi), nil
		}
	}
	return nil, fmt.Errorf("%w: no bridge for hole near (%.6g, %.6g)", ErrBadPolygon, hv.X, hv.Y)
}

// visible reports whether the open segment a-b crosses no edge of
// either ring.
func visible(ring, hole Polygon, a, b r2.Vec) bool {
	for _, p := range [2]Polygon{ring, hole} {
		for i, c := range p {
			d := p[(i+1)%len(p)]
			if samePoint(c, a) || samePoint(d, a) || samePoint(c, b) || samePoint(d, b) {
				continue
			}
			if segmentsCross(a, b, c, d) {
				return false
			}
			m := r2.Scale(0.5, r2.Add(a, b))
			if onSegment(c, d, m) {
				return false
			}
		}
	}
	return true
}

// spliceRings inserts hole (clockwise) into ring at vertex ri/hi,
// duplicating the bridge endpoints.
func spliceRings(ring Polygon, ri int, hole Polygon, hi int) Polygon {
	out := make(Polygon, 0, len(ring)+len(hole)+2)
	out = append(out, ring[:ri+1]...)
	for k := 0; k <= len(hole); k++ {
		out = append(out, hole[(hi+k)%len(hole)])
	}
	out = append(out, ring[ri:]...)
	return out
}

// earClip triangulates a single (possibly bridged) ring. The ring may
// contain duplicate vertices from hole bridging.
func earClip(ring Polygon) ([][3]r2.Vec, error) {
	n := len(ring)
	if n < 3 {
		return nil, ErrBadPolygon
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	var tris [][3]r2.Vec
	for len(idx) > 3 {
		clipped := false
		for i := 0; i < len(idx); i++ {
			ia := idx[(i+len(idx)-1)%len(idx)]
			ib := idx[i]
			ic := idx[(i+1)%len(idx)]
			a, b, c := ring[ia], ring[ib], ring[ic]
			if !isEar(ring, idx, a, b, c) {
				continue
			}
			if triArea(a, b, c) > Eps {
				tris = append(tris, [3]r2.Vec{a, b, c})
			}
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Degenerate corners from hole bridging can block every ear
			// test; drop one and retry.
			if !dropDegenerate(ring, &idx) {
				return nil, fmt.Errorf("%w: no ear found with %d vertices left", ErrBadPolygon, len(idx))
			}
		}
	}
	a, b, c := ring[idx[0]], ring[idx[1]], ring[idx[2]]
	if triArea(a, b, c) > Eps {
		tris = append(tris, [3]r2.Vec{a, b, c})
	}
	return tris, nil
}

func dropDegenerate(ring Polygon, idx *[]int) bool {
	for i := 0; i < len(*idx); i++ {
		a := ring[(*idx)[(i+len(*idx)-1)%len(*idx)]]
		b := ring[(*idx)[i]]
		c := ring[(*idx)[(i+1)%len(*idx)]]
		if triArea(a, b, c) <= Eps {
			*idx = append((*idx)[:i], (*idx)[i+1:]...)
			return true
		}
	}
	return false
}

func triArea(a, b, c r2.Vec) float64 {
	return math.Abs(cross2(a, b, c)) / 2
}

// isEar reports whether corner a-b-c is a valid ear: convex and
// containing no other active vertex.
func isEar(ring Polygon, idx []int, a, b, c r2.Vec) bool {
	if cross2(a, b, c) < Eps { // reflex or degenerate corner
		return triArea(a, b, c) <= Eps && r2.Dot(r2.Sub(a, b), r2.Sub(c, b)) > 0
	}
	for _, j := range idx {
		p := ring[j]
		if samePoint(p, a) || samePoint(p, b) || samePoint(p, c) {
			continue
		}
		if pointInTri(a, b, c, p) {
			return false
		}
	}
	return true
}

func pointInTri(a, b, c, p r2.Vec) bool {
	d1 := cross2(a, b, p)
	d2 := cross2(b, c, p)
	d3 := cross2(c, a, p)
	hasNeg := d1 < -Eps || d2 < -Eps || d3 < -Eps
	hasPos := d1 > Eps || d2 > Eps || d3 > Eps
	return !(hasNeg && hasPos)
}
