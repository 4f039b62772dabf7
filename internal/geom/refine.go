package geom

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// SizeField returns the target edge length at a point.
type SizeField func(p r2.Vec) float64

// DefaultNodeBudget bounds refinement so a runaway size field cannot
// exhaust memory.
const DefaultNodeBudget = 500000

// maxBisectDepth bounds the longest-edge propagation chain.
const maxBisectDepth = 64

// Refine bisects every triangle whose longest edge exceeds the size
// field at that edge's midpoint, propagating splits to neighbours so
// the triangulation stays conformal (Rivara longest-edge bisection).
// maxNodes <= 0 selects DefaultNodeBudget.
func (t *Triangulation) Refine(h SizeField, maxNodes int) {
	if h == nil {
		return
	}
	if maxNodes <= 0 {
		maxNodes = DefaultNodeBudget
	}
	r := &refiner{t: t, adj: make(map[[2]int32][]int32)}
	for i := range t.Tris {
		r.link(int32(i))
	}
	for {
		split := false
		for i := 0; i < len(t.Tris); i++ {
			if len(t.Nodes) >= maxNodes {
				return
			}
			if r.oversized(int32(i), h) {
				r.bisect(int32(i), 0)
				split = true
			}
		}
		if !split {
			return
		}
	}
}

type refiner struct {
	t   *Triangulation
	adj map[[2]int32][]int32 // edge -> adjacent triangle indices
}

func edgeKey(a, b int32) [2]int32 {
	if a > b {
		a, b = b, a
	}
	return [2]int32{a, b}
}

func (r *refiner) link(ti int32) {
	tri := r.t.Tris[ti]
	for i := 0; i < 3; i++ {
		k := edgeKey(tri[i], tri[(i+1)%3])
		r.adj[k] = append(r.adj[k], ti)
	}
}

func (r *refiner) unlink(ti int32) {
	tri := r.t.Tris[ti]
	for i := 0; i < 3; i++ {
		k := edgeKey(tri[i], tri[(i+1)%3])
		s := r.adj[k]
		for j, v := range s {
			if v == ti {
				r.adj[k] = append(s[:j], s[j+1:]...)
				break
			}
		}
	}
}

// longestEdge returns the triangle rotated so its longest edge is
// (v0, v1) with v2 opposite. Length ties break on edge key so both
// triangles sharing an edge agree.
func (r *refiner) longestEdge(ti int32) (v0, v1, v2 int32) {
	tri := r.t.Tris[ti]
	best, bestLen := 0, -1.0
	for i := 0; i < 3; i++ {
		a, b := tri[i], tri[(i+1)%3]
		l := r2.Norm(r2.Sub(r.t.Nodes[b], r.t.Nodes[a]))
		k := edgeKey(a, b)
		bk := edgeKey(tri[best], tri[(best+1)%3])
		if l > bestLen+Eps || (l > bestLen-Eps && (k[0] < bk[0] || (k[0] == bk[0] && k[1] < bk[1]))) {
			best, bestLen = i, l
		}
	}
	return tri[best], tri[(best+1)%3], tri[(best+2)%3]
}

func (r *refiner) oversized(ti int32, h SizeField) bool {
	a, b, _ := r.longestEdge(ti)
	pa, pb := r.t.Nodes[a], r.t.Nodes[b]
	mid := r2.Scale(0.5, r2.Add(pa, pb))
	return r2.Norm(r2.Sub(pb, pa)) > h(mid)+Eps
}

// bisect splits triangle ti by its longest edge. If the neighbour
// across that edge has a different longest edge it is bisected first,
// so the shared edge can be split on both sides at once.
func (r *refiner) bisect(ti int32, depth int) {
	if depth > maxBisectDepth {
		return
	}
	a, b, c := r.longestEdge(ti)
	key := edgeKey(a, b)

	for {
		ni := r.neighborAcross(key, ti)
		if ni < 0 {
			break
		}
		na, nb, _ := r.longestEdge(ni)
		if edgeKey(na, nb) == key {
			break
		}
		r.bisect(ni, depth+1)
	}

	mid := r.t.NodeID(r2.Scale(0.5, r2.Add(r.t.Nodes[a], r.t.Nodes[b])))
	ni := r.neighborAcross(key, ti)
	r.splitByEdge(ti, a, b, c, mid)
	if ni >= 0 {
		x, y, z := r.acrossVerts(ni, key)
		r.splitByEdge(ni, x, y, z, mid)
	}
}

// acrossVerts rotates triangle ni so the shared edge is (v0, v1).
func (r *refiner) acrossVerts(ni int32, key [2]int32) (v0, v1, v2 int32) {
	tri := r.t.Tris[ni]
	for i := 0; i < 3; i++ {
		a, b := tri[i], tri[(i+1)%3]
		if edgeKey(a, b) == key {
			return a, b, tri[(i+2)%3]
		}
	}
	return tri[0], tri[1], tri[2]
}

func (r *refiner) neighborAcross(key [2]int32, ti int32) int32 {
	for _, v := range r.adj[key] {
		if v != ti {
			return v
		}
	}
	return -1
}

// splitByEdge replaces triangle ti = (a, b, c) with (a, mid, c) and
// appends (mid, b, c), preserving orientation and tag.
func (r *refiner) splitByEdge(ti, a, b, c, mid int32) {
	r.unlink(ti)
	r.t.Tris[ti] = [3]int32{a, mid, c}
	r.link(ti)
	nj := int32(len(r.t.Tris))
	r.t.Tris = append(r.t.Tris, [3]int32{mid, b, c})
	r.t.Tags = append(r.t.Tags, r.t.Tags[ti])
	r.link(nj)
}
