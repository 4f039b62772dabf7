package occ

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/qdevlab/devicegen/internal/geom"
	"github.com/qdevlab/devicegen/internal/mesh"
)

const snapZ = 1e-7

// prism corner permutations that bring each corner to position 0
// while keeping vertical edges vertical: the three rotations of the
// triangle, each optionally swapped top-for-bottom.
var prismPerms = [6][6]int{
	{0, 1, 2, 3, 4, 5},
	{1, 2, 0, 4, 5, 3},
	{2, 0, 1, 5, 3, 4},
	{3, 4, 5, 0, 1, 2},
	{4, 5, 3, 1, 2, 0},
	{5, 3, 4, 2, 0, 1},
}

// mesher accumulates the 3-D mesh for one Mesh call.
type mesher struct {
	m     *Model
	order int

	tri        *geom.Triangulation
	footprints map[int]geom.Region

	out   *mesh.Mesh
	node3 map[node3Key]int32
	mids  map[[2]int32]int32
}

type node3Key struct {
	n2 int32
	zq int64
}

// Mesh triangulates the footprint arrangement, refines it against the
// background size field, extrudes the triangles through every volume
// and returns the resulting mesh. dim selects how deep to mesh: 2
// produces only surface elements, 3 adds tetrahedra. order is the
// element order, 1 or 2.
//
// Only entities that carry a physical group contribute elements; one
// element is written per (physical group, entity) pair it belongs to.
func (m *Model) Mesh(dim, order int) (*mesh.Mesh, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("occ: mesh dimension must be 2 or 3, got %d", dim)
	}
	if order != 1 && order != 2 {
		return nil, fmt.Errorf("occ: element order must be 1 or 2, got %d", order)
	}
	g := &mesher{
		m:     m,
		order: order,
		out:   &mesh.Mesh{Order: order},
		node3: make(map[node3Key]int32),
		mids:  make(map[[2]int32]int32),
	}
	if err := g.triangulate(); err != nil {
		return nil, err
	}
	g.collectPhysicalNames()
	if err := g.meshPlanarSurfaces(); err != nil {
		return nil, err
	}
	if err := g.meshSideSurfaces(); err != nil {
		return nil, err
	}
	if dim == 3 {
		if err := g.meshVolumes(); err != nil {
			return nil, err
		}
	}
	return g.out, nil
}

// triangulate builds one shared 2-D triangulation of all footprints.
// Every arrangement vertex is first inserted into every footprint
// boundary it lies on, so neighbouring footprints mesh conformally,
// and refinement is global for the same reason.
func (g *mesher) triangulate() error {
	g.footprints = make(map[int]geom.Region)
	var tags []int
	for tag, s := range g.m.surfaces {
		if s.footprint == tag {
			g.footprints[tag] = s.region
			tags = append(tags, tag)
		}
	}
	// Volumes and lifted surfaces can outlive the z=0 piece that
	// defined their footprint; recover those regions too.
	for _, v := range g.m.volumes {
		if _, ok := g.footprints[v.footprint]; !ok {
			g.footprints[v.footprint] = v.region
			tags = append(tags, v.footprint)
		}
	}
	sort.Ints(tags)

	var pts []r2.Vec
	for _, tag := range tags {
		reg := g.footprints[tag]
		pts = append(pts, reg.Outer...)
		for _, h := range reg.Holes {
			pts = append(pts, h...)
		}
	}

	g.tri = &geom.Triangulation{}
	for _, tag := range tags {
		reg := geom.InsertCollinearPoints(g.footprints[tag], pts)
		if err := g.tri.AddRegion(reg, int32(tag)); err != nil {
			return fmt.Errorf("occ: triangulating surface %d: %w", tag, err)
		}
	}
	g.tri.Refine(g.sizeField(), geom.DefaultNodeBudget)
	return nil
}

// sizeField flattens the 3-D background sizing to 2-D by taking the
// minimum over the heights where the field changes: the mesher uses a
// single triangulation for the whole stack, so the finest in-plane
// size along a vertical line wins.
func (g *mesher) sizeField() geom.SizeField {
	zs := []float64{0}
	for _, f := range g.m.fields {
		if f.kind == fieldBox {
			zs = append(zs, (f.zMin+f.zMax)/2)
		}
	}
	for _, v := range g.m.volumes {
		zs = append(zs, (v.zBot+v.zTop)/2)
	}
	return func(p r2.Vec) float64 {
		h := math.Inf(1)
		for _, z := range zs {
			h = math.Min(h, g.m.sizeAt(p.X, p.Y, z))
		}
		return h
	}
}

func (g *mesher) collectPhysicalNames() {
	for dim, byTag := range g.m.groups {
		for _, pg := range byTag {
			g.out.Physical = append(g.out.Physical, mesh.PhysicalName{
				Dim: dim, Tag: pg.tag, Name: pg.name,
			})
		}
	}
	sort.Slice(g.out.Physical, func(i, j int) bool {
		a, b := g.out.Physical[i], g.out.Physical[j]
		if a.Dim != b.Dim {
			return a.Dim < b.Dim
		}
		return a.Tag < b.Tag
	})
}

// nodeAt returns the global id of 2-D node n2 lifted to height z,
// creating it on first use.
func (g *mesher) nodeAt(n2 int32, z float64) int32 {
	key := node3Key{n2: n2, zq: int64(math.Round(z / snapZ))}
	if id, ok := g.node3[key]; ok {
		return id
	}
	p := g.tri.Nodes[n2]
	id := int32(len(g.out.Nodes))
	g.out.Nodes = append(g.out.Nodes, r3.Vec{X: p.X, Y: p.Y, Z: z})
	g.node3[key] = id
	return id
}

// midAt returns the node halfway between two mesh nodes, creating it
// on first use. Second-order elements use straight edges.
func (g *mesher) midAt(a, b int32) int32 {
	key := [2]int32{min(a, b), max(a, b)}
	if id, ok := g.mids[key]; ok {
		return id
	}
	pa, pb := g.out.Nodes[a], g.out.Nodes[b]
	id := int32(len(g.out.Nodes))
	g.out.Nodes = append(g.out.Nodes, r3.Vec{
		X: (pa.X + pb.X) / 2, Y: (pa.Y + pb.Y) / 2, Z: (pa.Z + pb.Z) / 2,
	})
	g.mids[key] = id
	return id
}

var tetEdges = [6][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {2, 3}, {1, 3}}
var triEdges = [3][2]int{{0, 1}, {1, 2}, {2, 0}}

func (g *mesher) emitTri(nodes [3]int32, phys, ent int) {
	e := mesh.Element{Phys: int32(phys), Ent: int32(ent)}
	e.Nodes = append(e.Nodes, nodes[:]...)
	if g.order == 2 {
		for _, ed := range triEdges {
			e.Nodes = append(e.Nodes, g.midAt(nodes[ed[0]], nodes[ed[1]]))
		}
	}
	g.out.Triangles = append(g.out.Triangles, e)
}

func (g *mesher) emitTet(nodes [4]int32, phys, ent int) {
	// Keep the signed volume positive.
	p := [4]r3.Vec{}
	for i, n := range nodes {
		p[i] = g.out.Nodes[n]
	}
	d1 := r3.Sub(p[1], p[0])
	d2 := r3.Sub(p[2], p[0])
	d3 := r3.Sub(p[3], p[0])
	if r3.Dot(r3.Cross(d1, d2), d3) < 0 {
		nodes[2], nodes[3] = nodes[3], nodes[2]
	}
	e := mesh.Element{Phys: int32(phys), Ent: int32(ent)}
	e.Nodes = append(e.Nodes, nodes[:]...)
	if g.order == 2 {
		for _, ed := range tetEdges {
			e.Nodes = append(e.Nodes, g.midAt(nodes[ed[0]], nodes[ed[1]]))
		}
	}
	g.out.Tetrahedra = append(g.out.Tetrahedra, e)
}

// meshPlanarSurfaces emits the footprint triangles of every grouped
// horizontal surface, lifted to its height.
func (g *mesher) meshPlanarSurfaces() error {
	tags := make([]int, 0, len(g.m.surfaces))
	for tag := range g.m.surfaces {
		tags = append(tags, tag)
	}
	sort.Ints(tags)
	for _, tag := range tags {
		s := g.m.surfaces[tag]
		physTags := g.m.PhysicalGroupsForEntity(2, tag)
		if len(physTags) == 0 {
			continue
		}
		var found bool
		for ti, ftag := range g.tri.Tags {
			if int(ftag) != s.footprint {
				continue
			}
			found = true
			t := g.tri.Tris[ti]
			n := [3]int32{
				g.nodeAt(t[0], s.z),
				g.nodeAt(t[1], s.z),
				g.nodeAt(t[2], s.z),
			}
			for _, phys := range physTags {
				g.emitTri(n, phys, tag)
			}
		}
		if !found {
			return fmt.Errorf("occ: surface %d has no triangulated footprint", tag)
		}
	}
	return nil
}

// boundaryEdges returns, per footprint tag, the triangulation edges
// that lie on the footprint's boundary (edges used by exactly one of
// its triangles).
func (g *mesher) boundaryEdges() map[int32][][2]int32 {
	type ek = [2]int32
	count := make(map[ek]map[int32]int)
	for ti, t := range g.tri.Tris {
		tag := g.tri.Tags[ti]
		for _, ed := range triEdges {
			a, b := t[ed[0]], t[ed[1]]
			k := ek{min(a, b), max(a, b)}
			if count[k] == nil {
				count[k] = make(map[int32]int)
			}
			count[k][tag]++
		}
	}
	out := make(map[int32][][2]int32)
	for k, byTag := range count {
		for tag, n := range byTag {
			if n == 1 {
				out[tag] = append(out[tag], k)
			}
		}
	}
	return out
}

func onSegment2(p, a, b r2.Vec) bool {
	ab := r2.Sub(b, a)
	ap := r2.Sub(p, a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 < geom.Eps*geom.Eps {
		return false
	}
	cross := ab.X*ap.Y - ab.Y*ap.X
	if cross*cross > geom.Eps*geom.Eps*l2 {
		return false
	}
	dot := ab.X*ap.X + ab.Y*ap.Y
	return dot > -geom.Eps*math.Sqrt(l2) && dot < l2+geom.Eps*math.Sqrt(l2)
}

// meshSideSurfaces emits two triangles per boundary sub-edge and
// sublayer for every grouped vertical surface. The quad diagonal runs
// through the corner with the smallest global node id, which is the
// same splitting rule the volume mesher applies to prism faces, so
// side triangles coincide with tetrahedron faces.
func (g *mesher) meshSideSurfaces() error {
	byTag := g.boundaryEdges()

	tags := make([]int, 0, len(g.m.sides))
	for tag := range g.m.sides {
		tags = append(tags, tag)
	}
	sort.Ints(tags)
	for _, tag := range tags {
		s := g.m.sides[tag]
		physTags := g.m.PhysicalGroupsForEntity(2, tag)
		if len(physTags) == 0 {
			continue
		}
		v, ok := g.m.volumes[s.volume]
		if !ok {
			return fmt.Errorf("occ: side surface %d has no volume", tag)
		}
		dz := (s.z1 - s.z0) / float64(v.sublayers)
		for _, edge := range byTag[int32(s.footprint)] {
			pa, pb := g.tri.Nodes[edge[0]], g.tri.Nodes[edge[1]]
			if !onSegment2(pa, s.a, s.b) || !onSegment2(pb, s.a, s.b) {
				continue
			}
			for k := 0; k < v.sublayers; k++ {
				z0 := s.z0 + float64(k)*dz
				z1 := s.z0 + float64(k+1)*dz
				if k == v.sublayers-1 {
					z1 = s.z1
				}
				b1 := g.nodeAt(edge[0], z0)
				b2 := g.nodeAt(edge[1], z0)
				t1 := g.nodeAt(edge[0], z1)
				t2 := g.nodeAt(edge[1], z1)
				lo := min(min(b1, b2), min(t1, t2))
				for _, phys := range physTags {
					if lo == b1 || lo == t2 {
						g.emitTri([3]int32{b1, b2, t2}, phys, tag)
						g.emitTri([3]int32{b1, t2, t1}, phys, tag)
					} else {
						g.emitTri([3]int32{b1, b2, t1}, phys, tag)
						g.emitTri([3]int32{b2, t2, t1}, phys, tag)
					}
				}
			}
		}
	}
	return nil
}

// meshVolumes slices every grouped prism column into sublayers and splits
// each prism into three tetrahedra.
func (g *mesher) meshVolumes() error {
	tags := make([]int, 0, len(g.m.volumes))
	for tag := range g.m.volumes {
		tags = append(tags, tag)
	}
	sort.Ints(tags)
	for _, tag := range tags {
		v := g.m.volumes[tag]
		physTags := g.m.PhysicalGroupsForEntity(3, tag)
		if len(physTags) == 0 {
			continue
		}
		dz := (v.zTop - v.zBot) / float64(v.sublayers)
		var found bool
		for ti, ftag := range g.tri.Tags {
			if int(ftag) != v.footprint {
				continue
			}
			found = true
			t := g.tri.Tris[ti]
			for k := 0; k < v.sublayers; k++ {
				z0 := v.zBot + float64(k)*dz
				z1 := v.zBot + float64(k+1)*dz
				if k == v.sublayers-1 {
					z1 = v.zTop
				}
				prism := [6]int32{
					g.nodeAt(t[0], z0), g.nodeAt(t[1], z0), g.nodeAt(t[2], z0),
					g.nodeAt(t[0], z1), g.nodeAt(t[1], z1), g.nodeAt(t[2], z1),
				}
				for _, tet := range splitPrism(prism) {
					for _, phys := range physTags {
						g.emitTet(tet, phys, tag)
					}
				}
			}
		}
		if !found {
			return fmt.Errorf("occ: volume %d has no triangulated footprint", tag)
		}
	}
	return nil
}

// splitPrism decomposes a prism into three tetrahedra with every quad
// face split through its smallest-id corner, so neighbouring prisms
// decompose compatibly without any extra bookkeeping.
func splitPrism(p [6]int32) [3][4]int32 {
	var w [6]int32
	for _, perm := range prismPerms {
		if lo := p[perm[0]]; lo <= p[0] && lo <= p[1] && lo <= p[2] &&
			lo <= p[3] && lo <= p[4] && lo <= p[5] {
			for i, src := range perm {
				w[i] = p[src]
			}
			break
		}
	}
	if min(w[1], w[5]) < min(w[2], w[4]) {
		return [3][4]int32{
			{w[0], w[1], w[2], w[5]},
			{w[0], w[1], w[4], w[5]},
			{w[0], w[3], w[4], w[5]},
		}
	}
	return [3][4]int32{
		{w[0], w[1], w[2], w[4]},
		{w[0], w[2], w[4], w[5]},
		{w[0], w[3], w[4], w[5]},
	}
}
