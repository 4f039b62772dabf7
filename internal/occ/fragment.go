package occ

import (
	"errors"
	"fmt"

	"github.com/qdevlab/devicegen/internal/geom"
)

// ErrUnsupportedOverlap is returned when two surfaces overlap in a
// configuration the kernel cannot fragment: partial overlap where
// neither operand is a hole-free axis-aligned rectangle, a rectangle
// overlap whose intersection is not rectilinear, or overlap that
// would slice through an existing hole.
var ErrUnsupportedOverlap = errors.New("occ: unsupported surface overlap")

// piece is one disjoint region of the fragmented arrangement together
// with the indices of the fragment inputs that cover it.
type piece struct {
	region  geom.Region
	origins map[int]bool
	srcTag  int // original surface tag, kept when the region is unchanged
}

// Fragment computes the conformal arrangement of the given planar
// surfaces: the result surfaces are pairwise disjoint and cover the
// union of the inputs. It mirrors gmsh's BooleanFragments for the
// layer-stack layouts devicegen builds: a surface contained in
// another becomes a hole of it, and a rectangle partially overlapping
// hole-free surfaces is split against them. The returned mapping has
// one entry per input (objects then tools) listing the result
// surfaces that cover it.
//
// Fragment replaces the input surface entities; it is only valid
// before any extrusion.
func (m *Model) Fragment(objects, tools []DimTag) ([]DimTag, [][]DimTag, error) {
	if len(m.volumes) > 0 {
		return nil, nil, fmt.Errorf("occ: cannot fragment after extrusion")
	}
	inputs := append(append([]DimTag{}, objects...), tools...)
	var pieces []*piece
	for idx, dt := range inputs {
		if dt.Dim != 2 {
			return nil, nil, fmt.Errorf("occ: cannot fragment dim-%d entity %d", dt.Dim, dt.Tag)
		}
		s, ok := m.surfaces[dt.Tag]
		if !ok {
			return nil, nil, fmt.Errorf("occ: no surface with tag %d", dt.Tag)
		}
		var err error
		pieces, err = insertInput(pieces, s.region, idx, s.tag)
		if err != nil {
			return nil, nil, err
		}
	}

	// Replace the input entities with the pieces. Pieces identical to
	// their source surface keep its tag.
	for _, dt := range inputs {
		m.removeSurface(dt.Tag)
	}
	out := make([]DimTag, len(pieces))
	mapping := make([][]DimTag, len(inputs))
	for i, p := range pieces {
		tag := p.srcTag
		if tag == 0 || m.surfaces[tag] != nil {
			tag = m.nextSurf
			m.nextSurf++
		}
		m.surfaces[tag] = &planarSurface{tag: tag, region: p.region, footprint: tag}
		out[i] = DimTag{2, tag}
		for idx := range p.origins {
			mapping[idx] = append(mapping[idx], DimTag{2, tag})
		}
	}
	return out, mapping, nil
}

func (m *Model) removeSurface(tag int) {
	delete(m.surfaces, tag)
	delete(m.colors, DimTag{2, tag})
	for _, g := range m.groups[2] {
		for i, e := range g.ents {
			if e == tag {
				g.ents = append(g.ents[:i], g.ents[i+1:]...)
				break
			}
		}
	}
}

// insertInput folds one input region into the disjoint piece set.
func insertInput(pieces []*piece, reg geom.Region, idx, srcTag int) ([]*piece, error) {
	parts := []geom.Region{reg.Clone()}
	untouched := true
	existing := len(pieces)

	for pi := 0; pi < existing; pi++ {
		p := pieces[pi]
		var next []geom.Region
		for _, part := range parts {
			switch classify(p.region, part) {
			case relDisjoint:
				next = append(next, part)

			case relAInB: // piece covered by the part
				p.origins[idx] = true
				carved, err := carveHole(part, p.region.Outer)
				if err != nil {
					return nil, err
				}
				next = append(next, carved)
				untouched = false

			case relBInA: // part covered by the piece
				carved, err := carveHole(p.region, part.Outer)
				if err != nil {
					return nil, err
				}
				p.region = carved
				p.srcTag = 0
				np := &piece{region: part, origins: map[int]bool{idx: true}}
				for o := range p.origins {
					np.origins[o] = true
				}
				pieces = append(pieces, np)
				untouched = false

			case relOverlap:
				split, kept, err := splitOverlap(p, part, idx)
				if err != nil {
					return nil, err
				}
				pieces = append(pieces, split...)
				next = append(next, kept...)
				untouched = false

			default:
				return nil, ErrUnsupportedOverlap
			}
		}
		parts = next
	}

	for _, part := range parts {
		np := &piece{region: part, origins: map[int]bool{idx: true}}
		if untouched && len(parts) == 1 {
			np.srcTag = srcTag
		}
		pieces = append(pieces, np)
	}
	return pieces, nil
}

const (
	relDisjoint = iota
	relAInB
	relBInA
	relOverlap
)

// classify relates two regions: disjoint, a inside b, b inside a, or
// partial overlap.
func classify(a, b geom.Region) int {
	if !a.BBox().Intersects(b.BBox()) {
		return relDisjoint
	}
	crossing := a.Outer.EdgesCross(b.Outer)
	if !crossing {
		if b.Outer.ContainsPolygon(a.Outer) {
			// a may sit inside a hole of b.
			if ip, ok := a.InteriorPoint(); ok && !b.Contains(ip) {
				return relDisjoint
			}
			return relAInB
		}
		if a.Outer.ContainsPolygon(b.Outer) {
			if ip, ok := b.InteriorPoint(); ok && !a.Contains(ip) {
				return relDisjoint
			}
			return relBInA
		}
		if !a.Outer.Overlaps(b.Outer) {
			return relDisjoint
		}
	}
	return relOverlap
}

// carveHole returns reg with the polygon hole removed from it. The
// hole must not cross existing holes.
func carveHole(reg geom.Region, hole geom.Polygon) (geom.Region, error) {
	out := reg.Clone()
	for _, h := range out.Holes {
		if h.EdgesCross(hole) {
			return geom.Region{}, fmt.Errorf("%w: hole intersects an existing hole", ErrUnsupportedOverlap)
		}
	}
	out.Holes = append(out.Holes, hole.Clone())
	return out, nil
}

// splitOverlap fragments a partial overlap between an existing piece
// and a part of the input being inserted. One operand must be a
// hole-free axis-aligned rectangle. It returns new pieces to append
// and the surviving parts of the input.
func splitOverlap(p *piece, part geom.Region, idx int) (newPieces []*piece, kept []geom.Region, err error) {
	switch {
	case part.Outer.IsAxisAlignedRect() && len(part.Holes) == 0:
		// The input part is a rectangle: split the piece against it.
		rect := part.Outer.BBox()
		inter, rest, err := splitRegionByRect(p.region, rect)
		if err != nil {
			return nil, nil, err
		}
		// The piece loses the rectangle overlap...
		first := true
		for _, r := range rest {
			if first {
				p.region = r
				p.srcTag = 0
				first = false
			} else {
				np := &piece{region: r, origins: map[int]bool{}}
				for o := range p.origins {
					np.origins[o] = true
				}
				newPieces = append(newPieces, np)
			}
		}
		// ...and the overlap becomes a shared piece.
		np := &piece{region: inter, origins: map[int]bool{idx: true}}
		for o := range p.origins {
			np.origins[o] = true
		}
		newPieces = append(newPieces, np)
		// The rest of the rectangle continues against other pieces.
		remainder, err := rectRemainder(part.Outer, inter.Outer)
		if err != nil {
			return nil, nil, err
		}
		return newPieces, remainder, nil

	case p.region.Outer.IsAxisAlignedRect() && len(p.region.Holes) == 0:
		// The existing piece is a rectangle: split the input part
		// against it. The overlap reaches the rectangle boundary, so
		// the rectangle's outer polygon is cut along it; a hole here
		// would touch the outer ring.
		rect := p.region.Outer.BBox()
		inter, rest, err := splitRegionByRect(part, rect)
		if err != nil {
			return nil, nil, err
		}
		remainder, err := rectRemainder(p.region.Outer, inter.Outer)
		if err != nil {
			return nil, nil, err
		}
		if len(remainder) == 0 {
			return nil, nil, fmt.Errorf("%w: overlap covers the whole rectangle", ErrUnsupportedOverlap)
		}
		origins := p.origins
		p.region = remainder[0]
		p.srcTag = 0
		for _, r := range remainder[1:] {
			np := &piece{region: r, origins: map[int]bool{}}
			for o := range origins {
				np.origins[o] = true
			}
			newPieces = append(newPieces, np)
		}
		np := &piece{region: inter, origins: map[int]bool{idx: true}}
		for o := range origins {
			np.origins[o] = true
		}
		newPieces = append(newPieces, np)
		return newPieces, rest, nil

	default:
		return nil, nil, fmt.Errorf("%w: partial overlap of two non-rectangular surfaces", ErrUnsupportedOverlap)
	}
}

// splitRegionByRect splits reg into the part inside rect and the
// parts outside it. Holes must lie entirely on one side.
func splitRegionByRect(reg geom.Region, rect geom.Rect) (inter geom.Region, rest []geom.Region, err error) {
	ip := geom.ClipRect(reg.Outer, rect)
	if ip == nil {
		return geom.Region{}, nil, fmt.Errorf("%w: degenerate rectangle overlap", ErrUnsupportedOverlap)
	}
	inter = geom.Region{Outer: ip}
	outside := geom.SubtractRect(reg.Outer, rect)
	restRegions := make([]geom.Region, len(outside))
	for i, o := range outside {
		restRegions[i] = geom.Region{Outer: o}
	}
	for _, h := range reg.Holes {
		placed := false
		if hp, ok := h.InteriorPoint(); ok {
			if inter.Outer.Contains(hp) && !inter.Outer.EdgesCross(h) {
				inter.Holes = append(inter.Holes, h.Clone())
				placed = true
			} else {
				for i := range restRegions {
					if restRegions[i].Outer.Contains(hp) && !restRegions[i].Outer.EdgesCross(h) {
						restRegions[i].Holes = append(restRegions[i].Holes, h.Clone())
						placed = true
						break
					}
				}
			}
		}
		if !placed {
			return geom.Region{}, nil, fmt.Errorf("%w: overlap slices through a hole", ErrUnsupportedOverlap)
		}
	}
	return inter, restRegions, nil
}

// rectRemainder returns the parts of rect not covered by taken, the
// overlap it was just split along. taken lies inside rect; it is
// decomposed into axis-aligned boxes that are subtracted in turn, so
// it must be rectilinear. Subtracting a box from a rectangle yields
// rectangles, so every intermediate remainder stays rectangular.
func rectRemainder(rect, taken geom.Polygon) ([]geom.Region, error) {
	if !taken.IsRectilinear() {
		return nil, fmt.Errorf("%w: non-rectilinear rectangle overlap", ErrUnsupportedOverlap)
	}
	rem := []geom.Polygon{rect.Clone()}
	for _, b := range taken.Boxes() {
		var next []geom.Polygon
		for _, p := range rem {
			next = append(next, geom.SubtractRect(p, b)...)
		}
		rem = next
	}
	out := make([]geom.Region, 0, len(rem))
	for _, p := range rem {
		out = append(out, geom.Region{Outer: p})
	}
	return out, nil
}
