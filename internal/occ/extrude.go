package occ

import (
	"fmt"

	"github.com/qdevlab/devicegen/internal/geom"
)

// Extrude sweeps the given planar surfaces along dz, producing one
// volume per input surface. Sublayers controls how many element
// layers the mesher places across the extrusion; it must be at least
// 1.
//
// The returned entities follow the OpenCASCADE extrusion convention:
// for each input surface, first the translated top copy, then the
// volume, then one side surface per boundary edge of the footprint
// (outer ring edges first, then hole ring edges). The input surface
// itself is kept and remains a boundary of the new volume.
func (m *Model) Extrude(surfaces []DimTag, dz float64, sublayers int) ([]DimTag, error) {
	if dz == 0 {
		return nil, fmt.Errorf("occ: extrusion height must be nonzero")
	}
	if sublayers < 1 {
		return nil, fmt.Errorf("occ: extrusion needs at least one sublayer, got %d", sublayers)
	}
	var out []DimTag
	for _, dt := range surfaces {
		if dt.Dim != 2 {
			return nil, fmt.Errorf("occ: cannot extrude dim-%d entity %d", dt.Dim, dt.Tag)
		}
		s, ok := m.surfaces[dt.Tag]
		if !ok {
			return nil, fmt.Errorf("occ: no surface with tag %d to extrude", dt.Tag)
		}

		z0, z1 := s.z, s.z+dz
		top := &planarSurface{
			tag:       m.nextSurf,
			region:    s.region.Clone(),
			z:         z1,
			footprint: s.footprint,
		}
		m.nextSurf++
		m.surfaces[top.tag] = top

		v := &volume{
			tag:       m.nextVol,
			footprint: s.footprint,
			region:    s.region.Clone(),
			sublayers: sublayers,
		}
		m.nextVol++
		if dz > 0 {
			v.zBot, v.zTop = z0, z1
			v.botTag, v.topTag = s.tag, top.tag
		} else {
			v.zBot, v.zTop = z1, z0
			v.botTag, v.topTag = top.tag, s.tag
		}
		m.volumes[v.tag] = v

		out = append(out, DimTag{2, top.tag}, DimTag{3, v.tag})
		rings := append([]geom.Polygon{s.region.Outer}, s.region.Holes...)
		for _, ring := range rings {
			for i := range ring {
				a, b := ring[i], ring[(i+1)%len(ring)]
				side := &sideSurface{
					tag:       m.nextSurf,
					a:         a,
					b:         b,
					z0:        min(z0, z1),
					z1:        max(z0, z1),
					footprint: s.footprint,
					volume:    v.tag,
				}
				m.nextSurf++
				m.sides[side.tag] = side
				v.sideTags = append(v.sideTags, side.tag)
				out = append(out, DimTag{2, side.tag})
			}
		}
	}
	return out, nil
}
