package devicegen

import (
	"fmt"

	"github.com/qdevlab/devicegen/internal/occ"
)

// Color identifies a layer in geometry viewers.
type Color [3]uint8

// LayerSpec describes one layer of the heterostructure stack.
type LayerSpec struct {
	// Thickness of the layer, in layout units.
	Thickness float64

	// Sublayers is the number of element layers across the
	// thickness. Defaults to 10.
	Sublayers int

	// Label is the physical name of the layer volume. Empty picks a
	// generic volume<N> name.
	Label string

	// Material the layer is made of, with its doping densities in
	// cm^-3.
	Material string
	PDoping  float64
	NDoping  float64

	// DotRegion marks the volumes of this layer that sit under a dot
	// rectangle as part of the dot region. DotLabels names them, one
	// per dot; empty picks generic dot<i>-<N> names.
	DotRegion bool
	DotLabels []string

	// LabelSides gives each side surface created by the extrusion a
	// generic surf<N> name, so boundary conditions can be attached to
	// the stack's sidewalls.
	LabelSides bool

	// Color of the layer volumes in geometry viewers.
	Color *Color
}

func (s LayerSpec) sublayers() int {
	if s.Sublayers <= 0 {
		return 10
	}
	return s.Sublayers
}

// NewLayer grows the stack downward: the current bottom surfaces are
// extruded by the layer thickness and the new volumes are labeled
// and tracked.
func (g *Generator) NewLayer(spec LayerSpec) error {
	if spec.Thickness <= 0 {
		return fmt.Errorf("devicegen: layer thickness must be positive, got %g", spec.Thickness)
	}
	frontier := g.bottom
	extr, err := g.kernel.Extrude(frontier, -spec.Thickness, spec.sublayers())
	if err != nil {
		return fmt.Errorf("extruding layer: %w", err)
	}
	g.firstLayer = false

	if spec.LabelSides {
		g.labelSides(extr)
	}
	g.updateVolEntities(frontier, extr)
	g.bottom = trackSurface(extr)

	if err := g.updateDotVolumes(extr, spec); err != nil {
		return err
	}

	// The remaining volumes of the layer, outside any dot region,
	// share one physical name.
	inDot := make(map[int]bool)
	for _, dot := range g.dotVolumes {
		for _, layer := range dot {
			for _, v := range layer {
				inDot[v] = true
			}
		}
	}
	var vols, all []int
	for _, dt := range extr {
		if dt.Dim != 3 {
			continue
		}
		all = append(all, dt.Tag)
		if !inDot[dt.Tag] {
			vols = append(vols, dt.Tag)
		}
	}
	if spec.Color != nil {
		dts := make([]occ.DimTag, len(all))
		for i, v := range all {
			dts[i] = occ.DimTag{Dim: 3, Tag: v}
		}
		g.kernel.SetColor(dts, spec.Color[0], spec.Color[1], spec.Color[2])
	}

	label := spec.Label
	if label == "" {
		label = fmt.Sprintf("volume%d", g.layerCount)
	}
	pg := g.kernel.AddPhysicalGroup(3, vols)
	g.kernel.SetPhysicalName(3, pg, label)
	g.layerCount++

	g.storeMaterial(label, &Material{Name: spec.Material, PDoping: spec.PDoping, NDoping: spec.NDoping})
	g.logf("layer %q: %d volumes, %d in dot regions", label, len(vols), len(all)-len(vols))
	return nil
}

// TopLayerSpec describes a layer grown upward from the layout, such
// as a metallic top gate or an oxide above it.
type TopLayerSpec struct {
	LayerSpec

	// Surfaces names the layout surfaces to extrude upward. Empty
	// extrudes every layout surface that has not been claimed by a
	// boundary label.
	Surfaces []string

	// BndLabel names the top of the extruded layer. Defaults to
	// "top". Bnd records its boundary condition.
	BndLabel string
	Bnd      *Boundary
}

// NewTopLayer grows a layer upward from the layout surfaces and
// labels its upper boundary as a gate surface.
func (g *Generator) NewTopLayer(spec TopLayerSpec) error {
	if spec.Thickness <= 0 {
		return fmt.Errorf("devicegen: layer thickness must be positive, got %g", spec.Thickness)
	}
	surfs := g.top
	if len(spec.Surfaces) > 0 {
		tags, err := g.entTagsFromName(2, spec.Surfaces...)
		if err != nil {
			return err
		}
		surfs = make([]occ.DimTag, len(tags))
		for i, t := range tags {
			surfs[i] = occ.DimTag{Dim: 2, Tag: t}
		}
	}
	if len(surfs) == 0 {
		return fmt.Errorf("devicegen: no surfaces to extrude for top layer")
	}
	extr, err := g.kernel.Extrude(surfs, spec.Thickness, spec.sublayers())
	if err != nil {
		return fmt.Errorf("extruding top layer: %w", err)
	}

	var vols []int
	for _, dt := range extr {
		if dt.Dim == 3 {
			vols = append(vols, dt.Tag)
		}
	}
	label := spec.Label
	if label == "" {
		label = fmt.Sprintf("volume%d", g.layerCount)
		g.layerCount++
	}
	g.LabelVolume(vols, label, &Material{Name: spec.Material, PDoping: spec.PDoping, NDoping: spec.NDoping})

	bndLabel := spec.BndLabel
	if bndLabel == "" {
		bndLabel = "top"
	}
	var caps []int
	for _, dt := range trackSurface(extr) {
		caps = append(caps, dt.Tag)
	}
	g.LabelSurface(caps, bndLabel, spec.Bnd)

	if spec.Color != nil {
		dts := make([]occ.DimTag, len(vols))
		for i, v := range vols {
			dts[i] = occ.DimTag{Dim: 3, Tag: v}
		}
		g.kernel.SetColor(dts, spec.Color[0], spec.Color[1], spec.Color[2])
	}
	g.logf("top layer %q: %d volumes, boundary %q", label, len(vols), bndLabel)
	return nil
}

// NewCapLayer grows a cap upward from one named layout surface,
// without labeling its upper boundary. Used for metallic caps whose
// potential is set through the surface below.
func (g *Generator) NewCapLayer(surfaceName string, spec LayerSpec) error {
	if spec.Thickness <= 0 {
		return fmt.Errorf("devicegen: layer thickness must be positive, got %g", spec.Thickness)
	}
	tags, err := g.entTagsFromName(2, surfaceName)
	if err != nil {
		return err
	}
	surfs := make([]occ.DimTag, len(tags))
	for i, t := range tags {
		surfs[i] = occ.DimTag{Dim: 2, Tag: t}
	}
	extr, err := g.kernel.Extrude(surfs, spec.Thickness, spec.sublayers())
	if err != nil {
		return fmt.Errorf("extruding cap layer: %w", err)
	}

	var vols []int
	for _, dt := range extr {
		if dt.Dim == 3 {
			vols = append(vols, dt.Tag)
		}
	}
	label := spec.Label
	if label == "" {
		label = "cap_volume"
	}
	pg := g.kernel.AddPhysicalGroup(3, vols)
	g.kernel.SetPhysicalName(3, pg, label)
	g.storeMaterial(label, &Material{Name: spec.Material, PDoping: spec.PDoping, NDoping: spec.NDoping})
	g.logf("cap layer %q over %q: %d volumes", label, surfaceName, len(vols))
	return nil
}

// labelSides names every side surface of an extrusion surf<N>.
func (g *Generator) labelSides(extr []occ.DimTag) {
	var sides []occ.DimTag
	for i := 0; i < len(extr); i++ {
		if extr[i].Dim != 3 {
			continue
		}
		// Sides follow the volume until the next input's translated
		// copy, which immediately precedes the next volume.
		for j := i + 1; j < len(extr); j++ {
			if j+1 < len(extr) && extr[j+1].Dim == 3 {
				break
			}
			if extr[j].Dim == 2 {
				sides = append(sides, extr[j])
			}
		}
	}
	for _, s := range sides {
		name := fmt.Sprintf("surf%d", g.surfCount)
		pg := g.kernel.AddPhysicalGroup(2, []int{s.Tag})
		g.kernel.SetPhysicalName(2, pg, name)
		g.surfCount++
	}
}

// trackSurface extracts the translated surface copies from an
// extrusion result: each immediately precedes its volume.
func trackSurface(extr []occ.DimTag) []occ.DimTag {
	var out []occ.DimTag
	for i, dt := range extr {
		if dt.Dim == 3 && i > 0 {
			out = append(out, extr[i-1])
		}
	}
	return out
}

// updateVolEntities extends the per-name tracking with the volumes
// and bottom surfaces the extrusion created under each name.
func (g *Generator) updateVolEntities(frontier, extr []occ.DimTag) {
	var vols []occ.DimTag
	for _, dt := range extr {
		if dt.Dim == 3 {
			vols = append(vols, dt)
		}
	}
	for key, lists := range g.volEnts {
		surfs := lists[len(lists)-1]
		var volList []occ.DimTag
		for _, s := range surfs {
			if id := indexOf(frontier, s); id >= 0 && id < len(vols) {
				volList = append(volList, vols[id])
			}
		}
		var newSurfs []occ.DimTag
		for _, v := range volList {
			if id := indexOf(extr, v); id > 0 {
				newSurfs = append(newSurfs, extr[id-1])
			}
		}
		g.volEnts[key] = append(lists, volList, newSurfs)
	}
}

// updateDotVolumes records the dot-region volumes of a new layer and
// labels them.
func (g *Generator) updateDotVolumes(extr []occ.DimTag, spec LayerSpec) error {
	for i := range g.dotTags {
		below := g.dotTags[i][len(g.dotTags[i])-1]

		// A volume is part of dot i when one of the dot's frontier
		// surfaces bounds it.
		var volIdx []int
		for vi, dt := range extr {
			if dt.Dim != 3 {
				continue
			}
			bnd, err := g.kernel.Boundary(dt)
			if err != nil {
				return err
			}
			matched := false
			for _, b := range bnd {
				for _, t := range below {
					if b.Dim == 2 && b.Tag == t {
						matched = true
					}
				}
			}
			if matched {
				volIdx = append(volIdx, vi)
			}
		}

		next := make([]int, 0, len(volIdx))
		for _, ix := range volIdx {
			next = append(next, extr[ix-1].Tag)
		}
		g.dotTags[i] = append(g.dotTags[i], next)

		if !spec.DotRegion {
			continue
		}
		vols := make([]int, 0, len(volIdx))
		for _, ix := range volIdx {
			vols = append(vols, extr[ix].Tag)
		}
		g.dotVolumes[i] = append(g.dotVolumes[i], vols)

		label := fmt.Sprintf("dot%d-%d", i, g.layerCount)
		if i < len(spec.DotLabels) && spec.DotLabels[i] != "" {
			label = spec.DotLabels[i]
		}
		pg := g.kernel.AddPhysicalGroup(3, vols)
		g.kernel.SetPhysicalName(3, pg, label)
		g.storeMaterial(label, &Material{Name: spec.Material, PDoping: spec.PDoping, NDoping: spec.NDoping})
	}
	return nil
}

func indexOf(list []occ.DimTag, dt occ.DimTag) int {
	for i, e := range list {
		if e == dt {
			return i
		}
	}
	return -1
}
