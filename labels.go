package devicegen

import (
	"errors"
	"fmt"

	"github.com/qdevlab/devicegen/internal/occ"
)

// LabelSurface names the given surface entities. Entities already in
// another group are taken from it; the remainder of that group keeps
// its old name. bnd, when non-nil, records the boundary condition to
// enforce on the named surface.
func (g *Generator) LabelSurface(entTags []int, name string, bnd *Boundary) int {
	pg := g.labelEntity(2, entTags, name)
	g.storeBoundary(name, bnd)
	return pg
}

// LabelVolume names the given volume entities and records the
// material they are made of.
func (g *Generator) LabelVolume(entTags []int, name string, mat *Material) int {
	pg := g.labelEntity(3, entTags, name)
	g.storeMaterial(name, mat)
	return pg
}

// labelEntity moves the given entities into a physical group with the
// given name. Each entity is first removed from whatever group holds
// it; groups left non-empty are re-created under their old name.
func (g *Generator) labelEntity(dim int, entTags []int, name string) int {
	for _, tag := range entTags {
		physTags := g.kernel.PhysicalGroupsForEntity(dim, tag)
		if len(physTags) == 0 {
			continue
		}
		pt := physTags[0]
		ents := g.kernel.EntitiesForPhysicalGroup(dim, pt)
		old := g.kernel.PhysicalName(dim, pt)
		g.kernel.RemovePhysicalGroups([]occ.DimTag{{Dim: dim, Tag: pt}})
		g.kernel.RemovePhysicalName(old)

		var rest []int
		for _, e := range ents {
			if e != tag {
				rest = append(rest, e)
			}
		}
		if old != name && len(rest) > 0 {
			pg := g.kernel.AddPhysicalGroup(dim, rest)
			g.kernel.SetPhysicalName(dim, pg, old)
		}
	}
	pg := g.kernel.AddPhysicalGroup(dim, entTags)
	g.kernel.SetPhysicalName(dim, pg, name)
	return pg
}

// LabelBottom names the bottom surface of the device, optionally
// recording a boundary condition for it. It fails while only the 2-D
// layout exists, since the layout is the top of the device, not its
// bottom.
func (g *Generator) LabelBottom(name string, bnd *Boundary) error {
	if g.firstLayer {
		return errors.New("devicegen: no bottom surface before a layer is extruded")
	}
	tags := make([]int, len(g.bottom))
	for i, dt := range g.bottom {
		tags[i] = dt.Tag
	}
	pg := g.kernel.AddPhysicalGroup(2, tags)
	g.kernel.SetPhysicalName(2, pg, name)
	g.storeBoundary(name, bnd)
	return nil
}

// RelabelSurface groups the surfaces currently named by oldLabels
// under newLabel. Passing several old labels merges them. An empty
// newLabel removes the labels instead. bnd, when non-nil, records the
// boundary condition for the new label.
func (g *Generator) RelabelSurface(oldLabels []string, newLabel string, bnd *Boundary) ([]int, error) {
	if newLabel == "" {
		return nil, g.RemoveSurfaceLabels(oldLabels...)
	}
	var physTags []int
	for _, old := range oldLabels {
		pt, err := g.tagFromName(2, old)
		if err != nil {
			return nil, err
		}
		physTags = append(physTags, pt)
	}
	entTags, err := g.entTagsFromName(2, oldLabels...)
	if err != nil {
		return nil, err
	}

	for _, pt := range physTags {
		g.kernel.RemovePhysicalGroups([]occ.DimTag{{Dim: 2, Tag: pt}})
	}
	pg := g.kernel.AddPhysicalGroup(2, entTags)
	g.kernel.SetPhysicalName(2, pg, newLabel)
	g.storeBoundary(newLabel, bnd)

	// The relabeled surfaces are spoken for: a later top layer will
	// not extrude them.
	for _, tag := range entTags {
		for i, dt := range g.top {
			if dt.Tag == tag {
				g.top = append(g.top[:i], g.top[i+1:]...)
				break
			}
		}
	}

	g.renameTracked(oldLabels, newLabel, entTags)
	return entTags, nil
}

// RemoveSurfaceLabels drops the named physical surfaces from the
// model. The underlying entities stay and will not contribute
// elements to the mesh.
func (g *Generator) RemoveSurfaceLabels(labels ...string) error {
	for _, l := range labels {
		pt, err := g.tagFromName(2, l)
		if err != nil {
			return err
		}
		g.kernel.RemovePhysicalName(l)
		g.kernel.RemovePhysicalGroups([]occ.DimTag{{Dim: 2, Tag: pt}})
		delete(g.volEnts, l)
		delete(g.volEntsTop, l)
	}
	return nil
}

// renameTracked folds the per-name entity tracking of oldLabels into
// newLabel.
func (g *Generator) renameTracked(oldLabels []string, newLabel string, entTags []int) {
	for _, l := range oldLabels {
		g.kernel.RemovePhysicalName(l)
		delete(g.volEnts, l)
		delete(g.volEntsTop, l)
	}
	surfs := make([]occ.DimTag, len(entTags))
	for i, t := range entTags {
		surfs[i] = occ.DimTag{Dim: 2, Tag: t}
	}
	g.volEnts[newLabel] = [][]occ.DimTag{surfs}
	g.volEntsTop[newLabel] = [][]occ.DimTag{surfs}
}

// SplitSurface splits a physical surface with several entities into
// one physical surface per entity, named <name>-0, <name>-1, ...
func (g *Generator) SplitSurface(name string) error {
	ents, err := g.entTagsFromName(2, name)
	if err != nil {
		return err
	}
	if len(ents) <= 1 {
		return nil
	}
	pt, err := g.tagFromName(2, name)
	if err != nil {
		return err
	}
	g.kernel.RemovePhysicalGroups([]occ.DimTag{{Dim: 2, Tag: pt}})
	g.kernel.RemovePhysicalName(name)

	for i, ent := range ents {
		pg := g.kernel.AddPhysicalGroup(2, []int{ent})
		sub := fmt.Sprintf("%s-%d", name, i)
		g.kernel.SetPhysicalName(2, pg, sub)
		g.volEnts[sub] = [][]occ.DimTag{{{Dim: 2, Tag: ent}}}
		g.volEntsTop[sub] = [][]occ.DimTag{{{Dim: 2, Tag: ent}}}
	}
	delete(g.volEnts, name)
	delete(g.volEntsTop, name)
	return nil
}
