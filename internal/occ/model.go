// Package occ is the geometry-construction and mesh-export boundary
// of devicegen. It keeps an in-memory model of the planar-extrusion
// geometries a layered device is built from: 2-D surfaces fragmented
// into a conformal arrangement, prism volumes stacked by extrusion,
// and physical groups naming both. It is not a general CAD kernel;
// it supports exactly the operations the device generator performs.
package occ

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qdevlab/devicegen/internal/geom"
	"github.com/qdevlab/devicegen/internal/mesh"
)

// DimTag identifies a geometric entity by dimension (2 or 3) and tag.
type DimTag struct {
	Dim int
	Tag int
}

// Kernel is the construction interface the device generator drives.
// Model implements it; tests may substitute their own.
type Kernel interface {
	AddSurface(reg geom.Region) int
	AddRectangle(x, y, dx, dy float64) int
	Entities(dim int) []DimTag
	Fragment(objects, tools []DimTag) ([]DimTag, [][]DimTag, error)
	Extrude(surfaces []DimTag, dz float64, sublayers int) ([]DimTag, error)
	Boundary(dt DimTag) ([]DimTag, error)

	AddPhysicalGroup(dim int, entTags []int) int
	SetPhysicalName(dim, physTag int, name string)
	PhysicalName(dim, physTag int) string
	PhysicalGroups(dim int) []DimTag
	PhysicalGroupsForEntity(dim, entTag int) []int
	EntitiesForPhysicalGroup(dim, physTag int) []int
	RemovePhysicalGroups(dimTags []DimTag)
	RemovePhysicalName(name string)

	SetColor(dimTags []DimTag, r, g, b uint8)

	SetMeshSizeMax(h float64)
	AddBoxField(vin, vout, xMin, xMax, yMin, yMax, zMin, zMax float64) int
	AddConstantField(vin, vout float64, surfaces []int) (int, error)
	SetBackgroundField(tag int) error
	SetMinBackground() int

	Mesh(dim, order int) (*mesh.Mesh, error)
	WriteGeo(w io.Writer) error
}

// planarSurface is a horizontal surface at height z. footprint is the
// tag of the z=0 arrangement piece it copies; for the arrangement
// pieces themselves footprint equals the own tag.
type planarSurface struct {
	tag       int
	region    geom.Region
	z         float64
	footprint int
}

// sideSurface is a vertical surface swept from a footprint edge by an
// extrusion.
type sideSurface struct {
	tag       int
	a, b      r2.Vec
	z0, z1    float64 // z0 < z1
	footprint int
	volume    int // owning volume tag
}

// volume is a prism: a footprint extruded from zBot to zTop with a
// fixed number of mesh sublayers.
type volume struct {
	tag       int
	footprint int
	region    geom.Region
	zTop      float64
	zBot      float64
	sublayers int
	topTag    int
	botTag    int
	sideTags  []int
}

type physGroup struct {
	tag  int
	dim  int
	name string
	ents []int
}

// Model is the in-memory kernel state.
type Model struct {
	nextSurf  int
	nextVol   int
	nextField int
	nextPhys  map[int]int

	surfaces map[int]*planarSurface
	sides    map[int]*sideSurface
	volumes  map[int]*volume

	groups map[int]map[int]*physGroup // dim -> phys tag

	colors map[DimTag][3]uint8

	meshSizeMax   float64
	fields        []*field
	background    int
	backgroundMin bool
}

var _ Kernel = (*Model)(nil)

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		nextSurf:  1,
		nextVol:   1,
		nextField: 1,
		nextPhys:  map[int]int{2: 1, 3: 1},
		surfaces: make(map[int]*planarSurface),
		sides:    make(map[int]*sideSurface),
		volumes:  make(map[int]*volume),
		groups:   map[int]map[int]*physGroup{2: {}, 3: {}},
		colors:   make(map[DimTag][3]uint8),
	}
}

// AddSurface adds a planar surface at z=0 and returns its tag.
func (m *Model) AddSurface(reg geom.Region) int {
	tag := m.nextSurf
	m.nextSurf++
	m.surfaces[tag] = &planarSurface{tag: tag, region: reg.Clone(), footprint: tag}
	return tag
}

// AddRectangle adds an axis-aligned rectangular surface at z=0.
func (m *Model) AddRectangle(x, y, dx, dy float64) int {
	return m.AddSurface(geom.Region{Outer: geom.Rectangle(x, y, dx, dy)})
}

// Entities returns all entities of the given dimension, sorted by tag.
func (m *Model) Entities(dim int) []DimTag {
	var out []DimTag
	switch dim {
	case 2:
		for tag := range m.surfaces {
			out = append(out, DimTag{2, tag})
		}
		for tag := range m.sides {
			out = append(out, DimTag{2, tag})
		}
	case 3:
		for tag := range m.volumes {
			out = append(out, DimTag{3, tag})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Boundary returns the bounding surfaces of a volume: the surface it
// was extruded from, the translated copy, and the swept sides.
func (m *Model) Boundary(dt DimTag) ([]DimTag, error) {
	if dt.Dim != 3 {
		return nil, fmt.Errorf("occ: boundary of dim-%d entities not supported", dt.Dim)
	}
	v, ok := m.volumes[dt.Tag]
	if !ok {
		return nil, fmt.Errorf("occ: no volume with tag %d", dt.Tag)
	}
	out := []DimTag{{2, v.topTag}, {2, v.botTag}}
	for _, s := range v.sideTags {
		out = append(out, DimTag{2, s})
	}
	return out, nil
}

// AddPhysicalGroup creates a physical group over the given entity
// tags and returns the group tag.
func (m *Model) AddPhysicalGroup(dim int, entTags []int) int {
	tag := m.nextPhys[dim]
	m.nextPhys[dim]++
	g := &physGroup{tag: tag, dim: dim, ents: append([]int(nil), entTags...)}
	m.groups[dim][tag] = g
	return tag
}

// SetPhysicalName names a physical group.
func (m *Model) SetPhysicalName(dim, physTag int, name string) {
	if g, ok := m.groups[dim][physTag]; ok {
		g.name = name
	}
}

// PhysicalName returns the name of a physical group, or "".
func (m *Model) PhysicalName(dim, physTag int) string {
	if g, ok := m.groups[dim][physTag]; ok {
		return g.name
	}
	return ""
}

// PhysicalGroups returns the physical groups of the given dimension
// sorted by tag. dim < 0 returns all dimensions.
func (m *Model) PhysicalGroups(dim int) []DimTag {
	var out []DimTag
	for d, byTag := range m.groups {
		if dim >= 0 && d != dim {
			continue
		}
		for tag := range byTag {
			out = append(out, DimTag{d, tag})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dim != out[j].Dim {
			return out[i].Dim < out[j].Dim
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// PhysicalGroupsForEntity returns the tags of groups containing the
// entity.
func (m *Model) PhysicalGroupsForEntity(dim, entTag int) []int {
	var out []int
	for tag, g := range m.groups[dim] {
		for _, e := range g.ents {
			if e == entTag {
				out = append(out, tag)
				break
			}
		}
	}
	sort.Ints(out)
	return out
}

// EntitiesForPhysicalGroup returns the entity tags in a group.
func (m *Model) EntitiesForPhysicalGroup(dim, physTag int) []int {
	g, ok := m.groups[dim][physTag]
	if !ok {
		return nil
	}
	return append([]int(nil), g.ents...)
}

// RemovePhysicalGroups removes the listed groups. An empty list
// removes every group of every dimension.
func (m *Model) RemovePhysicalGroups(dimTags []DimTag) {
	if len(dimTags) == 0 {
		m.groups = map[int]map[int]*physGroup{2: {}, 3: {}}
		return
	}
	for _, dt := range dimTags {
		delete(m.groups[dt.Dim], dt.Tag)
	}
}

// RemovePhysicalName clears the name from any group carrying it.
func (m *Model) RemovePhysicalName(name string) {
	for _, byTag := range m.groups {
		for _, g := range byTag {
			if g.name == name {
				g.name = ""
			}
		}
	}
}

// SetColor records a display color for the entities.
func (m *Model) SetColor(dimTags []DimTag, r, g, b uint8) {
	for _, dt := range dimTags {
		m.colors[dt] = [3]uint8{r, g, b}
	}
}
