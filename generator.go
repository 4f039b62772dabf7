// Package devicegen builds labeled 3-D finite element meshes of
// layered semiconductor devices from a 2-D gate layout and a
// description of the vertical heterostructure stack.
//
// A Generator is loaded from a GDS-ASCII or .geo layout, the layout
// surfaces are relabeled with meaningful names, and the stack is
// built top-down by extruding layers. Physical names attached along
// the way survive into the exported mesh, together with material and
// boundary condition metadata.
package devicegen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qdevlab/devicegen/internal/gds"
	"github.com/qdevlab/devicegen/internal/geoscript"
	"github.com/qdevlab/devicegen/internal/mesh"
	"github.com/qdevlab/devicegen/internal/monitoring"
	"github.com/qdevlab/devicegen/internal/occ"
)

// Options configure a Generator.
type Options struct {
	// GeoOutfile is where the .geo translation of a GDS layout is
	// written. Defaults to "parsed.geo" next to the input.
	GeoOutfile string

	// MeshSizeMax is the maximal in-plane characteristic length of
	// the mesh, in layout units. Defaults to 10.
	MeshSizeMax float64

	// Verbose enables progress logging.
	Verbose bool
}

// Generator drives the construction of one device: it owns the
// geometry kernel and the bookkeeping that relates physical names to
// the surfaces and volumes of the growing stack.
type Generator struct {
	kernel occ.Kernel
	h      float64

	verbose bool

	// firstLayer is true until the first extrusion: only the 2-D
	// layout exists.
	firstLayer bool

	// bottom is the current extrusion frontier; top holds the layout
	// surfaces that have not been claimed by a boundary label yet.
	bottom []occ.DimTag
	top    []occ.DimTag

	layerCount int
	surfCount  int
	dotCount   int

	// volEnts tracks, per physical surface name of the layout, the
	// alternating lists of surfaces and volumes generated under it:
	// [s0, v1, s1, v2, s2, ...].
	volEnts    map[string][][]occ.DimTag
	volEntsTop map[string][][]occ.DimTag

	// dotTags[i] lists, per layer, the frontier surface tags of dot
	// region i; dotVolumes[i] the volume tags marked as part of it.
	dotTags    [][][]int
	dotVolumes [][][]int

	materials  map[string]Material
	boundaries map[string]Boundary
}

// New loads a 2-D layout and prepares the top layer of the device.
// path may point to a GDS-ASCII file (.gds or .txt), which is first
// translated to a .geo file, or directly to a .geo / .geo_unrolled
// file.
func New(path string, opts *Options) (*Generator, error) {
	o := Options{GeoOutfile: "parsed.geo", MeshSizeMax: 10}
	if opts != nil {
		if opts.GeoOutfile != "" {
			o.GeoOutfile = opts.GeoOutfile
		}
		if opts.MeshSizeMax > 0 {
			o.MeshSizeMax = opts.MeshSizeMax
		}
		o.Verbose = opts.Verbose
	}

	geoPath := path
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gds", ".txt":
		layout, err := gds.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading layout: %w", err)
		}
		f, err := os.Create(o.GeoOutfile)
		if err != nil {
			return nil, err
		}
		if err := geoscript.Write(f, layout.Layers, o.MeshSizeMax); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing %s: %w", o.GeoOutfile, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		geoPath = o.GeoOutfile
	case ".geo", ".geo_unrolled":
	default:
		return nil, fmt.Errorf("devicegen: unsupported layout file %q", path)
	}

	model, err := geoscript.ParseFile(geoPath)
	if err != nil {
		return nil, fmt.Errorf("loading geometry: %w", err)
	}
	if len(model.Surfaces) == 0 {
		return nil, fmt.Errorf("devicegen: %s contains no surfaces", geoPath)
	}

	kernel := occ.NewModel()
	for _, s := range model.Surfaces {
		kernel.AddSurface(s.Region)
	}
	kernel.SetMeshSizeMax(o.MeshSizeMax)

	g := &Generator{
		kernel:     kernel,
		h:          o.MeshSizeMax,
		verbose:    o.Verbose,
		firstLayer: true,
		layerCount: 1,
		surfCount:  1,
		dotCount:   1,
		materials:  make(map[string]Material),
		boundaries: make(map[string]Boundary),
	}
	if err := g.setupTopLayer(); err != nil {
		return nil, err
	}
	g.logf("loaded %s: %d surfaces", path, len(model.Surfaces))
	return g, nil
}

// Kernel exposes the underlying geometry kernel, mainly for tests
// and for tools that inspect the model directly.
func (g *Generator) Kernel() occ.Kernel { return g.kernel }

func (g *Generator) logf(format string, args ...any) {
	if g.verbose {
		monitoring.Logf(format, args...)
	}
}

// setupTopLayer fragments the layout surfaces into a conformal
// arrangement and gives every piece a generic name: surf1, surf2, ...
// It may be rerun as long as no layer has been extruded.
func (g *Generator) setupTopLayer() error {
	if !g.firstLayer {
		return errors.New("devicegen: top layer can only be set up before layers are added")
	}

	g.kernel.RemovePhysicalGroups(nil)
	g.surfCount = 1

	ents := g.kernel.Entities(2)
	mapping := [][]occ.DimTag{ents}
	if len(ents) > 1 {
		var err error
		_, mapping, err = g.kernel.Fragment(ents[:1], ents[1:])
		if err != nil {
			return fmt.Errorf("fragmenting layout: %w", err)
		}
	}
	g.updateDotFrag(ents, mapping)

	g.bottom = g.kernel.Entities(2)
	g.top = append([]occ.DimTag(nil), g.bottom...)
	g.labelSurfaces()
	return nil
}

// labelSurfaces names every layout surface surf<N> and seeds the
// per-name entity tracking.
func (g *Generator) labelSurfaces() {
	g.volEnts = make(map[string][][]occ.DimTag)
	g.volEntsTop = make(map[string][][]occ.DimTag)
	for _, e := range g.kernel.Entities(2) {
		name := fmt.Sprintf("surf%d", g.surfCount)
		pg := g.kernel.AddPhysicalGroup(2, []int{e.Tag})
		g.kernel.SetPhysicalName(2, pg, name)
		g.volEnts[name] = [][]occ.DimTag{{e}}
		g.volEntsTop[name] = [][]occ.DimTag{{e}}
		g.surfCount++
	}
}

// updateDotFrag remaps dot region surfaces through a fragmentation.
// before lists the surfaces passed to Fragment, mapping the pieces
// each of them became.
func (g *Generator) updateDotFrag(before []occ.DimTag, mapping [][]occ.DimTag) {
	for j, dot := range g.dotTags {
		if len(dot) == 0 {
			continue
		}
		tags := dot[0]
		var out []int
		for i, s := range before {
			for _, t := range tags {
				if s.Tag == t && i < len(mapping) {
					for _, dt := range mapping[i] {
						out = append(out, dt.Tag)
					}
				}
			}
		}
		g.dotTags[j] = [][]int{out}
	}
}

// NewDotRectangle marks a rectangle of the layout where an electron
// or hole is expected to localize. h, when positive, refines the mesh
// inside the rectangle. The top layer is re-fragmented, so dot
// rectangles must be added before surfaces are relabeled. Returns the
// tag of the created surface.
func (g *Generator) NewDotRectangle(x, y, dx, dy, h float64) (int, error) {
	if !g.firstLayer {
		return 0, errors.New("devicegen: dot rectangles must be added before layers")
	}
	tag := g.kernel.AddRectangle(x, y, dx, dy)
	if h > 0 {
		g.NewBoxField(x, x+dx, y, y+dy, h, 0)
	}
	g.dotTags = append(g.dotTags, [][]int{{tag}})
	g.dotVolumes = append(g.dotVolumes, nil)
	if err := g.setupTopLayer(); err != nil {
		return 0, err
	}
	g.dotCount++
	return tag, nil
}

// SetDotRegionFromSurfaces declares the named physical surfaces as
// dot regions. h, when positive, refines the mesh under them. Like
// NewDotRectangle this re-fragments the top layer, resetting surface
// names to their generic form.
func (g *Generator) SetDotRegionFromSurfaces(names []string, h float64) error {
	if !g.firstLayer {
		return errors.New("devicegen: dot regions must be set before layers")
	}
	g.dotTags = nil
	var ents []int
	for _, name := range names {
		tags, err := g.entTagsFromName(2, name)
		if err != nil {
			return err
		}
		for _, t := range tags {
			g.dotTags = append(g.dotTags, [][]int{{t}})
			ents = append(ents, t)
		}
	}
	if h > 0 {
		if err := g.NewConstantField(ents, h, 0); err != nil {
			return err
		}
	}
	g.dotCount = len(names)
	g.dotVolumes = make([][][]int, len(g.dotTags))
	return g.setupTopLayer()
}

// Names returns the physical names of the given dimension in tag
// order.
func (g *Generator) Names(dim int) []string {
	var out []string
	for _, dt := range g.kernel.PhysicalGroups(dim) {
		out = append(out, g.kernel.PhysicalName(dim, dt.Tag))
	}
	return out
}

// tagFromName returns the physical group tag carrying a name.
func (g *Generator) tagFromName(dim int, name string) (int, error) {
	for _, dt := range g.kernel.PhysicalGroups(dim) {
		if g.kernel.PhysicalName(dim, dt.Tag) == name {
			return dt.Tag, nil
		}
	}
	return 0, fmt.Errorf("devicegen: no physical name %q", name)
}

// entTagsFromName returns the entity tags grouped under a physical
// name.
func (g *Generator) entTagsFromName(dim int, names ...string) ([]int, error) {
	var out []int
	for _, name := range names {
		pt, err := g.tagFromName(dim, name)
		if err != nil {
			return nil, err
		}
		out = append(out, g.kernel.EntitiesForPhysicalGroup(dim, pt)...)
	}
	return out, nil
}

// GetSurfaces returns the entity tags of the surfaces generated under
// the named layout surface. layer 0 is the layout surface itself,
// layer n the bottom of the n-th extruded layer. A negative layer
// returns the surfaces of every layer.
func (g *Generator) GetSurfaces(name string, layer int) ([]int, error) {
	ents, ok := g.volEnts[name]
	if !ok {
		return nil, fmt.Errorf("devicegen: no tracked surface %q", name)
	}
	var lists [][]occ.DimTag
	for i := 0; i < len(ents); i += 2 {
		lists = append(lists, ents[i])
	}
	return pickLayer(lists, layer)
}

// GetVolumes returns the entity tags of the volumes generated under
// the named layout surface. layer 0 is the first extruded layer. A
// negative layer returns the volumes of every layer.
func (g *Generator) GetVolumes(name string, layer int) ([]int, error) {
	ents, ok := g.volEnts[name]
	if !ok {
		return nil, fmt.Errorf("devicegen: no tracked surface %q", name)
	}
	var lists [][]occ.DimTag
	for i := 1; i < len(ents); i += 2 {
		lists = append(lists, ents[i])
	}
	return pickLayer(lists, layer)
}

func pickLayer(lists [][]occ.DimTag, layer int) ([]int, error) {
	if layer >= 0 {
		if layer >= len(lists) {
			return nil, fmt.Errorf("devicegen: no layer %d (have %d)", layer, len(lists))
		}
		lists = lists[layer : layer+1]
	}
	var out []int
	for _, l := range lists {
		for _, dt := range l {
			out = append(out, dt.Tag)
		}
	}
	return out, nil
}

// NewBoxField refines the mesh to characteristic length vIn inside
// the given in-plane box, at every height. vOut bounds the size
// outside the box; vOut <= 0 leaves the outside unconstrained. The
// field becomes the background field; call MinField to combine
// several fields.
func (g *Generator) NewBoxField(xMin, xMax, yMin, yMax, vIn, vOut float64) int {
	if vOut <= 0 {
		vOut = unbounded
	}
	tag := g.kernel.AddBoxField(vIn, vOut, xMin, xMax, yMin, yMax, -unbounded, unbounded)
	g.kernel.SetBackgroundField(tag)
	return tag
}

// NewConstantField refines the mesh to characteristic length vIn in
// the columns above and below the given surface entities. vOut <= 0
// leaves the outside unconstrained.
func (g *Generator) NewConstantField(surfTags []int, vIn, vOut float64) error {
	if vOut <= 0 {
		vOut = unbounded
	}
	tag, err := g.kernel.AddConstantField(vIn, vOut, surfTags)
	if err != nil {
		return err
	}
	return g.kernel.SetBackgroundField(tag)
}

// MinField drives mesh sizing by the pointwise minimum of every field
// defined so far.
func (g *Generator) MinField() {
	g.kernel.SetMinBackground()
}

const unbounded = 1e22

// SaveMesh meshes the device and writes it to path. dim selects the
// mesh dimension (2 or 3), order the element order (1 or 2). The
// format follows the extension: .msh or .msh2 for MSH 2.2, .vtk for
// legacy VTK.
func (g *Generator) SaveMesh(path string, dim, order int) error {
	if order != 1 && order != 2 {
		return fmt.Errorf("devicegen: mesh order must be 1 or 2, got %d", order)
	}
	m, err := g.kernel.Mesh(dim, order)
	if err != nil {
		return err
	}
	g.logf("meshed device: %d nodes, %d triangles, %d tetrahedra",
		len(m.Nodes), len(m.Triangles), len(m.Tetrahedra))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtk":
		return mesh.WriteVTKFile(path, m)
	default:
		return mesh.WriteMSH2File(path, m)
	}
}

// SaveGeo writes the unrolled geometry to path.
func (g *Generator) SaveGeo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.kernel.WriteGeo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
