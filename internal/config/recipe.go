// Package config loads build recipes: JSON files describing how to
// turn a 2-D layout into a labeled 3-D device mesh. A recipe names
// the layout file, the vertical layer stack, the dot regions and
// refinement fields, the surface relabels, and the output files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Recipe is the root build configuration. All scalar fields are
// pointers so a partial JSON file only overrides what it names; the
// Get* methods supply defaults for the rest.
type Recipe struct {
	// Layout is the input file: GDS-ASCII (.txt/.gds) or Gmsh .geo.
	Layout string `json:"layout"`

	GeoOutfile  *string  `json:"geo_outfile,omitempty"`
	MeshSizeMax *float64 `json:"mesh_size_max,omitempty"`
	Verbose     *bool    `json:"verbose,omitempty"`

	// DotRectangles are added to the top surface before any layer is
	// extruded.
	DotRectangles []DotRectangle `json:"dot_rectangles,omitempty"`

	// DotSurfaces marks already-parsed surfaces as the dot region.
	DotSurfaces *DotSurfaces `json:"dot_surfaces,omitempty"`

	// Layers is the vertical stack, top of the heterostructure first
	// for downward layers; kind "top" and "cap" extrude upward.
	Layers []Layer `json:"layers"`

	Relabels      []Relabel `json:"relabels,omitempty"`
	SplitSurfaces []string  `json:"split_surfaces,omitempty"`
	Bottom        *Label    `json:"bottom,omitempty"`

	Output Output `json:"output"`
}

// DotRectangle is an axis-aligned dot rectangle with an optional box
// refinement field size.
type DotRectangle struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	DX       float64  `json:"dx"`
	DY       float64  `json:"dy"`
	MeshSize *float64 `json:"mesh_size,omitempty"`
}

// DotSurfaces names layout surfaces forming the dot region.
type DotSurfaces struct {
	Surfaces []string `json:"surfaces"`
	MeshSize *float64 `json:"mesh_size,omitempty"`
}

// Layer is one entry of the vertical stack.
type Layer struct {
	// Kind is "stack" (downward extrusion, the default), "top"
	// (upward from the current top), or "cap" (upward from one named
	// surface).
	Kind *string `json:"kind,omitempty"`

	Thickness float64  `json:"thickness"`
	Sublayers *int     `json:"sublayers,omitempty"`
	Label     *string  `json:"label,omitempty"`
	Material  *string  `json:"material,omitempty"`
	PDoping   *float64 `json:"p_doping,omitempty"`
	NDoping   *float64 `json:"n_doping,omitempty"`

	DotRegion  *bool     `json:"dot_region,omitempty"`
	DotLabels  []string  `json:"dot_labels,omitempty"`
	LabelSides *bool     `json:"label_sides,omitempty"`
	Color      *[3]uint8 `json:"color,omitempty"`

	// Surfaces restricts a "top" layer to named surfaces; Surface
	// names the seed of a "cap" layer.
	Surfaces []string `json:"surfaces,omitempty"`
	Surface  *string  `json:"surface,omitempty"`

	BndLabel *string   `json:"bnd_label,omitempty"`
	Bnd      *Boundary `json:"bnd,omitempty"`
}

// Relabel merges one or more surface groups under a new name, with an
// optional boundary condition.
type Relabel struct {
	Old []string  `json:"old"`
	New string    `json:"new"`
	Bnd *Boundary `json:"bnd,omitempty"`
}

// Label names the bottom surface, with an optional boundary condition.
type Label struct {
	Name string    `json:"name"`
	Bnd  *Boundary `json:"bnd,omitempty"`
}

// Boundary is the solver-facing boundary condition stored in the mesh
// metadata.
type Boundary struct {
	Type   string             `json:"type"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Output names the files the build writes. Mesh is required; the rest
// are skipped when empty.
type Output struct {
	Mesh     string `json:"mesh"`
	Dim      *int   `json:"dim,omitempty"`
	Order    *int   `json:"order,omitempty"`
	Geo      string `json:"geo,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	Report   string `json:"report,omitempty"`
	Quality  string `json:"quality_png,omitempty"`
	Catalog  string `json:"catalog_db,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// LoadRecipe loads a Recipe from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial recipes are safe.
func LoadRecipe(path string) (*Recipe, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("recipe file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat recipe file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("recipe file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	r := &Recipe{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse recipe JSON: %w", err)
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recipe: %w", err)
	}
	return r, nil
}

// Validate checks that the recipe values are usable before any
// geometry work starts.
func (r *Recipe) Validate() error {
	if r.Layout == "" {
		return fmt.Errorf("layout is required")
	}
	if r.Output.Mesh == "" {
		return fmt.Errorf("output.mesh is required")
	}
	if r.MeshSizeMax != nil && *r.MeshSizeMax <= 0 {
		return fmt.Errorf("mesh_size_max must be positive, got %f", *r.MeshSizeMax)
	}
	if d := r.Output.GetDim(); d != 2 && d != 3 {
		return fmt.Errorf("output.dim must be 2 or 3, got %d", d)
	}
	if o := r.Output.GetOrder(); o != 1 && o != 2 {
		return fmt.Errorf("output.order must be 1 or 2, got %d", o)
	}

	for i, l := range r.Layers {
		kind := l.GetKind()
		switch kind {
		case "stack", "top", "cap":
		default:
			return fmt.Errorf("layers[%d]: unknown kind %q", i, kind)
		}
		if l.Thickness <= 0 {
			return fmt.Errorf("layers[%d]: thickness must be positive, got %f", i, l.Thickness)
		}
		if l.Sublayers != nil && *l.Sublayers < 1 {
			return fmt.Errorf("layers[%d]: sublayers must be at least 1, got %d", i, *l.Sublayers)
		}
		if kind == "cap" && (l.Surface == nil || *l.Surface == "") {
			return fmt.Errorf("layers[%d]: cap layer needs a surface", i)
		}
		if kind != "top" && len(l.Surfaces) > 0 {
			return fmt.Errorf("layers[%d]: surfaces is only valid on top layers", i)
		}
	}

	for i, rl := range r.Relabels {
		if len(rl.Old) == 0 || rl.New == "" {
			return fmt.Errorf("relabels[%d]: old and new are required", i)
		}
	}

	for i, d := range r.DotRectangles {
		if d.DX <= 0 || d.DY <= 0 {
			return fmt.Errorf("dot_rectangles[%d]: dx and dy must be positive", i)
		}
	}
	return nil
}

// GetGeoOutfile returns the intermediate .geo path written when the
// layout is GDS-ASCII.
func (r *Recipe) GetGeoOutfile() string {
	if r.GeoOutfile == nil || *r.GeoOutfile == "" {
		base := strings.TrimSuffix(r.Layout, filepath.Ext(r.Layout))
		return base + ".geo"
	}
	return *r.GeoOutfile
}

// GetMeshSizeMax returns the global mesh size cap or the default.
func (r *Recipe) GetMeshSizeMax() float64 {
	if r.MeshSizeMax == nil {
		return 10
	}
	return *r.MeshSizeMax
}

// GetVerbose returns the verbose flag or the default.
func (r *Recipe) GetVerbose() bool {
	if r.Verbose == nil {
		return false
	}
	return *r.Verbose
}

// GetKind returns the layer kind, defaulting to "stack".
func (l *Layer) GetKind() string {
	if l.Kind == nil || *l.Kind == "" {
		return "stack"
	}
	return *l.Kind
}

// GetSublayers returns the extrusion sublayer count or the default.
func (l *Layer) GetSublayers() int {
	if l.Sublayers == nil {
		return 10
	}
	return *l.Sublayers
}

// GetLabel returns the layer label or "".
func (l *Layer) GetLabel() string {
	if l.Label == nil {
		return ""
	}
	return *l.Label
}

// GetDim returns the mesh dimension or the default.
func (o *Output) GetDim() int {
	if o.Dim == nil {
		return 3
	}
	return *o.Dim
}

// GetOrder returns the element order or the default.
func (o *Output) GetOrder() int {
	if o.Order == nil {
		return 1
	}
	return *o.Order
}
