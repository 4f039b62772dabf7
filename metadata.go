package devicegen

import (
	"encoding/json"
	"io"
	"os"
	"sort"
)

// Material records what a labeled volume is made of. Doping densities
// are in cm^-3.
type Material struct {
	Name    string  `json:"material"`
	PDoping float64 `json:"pdoping"`
	NDoping float64 `json:"ndoping"`
}

// Boundary records the boundary condition to enforce on a labeled
// surface, for example a Schottky gate with its applied potential and
// barrier height.
type Boundary struct {
	Type   string             `json:"type"`
	Params map[string]float64 `json:"params,omitempty"`
}

func (g *Generator) storeMaterial(label string, mat *Material) {
	if mat == nil {
		mat = &Material{}
	}
	g.materials[label] = *mat
}

func (g *Generator) storeBoundary(label string, bnd *Boundary) {
	if bnd == nil || bnd.Type == "" {
		return
	}
	g.boundaries[label] = *bnd
}

// Material returns the material recorded for a volume label.
func (g *Generator) Material(label string) (Material, bool) {
	m, ok := g.materials[label]
	return m, ok
}

// Boundary returns the boundary condition recorded for a surface
// label.
func (g *Generator) Boundary(label string) (Boundary, bool) {
	b, ok := g.boundaries[label]
	return b, ok
}

// Metadata is the device description exported next to a mesh: the
// material of every labeled volume and the boundary condition of
// every labeled surface.
type Metadata struct {
	Materials  map[string]Material `json:"materials"`
	Boundaries map[string]Boundary `json:"boundaries"`
}

// Metadata returns the accumulated device metadata.
func (g *Generator) Metadata() Metadata {
	md := Metadata{
		Materials:  make(map[string]Material, len(g.materials)),
		Boundaries: make(map[string]Boundary, len(g.boundaries)),
	}
	for k, v := range g.materials {
		md.Materials[k] = v
	}
	for k, v := range g.boundaries {
		md.Boundaries[k] = v
	}
	return md
}

// WriteMetadata writes the device metadata as indented JSON.
func (g *Generator) WriteMetadata(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g.Metadata())
}

// SaveMetadata writes the device metadata to a JSON file.
func (g *Generator) SaveMetadata(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.WriteMetadata(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MaterialLabels returns the labels with recorded materials, sorted.
func (g *Generator) MaterialLabels() []string {
	out := make([]string, 0, len(g.materials))
	for k := range g.materials {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
