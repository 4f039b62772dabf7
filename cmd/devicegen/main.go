// Command devicegen builds a labeled 3-D device mesh from a build
// recipe: a JSON file naming the 2-D layout, the heterostructure
// layer stack, the dot regions, and the output files.
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/qdevlab/devicegen"
	"github.com/qdevlab/devicegen/internal/catalog"
	"github.com/qdevlab/devicegen/internal/config"
	"github.com/qdevlab/devicegen/internal/mesh"
	"github.com/qdevlab/devicegen/internal/report"
	"github.com/qdevlab/devicegen/internal/security"
	"github.com/qdevlab/devicegen/internal/version"
)

var (
	recipePath = flag.String("recipe", "", "Build recipe JSON file")
	outDir     = flag.String("outdir", "", "Restrict all output files to this directory")
	verbose    = flag.Bool("v", false, "Verbose progress logging")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("devicegen %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *recipePath == "" {
		log.Fatal("Usage: devicegen -recipe <recipe.json>")
	}

	r, err := config.LoadRecipe(*recipePath)
	if err != nil {
		log.Fatalf("Failed to load recipe: %v", err)
	}
	if *outDir != "" {
		if err := checkOutputPaths(r, *outDir); err != nil {
			log.Fatalf("Refusing to build: %v", err)
		}
	}

	if err := runBuild(r); err != nil {
		log.Fatalf("Build failed: %v", err)
	}
}

func checkOutputPaths(r *config.Recipe, dir string) error {
	paths := []string{r.Output.Mesh, r.GetGeoOutfile(), r.Output.Geo,
		r.Output.Metadata, r.Output.Report, r.Output.Quality, r.Output.Catalog}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := security.ValidatePathWithinDirectory(p, dir); err != nil {
			return err
		}
	}
	return nil
}

func runBuild(r *config.Recipe) error {
	gen, err := devicegen.New(r.Layout, &devicegen.Options{
		GeoOutfile:  r.GetGeoOutfile(),
		MeshSizeMax: r.GetMeshSizeMax(),
		Verbose:     r.GetVerbose() || *verbose,
	})
	if err != nil {
		return fmt.Errorf("load layout: %w", err)
	}

	for i, d := range r.DotRectangles {
		h := 0.0
		if d.MeshSize != nil {
			h = *d.MeshSize
		}
		if _, err := gen.NewDotRectangle(d.X, d.Y, d.DX, d.DY, h); err != nil {
			return fmt.Errorf("dot rectangle %d: %w", i, err)
		}
	}
	if ds := r.DotSurfaces; ds != nil {
		h := 0.0
		if ds.MeshSize != nil {
			h = *ds.MeshSize
		}
		if err := gen.SetDotRegionFromSurfaces(ds.Surfaces, h); err != nil {
			return fmt.Errorf("dot surfaces: %w", err)
		}
	}

	for i, l := range r.Layers {
		if err := buildLayer(gen, l); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, l.GetKind(), err)
		}
	}

	for i, rl := range r.Relabels {
		if _, err := gen.RelabelSurface(rl.Old, rl.New, boundary(rl.Bnd)); err != nil {
			return fmt.Errorf("relabel %d: %w", i, err)
		}
	}
	for _, name := range r.SplitSurfaces {
		if err := gen.SplitSurface(name); err != nil {
			return fmt.Errorf("split %q: %w", name, err)
		}
	}
	if r.Bottom != nil {
		if err := gen.LabelBottom(r.Bottom.Name, boundary(r.Bottom.Bnd)); err != nil {
			return fmt.Errorf("bottom label: %w", err)
		}
	}

	gen.MinField()

	dim, order := r.Output.GetDim(), r.Output.GetOrder()
	if err := gen.SaveMesh(r.Output.Mesh, dim, order); err != nil {
		return fmt.Errorf("save mesh: %w", err)
	}
	log.Printf("Wrote mesh %s (dim=%d order=%d)", r.Output.Mesh, dim, order)

	if r.Output.Geo != "" {
		if err := gen.SaveGeo(r.Output.Geo); err != nil {
			return fmt.Errorf("save geo: %w", err)
		}
	}
	if r.Output.Metadata != "" {
		if err := gen.SaveMetadata(r.Output.Metadata); err != nil {
			return fmt.Errorf("save metadata: %w", err)
		}
	}

	return writeArtifacts(r)
}

func buildLayer(gen *devicegen.Generator, l config.Layer) error {
	spec := devicegen.LayerSpec{
		Thickness: l.Thickness,
		Sublayers: l.GetSublayers(),
		Label:     l.GetLabel(),
	}
	if l.Material != nil {
		spec.Material = *l.Material
	}
	if l.PDoping != nil {
		spec.PDoping = *l.PDoping
	}
	if l.NDoping != nil {
		spec.NDoping = *l.NDoping
	}
	if l.DotRegion != nil {
		spec.DotRegion = *l.DotRegion
	}
	spec.DotLabels = l.DotLabels
	if l.LabelSides != nil {
		spec.LabelSides = *l.LabelSides
	}
	if l.Color != nil {
		c := devicegen.Color(*l.Color)
		spec.Color = &c
	}

	switch l.GetKind() {
	case "top":
		top := devicegen.TopLayerSpec{LayerSpec: spec, Surfaces: l.Surfaces, Bnd: boundary(l.Bnd)}
		if l.BndLabel != nil {
			top.BndLabel = *l.BndLabel
		}
		return gen.NewTopLayer(top)
	case "cap":
		return gen.NewCapLayer(*l.Surface, spec)
	default:
		return gen.NewLayer(spec)
	}
}

func boundary(b *config.Boundary) *devicegen.Boundary {
	if b == nil {
		return nil
	}
	return &devicegen.Boundary{Type: b.Type, Params: b.Params}
}

// writeArtifacts reads the mesh back and produces the optional
// reports and the catalog record.
func writeArtifacts(r *config.Recipe) error {
	out := r.Output
	if out.Report == "" && out.Quality == "" && out.Catalog == "" {
		return nil
	}
	if strings.EqualFold(filepath.Ext(out.Mesh), ".vtk") {
		log.Printf("Skipping reports: %s is not an MSH mesh", out.Mesh)
		return nil
	}

	m, err := mesh.ReadMSH2File(out.Mesh)
	if err != nil {
		return fmt.Errorf("read mesh back: %w", err)
	}
	stats, quality := m.Quality()

	if out.Report != "" {
		title := filepath.Base(r.Layout)
		if err := report.SaveHTML(out.Report, m, title); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		log.Printf("Wrote report %s", out.Report)
	}
	if out.Quality != "" {
		if len(quality) == 0 {
			log.Printf("Skipping quality histogram: mesh has no tetrahedra")
		} else if err := report.SaveQualityHistogram(out.Quality, quality); err != nil {
			return fmt.Errorf("save quality histogram: %w", err)
		}
	}
	if out.Catalog != "" {
		c, err := catalog.Open(out.Catalog)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer c.Close()

		id, err := c.RecordBuild(catalog.Build{
			LayoutFile:  r.Layout,
			MeshFile:    out.Mesh,
			MeshDim:     out.GetDim(),
			MeshOrder:   out.GetOrder(),
			NodeCount:   len(m.Nodes),
			TriCount:    len(m.Triangles),
			TetCount:    len(m.Tetrahedra),
			QualityMin:  stats.Min,
			QualityMean: stats.Mean,
		})
		if err != nil {
			return fmt.Errorf("record build: %w", err)
		}
		log.Printf("Recorded build %s in %s", id, out.Catalog)
	}
	return nil
}
