package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// VTK legacy cell types.
const (
	vtkTriangle = 5
	vtkTetra    = 10
)

// WriteVTK writes the mesh as a legacy-format VTK unstructured grid
// for visualization. Only element corners are written; midside nodes
// of second-order meshes are dropped. Each cell carries its physical
// group tag as cell data.
func WriteVTK(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n")
	fmt.Fprintf(bw, "devicegen mesh\nASCII\nDATASET UNSTRUCTURED_GRID\n")

	fmt.Fprintf(bw, "POINTS %d double\n", len(m.Nodes))
	for _, n := range m.Nodes {
		fmt.Fprintf(bw, "%s %s %s\n", ftoa(n.X), ftoa(n.Y), ftoa(n.Z))
	}

	ncells := len(m.Triangles) + len(m.Tetrahedra)
	size := 4*len(m.Triangles) + 5*len(m.Tetrahedra)
	fmt.Fprintf(bw, "CELLS %d %d\n", ncells, size)
	for _, e := range m.Triangles {
		fmt.Fprintf(bw, "3 %d %d %d\n", e.Nodes[0], e.Nodes[1], e.Nodes[2])
	}
	for _, e := range m.Tetrahedra {
		fmt.Fprintf(bw, "4 %d %d %d %d\n", e.Nodes[0], e.Nodes[1], e.Nodes[2], e.Nodes[3])
	}

	fmt.Fprintf(bw, "CELL_TYPES %d\n", ncells)
	for range m.Triangles {
		fmt.Fprintf(bw, "%d\n", vtkTriangle)
	}
	for range m.Tetrahedra {
		fmt.Fprintf(bw, "%d\n", vtkTetra)
	}

	fmt.Fprintf(bw, "CELL_DATA %d\nSCALARS physical int 1\nLOOKUP_TABLE default\n", ncells)
	for _, e := range m.Triangles {
		fmt.Fprintf(bw, "%d\n", e.Phys)
	}
	for _, e := range m.Tetrahedra {
		fmt.Fprintf(bw, "%d\n", e.Phys)
	}

	return bw.Flush()
}

// WriteVTKFile writes the mesh to path in legacy VTK format.
func WriteVTKFile(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteVTK(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
