package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// WriteMSH2 writes the mesh in Gmsh MSH 2.2 ASCII format, the format
// downstream finite-element solvers consume. Node and element ids are
// 1-based.
func WriteMSH2(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n")

	if len(m.Physical) > 0 {
		names := append([]PhysicalName(nil), m.Physical...)
		sort.Slice(names, func(i, j int) bool {
			if names[i].Dim != names[j].Dim {
				return names[i].Dim < names[j].Dim
			}
			return names[i].Tag < names[j].Tag
		})
		fmt.Fprintf(bw, "$PhysicalNames\n%d\n", len(names))
		for _, p := range names {
			fmt.Fprintf(bw, "%d %d \"%s\"\n", p.Dim, p.Tag, p.Name)
		}
		fmt.Fprintf(bw, "$EndPhysicalNames\n")
	}

	fmt.Fprintf(bw, "$Nodes\n%d\n", len(m.Nodes))
	for i, n := range m.Nodes {
		fmt.Fprintf(bw, "%d %s %s %s\n", i+1, ftoa(n.X), ftoa(n.Y), ftoa(n.Z))
	}
	fmt.Fprintf(bw, "$EndNodes\n")

	fmt.Fprintf(bw, "$Elements\n%d\n", len(m.Triangles)+len(m.Tetrahedra))
	id := 1
	for _, e := range m.Triangles {
		typ := TypeTri3
		if len(e.Nodes) == 6 {
			typ = TypeTri6
		}
		writeElement(bw, id, typ, e)
		id++
	}
	for _, e := range m.Tetrahedra {
		typ := TypeTet4
		if len(e.Nodes) == 10 {
			typ = TypeTet10
		}
		writeElement(bw, id, typ, e)
		id++
	}
	fmt.Fprintf(bw, "$EndElements\n")

	return bw.Flush()
}

func writeElement(w io.Writer, id, typ int, e Element) {
	fmt.Fprintf(w, "%d %d 2 %d %d", id, typ, e.Phys, e.Ent)
	for _, n := range e.Nodes {
		fmt.Fprintf(w, " %d", n+1)
	}
	fmt.Fprintln(w)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', 16, 64)
}

// WriteMSH2File writes the mesh to path in MSH 2.2 format.
func WriteMSH2File(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMSH2(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadMSH2 parses an MSH 2.2 ASCII mesh. Element types outside
// triangles and tetrahedra (first or second order) are skipped.
func ReadMSH2(r io.Reader) (*Mesh, error) {
	m := &Mesh{Order: 1}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	next := func() (string, bool) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				return line, true
			}
		}
		return "", false
	}

	for {
		line, ok := next()
		if !ok {
			break
		}
		switch line {
		case "$MeshFormat":
			version, ok := next()
			if !ok || !strings.HasPrefix(version, "2.2") {
				return nil, fmt.Errorf("unsupported mesh format %q", version)
			}
			if err := expectEnd(next, "$EndMeshFormat"); err != nil {
				return nil, err
			}
		case "$PhysicalNames":
			if err := readPhysicalNames(next, m); err != nil {
				return nil, err
			}
		case "$Nodes":
			if err := readNodes(next, m); err != nil {
				return nil, err
			}
		case "$Elements":
			if err := readElements(next, m); err != nil {
				return nil, err
			}
		default:
			// Skip unknown sections.
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				end := "$End" + line[1:]
				for {
					l, ok := next()
					if !ok {
						return nil, fmt.Errorf("unterminated section %s", line)
					}
					if l == end {
						break
					}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadMSH2File parses the MSH 2.2 file at path.
func ReadMSH2File(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ReadMSH2(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return m, nil
}

func expectEnd(next func() (string, bool), end string) error {
	line, ok := next()
	if !ok || line != end {
		return fmt.Errorf("expected %s, got %q", end, line)
	}
	return nil
}

func readPhysicalNames(next func() (string, bool), m *Mesh) error {
	countLine, ok := next()
	if !ok {
		return fmt.Errorf("truncated $PhysicalNames")
	}
	count, err := strconv.Atoi(countLine)
	if err != nil {
		return fmt.Errorf("bad physical name count %q", countLine)
	}
	for i := 0; i < count; i++ {
		line, ok := next()
		if !ok {
			return fmt.Errorf("truncated $PhysicalNames")
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return fmt.Errorf("bad physical name record %q", line)
		}
		dim, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("bad physical name record %q", line)
		}
		tag, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("bad physical name record %q", line)
		}
		m.Physical = append(m.Physical, PhysicalName{
			Dim:  dim,
			Tag:  tag,
			Name: strings.Trim(fields[2], `"`),
		})
	}
	if line, ok := next(); !ok || line != "$EndPhysicalNames" {
		return fmt.Errorf("expected $EndPhysicalNames, got %q", line)
	}
	return nil
}

func readNodes(next func() (string, bool), m *Mesh) error {
	countLine, ok := next()
	if !ok {
		return fmt.Errorf("truncated $Nodes")
	}
	count, err := strconv.Atoi(countLine)
	if err != nil {
		return fmt.Errorf("bad node count %q", countLine)
	}
	m.Nodes = make([]r3.Vec, count)
	for i := 0; i < count; i++ {
		line, ok := next()
		if !ok {
			return fmt.Errorf("truncated $Nodes")
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return fmt.Errorf("bad node record %q", line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id < 1 || id > count {
			return fmt.Errorf("bad node id in %q", line)
		}
		x, err1 := strconv.ParseFloat(fields[1], 64)
		y, err2 := strconv.ParseFloat(fields[2], 64)
		z, err3 := strconv.ParseFloat(fields[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return fmt.Errorf("bad node coordinates in %q", line)
		}
		m.Nodes[id-1] = r3.Vec{X: x, Y: y, Z: z}
	}
	if line, ok := next(); !ok || line != "$EndNodes" {
		return fmt.Errorf("expected $EndNodes, got %q", line)
	}
	return nil
}

var elemNodeCount = map[int]int{
	TypeLine2: 2, TypeTri3: 3, TypeTet4: 4,
	TypeLine3: 3, TypeTri6: 6, TypeTet10: 10, TypePoint: 1,
}

func readElements(next func() (string, bool), m *Mesh) error {
	countLine, ok := next()
	if !ok {
		return fmt.Errorf("truncated $Elements")
	}
	count, err := strconv.Atoi(countLine)
	if err != nil {
		return fmt.Errorf("bad element count %q", countLine)
	}
	for i := 0; i < count; i++ {
		line, ok := next()
		if !ok {
			return fmt.Errorf("truncated $Elements")
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("bad element record %q", line)
		}
		typ, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("bad element type in %q", line)
		}
		ntags, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("bad element tag count in %q", line)
		}
		nnodes, known := elemNodeCount[typ]
		if !known {
			continue
		}
		if len(fields) < 3+ntags+nnodes {
			return fmt.Errorf("short element record %q", line)
		}
		var e Element
		if ntags > 0 {
			p, err := strconv.Atoi(fields[3])
			if err != nil {
				return fmt.Errorf("bad physical tag in %q", line)
			}
			e.Phys = int32(p)
		}
		if ntags > 1 {
			ent, err := strconv.Atoi(fields[4])
			if err != nil {
				return fmt.Errorf("bad entity tag in %q", line)
			}
			e.Ent = int32(ent)
		}
		for _, f := range fields[3+ntags : 3+ntags+nnodes] {
			n, err := strconv.Atoi(f)
			if err != nil || n < 1 || n > len(m.Nodes) {
				return fmt.Errorf("bad node reference in %q", line)
			}
			e.Nodes = append(e.Nodes, int32(n-1))
		}
		switch typ {
		case TypeTri3, TypeTri6:
			m.Triangles = append(m.Triangles, e)
			if typ == TypeTri6 {
				m.Order = 2
			}
		case TypeTet4, TypeTet10:
			m.Tetrahedra = append(m.Tetrahedra, e)
			if typ == TypeTet10 {
				m.Order = 2
			}
		}
	}
	if line, ok := next(); !ok || line != "$EndElements" {
		return fmt.Errorf("expected $EndElements, got %q", line)
	}
	return nil
}
