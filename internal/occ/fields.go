package occ

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qdevlab/devicegen/internal/geom"
)

const (
	fieldBox = iota
	fieldConstant
	fieldMin
)

// field is one mesh size prescription. Box fields set the size inside
// an axis-aligned box, constant fields inside the footprint regions
// of a set of surfaces, and a min field takes the pointwise minimum
// of other fields.
type field struct {
	tag  int
	kind int

	vin, vout  float64
	box        geom.Rect     // fieldBox
	zMin, zMax float64       // fieldBox
	regions    []geom.Region // fieldConstant
	members    []int         // fieldMin
}

// AddBoxField registers a size field that is vin inside the given box
// and vout outside it. It returns the field tag.
func (m *Model) AddBoxField(vin, vout, xMin, xMax, yMin, yMax, zMin, zMax float64) int {
	f := &field{
		tag:  m.nextField,
		kind: fieldBox,
		vin:  vin,
		vout: vout,
		box:  geom.Rect{Min: r2.Vec{X: xMin, Y: yMin}, Max: r2.Vec{X: xMax, Y: yMax}},
		zMin: zMin,
		zMax: zMax,
	}
	m.nextField++
	m.fields = append(m.fields, f)
	return f.tag
}

// AddConstantField registers a size field that is vin inside the
// footprints of the given planar surfaces and vout elsewhere. It
// returns the field tag.
func (m *Model) AddConstantField(vin, vout float64, surfaces []int) (int, error) {
	f := &field{
		tag:  m.nextField,
		kind: fieldConstant,
		vin:  vin,
		vout: vout,
	}
	for _, tag := range surfaces {
		s, ok := m.surfaces[tag]
		if !ok {
			return 0, fmt.Errorf("occ: no surface with tag %d for constant field", tag)
		}
		f.regions = append(f.regions, s.region.Clone())
	}
	m.nextField++
	m.fields = append(m.fields, f)
	return f.tag, nil
}

// SetBackgroundField makes the given field drive element sizing.
func (m *Model) SetBackgroundField(tag int) error {
	if m.fieldByTag(tag) == nil {
		return fmt.Errorf("occ: no field with tag %d", tag)
	}
	m.background = tag
	m.backgroundMin = false
	return nil
}

// SetMinBackground drives element sizing by the pointwise minimum of
// all registered fields.
func (m *Model) SetMinBackground() int {
	f := &field{tag: m.nextField, kind: fieldMin}
	for _, g := range m.fields {
		f.members = append(f.members, g.tag)
	}
	m.nextField++
	m.fields = append(m.fields, f)
	m.background = f.tag
	m.backgroundMin = true
	return f.tag
}

// SetMeshSizeMax caps the element size everywhere.
func (m *Model) SetMeshSizeMax(h float64) {
	m.meshSizeMax = h
}

func (m *Model) fieldByTag(tag int) *field {
	for _, f := range m.fields {
		if f.tag == tag {
			return f
		}
	}
	return nil
}

// sizeAt evaluates the background sizing at a point. Without a
// background field it returns the global size cap.
func (m *Model) sizeAt(x, y, z float64) float64 {
	h := m.meshSizeMax
	if h <= 0 {
		h = math.Inf(1)
	}
	if m.background != 0 {
		if f := m.fieldByTag(m.background); f != nil {
			h = math.Min(h, m.evalField(f, x, y, z))
		}
	}
	return h
}

func (m *Model) evalField(f *field, x, y, z float64) float64 {
	switch f.kind {
	case fieldBox:
		p := r2.Vec{X: x, Y: y}
		if f.box.Contains(p) && z >= f.zMin-geom.Eps && z <= f.zMax+geom.Eps {
			return f.vin
		}
		return f.vout
	case fieldConstant:
		p := r2.Vec{X: x, Y: y}
		for _, reg := range f.regions {
			if reg.Contains(p) {
				return f.vin
			}
		}
		return f.vout
	case fieldMin:
		h := math.Inf(1)
		for _, tag := range f.members {
			if g := m.fieldByTag(tag); g != nil {
				h = math.Min(h, m.evalField(g, x, y, z))
			}
		}
		return h
	}
	return math.Inf(1)
}
