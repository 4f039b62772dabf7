package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// halfPlane keeps the part of p where n·v <= c (Sutherland-Hodgman).
func halfPlane(p Polygon, n r2.Vec, c float64) Polygon {
	if len(p) < 3 {
		return nil
	}
	var out Polygon
	for i, a := range p {
		b := p[(i+1)%len(p)]
		da := r2.Dot(n, a) - c
		db := r2.Dot(n, b) - c
		switch {
		case da <= Eps && db <= Eps:
			out = append(out, b)
		case da <= Eps && db > Eps:
			t := da / (da - db)
			out = append(out, lerp(a, b, t))
		case da > Eps && db <= Eps:
			t := da / (da - db)
			out = append(out, lerp(a, b, t), b)
		}
	}
	return clean(out)
}

func lerp(a, b r2.Vec, t float64) r2.Vec {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}

// clean drops repeated and collinear vertices and returns nil for
// polygons with no area left.
func clean(p Polygon) Polygon {
	var out Polygon
	for _, v := range p {
		if len(out) == 0 || !samePoint(out[len(out)-1], v) {
			out = append(out, v)
		}
	}
	for len(out) > 1 && samePoint(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	// Remove collinear spikes.
	changed := true
	for changed && len(out) >= 3 {
		changed = false
		for i := 0; i < len(out); i++ {
			a := out[(i+len(out)-1)%len(out)]
			b := out[i]
			c := out[(i+1)%len(out)]
			if math.Abs(cross2(a, b, c)) <= Eps && r2.Dot(r2.Sub(a, b), r2.Sub(c, b)) > 0 {
				// Spike: b lies on the way back along a-c.
				out = append(out[:i], out[i+1:]...)
				changed = true
				break
			}
		}
	}
	if len(out) < 3 || out.Area() <= Eps {
		return nil
	}
	return out
}

// ClipRect returns the intersection of p with rc, or nil when they do
// not overlap. The subject polygon may be concave; the clip window is
// the rectangle, so the result is a single polygon.
func ClipRect(p Polygon, rc Rect) Polygon {
	out := p.Clone()
	if !out.IsCCW() {
		out = out.Reversed()
	}
	out = halfPlane(out, r2.Vec{X: 1}, rc.Max.X)
	out = halfPlane(out, r2.Vec{X: -1}, -rc.Min.X)
	out = halfPlane(out, r2.Vec{Y: 1}, rc.Max.Y)
	out = halfPlane(out, r2.Vec{Y: -1}, -rc.Min.Y)
	return out
}

// SubtractRect returns p with the rectangle rc removed, as disjoint
// polygons. The decomposition clips p into the four strips around rc
// (left, right, and the band above and below within rc's x-range), so
// no result piece carries a hole.
func SubtractRect(p Polygon, rc Rect) []Polygon {
	q := p.Clone()
	if !q.IsCCW() {
		q = q.Reversed()
	}
	var out []Polygon
	add := func(piece Polygon) {
		if piece != nil {
			out = append(out, piece)
		}
	}
	// Left of the rectangle.
	add(halfPlane(q.Clone(), r2.Vec{X: 1}, rc.Min.X))
	// Right of the rectangle.
	add(halfPlane(q.Clone(), r2.Vec{X: -1}, -rc.Max.X))
	// Middle band, below and above.
	band := halfPlane(q.Clone(), r2.Vec{X: 1}, rc.Max.X)
	band = halfPlane(band, r2.Vec{X: -1}, -rc.Min.X)
	if band != nil {
		add(halfPlane(band.Clone(), r2.Vec{Y: 1}, rc.Min.Y))
		add(halfPlane(band.Clone(), r2.Vec{Y: -1}, -rc.Max.Y))
	}
	return out
}
