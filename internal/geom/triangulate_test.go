package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func triangulationArea(tr *Triangulation) float64 {
	a := 0.0
	for _, t := range tr.Tris {
		a += math.Abs(triArea(tr.Nodes[t[0]], tr.Nodes[t[1]], tr.Nodes[t[2]]))
	}
	return a
}

func TestAddRegionSquare(t *testing.T) {
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(Region{Outer: Rectangle(0, 0, 10, 10)}, 1))

	require.NotEmpty(t, tr.Tris)
	require.InDelta(t, 100, triangulationArea(tr), 1e-9)
	for _, tag := range tr.Tags {
		require.Equal(t, int32(1), tag)
	}
}

func TestAddRegionConcave(t *testing.T) {
	// L-shape.
	reg := Region{Outer: Polygon{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 4},
		{X: 4, Y: 4}, {X: 4, Y: 10}, {X: 0, Y: 10},
	}}
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(reg, 1))
	require.InDelta(t, reg.Area(), triangulationArea(tr), 1e-9)
}

func TestAddRegionWithHole(t *testing.T) {
	reg := Region{
		Outer: Rectangle(0, 0, 10, 10),
		Holes: []Polygon{Rectangle(4, 4, 2, 2)},
	}
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(reg, 3))
	require.InDelta(t, 96, triangulationArea(tr), 1e-9)

	// No triangle centroid falls inside the hole.
	hole := Rectangle(4, 4, 2, 2)
	for _, tri := range tr.Tris {
		c := r2.Scale(1.0/3.0, r2.Add(tr.Nodes[tri[0]], r2.Add(tr.Nodes[tri[1]], tr.Nodes[tri[2]])))
		require.False(t, hole.Contains(c))
	}
}

func TestAddRegionDegenerate(t *testing.T) {
	tr := &Triangulation{}
	err := tr.AddRegion(Region{Outer: Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}}}, 1)
	require.Error(t, err)
}

func TestAdjacentRegionsShareNodes(t *testing.T) {
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(Region{Outer: Rectangle(0, 0, 5, 10)}, 1))
	require.NoError(t, tr.AddRegion(Region{Outer: Rectangle(5, 0, 5, 10)}, 2))

	// The shared edge endpoints appear once in the node pool.
	count := 0
	for _, n := range tr.Nodes {
		if math.Abs(n.X-5) < 1e-12 {
			count++
		}
	}
	require.Equal(t, 2, count)
}

func TestInsertCollinearPoints(t *testing.T) {
	reg := Region{Outer: Rectangle(0, 0, 10, 10)}
	got := InsertCollinearPoints(reg, []r2.Vec{
		{X: 5, Y: 0},   // on the bottom edge
		{X: 0, Y: 3},   // on the left edge
		{X: 5, Y: 5},   // interior, ignored
		{X: 0, Y: 0},   // existing vertex, ignored
		{X: 20, Y: 20}, // outside, ignored
	})
	require.Len(t, got.Outer, 6)
	require.InDelta(t, 100, got.Outer.Area(), 1e-9)
}

func TestRefineRespectsSizeField(t *testing.T) {
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(Region{Outer: Rectangle(0, 0, 10, 10)}, 1))
	before := len(tr.Tris)

	tr.Refine(func(p r2.Vec) float64 { return 2 }, DefaultNodeBudget)

	require.Greater(t, len(tr.Tris), before)
	require.InDelta(t, 100, triangulationArea(tr), 1e-9)

	// No edge longer than about twice the target size.
	for _, tri := range tr.Tris {
		for i := 0; i < 3; i++ {
			a := tr.Nodes[tri[i]]
			b := tr.Nodes[tri[(i+1)%3]]
			require.Less(t, math.Hypot(a.X-b.X, a.Y-b.Y), 4.001)
		}
	}
}

func TestRefineGradedField(t *testing.T) {
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(Region{Outer: Rectangle(0, 0, 10, 10)}, 1))

	// Fine near the origin, coarse away from it.
	tr.Refine(func(p r2.Vec) float64 {
		if math.Hypot(p.X, p.Y) < 3 {
			return 0.5
		}
		return 5
	}, DefaultNodeBudget)

	near, far := 0, 0
	for _, tri := range tr.Tris {
		c := r2.Scale(1.0/3.0, r2.Add(tr.Nodes[tri[0]], r2.Add(tr.Nodes[tri[1]], tr.Nodes[tri[2]])))
		if math.Hypot(c.X, c.Y) < 3 {
			near++
		} else {
			far++
		}
	}
	require.Greater(t, near, far/4)
	require.InDelta(t, 100, triangulationArea(tr), 1e-9)
}

func TestRefineHonorsNodeBudget(t *testing.T) {
	tr := &Triangulation{}
	require.NoError(t, tr.AddRegion(Region{Outer: Rectangle(0, 0, 10, 10)}, 1))

	tr.Refine(func(p r2.Vec) float64 { return 0.01 }, 50)
	// A bisection chain in flight may finish past the budget, but the
	// walk stops as soon as it is hit.
	require.Less(t, len(tr.Nodes), 50+2*maxBisectDepth)
}
