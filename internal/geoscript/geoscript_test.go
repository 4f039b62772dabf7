package geoscript

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qdevlab/devicegen/internal/geom"
)

func TestWriteParseRoundTrip(t *testing.T) {
	layers := map[int][]geom.Polygon{
		1: {geom.Rectangle(0, 0, 100, 50)},
		2: {geom.Rectangle(20, 10, 30, 30), geom.Rectangle(60, 10, 30, 30)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, layers, 5))

	m, err := Parse(&buf)
	require.NoError(t, err)

	require.Len(t, m.Surfaces, 3)
	require.True(t, m.Fragments)
	require.InDelta(t, 5, m.MeshSize, 1e-12)

	// Lower layers come first, so surface 1 is the big rectangle.
	require.InDelta(t, 5000, m.Surfaces[0].Region.Outer.Area(), 1e-9)
	require.InDelta(t, 900, m.Surfaces[1].Region.Outer.Area(), 1e-9)
}

func TestWriteSingleLayerHasNoFragments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[int][]geom.Polygon{1: {geom.Rectangle(0, 0, 10, 10)}}, 2))

	out := buf.String()
	require.Contains(t, out, `SetFactory("OpenCASCADE");`)
	require.NotContains(t, out, "BooleanFragments")

	m, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.False(t, m.Fragments)
	require.Len(t, m.Surfaces, 1)
}

func TestParseSurfaceWithHole(t *testing.T) {
	script := `SetFactory("OpenCASCADE");
Point(1) = {0, 0, 0, 2};
Point(2) = {10, 0, 0, 2};
Point(3) = {10, 10, 0, 2};
Point(4) = {0, 10, 0, 2};
Point(5) = {4, 4, 0, 1};
Point(6) = {6, 4, 0, 1};
Point(7) = {6, 6, 0, 1};
Point(8) = {4, 6, 0, 1};
Line(1) = {1, 2};
Line(2) = {2, 3};
Line(3) = {3, 4};
Line(4) = {4, 1};
Line(5) = {5, 6};
Line(6) = {6, 7};
Line(7) = {7, 8};
Line(8) = {8, 5};
Curve Loop(1) = {1, 2, 3, 4};
Curve Loop(2) = {5, 6, 7, 8};
Plane Surface(1) = {1, 2};
`
	m, err := Parse(strings.NewReader(script))
	require.NoError(t, err)

	require.Len(t, m.Surfaces, 1)
	s := m.Surfaces[0]
	require.Len(t, s.Region.Holes, 1)
	require.InDelta(t, 96, s.Region.Area(), 1e-9)
	require.InDelta(t, 1, m.MeshSize, 1e-12)
}

func TestParseNegativeLineRefs(t *testing.T) {
	script := `Point(1) = {0, 0, 0, 1};
Point(2) = {5, 0, 0, 1};
Point(3) = {5, 5, 0, 1};
Line(1) = {1, 2};
Line(2) = {3, 2};
Line(3) = {3, 1};
Line Loop(1) = {1, -2, 3};
Plane Surface(1) = {1};
`
	m, err := Parse(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, m.Surfaces, 1)
	require.InDelta(t, 12.5, m.Surfaces[0].Region.Outer.Area(), 1e-9)
}

func TestParseSkipsCommentsAndUnknown(t *testing.T) {
	script := `// layout header
Mesh.MeshSizeMax = 10;
Point(1) = {0, 0, 0, 1}; // corner
Point(2) = {5, 0, 0, 1};
Point(3) = {5, 5, 0, 1};
Line(1) = {1, 2};
Line(2) = {2, 3};
Line(3) = {3, 1};
Curve Loop(1) = {1, 2, 3};
Plane Surface(1) = {1};
Physical Surface("gate", 1) = {1};
`
	m, err := Parse(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, m.Surfaces, 1)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "unknown curve loop",
			in:   "Plane Surface(1) = {9};\n",
			want: "unknown curve loop",
		},
		{
			name: "unknown line",
			in:   "Curve Loop(1) = {7};\nPlane Surface(1) = {1};\n",
			want: "unknown line",
		},
		{
			name: "broken chain",
			in: "Point(1) = {0, 0, 0, 1};\nPoint(2) = {5, 0, 0, 1};\nPoint(3) = {5, 5, 0, 1};\nPoint(4) = {0, 5, 0, 1};\n" +
				"Line(1) = {1, 2};\nLine(2) = {3, 4};\n" +
				"Curve Loop(1) = {1, 2};\nPlane Surface(1) = {1};\n",
			want: "does not continue the loop",
		},
		{
			name: "bad tag",
			in:   "Point(x) = {0, 0, 0, 1};\n",
			want: "bad tag",
		},
		{
			name: "line point count",
			in:   "Line(1) = {1};\n",
			want: "line needs two points",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			require.ErrorContains(t, err, tc.want)
		})
	}
}
