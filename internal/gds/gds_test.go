package gds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDump = `HEADER 600
BGNLIB
LIBNAME chip.db
UNITS 0.001 1e-09
BGNSTR
STRNAME TOP
BOUNDARY
LAYER 1
DATATYPE 0
XY 0: 0
   1000: 0
   1000: 2000
   0: 2000
   0: 0
ENDEL
BOUNDARY
LAYER 2
DATATYPE 0
XY 500: 500
   1500: 500
   1500: 1500
   500: 1500
   500: 500
ENDEL
ENDSTR
ENDLIB
`

func TestParseBoundaries(t *testing.T) {
	layout, err := Parse(strings.NewReader(sampleDump))
	require.NoError(t, err)

	// 1 nm database unit.
	require.InDelta(t, 1e-3, layout.Unit, 1e-15)
	require.Equal(t, []int{1, 2}, layout.LayerNumbers())

	polys := layout.Layers[1]
	require.Len(t, polys, 1)
	// Closing point dropped, coordinates scaled to microns.
	require.Len(t, polys[0], 4)
	require.InDelta(t, 2.0, polys[0].Area(), 1e-9)

	require.Len(t, layout.Polygons(), 2)
}

func TestParseBoxElement(t *testing.T) {
	dump := `UNITS 0.001 1e-09
BOX
LAYER 4
XY 0: 0
   100: 0
   100: 100
   0: 100
ENDEL
`
	layout, err := Parse(strings.NewReader(dump))
	require.NoError(t, err)
	require.Len(t, layout.Layers[4], 1)
}

func TestParseSkipsOtherRecords(t *testing.T) {
	dump := `UNITS 0.001 1e-09
TEXT
LAYER 63
STRING label
ENDEL
BOUNDARY
LAYER 1
XY 0: 0
   10: 0
   10: 10
   0: 10
ENDEL
`
	layout, err := Parse(strings.NewReader(dump))
	require.NoError(t, err)
	// The TEXT element never enters element mode, only the boundary
	// is kept.
	require.Equal(t, []int{1}, layout.LayerNumbers())
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no boundaries",
			in:   "UNITS 0.001 1e-09\n",
			want: "no boundary elements",
		},
		{
			name: "unterminated element",
			in:   "BOUNDARY\nLAYER 1\nXY 0: 0\n",
			want: "unterminated element",
		},
		{
			name: "bad coordinate",
			in:   "BOUNDARY\nLAYER 1\nXY zero: 0\nENDEL\n",
			want: "bad x coordinate",
		},
		{
			name: "bad layer",
			in:   "BOUNDARY\nLAYER one\nXY 0: 0\nENDEL\n",
			want: "bad layer number",
		},
		{
			name: "degenerate boundary",
			in:   "BOUNDARY\nLAYER 1\nXY 0: 0\n5: 5\n0: 0\nENDEL\n",
			want: "distinct points",
		},
		{
			name: "zero area",
			in:   "BOUNDARY\nLAYER 1\nXY 0: 0\n5: 0\n10: 0\nENDEL\n",
			want: "encloses no area",
		},
		{
			name: "bad units",
			in:   "UNITS 0.001 zero\n",
			want: "bad UNITS value",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParseDefaultUnit(t *testing.T) {
	// Without a UNITS record the db unit defaults to 1 nm.
	dump := "BOUNDARY\nLAYER 1\nXY 0: 0\n1000: 0\n1000: 1000\n0: 1000\nENDEL\n"
	layout, err := Parse(strings.NewReader(dump))
	require.NoError(t, err)
	require.InDelta(t, 1.0, layout.Layers[1][0].Area(), 1e-9)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chip.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump), 0644))

	layout, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, layout.Polygons(), 2)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
