package raster

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

var unitTransform = Transform{OriginX: 0, OriginY: 3, DX: 1, DY: 1}

func makeTestGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid([][]float64{
		{0, 1, 2},
		{10, 11, 12},
		{20, 21, 22},
	}, unitTransform)
	require.NoError(t, err)
	return g
}

func TestNewGrid_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values [][]float64
		tr     Transform
	}{
		{"no rows", nil, unitTransform},
		{"no columns", [][]float64{{}}, unitTransform},
		{"ragged", [][]float64{{1, 2}, {3}}, unitTransform},
		{"zero dx", [][]float64{{1}}, Transform{DX: 0, DY: 1}},
		{"negative dy", [][]float64{{1}}, Transform{DX: 1, DY: -1}},
		{"nan origin", [][]float64{{1}}, Transform{OriginX: math.NaN(), DX: 1, DY: 1}},
		{"inf cell", [][]float64{{1}}, Transform{DX: math.Inf(1), DY: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewGrid(tt.values, tt.tr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGrid))
			var ige *InvalidGridError
			assert.True(t, errors.As(err, &ige))
		})
	}
}

func TestNewGridFromDense_Clones(t *testing.T) {
	t.Parallel()
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	g, err := NewGridFromDense(m, unitTransform)
	require.NoError(t, err)
	m.Set(0, 0, 99)
	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 4.0, g.At(1, 1))
}

func TestGrid_Geometry(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t)

	ext := g.Extent()
	assert.Equal(t, Extent{MinX: 0, MaxX: 3, MinY: 0, MaxY: 3}, ext)

	assert.Equal(t, r2.Vec{X: 0.5, Y: 2.5}, g.CellCenter(0, 0))
	assert.Equal(t, r2.Vec{X: 2.5, Y: 0.5}, g.CellCenter(2, 2))

	row, col, err := g.CellOf(r2.Vec{X: 3, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	assert.Equal(t, 2, col)

	row, col, err = g.CellOf(r2.Vec{X: 1.2, Y: 2.9})
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	assert.Equal(t, 1, col)

	_, _, err = g.CellOf(r2.Vec{X: -0.1, Y: 1})
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestGrid_Locate(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t)

	c, err := g.Locate(r2.Vec{X: 1.25, Y: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Row0)
	assert.Equal(t, 2, c.Row1)
	assert.Equal(t, 0, c.Col0)
	assert.Equal(t, 1, c.Col1)
	assert.InDelta(t, 0.75, c.U, 1e-12)
	assert.InDelta(t, 0.0, c.V, 1e-12)

	// corner of the extent collapses onto the corner node
	c, err = g.Locate(r2.Vec{X: 0, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Row0)
	assert.Equal(t, 0, c.Col0)
	assert.Zero(t, c.U)
	assert.Zero(t, c.V)

	c, err = g.Locate(r2.Vec{X: 3, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Row0)
	assert.Equal(t, 2, c.Col0)
	assert.Equal(t, 2, c.Row1)
	assert.Equal(t, 2, c.Col1)

	_, err = g.Locate(r2.Vec{X: 1, Y: 3.01})
	var oob *OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.Equal(t, 3.01, oob.Y)
}

func TestGrid_ElevationRange(t *testing.T) {
	t.Parallel()
	g, err := NewGrid([][]float64{{math.NaN(), -4}, {7, math.Inf(1)}}, unitTransform)
	require.NoError(t, err)
	lo, hi, ok := g.ElevationRange()
	require.True(t, ok)
	assert.Equal(t, -4.0, lo)
	assert.Equal(t, 7.0, hi)
	assert.Equal(t, 7.0, g.MaxAbsElevation())

	empty, err := NewGrid([][]float64{{math.NaN()}}, unitTransform)
	require.NoError(t, err)
	_, _, ok = empty.ElevationRange()
	assert.False(t, ok)
	assert.Zero(t, empty.MaxAbsElevation())
}

func TestSampler_Bilinear(t *testing.T) {
	t.Parallel()
	s := NewSampler(makeTestGrid(t))

	tests := []struct {
		name string
		p    r2.Vec
		want float64
	}{
		{"node", r2.Vec{X: 1.5, Y: 1.5}, 11},
		{"midway along row", r2.Vec{X: 1.0, Y: 2.5}, 0.5},
		{"midway along column", r2.Vec{X: 0.5, Y: 2.0}, 5},
		{"cell corner", r2.Vec{X: 1.0, Y: 2.0}, 5.5},
		{"quarter", r2.Vec{X: 0.75, Y: 2.25}, 0.25*1 + 0.25*10},
		{"west edge clamps", r2.Vec{X: 0, Y: 1.5}, 10},
		{"south-east corner", r2.Vec{X: 3, Y: 0}, 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.SampleAt(tt.p)
			require.NoError(t, err)
			require.True(t, got.Known)
			assert.InDelta(t, tt.want, got.Value, 1e-12)
		})
	}
}

func TestSampler_NoData(t *testing.T) {
	t.Parallel()
	g, err := NewGrid([][]float64{
		{1, math.NaN()},
		{3, 4},
	}, Transform{OriginX: 0, OriginY: 2, DX: 1, DY: 1})
	require.NoError(t, err)
	s := NewSampler(g)

	got := s.SampleUnchecked(r2.Vec{X: 1, Y: 1})
	assert.False(t, got.Known, "weighted no-data corner must propagate")

	got = s.SampleUnchecked(r2.Vec{X: 0.5, Y: 1})
	assert.True(t, got.Known, "zero-weight no-data corner is ignored")
	assert.InDelta(t, 2.0, got.Value, 1e-12)

	assert.False(t, s.Node(0, 1).Known)
	assert.Equal(t, Known(4), s.Node(1, 1))

	_, err = s.SampleAt(r2.Vec{X: 5, Y: 1})
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestSampler_SingleCell(t *testing.T) {
	t.Parallel()
	g, err := NewGrid([][]float64{{42}}, Transform{OriginX: 10, OriginY: 10, DX: 2, DY: 2})
	require.NoError(t, err)
	got, err := NewSampler(g).SampleAt(r2.Vec{X: 10.3, Y: 8.1})
	require.NoError(t, err)
	assert.Equal(t, Known(42), got)
}

func TestESRIASCII_RoundTrip(t *testing.T) {
	t.Parallel()
	src := `ncols 3
nrows 2
xllcorner 100
yllcorner 200
cellsize 5
NODATA_value -9999
1 2 3
4 -9999 6
`
	g, err := ReadESRIASCII(strings.NewReader(src))
	require.NoError(t, err)
	rows, cols := g.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, Transform{OriginX: 100, OriginY: 210, DX: 5, DY: 5}, g.Transform())
	assert.True(t, math.IsNaN(g.At(1, 1)))
	assert.Equal(t, 6.0, g.At(1, 2))

	var buf bytes.Buffer
	require.NoError(t, WriteESRIASCII(&buf, g, DefaultNoDataValue))
	assert.Equal(t, src, buf.String())
}

func TestESRIASCII_CenterOrigin(t *testing.T) {
	t.Parallel()
	src := "ncols 1\nnrows 1\nxllcenter 1\nyllcenter 1\ncellsize 2\n7\n"
	g, err := ReadESRIASCII(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, Transform{OriginX: 0, OriginY: 2, DX: 2, DY: 2}, g.Transform())
	assert.Equal(t, 7.0, g.At(0, 0))
}

func TestESRIASCII_Errors(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"missing dims":   "xllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"short data":     "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
		"missing origin": "ncols 1\nnrows 1\ncellsize 1\n1\n",
		"bad cell":       "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc\n",
		"bad cellsize":   "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 0\n1\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadESRIASCII(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestESRIASCII_RejectsBadDimensions(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"fractional cols": "ncols 2.9\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n",
		"fractional rows": "ncols 1\nnrows 1.5\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"zero cols":       "ncols 0\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"huge header":     "ncols 4e9\nnrows 4e9\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"over cell cap":   "ncols 65536\nnrows 65536\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var g *Grid
			var err error
			require.NotPanics(t, func() { g, err = ReadESRIASCII(strings.NewReader(src)) })
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrInvalidGrid)
		})
	}
}
