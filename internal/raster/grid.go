package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Transform is the affine, axis-aligned mapping from array index to world
// coordinate. The origin is the north-west corner of the grid; columns grow
// east (+x) and rows grow south (-y).
type Transform struct {
	OriginX float64 // world x of the west edge
	OriginY float64 // world y of the north edge
	DX      float64 // cell width, strictly positive
	DY      float64 // cell height, strictly positive
}

// Validate checks that the transform is finite with positive cell sizes.
func (t Transform) Validate() error {
	if !finite(t.OriginX) || !finite(t.OriginY) {
		return invalidGridf("origin must be finite, got (%g, %g)", t.OriginX, t.OriginY)
	}
	if !finite(t.DX) || t.DX <= 0 {
		return invalidGridf("cell width must be finite and positive, got %g", t.DX)
	}
	if !finite(t.DY) || t.DY <= 0 {
		return invalidGridf("cell height must be finite and positive, got %g", t.DY)
	}
	return nil
}

// Extent is the closed world-coordinate rectangle covered by a grid.
type Extent struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Contains reports whether p lies inside the closed extent.
func (e Extent) Contains(p r2.Vec) bool {
	return p.X >= e.MinX && p.X <= e.MaxX && p.Y >= e.MinY && p.Y <= e.MaxY
}

// Grid is an immutable rows x cols elevation field with its transform.
// Non-finite values are permitted and stand for missing terrain.
type Grid struct {
	dense *mat.Dense
	// raw view of dense for the sampler hot path
	data   []float64
	stride int

	rows, cols int
	tr         Transform
}

// NewGrid validates a row-major 2-D array and copies it into a new Grid.
func NewGrid(values [][]float64, tr Transform) (*Grid, error) {
	if len(values) == 0 {
		return nil, invalidGridf("grid has no rows")
	}
	cols := len(values[0])
	if cols == 0 {
		return nil, invalidGridf("grid has no columns")
	}
	data := make([]float64, 0, len(values)*cols)
	for r, row := range values {
		if len(row) != cols {
			return nil, invalidGridf("row %d has %d columns, want %d", r, len(row), cols)
		}
		data = append(data, row...)
	}
	return NewGridFromSlice(len(values), cols, data, tr)
}

// NewGridFromDense clones m into a new Grid.
func NewGridFromDense(m *mat.Dense, tr Transform) (*Grid, error) {
	if m == nil || m.IsEmpty() {
		return nil, invalidGridf("grid matrix is empty")
	}
	var d mat.Dense
	d.CloneFrom(m)
	return newGrid(&d, tr)
}

// NewGridFromSlice builds a Grid over a row-major backing slice. The grid
// takes ownership of data; callers must not modify it afterwards.
func NewGridFromSlice(rows, cols int, data []float64, tr Transform) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, invalidGridf("grid dimensions must be positive, got %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, invalidGridf("backing slice has %d values, want %d", len(data), rows*cols)
	}
	return newGrid(mat.NewDense(rows, cols, data), tr)
}

func newGrid(d *mat.Dense, tr Transform) (*Grid, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	raw := d.RawMatrix()
	return &Grid{
		dense:  d,
		data:   raw.Data,
		stride: raw.Stride,
		rows:   raw.Rows,
		cols:   raw.Cols,
		tr:     tr,
	}, nil
}

// Dims returns the number of rows and columns.
func (g *Grid) Dims() (rows, cols int) { return g.rows, g.cols }

// Transform returns the grid's index-to-world transform.
func (g *Grid) Transform() Transform { return g.tr }

// At returns the elevation stored at (row, col). The value may be
// non-finite. It panics if the index is outside the grid.
func (g *Grid) At(row, col int) float64 {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		panic("raster: index out of range")
	}
	return g.data[row*g.stride+col]
}

// at skips bounds checks; callers hold validated indices.
func (g *Grid) at(row, col int) float64 {
	return g.data[row*g.stride+col]
}

// Matrix returns a read-only view of the underlying matrix.
func (g *Grid) Matrix() mat.Matrix { return g.dense }

// Extent returns the closed world rectangle covered by the grid.
func (g *Grid) Extent() Extent {
	return Extent{
		MinX: g.tr.OriginX,
		MaxX: g.tr.OriginX + float64(g.cols)*g.tr.DX,
		MinY: g.tr.OriginY - float64(g.rows)*g.tr.DY,
		MaxY: g.tr.OriginY,
	}
}

// Contains reports whether p lies inside the grid extent (edges included).
func (g *Grid) Contains(p r2.Vec) bool { return g.Extent().Contains(p) }

// CellCenter returns the world coordinate of the centre of (row, col).
func (g *Grid) CellCenter(row, col int) r2.Vec {
	return r2.Vec{
		X: g.tr.OriginX + (float64(col)+0.5)*g.tr.DX,
		Y: g.tr.OriginY - (float64(row)+0.5)*g.tr.DY,
	}
}

// CellOf returns the cell containing p. Points on the east or south edge
// belong to the last column or row.
func (g *Grid) CellOf(p r2.Vec) (row, col int, err error) {
	if !g.Contains(p) {
		return 0, 0, &OutOfBoundsError{X: p.X, Y: p.Y, Extent: g.Extent()}
	}
	col = clampInt(int(math.Floor((p.X-g.tr.OriginX)/g.tr.DX)), 0, g.cols-1)
	row = clampInt(int(math.Floor((g.tr.OriginY-p.Y)/g.tr.DY)), 0, g.rows-1)
	return row, col, nil
}

// Index returns the fractional (row, col) position of p in cell-centre
// space, i.e. (0, 0) is the centre of the north-west cell.
func (g *Grid) Index(p r2.Vec) (row, col float64) {
	return (g.tr.OriginY-p.Y)/g.tr.DY - 0.5, (p.X-g.tr.OriginX)/g.tr.DX - 0.5
}

// Corners describes the enclosing cell of a world point for interpolation:
// the four surrounding grid nodes and the fractional offsets towards the
// second row and column.
type Corners struct {
	Row0, Col0 int
	Row1, Col1 int
	U          float64 // offset along columns, in [0, 1)
	V          float64 // offset along rows, in [0, 1)
}

// Locate returns the corner indices and fractional offsets for p.
func (g *Grid) Locate(p r2.Vec) (Corners, error) {
	if !g.Contains(p) {
		return Corners{}, &OutOfBoundsError{X: p.X, Y: p.Y, Extent: g.Extent()}
	}
	return g.locate(p), nil
}

// locate assumes p lies inside the extent. Coordinates beyond the outermost
// cell centres clamp to the edge, where the two corners along that axis
// collapse onto the nearest node.
func (g *Grid) locate(p r2.Vec) Corners {
	fr, fc := g.Index(p)
	r0, r1, v := axis(fr, g.rows)
	c0, c1, u := axis(fc, g.cols)
	return Corners{Row0: r0, Col0: c0, Row1: r1, Col1: c1, U: u, V: v}
}

func axis(f float64, n int) (i0, i1 int, frac float64) {
	if f <= 0 || n == 1 {
		return 0, minInt(1, n-1), 0
	}
	last := float64(n - 1)
	if f >= last {
		return n - 1, n - 1, 0
	}
	i0 = int(math.Floor(f))
	return i0, i0 + 1, f - float64(i0)
}

// ElevationRange returns the smallest and largest finite elevations. ok is
// false when the grid holds no finite value at all.
func (g *Grid) ElevationRange() (lo, hi float64, ok bool) {
	vals := make([]float64, 0, g.rows*g.cols)
	for r := 0; r < g.rows; r++ {
		for _, v := range g.data[r*g.stride : r*g.stride+g.cols] {
			if finite(v) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}

// MaxAbsElevation returns the largest finite |elevation|, or 0 when the
// grid has no finite values.
func (g *Grid) MaxAbsElevation() float64 {
	lo, hi, ok := g.ElevationRange()
	if !ok {
		return 0
	}
	return math.Max(math.Abs(lo), math.Abs(hi))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// IsFinite reports whether v is a usable elevation.
func IsFinite(v float64) bool { return finite(v) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
