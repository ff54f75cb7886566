package raster

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Sample is an interpolated elevation tagged with whether it is known.
// Missing terrain is carried as Known == false instead of NaN so callers
// branch on the tag rather than on floating-point propagation rules.
type Sample struct {
	Value float64
	Known bool
}

// Known wraps a finite elevation.
func Known(v float64) Sample { return Sample{Value: v, Known: true} }

// Unknown is the sample for missing terrain.
func Unknown() Sample { return Sample{} }

// Sampler evaluates a Grid at arbitrary world coordinates by bilinear
// interpolation of the four surrounding cell centres.
type Sampler struct {
	grid *Grid
}

// NewSampler returns a sampler over g.
func NewSampler(g *Grid) *Sampler {
	return &Sampler{grid: g}
}

// Grid returns the sampled grid.
func (s *Sampler) Grid() *Grid { return s.grid }

// SampleAt validates p against the grid extent and samples it.
func (s *Sampler) SampleAt(p r2.Vec) (Sample, error) {
	if !s.grid.Contains(p) {
		return Unknown(), &OutOfBoundsError{X: p.X, Y: p.Y, Extent: s.grid.Extent()}
	}
	return s.SampleUnchecked(p), nil
}

// SampleUnchecked samples p without checking the extent. p must already be
// known to lie inside the grid; every point on a segment between two
// in-extent points does.
func (s *Sampler) SampleUnchecked(p r2.Vec) Sample {
	return s.Interpolate(s.grid.locate(p))
}

// Interpolate blends the four corner elevations described by c. A corner
// that carries weight and is non-finite makes the result Unknown; corners
// with zero weight are never read.
func (s *Sampler) Interpolate(c Corners) Sample {
	g := s.grid
	u, v := c.U, c.V

	var sum float64
	add := func(w float64, row, col int) bool {
		if w == 0 {
			return true
		}
		e := g.at(row, col)
		if !finite(e) {
			return false
		}
		sum += w * e
		return true
	}

	if !add((1-u)*(1-v), c.Row0, c.Col0) ||
		!add(u*(1-v), c.Row0, c.Col1) ||
		!add((1-u)*v, c.Row1, c.Col0) ||
		!add(u*v, c.Row1, c.Col1) {
		return Unknown()
	}
	return Known(sum)
}

// Node returns the elevation stored at (row, col) as a tagged sample.
func (s *Sampler) Node(row, col int) Sample {
	e := s.grid.at(row, col)
	if !finite(e) {
		return Unknown()
	}
	return Known(e)
}
