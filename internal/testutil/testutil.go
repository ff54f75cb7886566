// Package testutil provides shared test utilities and terrain fixtures.
//
// This package centralises the synthetic elevation grids used across the
// raster and viewshed tests so every package exercises the same terrain.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/viewshed/internal/raster"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// UnitTransform returns a transform with unit square cells whose north-west
// corner sits at (0, rows), so the grid covers [0, cols] x [0, rows].
func UnitTransform(rows int) raster.Transform {
	return raster.Transform{OriginX: 0, OriginY: float64(rows), DX: 1, DY: 1}
}

// Terrain builds a rows x cols grid from f evaluated at every cell index.
func Terrain(t *testing.T, rows, cols int, f func(row, col int) float64) *raster.Grid {
	t.Helper()
	values := make([][]float64, rows)
	for r := range values {
		values[r] = make([]float64, cols)
		for c := range values[r] {
			values[r][c] = f(r, c)
		}
	}
	g, err := raster.NewGrid(values, UnitTransform(rows))
	AssertNoError(t, err)
	return g
}

// Flat returns a constant-elevation grid.
func Flat(t *testing.T, rows, cols int, elev float64) *raster.Grid {
	t.Helper()
	return Terrain(t, rows, cols, func(int, int) float64 { return elev })
}

// GaussianBump returns a grid of zero elevation with a Gaussian hill of the
// given amplitude and width (in cells) centred on the middle cell.
func GaussianBump(t *testing.T, size int, amplitude, sigma float64) *raster.Grid {
	t.Helper()
	mid := float64(size-1) / 2
	return Terrain(t, size, size, func(r, c int) float64 {
		dr, dc := float64(r)-mid, float64(c)-mid
		return amplitude * math.Exp(-(dr*dr+dc*dc)/(2*sigma*sigma))
	})
}

// Wall returns a flat zero grid with row wallRow raised to height.
func Wall(t *testing.T, rows, cols, wallRow int, height float64) *raster.Grid {
	t.Helper()
	return Terrain(t, rows, cols, func(r, _ int) float64 {
		if r == wallRow {
			return height
		}
		return 0
	})
}

// Ridge returns a grid with a triangular ridge running north-south along
// column ridgeCol, falling off linearly with slope per column.
func Ridge(t *testing.T, rows, cols, ridgeCol int, peak, slope float64) *raster.Grid {
	t.Helper()
	return Terrain(t, rows, cols, func(_, c int) float64 {
		return math.Max(0, peak-slope*math.Abs(float64(c-ridgeCol)))
	})
}

// WithHoles returns a copy of g with the listed [row, col] cells set to NaN.
func WithHoles(t *testing.T, g *raster.Grid, holes ...[2]int) *raster.Grid {
	t.Helper()
	rows, cols := g.Dims()
	out := Terrain(t, rows, cols, func(r, c int) float64 {
		for _, h := range holes {
			if h[0] == r && h[1] == c {
				return math.NaN()
			}
		}
		return g.At(r, c)
	})
	return out
}
