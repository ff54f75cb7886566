package viewshed

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/viewshed/internal/raster"
)

// ErrInvalidObserver is returned for observers with an unusable height.
var ErrInvalidObserver = errors.New("invalid observer")

// Observer is a viewpoint in world coordinates. Height is added to the
// terrain interpolated at Position to give the eye elevation.
type Observer struct {
	Position r2.Vec
	Height   float64
}

// NewObserver is shorthand for an Observer at (x, y).
func NewObserver(x, y, height float64) Observer {
	return Observer{Position: r2.Vec{X: x, Y: y}, Height: height}
}

// Validate checks the observer against g. Positions outside the extent
// return a *raster.OutOfBoundsError; points on an edge or corner are valid.
func (o Observer) Validate(g *raster.Grid) error {
	if math.IsNaN(o.Height) || math.IsInf(o.Height, 0) || o.Height < 0 {
		return fmt.Errorf("%w: height must be finite and non-negative, got %g", ErrInvalidObserver, o.Height)
	}
	if math.IsNaN(o.Position.X) || math.IsNaN(o.Position.Y) {
		return fmt.Errorf("%w: position is NaN", ErrInvalidObserver)
	}
	if !g.Contains(o.Position) {
		return &raster.OutOfBoundsError{X: o.Position.X, Y: o.Position.Y, Extent: g.Extent()}
	}
	return nil
}
