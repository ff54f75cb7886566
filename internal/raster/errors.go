package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGrid matches any *InvalidGridError via errors.Is.
	ErrInvalidGrid = errors.New("invalid grid")
	// ErrOutOfBounds matches any *OutOfBoundsError via errors.Is.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
)

// InvalidGridError reports a structurally unusable grid or transform.
// It is raised before any computation starts.
type InvalidGridError struct {
	Reason string
}

func (e *InvalidGridError) Error() string {
	return "invalid grid: " + e.Reason
}

// Is lets errors.Is(err, ErrInvalidGrid) succeed.
func (e *InvalidGridError) Is(target error) bool { return target == ErrInvalidGrid }

func invalidGridf(format string, args ...interface{}) error {
	return &InvalidGridError{Reason: fmt.Sprintf(format, args...)}
}

// OutOfBoundsError reports a world coordinate outside the grid extent.
type OutOfBoundsError struct {
	X, Y   float64
	Extent Extent
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("coordinate (%g, %g) outside extent x=[%g, %g] y=[%g, %g]",
		e.X, e.Y, e.Extent.MinX, e.Extent.MaxX, e.Extent.MinY, e.Extent.MaxY)
}

// Is lets errors.Is(err, ErrOutOfBounds) succeed.
func (e *OutOfBoundsError) Is(target error) bool { return target == ErrOutOfBounds }
