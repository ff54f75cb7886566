package viewshed

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a Result into headline figures.
type Summary struct {
	Cells           int
	Visible         int
	Hidden          int // hidden or indeterminate
	Indeterminate   int
	VisibleFraction float64
	MeanMargin      float64 // NaN when nothing is visible
	MinMargin       float64
	MaxMargin       float64
}

// Summary computes headline figures over the visible cells.
func (r *Result) Summary() Summary {
	rows, cols := r.Grid.Dims()
	margins := make([]float64, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if v := r.Grid.At(row, col); !math.IsNaN(v) && !math.IsInf(v, 0) {
				margins = append(margins, v)
			}
		}
	}

	s := Summary{
		Cells:         rows * cols,
		Visible:       len(margins),
		Hidden:        rows*cols - len(margins),
		Indeterminate: r.Indeterminate,
		MeanMargin:    math.NaN(),
		MinMargin:     math.NaN(),
		MaxMargin:     math.NaN(),
	}
	s.VisibleFraction = float64(s.Visible) / float64(s.Cells)
	if len(margins) > 0 {
		s.MeanMargin = stat.Mean(margins, nil)
		s.MinMargin = floats.Min(margins)
		s.MaxMargin = floats.Max(margins)
	}
	return s
}
