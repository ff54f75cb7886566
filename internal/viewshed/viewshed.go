package viewshed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/viewshed/internal/raster"
)

// IndeterminateSampleWarning reports that sight profiles crossed missing
// terrain. It never aborts a computation; it is returned in
// Result.Warnings and logged on the ops stream.
type IndeterminateSampleWarning struct {
	Cells  int          // targets whose profile or own terrain had no data
	Policy NoDataPolicy // how the crossings were resolved
	// ObserverNoData is set when the terrain under the observer is missing,
	// which leaves every target but the observer's own cell indeterminate.
	ObserverNoData bool
}

func (w IndeterminateSampleWarning) Error() string {
	if w.ObserverNoData {
		return "observer stands on no-data terrain; all targets indeterminate"
	}
	return fmt.Sprintf("%d targets crossed no-data terrain (policy %s)", w.Cells, w.Policy)
}

// Result is a completed viewshed.
type Result struct {
	RunID uuid.UUID
	// Grid has the input's shape and transform. Visible cells hold their
	// visibility margin; hidden and indeterminate cells hold NaN.
	Grid *raster.Grid

	Observer                 Observer
	ObserverRow, ObserverCol int
	EyeElevation             float64 // NaN when the observer stands on no-data
	Strategy                 Strategy
	Sectors                  int // zero unless Strategy is StrategySweep
	Tolerance                float64
	Indeterminate            int
	Warnings                 []IndeterminateSampleWarning
	Elapsed                  time.Duration
}

// Visible reports whether (row, col) is visible from the observer.
func (r *Result) Visible(row, col int) bool {
	return raster.IsFinite(r.Grid.At(row, col))
}

// Mask returns the visibility of every cell as a row-major boolean grid.
func (r *Result) Mask() [][]bool {
	rows, cols := r.Grid.Dims()
	mask := make([][]bool, rows)
	for row := range mask {
		mask[row] = make([]bool, cols)
		for col := range mask[row] {
			mask[row][col] = r.Visible(row, col)
		}
	}
	return mask
}

// Compute returns the viewshed of g from obs. A nil cfg uses DefaultConfig.
//
// Input errors (*raster.OutOfBoundsError, ErrInvalidObserver, invalid
// config) are reported before any work starts. Cancelling ctx aborts at the
// next partition boundary and returns ctx's error without a partial grid.
func Compute(ctx context.Context, g *raster.Grid, obs Observer, cfg *Config) (*Result, error) {
	start := time.Now()
	if g == nil {
		return nil, &raster.InvalidGridError{Reason: "nil grid"}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ev, err := NewEvaluator(g, obs, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:        uuid.New(),
		Observer:     obs,
		ObserverRow:  ev.obsRow,
		ObserverCol:  ev.obsCol,
		EyeElevation: ev.eye,
		Strategy:     cfg.Strategy,
		Tolerance:    ev.tol,
	}

	rows, cols := g.Dims()
	agg := newAggregator(rows, cols, cfg.MarkIndeterminate)

	switch {
	case !ev.ground.Known:
		opsf("run %s: observer at (%g, %g) stands on no-data terrain", res.RunID, obs.Position.X, obs.Position.Y)
		agg.fillUnknown()
		res.Strategy = StrategyExact
		res.Warnings = append(res.Warnings, IndeterminateSampleWarning{
			Cells:          rows*cols - 1,
			Policy:         cfg.NoData,
			ObserverNoData: true,
		})
	default:
		if cfg.Strategy == StrategySweep {
			res.Sectors = resolveSectors(cfg.Sectors, g, ev.obsRow, ev.obsCol)
			if res.Sectors == 0 {
				res.Strategy = StrategyExact
			}
		}
		diagf("run %s: %dx%d grid, observer cell (%d, %d), eye %.3f, strategy %s, sectors %d, tolerance %g",
			res.RunID, rows, cols, ev.obsRow, ev.obsCol, ev.eye, res.Strategy, res.Sectors, ev.tol)

		if res.Strategy == StrategySweep {
			err = runSweep(ctx, ev, res.Sectors, cfg.workers(), agg)
		} else {
			err = runExact(ctx, ev, cfg.workers(), agg)
		}
		if err != nil {
			return nil, fmt.Errorf("viewshed run %s: %w", res.RunID, err)
		}
		if n := agg.noDataTotal(); n > 0 {
			w := IndeterminateSampleWarning{Cells: n, Policy: cfg.NoData}
			opsf("run %s: %v", res.RunID, w)
			res.Warnings = append(res.Warnings, w)
		}
	}

	agg.setObserver(ev.obsRow, ev.obsCol, obs.Height)
	res.Indeterminate = agg.noDataTotal()
	if res.Grid, err = agg.grid(g.Transform()); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)
	diagf("run %s: done in %v, %d indeterminate", res.RunID, res.Elapsed, res.Indeterminate)
	return res, nil
}

// aggregator owns the output cells. Workers write disjoint cells through
// partition-local sinks; per-partition counters are merged after the pool
// has been joined.
type aggregator struct {
	rows, cols        int
	cells             []float64
	markIndeterminate bool
	noData            []int // per partition
}

func newAggregator(rows, cols int, markIndeterminate bool) *aggregator {
	return &aggregator{
		rows:              rows,
		cols:              cols,
		cells:             make([]float64, rows*cols),
		markIndeterminate: markIndeterminate,
	}
}

// partitions sizes the per-partition counters before a run.
func (a *aggregator) partitions(n int) {
	a.noData = make([]int, n)
}

// write stores d for cell idx on behalf of partition part.
func (a *aggregator) write(part, idx int, d Decision) {
	if d.NoData {
		a.noData[part]++
	}
	switch {
	case !d.Visible:
		a.cells[idx] = math.NaN()
	case d.NoData && a.markIndeterminate:
		a.cells[idx] = math.NaN()
	default:
		a.cells[idx] = d.Margin
	}
}

func (a *aggregator) fillUnknown() {
	for i := range a.cells {
		a.cells[i] = math.NaN()
	}
	a.noData = []int{len(a.cells) - 1}
}

func (a *aggregator) setObserver(row, col int, height float64) {
	a.cells[row*a.cols+col] = height
}

func (a *aggregator) noDataTotal() int {
	n := 0
	for _, v := range a.noData {
		n += v
	}
	return n
}

func (a *aggregator) grid(tr raster.Transform) (*raster.Grid, error) {
	return raster.NewGridFromSlice(a.rows, a.cols, a.cells, tr)
}
