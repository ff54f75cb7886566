package viewshed

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/viewshed/internal/raster"
)

// Decision is the visibility verdict for one target cell.
type Decision struct {
	Visible bool
	// Margin is the vertical clearance of the target above the highest
	// sight line grazing the intervening terrain, capped at the observer
	// height. Only meaningful when Visible.
	Margin float64
	// NoData is set when the target itself or any profile sample between
	// it and the observer had no terrain.
	NoData bool
}

// ProfileSample is one point of a sight profile.
type ProfileSample struct {
	T           float64 // fraction of the way from observer to target
	Distance    float64 // planar distance from the observer
	LineOfSight float64 // elevation of the unobstructed sight line
	Terrain     raster.Sample
}

// Evaluator decides line of sight from one observer to any cell of a grid.
// It is safe for concurrent use.
type Evaluator struct {
	grid    *raster.Grid
	sampler *raster.Sampler
	obs     Observer

	obsRow, obsCol int
	ground         raster.Sample
	eye            float64

	tol            float64
	samplesPerCell float64
	nodata         NoDataPolicy
}

// NewEvaluator validates obs against g and resolves the eye elevation.
// A nil cfg uses DefaultConfig.
func NewEvaluator(g *raster.Grid, obs Observer, cfg *Config) (*Evaluator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := obs.Validate(g); err != nil {
		return nil, err
	}
	row, col, err := g.CellOf(obs.Position)
	if err != nil {
		return nil, err
	}
	s := raster.NewSampler(g)
	ground := s.SampleUnchecked(obs.Position)
	eye := math.NaN()
	if ground.Known {
		eye = ground.Value + obs.Height
	}
	return &Evaluator{
		grid:           g,
		sampler:        s,
		obs:            obs,
		obsRow:         row,
		obsCol:         col,
		ground:         ground,
		eye:            eye,
		tol:            cfg.OcclusionTolerance(g),
		samplesPerCell: cfg.SamplesPerCell,
		nodata:         cfg.NoData,
	}, nil
}

// ObserverCell returns the grid cell containing the observer.
func (e *Evaluator) ObserverCell() (row, col int) { return e.obsRow, e.obsCol }

// EyeElevation returns the observer's eye elevation and whether the terrain
// under the observer is known.
func (e *Evaluator) EyeElevation() (float64, bool) { return e.eye, e.ground.Known }

// Tolerance returns the absolute occlusion tolerance in elevation units.
func (e *Evaluator) Tolerance() float64 { return e.tol }

// chebyshev returns the offset delta measured in cells along the longer axis.
func (e *Evaluator) chebyshev(delta r2.Vec) float64 {
	tr := e.grid.Transform()
	return math.Max(math.Abs(delta.X)/tr.DX, math.Abs(delta.Y)/tr.DY)
}

// steps returns the number of profile intervals between the observer and a
// target offset by delta: at least one per cell of Chebyshev distance.
func (e *Evaluator) steps(delta r2.Vec) int {
	n := int(math.Ceil(e.chebyshev(delta)*e.samplesPerCell - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// Evaluate decides whether (row, col) is visible. The walk stops at the
// first occluding sample.
func (e *Evaluator) Evaluate(row, col int) Decision {
	if row == e.obsRow && col == e.obsCol {
		return Decision{Visible: true, Margin: e.obs.Height}
	}
	if !e.ground.Known {
		return Decision{NoData: true}
	}
	target := e.sampler.Node(row, col)
	if !target.Known {
		return Decision{NoData: true}
	}

	delta := r2.Sub(e.grid.CellCenter(row, col), e.obs.Position)
	dist := r2.Norm(delta)
	if dist == 0 {
		return Decision{Visible: true, Margin: e.obs.Height}
	}

	n := e.steps(delta)
	horizon := math.Inf(-1)
	noData := false
	for i := 1; i < n; i++ {
		s, blocked, slope := e.sampleStep(delta, dist, target.Value, i, n)
		if !s.Known {
			if e.nodata == NoDataOpaque {
				return Decision{NoData: true}
			}
			noData = true
			continue
		}
		if blocked {
			return Decision{NoData: noData}
		}
		if slope > horizon {
			horizon = slope
		}
	}
	return Decision{
		Visible: true,
		Margin:  margin(target.Value, e.eye, horizon, dist, e.obs.Height),
		NoData:  noData,
	}
}

// sampleStep samples point i of n on the profile toward a target at
// elevation elev, offset delta and distance dist from the observer. It
// reports whether the sample occludes the target and the sample's slope
// above the eye. Both are zero when the terrain is unknown.
func (e *Evaluator) sampleStep(delta r2.Vec, dist, elev float64, i, n int) (s raster.Sample, blocked bool, slope float64) {
	t := float64(i) / float64(n)
	s = e.sampler.SampleUnchecked(r2.Add(e.obs.Position, r2.Scale(t, delta)))
	if !s.Known {
		return s, false, 0
	}
	los := e.eye + t*(elev-e.eye)
	return s, los-s.Value < -e.tol, (s.Value - e.eye) / (t * dist)
}

// margin is the clearance of a target at elevation elev and distance dist
// above the sight line with the given horizon slope, capped at height.
func margin(elev, eye, horizon, dist, height float64) float64 {
	if math.IsInf(horizon, -1) {
		return height
	}
	return math.Min(height, elev-(eye+horizon*dist))
}

// Profile returns the sight profile from the observer to (row, col),
// including both end points. It is intended for diagnostics; Evaluate does
// not materialise it.
func (e *Evaluator) Profile(row, col int) []ProfileSample {
	center := e.grid.CellCenter(row, col)
	delta := r2.Sub(center, e.obs.Position)
	dist := r2.Norm(delta)
	target := e.sampler.Node(row, col)

	n := e.steps(delta)
	out := make([]ProfileSample, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		ps := ProfileSample{T: t, Distance: t * dist, LineOfSight: math.NaN()}
		switch i {
		case 0:
			ps.Terrain = e.ground
		case n:
			ps.Terrain = target
		default:
			ps.Terrain = e.sampler.SampleUnchecked(r2.Add(e.obs.Position, r2.Scale(t, delta)))
		}
		if e.ground.Known && target.Known {
			ps.LineOfSight = e.eye + t*(target.Value-e.eye)
		}
		out = append(out, ps)
	}
	return out
}
