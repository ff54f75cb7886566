package viewshed

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/viewshed/internal/raster"
)

// SectorGrid partitions the full circle around the observer into Count
// equal angular sectors. Sector 0 starts at angle -π (due west) and sectors
// advance counter-clockwise.
type SectorGrid struct {
	Count int
}

// Width returns the angular width of one sector in radians.
func (sg SectorGrid) Width() float64 { return 2 * math.Pi / float64(sg.Count) }

// Sector returns the sector index containing angle a (radians).
func (sg SectorGrid) Sector(a float64) int {
	return sg.wrap(int(math.Floor((a + math.Pi) / sg.Width())))
}

// wrap maps an unwrapped sector index into [0, Count).
func (sg SectorGrid) wrap(k int) int {
	k %= sg.Count
	if k < 0 {
		k += sg.Count
	}
	return k
}

// MinSectors returns the coarsest sector count that still gives every
// boundary cell at the maximum radius around (obsRow, obsCol) its own
// sector.
func MinSectors(rows, cols, obsRow, obsCol int) int {
	r := obsRow
	if v := rows - 1 - obsRow; v > r {
		r = v
	}
	if obsCol > r {
		r = obsCol
	}
	if v := cols - 1 - obsCol; v > r {
		r = v
	}
	if r < 1 {
		r = 1
	}
	return 8 * r
}

// blocker is one grid node registered in a sector its influence square
// overlaps. Any bilinear profile sample that gives the node a non-zero
// weight lies inside that square, between dmin and dmax from the observer.
type blocker struct {
	dmin, dmax float64
	rise       float64 // node elevation minus eye elevation
	noData     bool
}

// bound is the steepest (sample - eye) / distance the node allows for a
// sample no nearer than near and no farther than reach.
func (b blocker) bound(near, reach float64) float64 {
	if b.rise >= 0 {
		return b.rise / math.Max(b.dmin, near)
	}
	return b.rise / math.Min(b.dmax, reach)
}

// target is one cell decided by the sector that owns its centre.
type target struct {
	delta r2.Vec
	dist  float64
	reach float64 // dist minus the near band: the far end of the middle run
	elev  float64
	idx   int // row*cols + col
	steps int
	// refer sends the cell straight to the evaluator: its terrain is
	// unknown or its profile is too short to have a middle run.
	refer bool
}

type sector struct {
	blockers []blocker
	targets  []target
}

// horizon is the settled state of one sector. It is threaded by value
// through the sector's loop so sectors share nothing.
type horizon struct {
	slope  float64 // upper bound on the slope of any middle-run sample of the current target
	noData bool    // a node that can touch a middle-run sample had no terrain
}

// sweeper holds the read-only state shared by all sector workers.
//
// A target's profile splits into two end runs, the samples within near of
// the observer or of the target, and the middle run between them. End runs
// are sampled exactly. The middle run is bounded by the sector horizon,
// which only collects nodes whose influence square reaches past near.
type sweeper struct {
	ev     *Evaluator
	cols   int
	eye    float64
	height float64
	near   float64
	grid   SectorGrid

	sectors []sector
}

// squareInflation widens each influence square so rounding in sample
// placement can never put a sample just outside it.
const squareInflation = 1 + 1e-9

// newSweeper registers every grid node as a blocker in each sector its
// influence square overlaps, and every cell other than the observer's as a
// target of the sector containing its centre.
func newSweeper(ev *Evaluator, sectors int) *sweeper {
	g := ev.grid
	rows, cols := g.Dims()
	tr := g.Transform()
	sg := SectorGrid{Count: sectors}
	sw := &sweeper{
		ev:      ev,
		cols:    cols,
		eye:     ev.eye,
		height:  ev.obs.Height,
		near:    2 * math.Hypot(tr.DX, tr.DY) * squareInflation,
		grid:    sg,
		sectors: make([]sector, sectors),
	}

	o := ev.obs.Position
	hx, hy := tr.DX*squareInflation, tr.DY*squareInflation

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := g.CellCenter(row, col)
			node := ev.sampler.Node(row, col)
			d := r2.Sub(c, o)
			theta := math.Atan2(d.Y, d.X)

			ax, ay := math.Abs(d.X), math.Abs(d.Y)
			b := blocker{
				dmin:   math.Hypot(math.Max(ax-hx, 0), math.Max(ay-hy, 0)),
				dmax:   math.Hypot(ax+hx, ay+hy),
				rise:   node.Value - sw.eye,
				noData: !node.Known,
			}
			switch {
			case b.dmax < sw.near:
				// Only ever touches end-run samples.
			case b.dmin == 0:
				for s := range sw.sectors {
					sw.sectors[s].blockers = append(sw.sectors[s].blockers, b)
				}
			default:
				first, last := sw.footprint(c, hx, hy, theta)
				for k := first; k <= last; k++ {
					s := sg.wrap(k)
					sw.sectors[s].blockers = append(sw.sectors[s].blockers, b)
				}
			}

			if row == ev.obsRow && col == ev.obsCol {
				continue
			}
			t := target{
				delta: d,
				dist:  r2.Norm(d),
				elev:  node.Value,
				idx:   row*cols + col,
				steps: ev.steps(d),
			}
			t.reach = t.dist - sw.near
			t.refer = !node.Known || !ev.ground.Known || t.steps < 2 || t.reach <= sw.near
			owner := sg.Sector(theta)
			sw.sectors[owner].targets = append(sw.sectors[owner].targets, t)
		}
	}
	return sw
}

// footprint returns the unwrapped sector range covered by the square of
// half-widths (hx, hy) centred on c, seen from the observer at angle theta.
// The observer must lie outside the square.
func (sw *sweeper) footprint(c r2.Vec, hx, hy, theta float64) (first, last int) {
	o := sw.ev.obs.Position
	lo, hi := 0.0, 0.0
	for _, k := range [4]r2.Vec{
		{X: c.X - hx, Y: c.Y - hy},
		{X: c.X + hx, Y: c.Y - hy},
		{X: c.X - hx, Y: c.Y + hy},
		{X: c.X + hx, Y: c.Y + hy},
	} {
		v := r2.Sub(k, o)
		da := wrapAngle(math.Atan2(v.Y, v.X) - theta)
		lo = math.Min(lo, da)
		hi = math.Max(hi, da)
	}
	width := sw.grid.Width()
	first = int(math.Floor((theta + lo + math.Pi) / width))
	last = int(math.Floor((theta + hi + math.Pi) / width))
	if last-first >= sw.grid.Count {
		last = first + sw.grid.Count - 1
	}
	return first, last
}

// wrapAngle maps a into (-π, π].
func wrapAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// sweepSector walks one sector's targets in increasing distance and hands
// each target's decision to emit. A blocker joins the horizon once its
// influence square starts inside the target's middle run. A node below the
// eye whose square reaches past the middle run stays pending and is bounded
// at the run's far end instead. It returns the final settled horizon and
// how many targets were resolved without a full profile.
func (sw *sweeper) sweepSector(sec *sector, emit func(idx int, d Decision)) (horizon, int) {
	slices.SortFunc(sec.blockers, func(a, b blocker) int { return cmp.Compare(a.dmin, b.dmin) })
	slices.SortFunc(sec.targets, func(a, b target) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})

	h := horizon{slope: math.Inf(-1)}
	var pending []blocker
	next, resolved := 0, 0
	for _, t := range sec.targets {
		for ; next < len(sec.blockers) && sec.blockers[next].dmin <= t.reach; next++ {
			b := sec.blockers[next]
			switch {
			case b.noData:
				h.noData = true
			case b.rise < 0 && b.dmax > t.reach:
				pending = append(pending, b)
			default:
				h = raise(h, b.bound(sw.near, b.dmax))
			}
		}

		slope := h.slope
		kept := pending[:0]
		for _, b := range pending {
			if b.dmax <= t.reach {
				h = raise(h, b.bound(sw.near, b.dmax))
				continue
			}
			slope = math.Max(slope, b.bound(sw.near, t.reach))
			kept = append(kept, b)
		}
		pending = kept

		d, ok := sw.decide(horizon{slope: math.Max(slope, h.slope), noData: h.noData}, t)
		if ok {
			resolved++
		}
		emit(t.idx, d)
	}
	for _, b := range pending {
		h = raise(h, b.bound(sw.near, b.dmax))
	}
	for _, b := range sec.blockers[next:] {
		if b.noData {
			h.noData = true
			continue
		}
		h = raise(h, b.bound(sw.near, b.dmax))
	}
	return h, resolved
}

func raise(h horizon, slope float64) horizon {
	if slope > h.slope {
		h.slope = slope
	}
	return h
}

// decide samples t's end runs exactly and leans on h for the middle run.
// It returns the evaluator's own decision whenever the bound is not tight
// enough to reproduce it; ok is false on that path.
func (sw *sweeper) decide(h horizon, t target) (d Decision, ok bool) {
	row, col := t.idx/sw.cols, t.idx%sw.cols
	if t.refer || h.noData || !(h.slope < math.Inf(1)) {
		return sw.ev.Evaluate(row, col), false
	}

	n := float64(t.steps)
	head := min(int(math.Floor(sw.near*n/t.dist)), t.steps-1)
	tail := max(int(math.Ceil(t.reach*n/t.dist)), head+1)

	endSlope := math.Inf(-1)
	for _, run := range [2][2]int{{1, head}, {tail, t.steps - 1}} {
		for i := run[0]; i <= run[1]; i++ {
			s, blocked, slope := sw.ev.sampleStep(t.delta, t.dist, t.elev, i, t.steps)
			if !s.Known {
				return sw.ev.Evaluate(row, col), false
			}
			if blocked {
				return Decision{}, true
			}
			endSlope = math.Max(endSlope, slope)
		}
	}

	slack := 1e-9 * math.Max(1, math.Max(math.Abs(sw.eye), math.Abs(t.elev)+sw.height))
	clear := t.elev - (sw.eye + h.slope*t.dist)
	switch {
	case !(clear >= slack):
		// The middle run may occlude.
	case h.slope < endSlope-1e-9*math.Max(1, math.Abs(endSlope)):
		// The steepest sample is in an end run, so the margin is exact.
		return Decision{Visible: true, Margin: margin(t.elev, sw.eye, endSlope, t.dist, sw.height)}, true
	case clear >= sw.height+slack && t.elev-(sw.eye+endSlope*t.dist) >= sw.height+slack:
		return Decision{Visible: true, Margin: sw.height}, true
	}
	return sw.ev.Evaluate(row, col), false
}

// resolveSectors returns the sector count to sweep with, or zero when the
// requested resolution is too coarse to trust and the exact strategy must
// be used instead.
func resolveSectors(requested int, g *raster.Grid, obsRow, obsCol int) int {
	rows, cols := g.Dims()
	minimum := MinSectors(rows, cols, obsRow, obsCol)
	if requested == 0 {
		return minimum
	}
	if requested < minimum {
		diagf("sector count %d coarser than %d; falling back to exact evaluation", requested, minimum)
		return 0
	}
	return requested
}
