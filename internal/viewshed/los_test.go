package viewshed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/viewshed/internal/testutil"
)

func TestNewEvaluator(t *testing.T) {
	t.Parallel()

	g := testutil.Flat(t, 5, 11, 7)
	ev, err := NewEvaluator(g, observerAt(g, 2, 0, 1.5), nil)
	require.NoError(t, err)

	row, col := ev.ObserverCell()
	assert.Equal(t, 2, row)
	assert.Equal(t, 0, col)

	eye, known := ev.EyeElevation()
	assert.True(t, known)
	assert.InDelta(t, 8.5, eye, 1e-12)
	assert.InDelta(t, 7e-9, ev.Tolerance(), 1e-18)

	ev, err = NewEvaluator(g, observerAt(g, 2, 0, 1.5), DefaultConfig().WithTolerance(0.25))
	require.NoError(t, err)
	assert.Equal(t, 0.25, ev.Tolerance())
}

func TestEvaluator_Steps(t *testing.T) {
	t.Parallel()

	g := testutil.Flat(t, 21, 21, 0)
	tests := []struct {
		name           string
		row, col       int
		samplesPerCell float64
		want           int
	}{
		{"adjacent", 10, 11, 1, 1},
		{"row dominant", 0, 13, 1, 10},
		{"column dominant", 12, 0, 1, 10},
		{"diagonal", 3, 3, 1, 7},
		{"oversampled", 10, 14, 2.5, 10},
		{"fractional density rounds up", 10, 13, 1.5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := NewEvaluator(g, observerAt(g, 10, 10, 1), DefaultConfig().WithSamplesPerCell(tt.samplesPerCell))
			require.NoError(t, err)
			p := ev.Profile(tt.row, tt.col)
			assert.Len(t, p, tt.want+1)
		})
	}
}

func TestEvaluator_Profile(t *testing.T) {
	t.Parallel()

	g := testutil.WithHoles(t, testutil.Flat(t, 5, 11, 0), [2]int{2, 5})
	ev, err := NewEvaluator(g, observerAt(g, 2, 0, 1), nil)
	require.NoError(t, err)

	p := ev.Profile(2, 10)
	require.Len(t, p, 11)

	first, last := p[0], p[len(p)-1]
	assert.Equal(t, 0.0, first.T)
	assert.Equal(t, 0.0, first.Distance)
	assert.InDelta(t, 1.0, first.LineOfSight, 1e-12)
	assert.True(t, first.Terrain.Known)

	assert.Equal(t, 1.0, last.T)
	assert.InDelta(t, 10.0, last.Distance, 1e-12)
	assert.InDelta(t, 0.0, last.LineOfSight, 1e-12)
	assert.True(t, last.Terrain.Known)

	for i, s := range p {
		if i == 5 {
			assert.False(t, s.Terrain.Known, "sample over the hole")
			continue
		}
		assert.True(t, s.Terrain.Known, "sample %d", i)
		assert.InDelta(t, 0.0, s.Terrain.Value, 1e-12)
		assert.InDelta(t, 1-s.T, s.LineOfSight, 1e-12)
	}

	// The hole itself has no line of sight to describe.
	for _, s := range ev.Profile(2, 5) {
		assert.True(t, math.IsNaN(s.LineOfSight))
	}
}

func TestEvaluator_Decisions(t *testing.T) {
	t.Parallel()

	g := testutil.Wall(t, 9, 9, 4, 3)
	ev, err := NewEvaluator(g, observerAt(g, 0, 4, 1), nil)
	require.NoError(t, err)

	own := ev.Evaluate(0, 4)
	assert.Equal(t, Decision{Visible: true, Margin: 1}, own)

	// Adjacent cells have no intervening samples.
	next := ev.Evaluate(1, 4)
	assert.True(t, next.Visible)
	assert.Equal(t, 1.0, next.Margin)

	// The wall top clears the sight line and is visible.
	top := ev.Evaluate(4, 4)
	assert.True(t, top.Visible)
	assert.False(t, top.NoData)

	behind := ev.Evaluate(8, 4)
	assert.False(t, behind.Visible)
	assert.False(t, behind.NoData)
}

func TestMargin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2.0, margin(5, 7, math.Inf(-1), 10, 2))
	assert.InDelta(t, 1.0, margin(5, 7, -0.3, 10, 2), 1e-12)
	assert.InDelta(t, 2.0, margin(5, 7, -0.6, 10, 2), 1e-12)
	assert.InDelta(t, -1.0, margin(5, 7, -0.1, 10, 2), 1e-12)
}
