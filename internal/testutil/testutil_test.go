package testutil

import (
	"math"
	"testing"
)

func TestTerrainFixtures(t *testing.T) {
	flat := Flat(t, 3, 4, 7)
	rows, cols := flat.Dims()
	if rows != 3 || cols != 4 {
		t.Fatalf("Flat dims = %dx%d, want 3x4", rows, cols)
	}
	if flat.At(2, 3) != 7 {
		t.Errorf("Flat value = %f, want 7", flat.At(2, 3))
	}

	bump := GaussianBump(t, 21, 10, 3)
	if got := bump.At(10, 10); got != 10 {
		t.Errorf("bump peak = %f, want 10", got)
	}
	if bump.At(0, 0) >= bump.At(5, 5) {
		t.Error("bump should rise towards the centre")
	}

	wall := Wall(t, 5, 5, 2, 100)
	if wall.At(2, 0) != 100 || wall.At(1, 0) != 0 {
		t.Error("wall row not raised")
	}

	ridge := Ridge(t, 3, 9, 4, 8, 2)
	if ridge.At(0, 4) != 8 || ridge.At(0, 3) != 6 || ridge.At(0, 0) != 0 {
		t.Errorf("unexpected ridge profile %v %v %v", ridge.At(0, 4), ridge.At(0, 3), ridge.At(0, 0))
	}

	holes := WithHoles(t, flat, [2]int{1, 1})
	if !math.IsNaN(holes.At(1, 1)) || holes.At(0, 0) != 7 {
		t.Error("WithHoles did not punch the requested cell")
	}
}

func TestAssertHelpers(t *testing.T) {
	AssertNoError(t, nil)
	AssertError(t, errTest{})
}

type errTest struct{}

func (errTest) Error() string { return "test" }
