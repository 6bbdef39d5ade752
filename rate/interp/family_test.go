package interp

import (
	"errors"
	"math"
	"testing"
)

func gaussianFamilyFixture(t *testing.T) *Family {
	t.Helper()
	xgrid, _ := Linspace(-5, 25, 400)
	ygrid, _ := NewGrid([]float64{0, 10, 20})
	f, err := BuildFamily(CategoryInverseCDF, xgrid, ygrid, func(x, y float64) float64 {
		return math.Exp(-(x - y) * (x - y))
	})
	if err != nil {
		t.Fatalf("building family: %v", err)
	}
	return f
}

func TestFamilySelect_NearestNode(t *testing.T) {
	f := gaussianFamilyFixture(t)

	cases := []struct {
		y    float64
		want int
	}{
		{y: 0, want: 0},
		{y: 2.4, want: 0},
		{y: 7.6, want: 1},
		{y: 10, want: 1},
		{y: 12.4, want: 1},
		{y: 19.9, want: 2},
	}
	for _, c := range cases {
		if got := f.Select(c.y); got != f.Members[c.want] {
			t.Errorf("Select(%g) picked the wrong member, want index %d", c.y, c.want)
		}
	}
}

func TestFamilySelect_TieBreaksTowardLowerIndex(t *testing.T) {
	f := gaussianFamilyFixture(t)
	if got := f.Select(5); got != f.Members[0] {
		t.Error("Select(5) is equidistant from nodes 0 and 10, want the lower index")
	}
	if got := f.Select(15); got != f.Members[1] {
		t.Error("Select(15) is equidistant from nodes 10 and 20, want the lower index")
	}
}

func TestFamilySelect_ClampsOutOfRange(t *testing.T) {
	f := gaussianFamilyFixture(t)
	if got := f.Select(-100); got != f.Members[0] {
		t.Error("Select(-100) should clamp to the first member")
	}
	if got := f.Select(1e9); got != f.Members[2] {
		t.Error("Select(1e9) should clamp to the last member")
	}
}

func TestBuildFamily_MemberFailureAborts(t *testing.T) {
	xgrid, _ := Linspace(0, 1, 50)
	ygrid, _ := NewGrid([]float64{1, 2, 3})

	// The y=2 member has an identically zero density.
	_, err := BuildFamily(CategoryInverseCDF, xgrid, ygrid, func(x, y float64) float64 {
		if y == 2 {
			return 0
		}
		return 1
	})
	if !errors.Is(err, ErrDegenerateDensity) {
		t.Fatalf("expected ErrDegenerateDensity, got %v", err)
	}
}
