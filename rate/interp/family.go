package interp

import (
	"fmt"
	"sort"
)

// Family is a set of interpolants of one category conditioned on the nodes
// of a second axis: member i answers queries conditioned on YGrid[i].
type Family struct {
	Category Category       `json:"category"`
	YGrid    []float64      `json:"y_grid"`
	Members  []*Interpolant `json:"members"`
}

// BuildFamily tabulates fn(x, y) at every node of ygrid and fits one
// interpolant of the given category per node. Any member failure aborts
// the whole build.
func BuildFamily(cat Category, xgrid, ygrid Grid, fn func(x, y float64) float64) (*Family, error) {
	members := make([]*Interpolant, ygrid.Len())
	for i, y := range ygrid {
		it, err := Build(cat, xgrid, func(x float64) float64 { return fn(x, y) })
		if err != nil {
			return nil, fmt.Errorf("family member at y=%g: %w", y, err)
		}
		members[i] = it
	}
	yg := make([]float64, ygrid.Len())
	copy(yg, ygrid)
	return &Family{Category: cat, YGrid: yg, Members: members}, nil
}

// Select returns the member whose node is nearest to y. Ties break toward
// the lower index; queries outside the node span clamp to the end members.
func (f *Family) Select(y float64) *Interpolant {
	return f.Members[f.selectIndex(y)]
}

func (f *Family) selectIndex(y float64) int {
	i := sort.SearchFloat64s(f.YGrid, y)
	if i == 0 {
		return 0
	}
	if i == len(f.YGrid) {
		return len(f.YGrid) - 1
	}
	if y-f.YGrid[i-1] <= f.YGrid[i]-y {
		return i - 1
	}
	return i
}
