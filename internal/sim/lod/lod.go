package lod

import (
	"errors"
	"fmt"
)

// MaxLOD is the coarsest simplification level the mesh builder supports.
const MaxLOD = 6

// LODInfo is one row of the detail table: a mesh simplification level and the
// farthest viewer distance at which it is used.
type LODInfo struct {
	LOD             int     `yaml:"lod" json:"lod"`
	VisibleDistance float64 `yaml:"visible_distance" json:"visible_distance"`
}

// Table is an immutable LOD table ordered by ascending visible distance.
type Table struct {
	levels []LODInfo
}

var ErrEmptyTable = errors.New("lod table is empty")

func New(levels []LODInfo) (Table, error) {
	if len(levels) == 0 {
		return Table{}, ErrEmptyTable
	}
	for i, l := range levels {
		if l.LOD < 0 || l.LOD > MaxLOD {
			return Table{}, fmt.Errorf("lod[%d]: level %d out of range [0,%d]", i, l.LOD, MaxLOD)
		}
		if l.VisibleDistance <= 0 {
			return Table{}, fmt.Errorf("lod[%d]: visible distance must be > 0", i)
		}
		if i > 0 && l.VisibleDistance <= levels[i-1].VisibleDistance {
			return Table{}, fmt.Errorf("lod[%d]: visible distance %.2f not greater than %.2f", i, l.VisibleDistance, levels[i-1].VisibleDistance)
		}
	}
	cp := make([]LODInfo, len(levels))
	copy(cp, levels)
	return Table{levels: cp}, nil
}

func MustNew(levels []LODInfo) Table {
	t, err := New(levels)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Table) Len() int { return len(t.levels) }

func (t Table) At(i int) LODInfo { return t.levels[i] }

// Levels returns a copy of the table rows.
func (t Table) Levels() []LODInfo {
	out := make([]LODInfo, len(t.levels))
	copy(out, t.levels)
	return out
}

// MaxViewDistance is the last threshold; nothing farther is visible.
func (t Table) MaxViewDistance() float64 {
	if len(t.levels) == 0 {
		return 0
	}
	return t.levels[len(t.levels)-1].VisibleDistance
}

// Select returns the index of the first row whose threshold is >= distance,
// or the last index when none qualifies.
func (t Table) Select(distance float64) int {
	for i, l := range t.levels {
		if l.VisibleDistance >= distance {
			return i
		}
	}
	return len(t.levels) - 1
}

// SimplificationIncrement is the vertex stride used by the mesh builder for lod.
func SimplificationIncrement(lod int) int {
	if lod <= 0 {
		return 1
	}
	return lod * 2
}
