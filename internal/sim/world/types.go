package world

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Vec2 is a ground-plane position in grid space (world units / scale).
type Vec2 = mgl64.Vec2

// ChunkCoord identifies one grid cell. Y is the second ground axis.
type ChunkCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c ChunkCoord) Less(o ChunkCoord) bool {
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// Bounds is an axis-aligned square on the ground plane.
type Bounds struct {
	Center  Vec2
	Extents float64 // half of the edge length
}

func NewBounds(center Vec2, size float64) Bounds {
	return Bounds{Center: center, Extents: size / 2}
}

// SqrDistance is the squared distance from p to the nearest point of b,
// 0 when p is inside.
func (b Bounds) SqrDistance(p Vec2) float64 {
	var d2 float64
	for i := 0; i < 2; i++ {
		d := p[i] - b.Center[i]
		if d < 0 {
			d = -d
		}
		d -= b.Extents
		if d > 0 {
			d2 += d * d
		}
	}
	return d2
}

// ViewerState keeps the latest viewer position and the one the last grid
// update ran at (for the movement threshold).
type ViewerState struct {
	Pos           Vec2
	LastUpdatePos Vec2
	HasUpdated    bool
}
