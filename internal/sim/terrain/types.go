package terrain

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
)

// MapData is the per-chunk generation payload. It is never mutated after the
// generator hands it over; every LOD mesh of the chunk reads the same value.
type MapData struct {
	Size    int
	Heights []float32 // row-major, Size*Size, normalized to [0,1]
	Colors  []color.RGBA
}

func (m *MapData) At(x, y int) float32 {
	return m.Heights[y*m.Size+x]
}

// Texture is the color map of a chunk ready for upload.
type Texture struct {
	Width  int
	Height int
	Pixels []color.RGBA
}

func (m *MapData) Texture() *Texture {
	return &Texture{Width: m.Size, Height: m.Size, Pixels: m.Colors}
}

// MeshData is renderer-agnostic triangle data for one chunk at one LOD.
type MeshData struct {
	LOD       int
	Vertices  []mgl32.Vec3
	Triangles []int32
	UVs       []mgl32.Vec2
}

func (m *MeshData) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Triangles) / 3
}

// MapKey addresses the map data of one chunk for one generator setup.
type MapKey struct {
	Seed      int64
	Generator string
	X, Y      int
}
