package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"endlessterrain.ai/internal/sim/lod"
	"endlessterrain.ai/internal/sim/terrain"
)

// Builder turns map data into a triangle mesh at a given LOD.
type Builder interface {
	Build(data *terrain.MapData, lodLevel int) (*terrain.MeshData, error)
}

// Heightfield is the grid mesh builder: one vertex every SimplificationIncrement
// samples, centred on the chunk origin, height = curve(h) * HeightMultiplier.
type Heightfield struct {
	HeightMultiplier float64
	Curve            terrain.Curve
}

func (b Heightfield) Build(data *terrain.MapData, lodLevel int) (*terrain.MeshData, error) {
	if data == nil || data.Size < 2 {
		return nil, fmt.Errorf("mesh: map data too small")
	}
	size := data.Size
	inc := lod.SimplificationIncrement(lodLevel)
	if (size-1)%inc != 0 {
		return nil, fmt.Errorf("mesh: lod %d increment %d does not divide %d", lodLevel, inc, size-1)
	}
	perLine := (size-1)/inc + 1

	topLeftX := float32(size-1) / -2
	topLeftZ := float32(size-1) / 2

	m := &terrain.MeshData{
		LOD:       lodLevel,
		Vertices:  make([]mgl32.Vec3, 0, perLine*perLine),
		UVs:       make([]mgl32.Vec2, 0, perLine*perLine),
		Triangles: make([]int32, 0, (perLine-1)*(perLine-1)*6),
	}

	vi := int32(0)
	for y := 0; y < size; y += inc {
		for x := 0; x < size; x += inc {
			h := b.Curve.Evaluate(float64(data.At(x, y))) * b.HeightMultiplier
			m.Vertices = append(m.Vertices, mgl32.Vec3{topLeftX + float32(x), float32(h), topLeftZ - float32(y)})
			m.UVs = append(m.UVs, mgl32.Vec2{float32(x) / float32(size), float32(y) / float32(size)})
			if x < size-1 && y < size-1 {
				a, c := vi, vi+int32(perLine)
				m.Triangles = append(m.Triangles, a, c+1, c, c+1, a, a+1)
			}
			vi++
		}
	}
	return m, nil
}
