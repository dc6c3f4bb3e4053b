package world

import "endlessterrain.ai/internal/sim/terrain"

// Sink receives per-chunk presentation changes. Calls happen on the world
// loop goroutine and must not block.
type Sink interface {
	ChunkVisible(c ChunkCoord, visible bool)
	ChunkMesh(c ChunkCoord, lodIndex int, mesh *terrain.MeshData)
	ChunkTexture(c ChunkCoord, tex *terrain.Texture)
	ChunkEvicted(c ChunkCoord)
}

type NopSink struct{}

func (NopSink) ChunkVisible(ChunkCoord, bool)                {}
func (NopSink) ChunkMesh(ChunkCoord, int, *terrain.MeshData) {}
func (NopSink) ChunkTexture(ChunkCoord, *terrain.Texture)    {}
func (NopSink) ChunkEvicted(ChunkCoord)                      {}
