package world

import (
	"math"

	"endlessterrain.ai/internal/sim/lod"
	"endlessterrain.ai/internal/sim/terrain"
)

// chunkEnv is what every chunk of a world shares. The counters live here so
// chunks can report requests without reaching into the world.
type chunkEnv struct {
	lods    lod.Table
	maxView float64
	size    float64
	gen     Generator
	sink    Sink
	done    Completer

	mapRequests  uint64
	meshRequests uint64
	meshesReady  int
}

func (e *chunkEnv) meshRequested() { e.meshRequests++ }

// TerrainChunk owns the lifecycle of one grid cell: map data first, then
// distance-driven LOD and visibility.
type TerrainChunk struct {
	env *chunkEnv

	id     uint64
	coord  ChunkCoord
	anchor Vec2
	bounds Bounds

	mapData *terrain.MapData
	lods    []*lodMesh

	lastLODIndex    int
	visible         bool
	lastVisibleTick uint64
}

func newTerrainChunk(env *chunkEnv, id uint64, coord ChunkCoord, tick uint64) *TerrainChunk {
	anchor := Vec2{float64(coord.X) * env.size, float64(coord.Y) * env.size}
	c := &TerrainChunk{
		env:             env,
		id:              id,
		coord:           coord,
		anchor:          anchor,
		bounds:          NewBounds(anchor, env.size),
		lods:            make([]*lodMesh, env.lods.Len()),
		lastLODIndex:    -1,
		lastVisibleTick: tick,
	}
	for i := range c.lods {
		c.lods[i] = &lodMesh{index: i, lod: env.lods.At(i).LOD}
	}
	env.mapRequests++
	env.gen.RequestMapData(MapDataRequest{ChunkID: id, Coord: coord, Anchor: anchor, Done: env.done})
	return c
}

func (c *TerrainChunk) Coord() ChunkCoord { return c.coord }
func (c *TerrainChunk) Visible() bool     { return c.visible }

func (c *TerrainChunk) onMapData(data *terrain.MapData, viewer Vec2, tick uint64) bool {
	if c.mapData != nil || data == nil {
		return c.visible
	}
	c.mapData = data
	c.env.sink.ChunkTexture(c.coord, data.Texture())
	return c.UpdateTerrainChunk(viewer, tick)
}

func (c *TerrainChunk) onMesh(lodIndex int, mesh *terrain.MeshData, viewer Vec2, tick uint64) bool {
	if lodIndex < 0 || lodIndex >= len(c.lods) {
		return c.visible
	}
	if c.lods[lodIndex].onMesh(mesh) {
		c.env.meshesReady++
	}
	return c.UpdateTerrainChunk(viewer, tick)
}

// UpdateTerrainChunk re-evaluates visibility and the wanted LOD for viewer and
// returns the resulting visibility. It does nothing until map data arrived.
func (c *TerrainChunk) UpdateTerrainChunk(viewer Vec2, tick uint64) bool {
	if c.mapData == nil {
		return c.visible
	}
	dist := math.Sqrt(c.bounds.SqrDistance(viewer))
	visible := dist <= c.env.maxView
	if visible {
		i := c.env.lods.Select(dist)
		if i != c.lastLODIndex {
			m := c.lods[i]
			switch m.state {
			case Ready:
				c.lastLODIndex = i
				c.env.sink.ChunkMesh(c.coord, i, m.mesh)
			case NotRequested:
				m.requestIfAbsent(c)
			}
		}
		c.lastVisibleTick = tick
	}
	c.setVisible(visible)
	return visible
}

func (c *TerrainChunk) setVisible(v bool) {
	if c.visible == v {
		return
	}
	c.visible = v
	c.env.sink.ChunkVisible(c.coord, v)
}

func (c *TerrainChunk) readyMeshes() int {
	n := 0
	for _, m := range c.lods {
		if m.state == Ready {
			n++
		}
	}
	return n
}

// ChunkInfo is a read-only view of a chunk for metrics, tests and tools.
type ChunkInfo struct {
	ID           uint64     `json:"id"`
	Coord        ChunkCoord `json:"coord"`
	MapDataReady bool       `json:"map_data_ready"`
	Visible      bool       `json:"visible"`
	LODIndex     int        `json:"lod_index"`
	LODStates    []LODState `json:"lod_states"`
	LastVisible  uint64     `json:"last_visible_tick"`
}

func (c *TerrainChunk) Info() ChunkInfo {
	states := make([]LODState, len(c.lods))
	for i, m := range c.lods {
		states[i] = m.state
	}
	return ChunkInfo{
		ID:           c.id,
		Coord:        c.coord,
		MapDataReady: c.mapData != nil,
		Visible:      c.visible,
		LODIndex:     c.lastLODIndex,
		LODStates:    states,
		LastVisible:  c.lastVisibleTick,
	}
}
