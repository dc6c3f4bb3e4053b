// Package gen is the asynchronous map data and mesh producer behind
// world.Generator.
package gen

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"sync/atomic"

	"github.com/alitto/pond/v2"

	"endlessterrain.ai/internal/sim/terrain"
	"endlessterrain.ai/internal/sim/terrain/mesh"
	"endlessterrain.ai/internal/sim/terrain/noise"
	"endlessterrain.ai/internal/sim/world"
)

// MapStore is an optional persistent cache for generated map data. Get is
// called from worker goroutines; Put must not block for long.
type MapStore interface {
	Get(key terrain.MapKey) (*terrain.MapData, bool, error)
	Put(key terrain.MapKey, data *terrain.MapData)
}

type Config struct {
	// Type names the height strategy ("perlin", "flat"). It is part of the
	// cache key.
	Type string
	Seed int64

	// MapChunkSize is the number of samples per heightmap edge.
	MapChunkSize int

	Heights noise.HeightSource
	Mesh    mesh.Builder
	Regions []terrain.Region

	Workers int
	// Inline runs every request on the caller goroutine. Completions are still
	// delivered through the request's Done handle.
	Inline bool

	Store  MapStore
	Logger *log.Logger
}

type Generator struct {
	cfg    Config
	pool   pond.Pool
	logger *log.Logger

	closed atomic.Bool

	mapsGenerated atomic.Uint64
	mapsCached    atomic.Uint64
	meshesBuilt   atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64
}

var _ world.Generator = (*Generator)(nil)

func New(cfg Config) (*Generator, error) {
	if cfg.MapChunkSize < 2 {
		return nil, fmt.Errorf("gen: map chunk size %d too small", cfg.MapChunkSize)
	}
	if cfg.Heights == nil {
		return nil, fmt.Errorf("gen: nil height source")
	}
	if cfg.Mesh == nil {
		return nil, fmt.Errorf("gen: nil mesh builder")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g := &Generator{cfg: cfg, logger: logger}
	if !cfg.Inline {
		g.pool = pond.NewPool(cfg.Workers)
	}
	return g, nil
}

func (g *Generator) RequestMapData(req world.MapDataRequest) {
	g.submit("map", req.Coord, func() {
		req.Complete(g.mapData(req.Coord, req.Anchor))
	})
}

func (g *Generator) RequestMeshData(req world.MeshDataRequest) {
	g.submit("mesh", req.Coord, func() {
		m, err := g.cfg.Mesh.Build(req.MapData, req.LOD)
		if err != nil {
			// The chunk keeps waiting for this level; there is no retry.
			g.failed.Add(1)
			g.logger.Printf("mesh %d,%d lod=%d: %v", req.Coord.X, req.Coord.Y, req.LOD, err)
			return
		}
		g.meshesBuilt.Add(1)
		req.Complete(m)
	})
}

func (g *Generator) submit(kind string, c world.ChunkCoord, task func()) {
	if g.closed.Load() {
		g.dropped.Add(1)
		g.logger.Printf("drop %s request %d,%d: generator closed", kind, c.X, c.Y)
		return
	}
	if g.pool == nil {
		task()
		return
	}
	g.pool.Submit(task)
}

// mapData builds (or loads) the heightmap and color map centred on anchor.
func (g *Generator) mapData(c world.ChunkCoord, anchor world.Vec2) *terrain.MapData {
	key := terrain.MapKey{Seed: g.cfg.Seed, Generator: g.cfg.Type, X: c.X, Y: c.Y}
	if g.cfg.Store != nil {
		data, ok, err := g.cfg.Store.Get(key)
		switch {
		case err != nil:
			g.logger.Printf("cache get %d,%d: %v", c.X, c.Y, err)
		case ok && data.Size == g.cfg.MapChunkSize:
			g.mapsCached.Add(1)
			return data
		}
	}

	heights := g.cfg.Heights.Heightmap(g.cfg.MapChunkSize, anchor)
	data := &terrain.MapData{
		Size:    g.cfg.MapChunkSize,
		Heights: heights,
		Colors:  terrain.ColorMap(heights, g.cfg.Regions),
	}
	g.mapsGenerated.Add(1)
	if g.cfg.Store != nil {
		g.cfg.Store.Put(key, data)
	}
	return data
}

// Close stops accepting requests and waits for queued work to finish.
func (g *Generator) Close() {
	if g.closed.Swap(true) {
		return
	}
	if g.pool != nil {
		g.pool.StopAndWait()
	}
}

type Stats struct {
	MapsGenerated uint64 `json:"maps_generated"`
	MapsCached    uint64 `json:"maps_cached"`
	MeshesBuilt   uint64 `json:"meshes_built"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
	Running       int    `json:"running"`
	Waiting       int    `json:"waiting"`
}

func (g *Generator) Stats() Stats {
	st := Stats{
		MapsGenerated: g.mapsGenerated.Load(),
		MapsCached:    g.mapsCached.Load(),
		MeshesBuilt:   g.meshesBuilt.Load(),
		Failed:        g.failed.Load(),
		Dropped:       g.dropped.Load(),
	}
	if g.pool != nil {
		st.Running = int(g.pool.RunningWorkers())
		st.Waiting = int(g.pool.WaitingTasks())
	}
	return st
}
