package world

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"endlessterrain.ai/internal/sim/mathx"
)

// World is the chunk grid manager. It is single-threaded: all state must be
// accessed only from the goroutine running Run (or calling StepOnce).
type World struct {
	cfg WorldConfig
	env *chunkEnv

	radius       int
	sqrThreshold float64

	tick atomic.Uint64

	chunks            map[ChunkCoord]*TerrainChunk
	visibleLastUpdate map[ChunkCoord]*TerrainChunk
	nextChunkID       uint64

	viewer     ViewerState
	lastUpdate UpdateResult

	completions *completionQueue
	drainBuf    []Completion

	viewerIn chan Vec2
	stop     chan struct{}
	stopOnce sync.Once

	tickLogger TickLogger

	mapCompleted  uint64
	meshCompleted uint64
	evictedTotal  uint64
	staleTotal    uint64
	updatesRun    uint64

	metrics atomic.Value
}

// UpdateResult describes one pass over the visible window.
type UpdateResult struct {
	Center  ChunkCoord
	Radius  int
	Visited []ChunkCoord
	Created int
	Visible int
}

func New(cfg WorldConfig, gen Generator, sink Sink) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("world: nil generator")
	}
	if sink == nil {
		sink = NopSink{}
	}
	q := &completionQueue{}
	w := &World{
		cfg: cfg,
		env: &chunkEnv{
			lods:    cfg.LODs,
			maxView: cfg.LODs.MaxViewDistance(),
			size:    cfg.ChunkSize,
			gen:     gen,
			sink:    sink,
			done:    q,
		},
		radius:            mathx.RoundToInt(cfg.LODs.MaxViewDistance() / cfg.ChunkSize),
		sqrThreshold:      cfg.MoveThreshold * cfg.MoveThreshold,
		chunks:            map[ChunkCoord]*TerrainChunk{},
		visibleLastUpdate: map[ChunkCoord]*TerrainChunk{},
		viewer:            ViewerState{Pos: cfg.Spawn},
		completions:       q,
		viewerIn:          make(chan Vec2, 64),
		stop:              make(chan struct{}),
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

// Viewer accepts viewer positions in grid space. Only the latest one matters.
func (w *World) Viewer() chan<- Vec2 { return w.viewerIn }

func (w *World) Config() WorldConfig { return w.cfg }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// ViewRadius is the half-width, in chunks, of the square window.
func (w *World) ViewRadius() int { return w.radius }

// ChunkCoordAt maps a grid-space position to the chunk containing it.
func (w *World) ChunkCoordAt(p Vec2) ChunkCoord {
	return ChunkCoord{
		X: mathx.RoundToInt(p.X() / w.cfg.ChunkSize),
		Y: mathx.RoundToInt(p.Y() / w.cfg.ChunkSize),
	}
}

// UpdateVisibleChunks walks the (2r+1)^2 window around pos: existing chunks
// re-evaluate, missing ones are created. Chunks visible after the previous
// update that are not visible now are hidden; everything outside the window
// is otherwise left alone.
func (w *World) UpdateVisibleChunks(pos Vec2) UpdateResult {
	w.viewer.Pos = pos
	tick := w.tick.Load()

	prev := w.visibleLastUpdate
	w.visibleLastUpdate = make(map[ChunkCoord]*TerrainChunk, len(prev))

	r := w.radius
	res := UpdateResult{
		Center:  w.ChunkCoordAt(pos),
		Radius:  r,
		Visited: make([]ChunkCoord, 0, (2*r+1)*(2*r+1)),
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := ChunkCoord{X: res.Center.X + dx, Y: res.Center.Y + dy}
			res.Visited = append(res.Visited, c)
			if ch, ok := w.chunks[c]; ok {
				if ch.UpdateTerrainChunk(pos, tick) {
					w.visibleLastUpdate[c] = ch
				}
				continue
			}
			w.nextChunkID++
			w.chunks[c] = newTerrainChunk(w.env, w.nextChunkID, c, tick)
			res.Created++
		}
	}
	for c, ch := range prev {
		if _, ok := w.visibleLastUpdate[c]; !ok {
			ch.setVisible(false)
		}
	}

	res.Visible = len(w.visibleLastUpdate)
	w.viewer.LastUpdatePos = pos
	w.viewer.HasUpdated = true
	w.lastUpdate = res
	w.updatesRun++
	return res
}

// shouldUpdate applies the movement threshold. The first call always passes.
func (w *World) shouldUpdate(pos Vec2) bool {
	if !w.viewer.HasUpdated {
		return true
	}
	d := pos.Sub(w.viewer.LastUpdatePos)
	return d.Dot(d) > w.sqrThreshold
}

func (w *World) applyCompletion(c Completion) {
	switch c.Kind {
	case CompletedMapData:
		w.mapCompleted++
	case CompletedMesh:
		w.meshCompleted++
	}
	ch, ok := w.chunks[c.Coord]
	if !ok || ch.id != c.ChunkID {
		w.staleTotal++
		return
	}
	tick := w.tick.Load()
	var visible bool
	switch c.Kind {
	case CompletedMapData:
		visible = ch.onMapData(c.MapData, w.viewer.Pos, tick)
	case CompletedMesh:
		visible = ch.onMesh(c.LODIndex, c.Mesh, w.viewer.Pos, tick)
	default:
		w.staleTotal++
		return
	}
	if visible {
		w.visibleLastUpdate[c.Coord] = ch
	} else {
		delete(w.visibleLastUpdate, c.Coord)
	}
}

// Chunk returns a snapshot of the chunk at c, if resident.
func (w *World) Chunk(c ChunkCoord) (ChunkInfo, bool) {
	ch, ok := w.chunks[c]
	if !ok {
		return ChunkInfo{}, false
	}
	return ch.Info(), true
}

func (w *World) ResidentChunks() int { return len(w.chunks) }

// VisibleChunks returns the coordinates visible after the latest update, sorted.
func (w *World) VisibleChunks() []ChunkCoord {
	out := make([]ChunkCoord, 0, len(w.visibleLastUpdate))
	for c := range w.visibleLastUpdate {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (w *World) ViewerState() ViewerState { return w.viewer }
