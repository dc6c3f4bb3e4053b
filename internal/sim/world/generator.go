package world

import (
	"sync"

	"endlessterrain.ai/internal/sim/terrain"
)

// Generator produces map data and meshes asynchronously. Each request must be
// completed exactly once through its Done handle, from any goroutine.
type Generator interface {
	RequestMapData(req MapDataRequest)
	RequestMeshData(req MeshDataRequest)
}

// Completer receives finished generation work.
type Completer interface {
	Complete(c Completion)
}

type CompletionKind int

const (
	CompletedMapData CompletionKind = iota + 1
	CompletedMesh
)

// Completion is a finished request addressed to one chunk instance.
type Completion struct {
	Kind     CompletionKind
	ChunkID  uint64
	Coord    ChunkCoord
	LODIndex int
	MapData  *terrain.MapData
	Mesh     *terrain.MeshData
}

type MapDataRequest struct {
	ChunkID uint64
	Coord   ChunkCoord
	Anchor  Vec2
	Done    Completer
}

func (r MapDataRequest) Complete(data *terrain.MapData) {
	r.Done.Complete(Completion{Kind: CompletedMapData, ChunkID: r.ChunkID, Coord: r.Coord, MapData: data})
}

type MeshDataRequest struct {
	ChunkID  uint64
	Coord    ChunkCoord
	LODIndex int // row in the LOD table
	LOD      int // simplification level of that row
	MapData  *terrain.MapData
	Done     Completer
}

func (r MeshDataRequest) Complete(mesh *terrain.MeshData) {
	r.Done.Complete(Completion{Kind: CompletedMesh, ChunkID: r.ChunkID, Coord: r.Coord, LODIndex: r.LODIndex, Mesh: mesh})
}

// completionQueue is the single marshalling point between generator
// goroutines and the world loop. Producers never block; the loop drains it
// once per tick.
type completionQueue struct {
	mu    sync.Mutex
	items []Completion
}

func (q *completionQueue) Complete(c Completion) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

func (q *completionQueue) drain(buf []Completion) []Completion {
	q.mu.Lock()
	buf = append(buf[:0], q.items...)
	q.items = q.items[:0]
	q.mu.Unlock()
	return buf
}

func (q *completionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
