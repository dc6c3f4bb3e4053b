package world

import (
	"image/color"
	"testing"

	"endlessterrain.ai/internal/sim/lod"
	"endlessterrain.ai/internal/sim/terrain"
)

// recordingGen keeps every request and lets the test decide when (and
// whether) each one completes.
type recordingGen struct {
	maps   []MapDataRequest
	meshes []MeshDataRequest

	pendingMaps   []MapDataRequest
	pendingMeshes []MeshDataRequest
}

func (g *recordingGen) RequestMapData(req MapDataRequest) {
	g.maps = append(g.maps, req)
	g.pendingMaps = append(g.pendingMaps, req)
}

func (g *recordingGen) RequestMeshData(req MeshDataRequest) {
	g.meshes = append(g.meshes, req)
	g.pendingMeshes = append(g.pendingMeshes, req)
}

func (g *recordingGen) completeMaps(match func(MapDataRequest) bool) int {
	n := 0
	rest := g.pendingMaps[:0]
	for _, req := range g.pendingMaps {
		if match != nil && !match(req) {
			rest = append(rest, req)
			continue
		}
		req.Complete(testMapData())
		n++
	}
	g.pendingMaps = rest
	return n
}

func (g *recordingGen) completeMeshes(match func(MeshDataRequest) bool) int {
	n := 0
	rest := g.pendingMeshes[:0]
	for _, req := range g.pendingMeshes {
		if match != nil && !match(req) {
			rest = append(rest, req)
			continue
		}
		req.Complete(&terrain.MeshData{LOD: req.LOD})
		n++
	}
	g.pendingMeshes = rest
	return n
}

func (g *recordingGen) meshRequestsFor(c ChunkCoord) []int {
	var out []int
	for _, req := range g.meshes {
		if req.Coord == c {
			out = append(out, req.LODIndex)
		}
	}
	return out
}

func at(c ChunkCoord) func(MapDataRequest) bool {
	return func(req MapDataRequest) bool { return req.Coord == c }
}

func meshAt(c ChunkCoord) func(MeshDataRequest) bool {
	return func(req MeshDataRequest) bool { return req.Coord == c }
}

func testMapData() *terrain.MapData {
	return &terrain.MapData{
		Size:    2,
		Heights: make([]float32, 4),
		Colors:  make([]color.RGBA, 4),
	}
}

type sinkEvent struct {
	Kind     string
	Coord    ChunkCoord
	Visible  bool
	LODIndex int
}

type recordingSink struct {
	events []sinkEvent
}

func (s *recordingSink) ChunkVisible(c ChunkCoord, v bool) {
	s.events = append(s.events, sinkEvent{Kind: "visible", Coord: c, Visible: v})
}

func (s *recordingSink) ChunkMesh(c ChunkCoord, lodIndex int, _ *terrain.MeshData) {
	s.events = append(s.events, sinkEvent{Kind: "mesh", Coord: c, LODIndex: lodIndex})
}

func (s *recordingSink) ChunkTexture(c ChunkCoord, _ *terrain.Texture) {
	s.events = append(s.events, sinkEvent{Kind: "texture", Coord: c})
}

func (s *recordingSink) ChunkEvicted(c ChunkCoord) {
	s.events = append(s.events, sinkEvent{Kind: "evict", Coord: c})
}

func (s *recordingSink) adopted(c ChunkCoord) []int {
	var out []int
	for _, e := range s.events {
		if e.Kind == "mesh" && e.Coord == c {
			out = append(out, e.LODIndex)
		}
	}
	return out
}

func (s *recordingSink) count(kind string) int {
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type recordingTickLog struct {
	entries []TickLogEntry
}

func (l *recordingTickLog) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

// baseConfig is the 240-unit chunk / two-level table used across the tests:
// maxViewDistance 300 and a window radius of 1.
func baseConfig() WorldConfig {
	return WorldConfig{
		TickRateHz:    30,
		ChunkSize:     240,
		LODs:          lod.MustNew([]lod.LODInfo{{LOD: 0, VisibleDistance: 150}, {LOD: 1, VisibleDistance: 300}}),
		MoveThreshold: 25,
	}
}

func newTestWorld(t *testing.T, cfg WorldConfig) (*World, *recordingGen, *recordingSink) {
	t.Helper()
	gen := &recordingGen{}
	sink := &recordingSink{}
	w, err := New(cfg, gen, sink)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w, gen, sink
}
