package world

import (
	"math"
	"reflect"
	"testing"

	"endlessterrain.ai/internal/sim/lod"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.ChunkSize = 0
	if _, err := New(cfg, &recordingGen{}, nil); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
	cfg = baseConfig()
	cfg.LODs = lod.Table{}
	if _, err := New(cfg, &recordingGen{}, nil); err == nil {
		t.Fatalf("expected error for empty lod table")
	}
	if _, err := New(baseConfig(), nil, nil); err == nil {
		t.Fatalf("expected error for nil generator")
	}
}

func TestWorldChunkCoordAt_RoundsHalfAwayFromZero(t *testing.T) {
	w, _, _ := newTestWorld(t, baseConfig())
	cases := []struct {
		pos  Vec2
		want ChunkCoord
	}{
		{Vec2{0, 0}, ChunkCoord{0, 0}},
		{Vec2{119.9, -119.9}, ChunkCoord{0, 0}},
		{Vec2{120, -120}, ChunkCoord{1, -1}},
		{Vec2{-360, 360}, ChunkCoord{-2, 2}},
		{Vec2{2400, 0}, ChunkCoord{10, 0}},
	}
	for _, tc := range cases {
		if got := w.ChunkCoordAt(tc.pos); got != tc.want {
			t.Fatalf("ChunkCoordAt(%v)=%v want %v", tc.pos, got, tc.want)
		}
	}
}

func TestWorldUpdate_OriginTouchesThreeByThree(t *testing.T) {
	w, gen, _ := newTestWorld(t, baseConfig())
	if w.ViewRadius() != 1 {
		t.Fatalf("radius=%d want 1", w.ViewRadius())
	}
	res := w.StepOnce(Vec2{0, 0})
	if !res.Ran {
		t.Fatalf("first step must run an update")
	}
	seen := map[ChunkCoord]bool{}
	for _, c := range res.Update.Visited {
		if c.X < -1 || c.X > 1 || c.Y < -1 || c.Y > 1 {
			t.Fatalf("visited %v outside {-1,0,1}^2", c)
		}
		seen[c] = true
	}
	if len(seen) != 9 || len(res.Update.Visited) != 9 {
		t.Fatalf("visited %d coords (%d unique), want 9", len(res.Update.Visited), len(seen))
	}
	if _, ok := w.Chunk(ChunkCoord{2, 0}); ok {
		t.Fatalf("chunk (2,0) must not be touched")
	}
	if len(gen.maps) != 9 {
		t.Fatalf("map requests=%d want 9", len(gen.maps))
	}
}

func TestWorldUpdate_WindowIsSquareAroundRoundedCenter(t *testing.T) {
	w, _, _ := newTestWorld(t, baseConfig())
	positions := []Vec2{
		{0, 0}, {-359, 121}, {1000.5, -4321}, {120, 120}, {-120, -120}, {1e6, -1e6},
	}
	for _, p := range positions {
		res := w.UpdateVisibleChunks(p)
		cx := int(math.Round(p.X() / 240))
		cy := int(math.Round(p.Y() / 240))
		if res.Center != (ChunkCoord{cx, cy}) {
			t.Fatalf("pos %v: center=%v want (%d,%d)", p, res.Center, cx, cy)
		}
		want := map[ChunkCoord]bool{}
		for y := cy - 1; y <= cy+1; y++ {
			for x := cx - 1; x <= cx+1; x++ {
				want[ChunkCoord{x, y}] = true
			}
		}
		if len(res.Visited) != len(want) {
			t.Fatalf("pos %v: visited %d want %d", p, len(res.Visited), len(want))
		}
		for _, c := range res.Visited {
			if !want[c] {
				t.Fatalf("pos %v: unexpected or duplicate coord %v", p, c)
			}
			delete(want, c)
		}
	}
}

func TestWorldUpdate_MapRequestedOncePerChunk(t *testing.T) {
	w, gen, _ := newTestWorld(t, baseConfig())
	w.StepOnce(Vec2{0, 0})
	w.StepOnce(Vec2{100, 0})
	w.StepOnce(Vec2{-100, 50})
	w.StepOnce(Vec2{0, 0})
	if w.Metrics().UpdatesRun != 4 {
		t.Fatalf("updates=%d want 4", w.Metrics().UpdatesRun)
	}
	count := map[ChunkCoord]int{}
	for _, req := range gen.maps {
		count[req.Coord]++
	}
	if len(count) != 9 {
		t.Fatalf("distinct chunks=%d want 9", len(count))
	}
	for c, n := range count {
		if n != 1 {
			t.Fatalf("chunk %v got %d map requests", c, n)
		}
	}
}

func TestTerrainChunk_VisibilityBoundary(t *testing.T) {
	w, gen, _ := newTestWorld(t, baseConfig())
	c := ChunkCoord{1, 0}
	w.StepOnce(Vec2{0, 0})
	gen.completeMaps(at(c))
	w.StepOnce(Vec2{0, 0})

	ch := w.chunks[c]
	// Nearest edge of chunk (1,0) is x=120.
	if !ch.UpdateTerrainChunk(Vec2{-180, 0}, w.CurrentTick()) {
		t.Fatalf("distance exactly maxViewDistance must be visible")
	}
	if ch.UpdateTerrainChunk(Vec2{-180.0001, 0}, w.CurrentTick()) {
		t.Fatalf("distance past maxViewDistance must not be visible")
	}
	if !ch.UpdateTerrainChunk(Vec2{120, 0}, w.CurrentTick()) {
		t.Fatalf("viewer on the edge must see the chunk")
	}
	if got := gen.meshRequestsFor(c); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("mesh requests=%v want [0 1]", got)
	}
}

func TestTerrainChunk_NoopUntilMapData(t *testing.T) {
	w, gen, sink := newTestWorld(t, baseConfig())
	w.StepOnce(Vec2{0, 0})
	ch := w.chunks[ChunkCoord{0, 0}]
	if ch.UpdateTerrainChunk(Vec2{0, 0}, 0) {
		t.Fatalf("chunk without map data must stay hidden")
	}
	if len(gen.meshes) != 0 || len(sink.events) != 0 {
		t.Fatalf("unexpected activity before map data: meshes=%d events=%d", len(gen.meshes), len(sink.events))
	}
	if w.Metrics().VisibleChunks != 0 {
		t.Fatalf("visible=%d want 0", w.Metrics().VisibleChunks)
	}
}

func TestTerrainChunk_UpdateIsIdempotent(t *testing.T) {
	w, gen, sink := newTestWorld(t, baseConfig())
	w.StepOnce(Vec2{0, 0})
	gen.completeMaps(nil)
	w.StepOnce(Vec2{0, 0})
	gen.completeMeshes(meshAt(ChunkCoord{0, 0}))
	w.StepOnce(Vec2{0, 0})

	snapshot := func() map[ChunkCoord]ChunkInfo {
		out := map[ChunkCoord]ChunkInfo{}
		for c := range w.chunks {
			info, _ := w.Chunk(c)
			out[c] = info
		}
		return out
	}
	tick := w.CurrentTick()
	for _, ch := range w.chunks {
		ch.UpdateTerrainChunk(Vec2{0, 0}, tick)
	}
	before := snapshot()
	maps, meshes, events := len(gen.maps), len(gen.meshes), len(sink.events)

	for i := 0; i < 2; i++ {
		for _, ch := range w.chunks {
			ch.UpdateTerrainChunk(Vec2{0, 0}, tick)
		}
	}
	w.StepOnce(Vec2{0, 0})

	if !reflect.DeepEqual(before, snapshot()) {
		t.Fatalf("chunk state changed on repeated update")
	}
	if len(gen.maps) != maps || len(gen.meshes) != meshes || len(sink.events) != events {
		t.Fatalf("repeated update issued work: maps %d->%d meshes %d->%d events %d->%d",
			maps, len(gen.maps), meshes, len(gen.meshes), events, len(sink.events))
	}
}

func TestTerrainChunk_MeshRequestedAtMostOnce(t *testing.T) {
	w, gen, _ := newTestWorld(t, baseConfig())
	c := ChunkCoord{0, 0}
	w.StepOnce(Vec2{220, 0})
	gen.completeMaps(at(c))
	w.StepOnce(Vec2{220, 0})

	ch := w.chunks[c]
	for i := 0; i < 10; i++ {
		ch.UpdateTerrainChunk(Vec2{220, 0}, w.CurrentTick())
		ch.UpdateTerrainChunk(Vec2{320, 0}, w.CurrentTick())
	}
	w.StepOnce(Vec2{220, 0})
	if got := gen.meshRequestsFor(c); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("mesh requests=%v want [0 1]", got)
	}
	if m := w.Metrics(); m.MeshInFlight != 2 {
		t.Fatalf("mesh in flight=%d want 2", m.MeshInFlight)
	}
}

func TestTerrainChunk_LODFollowsDistance(t *testing.T) {
	w, gen, sink := newTestWorld(t, baseConfig())
	c := ChunkCoord{0, 0}

	// distance 100
	w.StepOnce(Vec2{220, 0})
	gen.completeMaps(at(c))
	w.StepOnce(Vec2{220, 0})
	if got := gen.meshRequestsFor(c); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("at 100: mesh requests=%v want [0]", got)
	}
	if sink.count("texture") != 1 {
		t.Fatalf("texture events=%d want 1", sink.count("texture"))
	}
	gen.completeMeshes(meshAt(c))
	w.StepOnce(Vec2{220, 0})
	if got := sink.adopted(c); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("at 100: adopted=%v want [0]", got)
	}

	// distance 200
	w.StepOnce(Vec2{320, 0})
	if got := gen.meshRequestsFor(c); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("at 200: mesh requests=%v want [0 1]", got)
	}
	info, _ := w.Chunk(c)
	if info.LODStates[0] != Ready || info.LODIndex != 0 || !info.Visible {
		t.Fatalf("at 200: info=%+v", info)
	}

	// distance 400
	w.StepOnce(Vec2{520, 0})
	info, _ = w.Chunk(c)
	if info.Visible {
		t.Fatalf("at 400: chunk must be hidden")
	}
	w.chunks[c].UpdateTerrainChunk(Vec2{520, 0}, w.CurrentTick())
	if got := gen.meshRequestsFor(c); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("at 400: mesh requests=%v want [0 1]", got)
	}
	last := sinkEvent{}
	for _, e := range sink.events {
		if e.Kind == "visible" && e.Coord == c {
			last = e
		}
	}
	if last.Kind != "visible" || last.Visible {
		t.Fatalf("last visibility event for %v = %+v", c, last)
	}
}

func TestTerrainChunk_LateMeshCachedNotAdopted(t *testing.T) {
	w, gen, sink := newTestWorld(t, baseConfig())
	c := ChunkCoord{0, 0}
	w.StepOnce(Vec2{220, 0})
	gen.completeMaps(at(c))
	w.StepOnce(Vec2{220, 0})
	w.StepOnce(Vec2{320, 0})

	gen.completeMeshes(func(req MeshDataRequest) bool { return req.Coord == c && req.LODIndex == 0 })
	w.StepOnce(Vec2{320, 0})

	info, _ := w.Chunk(c)
	if info.LODStates[0] != Ready {
		t.Fatalf("late mesh must be cached, states=%v", info.LODStates)
	}
	if info.LODIndex != -1 || len(sink.adopted(c)) != 0 {
		t.Fatalf("late mesh must not be adopted: lod=%d adopted=%v", info.LODIndex, sink.adopted(c))
	}

	gen.completeMeshes(meshAt(c))
	w.StepOnce(Vec2{320, 0})
	w.StepOnce(Vec2{220, 0})
	if got := sink.adopted(c); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Fatalf("adopted=%v want [1 0]", got)
	}
	if got := gen.meshRequestsFor(c); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("cached mesh was re-requested: %v", got)
	}
	if m := w.Metrics(); m.MeshesCached != 2 || m.MeshInFlight != 0 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestTerrainChunk_AdoptedLODNonIncreasingWhileApproaching(t *testing.T) {
	cfg := baseConfig()
	cfg.ChunkSize = 100 // radius 3, so the chunk stays in the window
	w, gen, sink := newTestWorld(t, cfg)
	c := ChunkCoord{0, 0}

	settle := func(p Vec2) {
		w.StepOnce(p)
		gen.completeMaps(at(c))
		w.StepOnce(p)
		gen.completeMeshes(meshAt(c))
		w.StepOnce(p)
	}
	for _, x := range []float64{300, 250, 150, 90, 20, 0} {
		settle(Vec2{x, 0})
	}
	got := sink.adopted(c)
	if !reflect.DeepEqual(got, []int{1, 0}) {
		t.Fatalf("adopted=%v want [1 0]", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] > got[i-1] {
			t.Fatalf("adopted lod increased while approaching: %v", got)
		}
	}
}

func TestWorldStep_Throttle(t *testing.T) {
	w, _, _ := newTestWorld(t, baseConfig())
	tl := &recordingTickLog{}
	w.SetTickLogger(tl)

	if !w.StepOnce(Vec2{0, 0}).Ran {
		t.Fatalf("first step must run")
	}
	if w.StepOnce(Vec2{25, 0}).Ran {
		t.Fatalf("moving exactly the threshold must not run")
	}
	if w.StepOnce(Vec2{10, 10}).Ran {
		t.Fatalf("small move must not run")
	}
	if !w.StepOnce(Vec2{25.5, 0}).Ran {
		t.Fatalf("moving past the threshold must run")
	}
	if w.ViewerState().LastUpdatePos != (Vec2{25.5, 0}) {
		t.Fatalf("last update pos=%v", w.ViewerState().LastUpdatePos)
	}

	if len(tl.entries) != 4 {
		t.Fatalf("tick log entries=%d want 4", len(tl.entries))
	}
	if !tl.entries[0].Ran || tl.entries[0].MapRequests != 9 || tl.entries[0].Resident != 9 {
		t.Fatalf("entry0=%+v", tl.entries[0])
	}
	if tl.entries[1].Ran || tl.entries[1].Tick != 1 || tl.entries[1].MapRequests != 0 {
		t.Fatalf("entry1=%+v", tl.entries[1])
	}
	if !tl.entries[3].Ran || tl.entries[3].Center != [2]int{0, 0} || tl.entries[3].Radius != 1 {
		t.Fatalf("entry3=%+v", tl.entries[3])
	}
	m := w.Metrics()
	if m.Tick != 4 || m.UpdatesRun != 2 || m.MapInFlight != 9 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestWorldStep_VisibleChunksTrackCompletions(t *testing.T) {
	w, gen, _ := newTestWorld(t, baseConfig())
	w.StepOnce(Vec2{0, 0})
	gen.completeMaps(nil)
	res := w.StepOnce(Vec2{0, 0})
	if res.Applied != 9 {
		t.Fatalf("applied=%d want 9", res.Applied)
	}
	if got := len(w.VisibleChunks()); got != 9 {
		t.Fatalf("visible=%d want 9", got)
	}
	vis := w.VisibleChunks()
	for i := 1; i < len(vis); i++ {
		if !vis[i-1].Less(vis[i]) {
			t.Fatalf("visible chunks not sorted: %v", vis)
		}
	}
	// Corner chunks sit ~170 away from the origin and want the coarse level.
	if got := gen.meshRequestsFor(ChunkCoord{1, 1}); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("corner mesh requests=%v want [1]", got)
	}
}
