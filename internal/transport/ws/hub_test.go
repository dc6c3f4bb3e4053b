package ws

import (
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"endlessterrain.ai/internal/sim/terrain"
	"endlessterrain.ai/internal/sim/world"
)

func tinyTexture() *terrain.Texture {
	return &terrain.Texture{Width: 1, Height: 1, Pixels: []color.RGBA{{R: 1, G: 2, B: 3, A: 0xff}}}
}

func tinyMesh(lod int) *terrain.MeshData {
	return &terrain.MeshData{
		LOD:       lod,
		Vertices:  []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}},
		Triangles: []int32{0, 1, 2},
		UVs:       []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}},
	}
}

func TestHub_CoalescesPendingUpdates(t *testing.T) {
	h := NewHub(nil)
	c := world.ChunkCoord{X: 1, Y: 2}
	h.ChunkTexture(c, tinyTexture())
	h.ChunkMesh(c, 1, tinyMesh(2))
	h.ChunkMesh(c, 0, tinyMesh(0))
	h.ChunkVisible(c, true)
	h.ChunkVisible(c, false)

	st := h.Stats()
	if st.Pending != 1 || st.Coalesced != 4 {
		t.Fatalf("stats=%+v", st)
	}
	h.flush()
	cs, ok := h.chunks[c]
	if !ok || cs.visible || cs.texture == nil || cs.mesh == nil {
		t.Fatalf("chunk state=%+v ok=%v", cs, ok)
	}
	if h.Stats().Pending != 0 {
		t.Fatalf("pending after flush=%d", h.Stats().Pending)
	}
}

func TestHub_NeverDropsUnderBurst(t *testing.T) {
	h := NewHub(nil)
	const n = 40000
	for i := 0; i < n; i++ {
		h.ChunkVisible(world.ChunkCoord{X: i, Y: 0}, true)
	}
	for i := 0; i < n; i += 2 {
		h.ChunkVisible(world.ChunkCoord{X: i, Y: 0}, false)
	}
	h.flush()
	if len(h.chunks) != n {
		t.Fatalf("chunks=%d want %d", len(h.chunks), n)
	}
	for i := 0; i < n; i++ {
		want := i%2 == 1
		if got := h.chunks[world.ChunkCoord{X: i, Y: 0}].visible; got != want {
			t.Fatalf("chunk %d visible=%v want %v", i, got, want)
		}
	}
}

func TestHub_EvictSupersedesPendingState(t *testing.T) {
	h := NewHub(nil)
	a, b := world.ChunkCoord{X: 0, Y: 0}, world.ChunkCoord{X: 5, Y: 5}
	h.ChunkVisible(a, true)
	h.ChunkVisible(b, true)
	h.flush()

	h.ChunkVisible(a, false)
	h.ChunkEvicted(a)
	// b is evicted and recreated before the hub catches up.
	h.ChunkEvicted(b)
	h.ChunkTexture(b, tinyTexture())
	h.flush()

	if _, ok := h.chunks[a]; ok {
		t.Fatalf("evicted chunk still replayable")
	}
	cs, ok := h.chunks[b]
	if !ok || cs.visible || cs.texture == nil {
		t.Fatalf("recreated chunk state=%+v ok=%v", cs, ok)
	}
}

func TestHub_SnapshotFollowsCapabilities(t *testing.T) {
	h := NewHub(nil)
	for i := 0; i < 3; i++ {
		c := world.ChunkCoord{X: i, Y: 0}
		h.ChunkTexture(c, tinyTexture())
		h.ChunkMesh(c, 0, tinyMesh(0))
		h.ChunkVisible(c, i != 1)
	}
	h.flush()

	all := h.snapshot(&session{meshes: true, textures: true})
	// 3 textures, 3 meshes, 2 visible.
	if len(all) != 8 {
		t.Fatalf("full snapshot frames=%d want 8", len(all))
	}
	bare := h.snapshot(&session{})
	if len(bare) != 2 {
		t.Fatalf("bare snapshot frames=%d want 2", len(bare))
	}
}
