package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"endlessterrain.ai/internal/protocol"
	"endlessterrain.ai/internal/sim/terrain"
	"endlessterrain.ai/internal/sim/world"
)

// pendingChunk is everything the world reported for one chunk since the hub
// last flushed. Later calls overwrite earlier ones, so nothing is ever dropped
// and the hub still ends up at the world's latest state.
type pendingChunk struct {
	evicted bool

	hasVisible bool
	visible    bool

	hasMesh  bool
	lodIndex int
	mesh     *terrain.MeshData

	tex *terrain.Texture
}

// chunkState is the last encoded payload per chunk, replayed to sessions that
// join after it was sent.
type chunkState struct {
	visible bool
	mesh    []byte
	texture []byte
}

// Hub is the world's Sink. Calls only record into the pending set; encoding
// and fan-out happen on the hub goroutine (Run).
type Hub struct {
	log *log.Logger

	mu      sync.Mutex
	pending map[world.ChunkCoord]*pendingChunk
	order   []world.ChunkCoord
	wake    chan struct{}

	register   chan *session
	unregister chan *session

	// owned by Run
	sessions map[string]*session
	chunks   map[world.ChunkCoord]*chunkState

	sessionCount atomic.Int64
	coalesced    atomic.Uint64
	droppedOut   atomic.Uint64
}

var _ world.Sink = (*Hub)(nil)

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		log:        logger,
		pending:    map[world.ChunkCoord]*pendingChunk{},
		wake:       make(chan struct{}, 1),
		register:   make(chan *session),
		unregister: make(chan *session),
		sessions:   map[string]*session{},
		chunks:     map[world.ChunkCoord]*chunkState{},
	}
}

func (h *Hub) record(c world.ChunkCoord, fn func(p *pendingChunk)) {
	h.mu.Lock()
	p, ok := h.pending[c]
	if !ok {
		p = &pendingChunk{}
		h.pending[c] = p
		h.order = append(h.order, c)
	} else {
		h.coalesced.Add(1)
	}
	fn(p)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) ChunkVisible(c world.ChunkCoord, v bool) {
	h.record(c, func(p *pendingChunk) { p.hasVisible, p.visible = true, v })
}

func (h *Hub) ChunkMesh(c world.ChunkCoord, lodIndex int, m *terrain.MeshData) {
	h.record(c, func(p *pendingChunk) { p.hasMesh, p.lodIndex, p.mesh = true, lodIndex, m })
}

func (h *Hub) ChunkTexture(c world.ChunkCoord, t *terrain.Texture) {
	h.record(c, func(p *pendingChunk) { p.tex = t })
}

// ChunkEvicted supersedes whatever was pending for the chunk.
func (h *Hub) ChunkEvicted(c world.ChunkCoord) {
	h.record(c, func(p *pendingChunk) { *p = pendingChunk{evicted: true} })
}

func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-h.register:
			h.flush()
			h.sessions[s.id] = s
			h.sessionCount.Store(int64(len(h.sessions)))
			s.replay <- h.snapshot(s)
		case s := <-h.unregister:
			delete(h.sessions, s.id)
			h.sessionCount.Store(int64(len(h.sessions)))
		case <-h.wake:
			h.flush()
		}
	}
}

// flush applies the pending set in first-reported order.
func (h *Hub) flush() {
	h.mu.Lock()
	pending, order := h.pending, h.order
	h.pending = make(map[world.ChunkCoord]*pendingChunk, len(pending))
	h.order = nil
	h.mu.Unlock()

	for _, c := range order {
		h.apply(c, pending[c])
	}
}

func (h *Hub) state(c world.ChunkCoord) *chunkState {
	st, ok := h.chunks[c]
	if !ok {
		st = &chunkState{}
		h.chunks[c] = st
	}
	return st
}

func (h *Hub) apply(c world.ChunkCoord, p *pendingChunk) {
	if p.evicted {
		delete(h.chunks, c)
		h.broadcast(mustJSON(protocol.ChunkEvictMsg{
			Type: protocol.TypeChunkEvict, ProtocolVersion: protocol.Version,
			CX: c.X, CY: c.Y,
		}), func(*session) bool { return true })
	}
	if p.tex != nil {
		b := mustJSON(textureMsg(c, p.tex))
		h.state(c).texture = b
		h.broadcast(b, func(s *session) bool { return s.textures })
	}
	if p.hasMesh {
		b := mustJSON(meshMsg(c, p.lodIndex, p.mesh))
		h.state(c).mesh = b
		h.broadcast(b, func(s *session) bool { return s.meshes })
	}
	if p.hasVisible {
		h.state(c).visible = p.visible
		h.broadcast(visibleMsg(c, p.visible), func(*session) bool { return true })
	}
}

func visibleMsg(c world.ChunkCoord, v bool) []byte {
	return mustJSON(protocol.ChunkVisibleMsg{
		Type: protocol.TypeChunkVisible, ProtocolVersion: protocol.Version,
		CX: c.X, CY: c.Y, Visible: v,
	})
}

func (h *Hub) broadcast(b []byte, want func(*session) bool) {
	if b == nil {
		return
	}
	for _, s := range h.sessions {
		if !want(s) {
			continue
		}
		if !sendLatest(s.out, b) {
			h.droppedOut.Add(1)
		}
	}
}

// snapshot encodes the current state of every known chunk, in coordinate
// order. The session writer sends it in full before any live message.
func (h *Hub) snapshot(s *session) [][]byte {
	coords := make([]world.ChunkCoord, 0, len(h.chunks))
	for c := range h.chunks {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	var out [][]byte
	for _, c := range coords {
		st := h.chunks[c]
		if s.textures && st.texture != nil {
			out = append(out, st.texture)
		}
		if s.meshes && st.mesh != nil {
			out = append(out, st.mesh)
		}
		if st.visible {
			out = append(out, visibleMsg(c, true))
		}
	}
	return out
}

type HubStats struct {
	Sessions   int    `json:"sessions"`
	Coalesced  uint64 `json:"coalesced"`
	DroppedOut uint64 `json:"dropped_out"`
	Pending    int    `json:"pending"`
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	pending := len(h.pending)
	h.mu.Unlock()
	return HubStats{
		Sessions:   int(h.sessionCount.Load()),
		Coalesced:  h.coalesced.Load(),
		DroppedOut: h.droppedOut.Load(),
		Pending:    pending,
	}
}

func meshMsg(c world.ChunkCoord, lodIndex int, m *terrain.MeshData) protocol.ChunkMeshMsg {
	msg := protocol.ChunkMeshMsg{
		Type:            protocol.TypeChunkMesh,
		ProtocolVersion: protocol.Version,
		CX:              c.X,
		CY:              c.Y,
		LODIndex:        lodIndex,
		Vertices:        []float32{},
		Triangles:       []int32{},
		UVs:             []float32{},
	}
	if m == nil {
		return msg
	}
	msg.LOD = m.LOD
	msg.Vertices = make([]float32, 0, len(m.Vertices)*3)
	for _, v := range m.Vertices {
		msg.Vertices = append(msg.Vertices, v[0], v[1], v[2])
	}
	if m.Triangles != nil {
		msg.Triangles = m.Triangles
	}
	msg.UVs = make([]float32, 0, len(m.UVs)*2)
	for _, uv := range m.UVs {
		msg.UVs = append(msg.UVs, uv[0], uv[1])
	}
	return msg
}

func textureMsg(c world.ChunkCoord, t *terrain.Texture) protocol.ChunkTextureMsg {
	msg := protocol.ChunkTextureMsg{
		Type:            protocol.TypeChunkTexture,
		ProtocolVersion: protocol.Version,
		CX:              c.X,
		CY:              c.Y,
	}
	if t == nil {
		return msg
	}
	raw := make([]byte, 0, len(t.Pixels)*4)
	for _, p := range t.Pixels {
		raw = append(raw, p.R, p.G, p.B, p.A)
	}
	msg.Width, msg.Height = t.Width, t.Height
	msg.RGBA = base64.StdEncoding.EncodeToString(raw)
	return msg
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// sendLatest enqueues b, dropping the oldest queued message if the queue is full.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
