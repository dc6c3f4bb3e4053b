package world

import "sort"

// evict drops chunks that are outside the current window and not visible,
// first by age, then oldest-first while over the residency cap.
func (w *World) evict() []ChunkCoord {
	p := w.cfg.Eviction
	if !p.Enabled() || !w.viewer.HasUpdated {
		return nil
	}
	tick := w.tick.Load()
	center, r := w.lastUpdate.Center, w.lastUpdate.Radius

	var candidates []*TerrainChunk
	for c, ch := range w.chunks {
		if ch.visible || inWindow(c, center, r) {
			continue
		}
		candidates = append(candidates, ch)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.lastVisibleTick != b.lastVisibleTick {
			return a.lastVisibleTick < b.lastVisibleTick
		}
		return a.coord.Less(b.coord)
	})

	var out []ChunkCoord
	for _, ch := range candidates {
		expired := p.EvictAfterTicks > 0 && tick-ch.lastVisibleTick >= p.EvictAfterTicks
		over := p.MaxResidentChunks > 0 && len(w.chunks) > p.MaxResidentChunks
		if !expired && !over {
			// Candidates are oldest first; nothing later can qualify by age either.
			break
		}
		w.removeChunk(ch)
		out = append(out, ch.coord)
	}
	return out
}

func (w *World) removeChunk(ch *TerrainChunk) {
	delete(w.chunks, ch.coord)
	delete(w.visibleLastUpdate, ch.coord)
	w.env.meshesReady -= ch.readyMeshes()
	w.evictedTotal++
	w.env.sink.ChunkEvicted(ch.coord)
}

func inWindow(c, center ChunkCoord, r int) bool {
	dx, dy := c.X-center.X, c.Y-center.Y
	return dx >= -r && dx <= r && dy >= -r && dy <= r
}
