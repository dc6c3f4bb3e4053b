package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	ResidentChunks int `json:"resident_chunks"`
	VisibleChunks  int `json:"visible_chunks"`
	MeshesCached   int `json:"meshes_cached"`

	MapRequests  uint64 `json:"map_requests"`
	MeshRequests uint64 `json:"mesh_requests"`
	MapInFlight  uint64 `json:"map_in_flight"`
	MeshInFlight uint64 `json:"mesh_in_flight"`

	PendingCompletions int    `json:"pending_completions"`
	StaleCompletions   uint64 `json:"stale_completions"`
	EvictedTotal       uint64 `json:"evicted_total"`
	UpdatesRun         uint64 `json:"updates_run"`

	Viewer [2]float64 `json:"viewer"`
	Center [2]int     `json:"center"`

	StepMS float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepMS float64) {
	w.metrics.Store(WorldMetrics{
		Tick:               w.tick.Load(),
		ResidentChunks:     len(w.chunks),
		VisibleChunks:      len(w.visibleLastUpdate),
		MeshesCached:       w.env.meshesReady,
		MapRequests:        w.env.mapRequests,
		MeshRequests:       w.env.meshRequests,
		MapInFlight:        w.env.mapRequests - w.mapCompleted,
		MeshInFlight:       w.env.meshRequests - w.meshCompleted,
		PendingCompletions: w.completions.Len(),
		StaleCompletions:   w.staleTotal,
		EvictedTotal:       w.evictedTotal,
		UpdatesRun:         w.updatesRun,
		Viewer:             [2]float64{w.viewer.Pos.X(), w.viewer.Pos.Y()},
		Center:             [2]int{w.lastUpdate.Center.X, w.lastUpdate.Center.Y},
		StepMS:             stepMS,
	})
}
