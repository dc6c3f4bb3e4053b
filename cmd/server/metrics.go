package main

import (
	"fmt"
	"io"
	"net/http"

	persistlog "endlessterrain.ai/internal/persistence/log"
	"endlessterrain.ai/internal/persistence/mapcache"
	"endlessterrain.ai/internal/sim/terrain/gen"
	"endlessterrain.ai/internal/sim/world"
	"endlessterrain.ai/internal/transport/ws"
)

type statsSource struct {
	world *world.World
	gen   *gen.Generator
	cache *mapcache.SQLiteStore
	hub   *ws.Hub
	ticks *persistlog.TickLogger
}

func metricsHandler(src statsSource) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, src)
	}
}

func gauge(out io.Writer, name, help string) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s gauge\n", name)
}

func counter(out io.Writer, name, help string) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s counter\n", name)
}

// Minimal Prometheus exposition format.
func writeMetrics(out io.Writer, src statsSource) {
	m := src.world.Metrics()
	tick := src.world.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	gauge(out, "endlessterrain_world_tick", "Current world tick.")
	fmt.Fprintf(out, "endlessterrain_world_tick %d\n", tick)

	gauge(out, "endlessterrain_world_chunks", "Chunk counts by state.")
	fmt.Fprintf(out, "endlessterrain_world_chunks{state=%q} %d\n", "resident", m.ResidentChunks)
	fmt.Fprintf(out, "endlessterrain_world_chunks{state=%q} %d\n", "visible", m.VisibleChunks)
	fmt.Fprintf(out, "endlessterrain_world_chunks{state=%q} %d\n", "meshes_cached", m.MeshesCached)

	counter(out, "endlessterrain_world_requests_total", "Generator requests issued by the world.")
	fmt.Fprintf(out, "endlessterrain_world_requests_total{kind=%q} %d\n", "map", m.MapRequests)
	fmt.Fprintf(out, "endlessterrain_world_requests_total{kind=%q} %d\n", "mesh", m.MeshRequests)

	gauge(out, "endlessterrain_world_in_flight", "Generator requests awaiting completion.")
	fmt.Fprintf(out, "endlessterrain_world_in_flight{kind=%q} %d\n", "map", m.MapInFlight)
	fmt.Fprintf(out, "endlessterrain_world_in_flight{kind=%q} %d\n", "mesh", m.MeshInFlight)

	gauge(out, "endlessterrain_world_pending_completions", "Completions queued for the next tick.")
	fmt.Fprintf(out, "endlessterrain_world_pending_completions %d\n", m.PendingCompletions)

	counter(out, "endlessterrain_world_stale_completions_total", "Completions dropped because their chunk was evicted.")
	fmt.Fprintf(out, "endlessterrain_world_stale_completions_total %d\n", m.StaleCompletions)

	counter(out, "endlessterrain_world_evicted_total", "Chunks evicted.")
	fmt.Fprintf(out, "endlessterrain_world_evicted_total %d\n", m.EvictedTotal)

	counter(out, "endlessterrain_world_updates_total", "Visible window recomputations.")
	fmt.Fprintf(out, "endlessterrain_world_updates_total %d\n", m.UpdatesRun)

	gauge(out, "endlessterrain_world_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(out, "endlessterrain_world_step_ms %.3f\n", m.StepMS)

	if src.gen != nil {
		st := src.gen.Stats()
		counter(out, "endlessterrain_gen_total", "Generator work by outcome.")
		fmt.Fprintf(out, "endlessterrain_gen_total{result=%q} %d\n", "map_generated", st.MapsGenerated)
		fmt.Fprintf(out, "endlessterrain_gen_total{result=%q} %d\n", "map_cached", st.MapsCached)
		fmt.Fprintf(out, "endlessterrain_gen_total{result=%q} %d\n", "mesh_built", st.MeshesBuilt)
		fmt.Fprintf(out, "endlessterrain_gen_total{result=%q} %d\n", "failed", st.Failed)
		fmt.Fprintf(out, "endlessterrain_gen_total{result=%q} %d\n", "dropped", st.Dropped)

		gauge(out, "endlessterrain_gen_pool", "Generator worker pool occupancy.")
		fmt.Fprintf(out, "endlessterrain_gen_pool{state=%q} %d\n", "running", st.Running)
		fmt.Fprintf(out, "endlessterrain_gen_pool{state=%q} %d\n", "waiting", st.Waiting)
	}

	if src.cache != nil {
		st := src.cache.Stats()
		counter(out, "endlessterrain_mapcache_total", "Map cache operations by outcome.")
		fmt.Fprintf(out, "endlessterrain_mapcache_total{op=%q} %d\n", "hit", st.Hits)
		fmt.Fprintf(out, "endlessterrain_mapcache_total{op=%q} %d\n", "miss", st.Misses)
		fmt.Fprintf(out, "endlessterrain_mapcache_total{op=%q} %d\n", "read_error", st.ReadErrors)
		fmt.Fprintf(out, "endlessterrain_mapcache_total{op=%q} %d\n", "write", st.Writes)
		fmt.Fprintf(out, "endlessterrain_mapcache_total{op=%q} %d\n", "write_error", st.WriteErrors)
		fmt.Fprintf(out, "endlessterrain_mapcache_total{op=%q} %d\n", "drop", st.DropTotal)

		gauge(out, "endlessterrain_mapcache_queue", "Map cache write queue.")
		fmt.Fprintf(out, "endlessterrain_mapcache_queue{field=%q} %d\n", "depth", st.QueueDepth)
		fmt.Fprintf(out, "endlessterrain_mapcache_queue{field=%q} %d\n", "capacity", st.QueueCapacity)
	}

	if src.hub != nil {
		st := src.hub.Stats()
		gauge(out, "endlessterrain_ws_sessions", "Connected viewer sessions.")
		fmt.Fprintf(out, "endlessterrain_ws_sessions %d\n", st.Sessions)
		gauge(out, "endlessterrain_ws_pending_chunks", "Chunks with sink updates waiting for the hub.")
		fmt.Fprintf(out, "endlessterrain_ws_pending_chunks %d\n", st.Pending)
		counter(out, "endlessterrain_ws_coalesced_total", "Sink updates merged into an already pending chunk.")
		fmt.Fprintf(out, "endlessterrain_ws_coalesced_total %d\n", st.Coalesced)
		counter(out, "endlessterrain_ws_dropped_total", "Messages dropped on full session queues.")
		fmt.Fprintf(out, "endlessterrain_ws_dropped_total %d\n", st.DroppedOut)
	}

	if src.ticks != nil {
		st := src.ticks.Stats()
		counter(out, "endlessterrain_ticklog_total", "Tick log writes by outcome.")
		fmt.Fprintf(out, "endlessterrain_ticklog_total{result=%q} %d\n", "written", st.Entries)
		fmt.Fprintf(out, "endlessterrain_ticklog_total{result=%q} %d\n", "error", st.Errors)
		gauge(out, "endlessterrain_ticklog_files", "Tick log files opened by this process.")
		fmt.Fprintf(out, "endlessterrain_ticklog_files %d\n", st.Files)
	}
}
