package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pos := w.viewer.Pos
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case p := <-w.viewerIn:
			pos = p
		case <-ticker.C:
			w.step(pos)
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepResult reports what a single tick did.
type StepResult struct {
	Tick    uint64
	Applied int
	Ran     bool
	Update  UpdateResult
	Evicted []ChunkCoord
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for tests and replays.
func (w *World) StepOnce(pos Vec2) StepResult {
	return w.step(pos)
}

func (w *World) step(pos Vec2) StepResult {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	mapBefore, meshBefore := w.env.mapRequests, w.env.meshRequests

	// Completions see the newest viewer position.
	w.viewer.Pos = pos
	w.drainBuf = w.completions.drain(w.drainBuf)
	for _, c := range w.drainBuf {
		w.applyCompletion(c)
	}
	res := StepResult{Tick: nowTick, Applied: len(w.drainBuf)}
	for i := range w.drainBuf {
		w.drainBuf[i] = Completion{}
	}

	if w.shouldUpdate(pos) {
		res.Ran = true
		res.Update = w.UpdateVisibleChunks(pos)
		res.Evicted = w.evict()
	}

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:         nowTick,
			Viewer:       [2]float64{pos.X(), pos.Y()},
			Ran:          res.Ran,
			Visible:      len(w.visibleLastUpdate),
			Resident:     len(w.chunks),
			Evicted:      len(res.Evicted),
			Applied:      res.Applied,
			MapRequests:  w.env.mapRequests - mapBefore,
			MeshRequests: w.env.meshRequests - meshBefore,
		}
		if res.Ran {
			entry.Center = [2]int{res.Update.Center.X, res.Update.Center.Y}
			entry.Radius = res.Update.Radius
			entry.Created = res.Update.Created
		}
		_ = w.tickLogger.WriteTick(entry)
	}

	w.tick.Add(1)
	w.publishMetrics(float64(time.Since(stepStart).Microseconds()) / 1000.0)
	return res
}
