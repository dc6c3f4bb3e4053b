package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "endlessterrain.ai/internal/persistence/log"
	"endlessterrain.ai/internal/sim/terrain/gen"
	"endlessterrain.ai/internal/sim/terrain/mesh"
	"endlessterrain.ai/internal/sim/terrain/noise"
	"endlessterrain.ai/internal/sim/tuning"
	"endlessterrain.ai/internal/sim/world"
)

func main() {
	var (
		ticksDir   = flag.String("ticks", "./data/ticks", "dir containing ticks-*.jsonl.zst")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		verify     = flag.Bool("verify", false, "re-drive the viewer path through a headless world and compare update decisions")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	files, err := persistlog.ListTickLogs(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list tick logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick logs found in", *ticksDir)
		os.Exit(1)
	}

	var rp *replayer
	if *verify {
		tp := *tuningPath
		if tp == "" {
			tp = filepath.Join(*configDir, "tuning.yaml")
		}
		tune, err := tuning.Load(tp)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		cfg, err := tune.WorldConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "world config:", err)
			os.Exit(1)
		}
		rp = newReplayer(cfg, tune.MapChunkSize)
	}

	var sum summary
	for _, path := range files {
		err := persistlog.ReadTickLog(path, func(e world.TickLogEntry) error {
			if *toTick != 0 && e.Tick > *toTick {
				return nil
			}
			sum.add(e)
			if rp != nil {
				return rp.feed(e)
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	fmt.Println(sum.String())
	if rp != nil {
		fmt.Printf("replay ok: checked=%d ticks sessions=%d\n", rp.checked, rp.sessions)
	}
}

type summary struct {
	entries    uint64
	lastTick   uint64
	updates    uint64
	created    uint64
	evicted    uint64
	mapReqs    uint64
	meshReqs   uint64
	maxVisible int
	distance   float64
	last       *[2]float64
}

func (s *summary) add(e world.TickLogEntry) {
	s.entries++
	s.lastTick = e.Tick
	if e.Ran {
		s.updates++
	}
	s.created += uint64(e.Created)
	s.evicted += uint64(e.Evicted)
	s.mapReqs += e.MapRequests
	s.meshReqs += e.MeshRequests
	if e.Visible > s.maxVisible {
		s.maxVisible = e.Visible
	}
	if s.last != nil && e.Tick != 0 {
		s.distance += world.Vec2(e.Viewer).Sub(world.Vec2(*s.last)).Len()
	}
	p := e.Viewer
	s.last = &p
}

func (s summary) String() string {
	return fmt.Sprintf("ticks=%d last_tick=%d updates=%d created=%d evicted=%d map_requests=%d mesh_requests=%d max_visible=%d distance=%.1f",
		s.entries, s.lastTick, s.updates, s.created, s.evicted, s.mapReqs, s.meshReqs, s.maxVisible, s.distance)
}

// replayer feeds logged viewer positions through a fresh world. Only the
// throttle decision and window centre are compared: chunk visibility depends
// on when generation finished, which the log does not pin down.
type replayer struct {
	cfg          world.WorldConfig
	mapChunkSize int

	w        *world.World
	g        *gen.Generator
	checked  uint64
	sessions int
}

func newReplayer(cfg world.WorldConfig, mapChunkSize int) *replayer {
	// Eviction and generation never affect the throttle or the centre.
	cfg.Eviction = world.EvictionPolicy{}
	return &replayer{cfg: cfg, mapChunkSize: mapChunkSize}
}

func (r *replayer) reset() error {
	if r.g != nil {
		r.g.Close()
	}
	g, err := gen.New(gen.Config{
		Type:         gen.TypeFlat,
		MapChunkSize: r.mapChunkSize,
		Heights:      noise.Flat{Height: 0.5},
		Mesh:         mesh.Heightfield{HeightMultiplier: 1},
		Inline:       true,
	})
	if err != nil {
		return err
	}
	w, err := world.New(r.cfg, g, world.NopSink{})
	if err != nil {
		g.Close()
		return err
	}
	r.g, r.w = g, w
	r.sessions++
	return nil
}

func (r *replayer) feed(e world.TickLogEntry) error {
	// A server restart begins a new tick sequence at zero.
	if r.w == nil || e.Tick == 0 {
		if err := r.reset(); err != nil {
			return err
		}
	}
	if e.Tick != r.w.CurrentTick() {
		return fmt.Errorf("tick gap: want=%d got=%d", r.w.CurrentTick(), e.Tick)
	}
	res := r.w.StepOnce(world.Vec2(e.Viewer))
	r.checked++
	if res.Ran != e.Ran {
		return fmt.Errorf("tick %d: ran=%v logged=%v", e.Tick, res.Ran, e.Ran)
	}
	if !res.Ran {
		return nil
	}
	got := [2]int{res.Update.Center.X, res.Update.Center.Y}
	if got != e.Center {
		return fmt.Errorf("tick %d: center=%v logged=%v", e.Tick, got, e.Center)
	}
	if e.Radius != 0 && res.Update.Radius != e.Radius {
		return fmt.Errorf("tick %d: radius=%d logged=%d", e.Tick, res.Update.Radius, e.Radius)
	}
	return nil
}
