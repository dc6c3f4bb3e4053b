package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "endlessterrain.ai/internal/persistence/log"
	"endlessterrain.ai/internal/persistence/mapcache"
	"endlessterrain.ai/internal/protocol"
	"endlessterrain.ai/internal/sim/terrain/gen"
	"endlessterrain.ai/internal/sim/tuning"
	"endlessterrain.ai/internal/sim/world"
	"endlessterrain.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "override generator seed (0 keeps tuning.yaml)")
		disableLog = flag.Bool("disable_tick_log", false, "disable the compressed tick log")
		disableDB  = flag.Bool("disable_map_cache", false, "disable the sqlite map cache even if tuning enables it")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Generator.Seed = *seed
	}

	var store *mapcache.SQLiteStore
	if tune.MapCache.Enabled && !*disableDB {
		path := tune.MapCache.Path
		if !filepath.IsAbs(path) && !strings.HasPrefix(path, ".") {
			path = filepath.Join(*dataDir, path)
		}
		store, err = mapcache.OpenSQLite(path, log.New(os.Stdout, "[mapcache] ", log.LstdFlags|log.Lmicroseconds))
		if err != nil {
			logger.Fatalf("open map cache: %v", err)
		}
		defer store.Close()
		logger.Printf("map cache: %s", path)
	}

	genCfg, err := tune.GenConfig()
	if err != nil {
		logger.Fatalf("generator config: %v", err)
	}
	genCfg.Logger = log.New(os.Stdout, "[gen] ", log.LstdFlags|log.Lmicroseconds)
	if store != nil {
		genCfg.Store = store
	}
	g, err := gen.New(genCfg)
	if err != nil {
		logger.Fatalf("generator: %v", err)
	}
	defer g.Close()

	worldCfg, err := tune.WorldConfig()
	if err != nil {
		logger.Fatalf("world config: %v", err)
	}
	hub := ws.NewHub(log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	w, err := world.New(worldCfg, g, hub)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	var tickLog *persistlog.TickLogger
	if !*disableLog {
		tickLog = persistlog.NewTickLogger(filepath.Join(*dataDir, "ticks"))
		defer tickLog.Close()
		w.SetTickLogger(tickLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := hub.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("hub stopped: %v", err)
		}
	}()
	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(statsSource{world: w, gen: g, cache: store, hub: hub, ticks: tickLog}))

	if envBool("ET_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Tick      uint64                  `json:"tick"`
				Metrics   world.WorldMetrics      `json:"metrics"`
				Generator gen.Stats               `json:"generator"`
				MapCache  mapcache.Stats          `json:"map_cache"`
				Hub       ws.HubStats             `json:"hub"`
				TickLog   persistlog.TickLogStats `json:"tick_log"`
			}{
				Tick:      w.CurrentTick(),
				Metrics:   w.Metrics(),
				Generator: g.Stats(),
				MapCache:  store.Stats(),
				Hub:       hub.Stats(),
				TickLog:   tickLog.Stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (ET_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("ET_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (ET_ENABLE_PPROF_HTTP=false)")
	}

	mux.HandleFunc("/v1/ws", ws.NewServer(hub, ws.Config{
		Params:          worldParams(tune, worldCfg),
		Viewer:          w.Viewer(),
		ViewerPerSecond: tune.RateLimits.ViewerPerSecond,
		ViewerBurst:     tune.RateLimits.ViewerBurst,
	}, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (chunk=%d lods=%d view=%.0f seed=%d)",
		*addr, tune.ChunkSize(), worldCfg.LODs.Len(), worldCfg.LODs.MaxViewDistance(), tune.Generator.Seed)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func worldParams(tune tuning.Tuning, cfg world.WorldConfig) protocol.WorldParams {
	lods := make([]protocol.LODInfo, 0, cfg.LODs.Len())
	for _, l := range cfg.LODs.Levels() {
		lods = append(lods, protocol.LODInfo{LOD: l.LOD, VisibleDistance: l.VisibleDistance})
	}
	return protocol.WorldParams{
		TickRateHz:      tune.TickRateHz,
		ChunkSize:       tune.ChunkSize(),
		MapChunkSize:    tune.MapChunkSize,
		Scale:           tune.Scale,
		MaxViewDistance: cfg.LODs.MaxViewDistance(),
		LODs:            lods,
		Seed:            tune.Generator.Seed,
		Generator:       tune.Generator.Type,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
