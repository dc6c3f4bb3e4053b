package tuning

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"endlessterrain.ai/internal/protocol"
	"endlessterrain.ai/internal/sim/lod"
	"endlessterrain.ai/internal/sim/terrain"
	"endlessterrain.ai/internal/sim/terrain/gen"
	"endlessterrain.ai/internal/sim/terrain/mesh"
	"endlessterrain.ai/internal/sim/terrain/noise"
	"endlessterrain.ai/internal/sim/world"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	// MapChunkSize is samples per heightmap edge; one chunk spans
	// MapChunkSize-1 grid units.
	MapChunkSize int `yaml:"map_chunk_size"`
	// Scale converts grid units to world units.
	Scale               float64       `yaml:"scale"`
	ViewerMoveThreshold float64       `yaml:"viewer_move_threshold"`
	LODs                []lod.LODInfo `yaml:"lods"`

	Eviction   Eviction   `yaml:"eviction"`
	Generator  Generator  `yaml:"generator"`
	MapCache   MapCache   `yaml:"map_cache"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

type Eviction struct {
	MaxResidentChunks int    `yaml:"max_resident_chunks"`
	EvictAfterTicks   uint64 `yaml:"evict_after_ticks"`
}

type Generator struct {
	Type             string           `yaml:"type"`
	Seed             int64            `yaml:"seed"`
	NoiseScale       float64          `yaml:"noise_scale"`
	Octaves          int              `yaml:"octaves"`
	Persistence      float64          `yaml:"persistence"`
	Lacunarity       float64          `yaml:"lacunarity"`
	Offset           [2]float64       `yaml:"offset"`
	Normalize        string           `yaml:"normalize"`
	HeightMultiplier float64          `yaml:"height_multiplier"`
	HeightCurve      [][2]float64     `yaml:"height_curve"`
	Regions          []terrain.Region `yaml:"regions"`
	Workers          int              `yaml:"workers"`
}

type MapCache struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimits bounds inbound viewer traffic per session.
type RateLimits struct {
	ViewerPerSecond float64 `yaml:"viewer_per_second"`
	ViewerBurst     int     `yaml:"viewer_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     protocol.Version,
		TickRateHz:          30,
		MapChunkSize:        241,
		Scale:               1,
		ViewerMoveThreshold: 25,
		LODs: []lod.LODInfo{
			{LOD: 0, VisibleDistance: 200},
			{LOD: 1, VisibleDistance: 300},
			{LOD: 4, VisibleDistance: 450},
		},
		Generator: Generator{
			Type:             "perlin",
			Seed:             1337,
			NoiseScale:       50,
			Octaves:          4,
			Persistence:      0.5,
			Lacunarity:       2,
			Normalize:        "global",
			HeightMultiplier: 30,
			Regions:          terrain.DefaultRegions(),
		},
		RateLimits: RateLimits{ViewerPerSecond: 30, ViewerBurst: 10},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// ChunkSize is the edge length of one chunk in grid units.
func (t Tuning) ChunkSize() int { return t.MapChunkSize - 1 }

func (t Tuning) Validate() error {
	if t.ProtocolVersion != protocol.Version {
		return fmt.Errorf("protocol_version %q, server speaks %q", t.ProtocolVersion, protocol.Version)
	}
	if t.TickRateHz <= 0 {
		return errors.New("tick_rate_hz must be > 0")
	}
	if t.MapChunkSize < 2 {
		return fmt.Errorf("map_chunk_size %d must be >= 2", t.MapChunkSize)
	}
	if t.Scale <= 0 {
		return errors.New("scale must be > 0")
	}
	if t.ViewerMoveThreshold < 0 {
		return errors.New("viewer_move_threshold must be >= 0")
	}
	if _, err := lod.New(t.LODs); err != nil {
		return fmt.Errorf("lods: %w", err)
	}
	for i, l := range t.LODs {
		inc := lod.SimplificationIncrement(l.LOD)
		if t.ChunkSize()%inc != 0 {
			return fmt.Errorf("lods[%d]: increment %d does not divide chunk size %d", i, inc, t.ChunkSize())
		}
	}
	if t.Eviction.MaxResidentChunks < 0 {
		return errors.New("eviction.max_resident_chunks must be >= 0")
	}
	if _, err := noise.ParseNormalizeMode(t.Generator.Normalize); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if _, err := terrain.NewCurve(t.Generator.HeightCurve); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if _, err := terrain.CompileRegions(t.Generator.Regions); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if t.MapCache.Enabled && t.MapCache.Path == "" {
		return errors.New("map_cache.path is required when enabled")
	}
	return nil
}

func (t Tuning) WorldConfig() (world.WorldConfig, error) {
	table, err := lod.New(t.LODs)
	if err != nil {
		return world.WorldConfig{}, err
	}
	return world.WorldConfig{
		TickRateHz:    t.TickRateHz,
		ChunkSize:     float64(t.ChunkSize()),
		LODs:          table,
		MoveThreshold: t.ViewerMoveThreshold,
		Eviction: world.EvictionPolicy{
			MaxResidentChunks: t.Eviction.MaxResidentChunks,
			EvictAfterTicks:   t.Eviction.EvictAfterTicks,
		},
	}, nil
}

func (g Generator) PerlinConfig() (noise.PerlinConfig, error) {
	mode, err := noise.ParseNormalizeMode(g.Normalize)
	if err != nil {
		return noise.PerlinConfig{}, err
	}
	return noise.PerlinConfig{
		Seed:        g.Seed,
		Scale:       g.NoiseScale,
		Octaves:     g.Octaves,
		Persistence: g.Persistence,
		Lacunarity:  g.Lacunarity,
		Offset:      mgl64.Vec2{g.Offset[0], g.Offset[1]},
		Normalize:   mode,
	}, nil
}

// GenConfig builds the generator strategies. Store, Logger and Inline are left
// for the caller.
func (t Tuning) GenConfig() (gen.Config, error) {
	pc, err := t.Generator.PerlinConfig()
	if err != nil {
		return gen.Config{}, err
	}
	heights, err := gen.HeightSourceFor(t.Generator.Type, pc)
	if err != nil {
		return gen.Config{}, err
	}
	curve, err := terrain.NewCurve(t.Generator.HeightCurve)
	if err != nil {
		return gen.Config{}, err
	}
	regions, err := terrain.CompileRegions(t.Generator.Regions)
	if err != nil {
		return gen.Config{}, err
	}
	typ := t.Generator.Type
	if typ == "" {
		typ = gen.TypePerlin
	}
	return gen.Config{
		Type:         typ,
		Seed:         t.Generator.Seed,
		MapChunkSize: t.MapChunkSize,
		Heights:      heights,
		Mesh:         mesh.Heightfield{HeightMultiplier: t.Generator.HeightMultiplier, Curve: curve},
		Regions:      regions,
		Workers:      t.Generator.Workers,
	}, nil
}
