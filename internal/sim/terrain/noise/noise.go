package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/go-gl/mathgl/mgl64"

	"endlessterrain.ai/internal/sim/mathx"
)

type NormalizeMode int

const (
	// NormalizeGlobal divides by an estimate of the largest reachable amplitude,
	// so independently generated chunks agree along shared edges.
	NormalizeGlobal NormalizeMode = iota
	// NormalizeLocal stretches each heightmap to its own min/max.
	NormalizeLocal
)

func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch s {
	case "", "global":
		return NormalizeGlobal, nil
	case "local":
		return NormalizeLocal, nil
	}
	return 0, fmt.Errorf("unknown normalize mode %q", s)
}

// HeightSource produces a size*size row-major heightmap in [0,1] centred on centre.
type HeightSource interface {
	Heightmap(size int, centre mgl64.Vec2) []float32
}

type PerlinConfig struct {
	Seed        int64
	Scale       float64
	Octaves     int
	Persistence float64
	Lacunarity  float64
	Offset      mgl64.Vec2
	Normalize   NormalizeMode
}

func (c *PerlinConfig) applyDefaults() {
	if c.Scale <= 0 {
		c.Scale = 0.0001
	}
	if c.Octaves <= 0 {
		c.Octaves = 1
	}
	if c.Lacunarity < 1 {
		c.Lacunarity = 1
	}
	if c.Persistence < 0 {
		c.Persistence = 0
	}
	if c.Persistence > 1 {
		c.Persistence = 1
	}
}

// Perlin is fractal Perlin noise. It is safe for concurrent use: all state is
// fixed at construction.
type Perlin struct {
	cfg       PerlinConfig
	p         *perlin.Perlin
	offsets   []mgl64.Vec2
	maxHeight float64
}

func NewPerlin(cfg PerlinConfig) *Perlin {
	cfg.applyDefaults()
	n := &Perlin{
		cfg:     cfg,
		p:       perlin.NewPerlin(2, 2, 1, cfg.Seed),
		offsets: make([]mgl64.Vec2, cfg.Octaves),
	}
	amp := 1.0
	for i := 0; i < cfg.Octaves; i++ {
		n.offsets[i] = mgl64.Vec2{
			mathx.HashRange(cfg.Seed, i, 0, -100000, 100000),
			mathx.HashRange(cfg.Seed, i, 1, -100000, 100000),
		}
		n.maxHeight += amp
		amp *= cfg.Persistence
	}
	return n
}

func (n *Perlin) Heightmap(size int, centre mgl64.Vec2) []float32 {
	out := make([]float32, size*size)
	raw := make([]float64, size*size)
	half := float64(size) / 2

	// World y grows "up" while rows grow "down", hence the sign flip.
	ox := centre.X() + n.cfg.Offset.X()
	oy := -centre.Y() - n.cfg.Offset.Y()

	minH, maxH := math.MaxFloat64, -math.MaxFloat64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			bx := float64(x) - half + ox
			by := float64(y) - half + oy
			amp, freq, h := 1.0, 1.0, 0.0
			for _, off := range n.offsets {
				sx := (bx + off.X()) / n.cfg.Scale * freq
				sy := (by + off.Y()) / n.cfg.Scale * freq
				h += n.p.Noise2D(sx, sy) * amp
				amp *= n.cfg.Persistence
				freq *= n.cfg.Lacunarity
			}
			if h < minH {
				minH = h
			}
			if h > maxH {
				maxH = h
			}
			raw[y*size+x] = h
		}
	}

	for i, h := range raw {
		var v float64
		switch n.cfg.Normalize {
		case NormalizeLocal:
			v = mathx.InverseLerp(minH, maxH, h)
		default:
			v = mathx.Clamp01((h + 1) / (n.maxHeight / 0.9))
		}
		out[i] = float32(v)
	}
	return out
}

// Flat returns the same height everywhere. Used for deterministic runs.
type Flat struct {
	Height float32
}

func (f Flat) Heightmap(size int, _ mgl64.Vec2) []float32 {
	out := make([]float32, size*size)
	for i := range out {
		out[i] = f.Height
	}
	return out
}
