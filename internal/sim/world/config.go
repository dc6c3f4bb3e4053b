package world

import (
	"errors"

	"endlessterrain.ai/internal/sim/lod"
)

type WorldConfig struct {
	TickRateHz int

	// ChunkSize is the edge length of one chunk in grid units
	// (map chunk size - 1).
	ChunkSize float64
	LODs      lod.Table

	// MoveThreshold is how far the viewer must travel before the visible
	// window is recomputed.
	MoveThreshold float64

	Eviction EvictionPolicy

	// Spawn is where the viewer is assumed to be until the first update arrives.
	Spawn Vec2
}

// EvictionPolicy bounds chunk residency. The zero value keeps every chunk
// forever.
type EvictionPolicy struct {
	MaxResidentChunks int
	EvictAfterTicks   uint64
}

func (p EvictionPolicy) Enabled() bool {
	return p.MaxResidentChunks > 0 || p.EvictAfterTicks > 0
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.MoveThreshold < 0 {
		c.MoveThreshold = 0
	}
}

func (c WorldConfig) validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be > 0")
	}
	if c.LODs.Len() == 0 {
		return lod.ErrEmptyTable
	}
	if c.Eviction.MaxResidentChunks < 0 {
		return errors.New("max resident chunks must be >= 0")
	}
	return nil
}
