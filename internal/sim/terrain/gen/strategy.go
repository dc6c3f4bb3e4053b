package gen

import (
	"fmt"

	"endlessterrain.ai/internal/sim/terrain/noise"
)

const (
	TypePerlin = "perlin"
	TypeFlat   = "flat"
)

// HeightSourceFor picks the height strategy named by typ.
func HeightSourceFor(typ string, pc noise.PerlinConfig) (noise.HeightSource, error) {
	switch typ {
	case "", TypePerlin:
		return noise.NewPerlin(pc), nil
	case TypeFlat:
		return noise.Flat{Height: 0.5}, nil
	}
	return nil, fmt.Errorf("unknown generator type %q", typ)
}
