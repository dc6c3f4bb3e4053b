package terrain

import (
	"fmt"
	"sort"

	"endlessterrain.ai/internal/sim/mathx"
)

// Curve is a piecewise-linear mapping from normalized height to a height factor.
// An empty curve is the identity.
type Curve struct {
	keys [][2]float64
}

func NewCurve(keys [][2]float64) (Curve, error) {
	cp := make([][2]float64, len(keys))
	copy(cp, keys)
	sort.Slice(cp, func(i, j int) bool { return cp[i][0] < cp[j][0] })
	for i := 1; i < len(cp); i++ {
		if cp[i][0] == cp[i-1][0] {
			return Curve{}, fmt.Errorf("curve: duplicate key at t=%v", cp[i][0])
		}
	}
	return Curve{keys: cp}, nil
}

func (c Curve) Evaluate(t float64) float64 {
	n := len(c.keys)
	if n == 0 {
		return t
	}
	if t <= c.keys[0][0] {
		return c.keys[0][1]
	}
	if t >= c.keys[n-1][0] {
		return c.keys[n-1][1]
	}
	i := sort.Search(n, func(i int) bool { return c.keys[i][0] >= t })
	a, b := c.keys[i-1], c.keys[i]
	return mathx.Lerp(a[1], b[1], mathx.InverseLerp(a[0], b[0], t))
}
