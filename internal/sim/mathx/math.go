package mathx

import "math"

// RoundToInt rounds half away from zero, so 0.5 -> 1 and -0.5 -> -1.
// Grid windows and chunk anchors must both go through this.
func RoundToInt(v float64) int {
	return int(math.Round(v))
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InverseLerp maps v from [a,b] into [0,1]. A degenerate range yields 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// HashRange maps Hash2 onto [lo, hi).
func HashRange(seed int64, x, z int, lo, hi float64) float64 {
	u := float64(Hash2(seed, x, z)>>11) / float64(1<<53)
	return lo + (hi-lo)*u
}
