package terrain

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"endlessterrain.ai/internal/sim/mathx"
)

// Region colors every sample at or above Height until the next region starts.
type Region struct {
	Name   string  `yaml:"name"`
	Height float32 `yaml:"height"`
	Color  string  `yaml:"color"` // #rrggbb

	rgba color.RGBA
}

func (r Region) RGBA() color.RGBA { return r.rgba }

func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// CompileRegions parses colors and sorts by height.
func CompileRegions(in []Region) ([]Region, error) {
	out := make([]Region, len(in))
	for i, r := range in {
		c, err := ParseHexColor(r.Color)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", r.Name, err)
		}
		r.rgba = c
		out[i] = r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out, nil
}

// ColorMap picks, per sample, the last region whose height is <= the sample.
// Samples below the first region get the first region's color.
func ColorMap(heights []float32, regions []Region) []color.RGBA {
	out := make([]color.RGBA, len(heights))
	if len(regions) == 0 {
		for i, h := range heights {
			v := uint8(mathx.Clamp01(float64(h)) * 255)
			out[i] = color.RGBA{R: v, G: v, B: v, A: 0xff}
		}
		return out
	}
	for i, h := range heights {
		c := regions[0].rgba
		for _, r := range regions {
			if h >= r.Height {
				c = r.rgba
			} else {
				break
			}
		}
		out[i] = c
	}
	return out
}

// DefaultRegions is a water/sand/grass/rock/snow palette.
func DefaultRegions() []Region {
	return []Region{
		{Name: "deep_water", Height: 0, Color: "#2f4f9e"},
		{Name: "water", Height: 0.3, Color: "#3766c8"},
		{Name: "sand", Height: 0.4, Color: "#d2d07d"},
		{Name: "grass", Height: 0.45, Color: "#569718"},
		{Name: "grass_high", Height: 0.55, Color: "#3e6a13"},
		{Name: "rock", Height: 0.6, Color: "#5a453c"},
		{Name: "rock_high", Height: 0.7, Color: "#4b3c35"},
		{Name: "snow", Height: 0.9, Color: "#ffffff"},
	}
}
