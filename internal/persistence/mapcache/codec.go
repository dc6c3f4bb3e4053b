package mapcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"math"

	"endlessterrain.ai/internal/sim/terrain"
)

const blobVersion = 1

// encodeMapData lays out: version u32, size u32, size*size float32 heights,
// size*size RGBA colors. All little-endian.
func encodeMapData(d *terrain.MapData) ([]byte, error) {
	if d == nil || d.Size <= 0 {
		return nil, errors.New("empty map data")
	}
	n := d.Size * d.Size
	if len(d.Heights) != n || len(d.Colors) != n {
		return nil, fmt.Errorf("map data size %d: heights=%d colors=%d", d.Size, len(d.Heights), len(d.Colors))
	}
	buf := make([]byte, 0, 8+n*8)
	buf = binary.LittleEndian.AppendUint32(buf, blobVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(d.Size))
	for _, h := range d.Heights {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(h))
	}
	for _, c := range d.Colors {
		buf = append(buf, c.R, c.G, c.B, c.A)
	}
	return buf, nil
}

func decodeMapData(b []byte) (*terrain.MapData, error) {
	if len(b) < 8 {
		return nil, errors.New("blob too short")
	}
	if v := binary.LittleEndian.Uint32(b); v != blobVersion {
		return nil, fmt.Errorf("unsupported blob version %d", v)
	}
	size := int(binary.LittleEndian.Uint32(b[4:]))
	n := size * size
	if size <= 0 || len(b) != 8+n*8 {
		return nil, fmt.Errorf("blob length %d does not match size %d", len(b), size)
	}
	d := &terrain.MapData{
		Size:    size,
		Heights: make([]float32, n),
		Colors:  make([]color.RGBA, n),
	}
	off := 8
	for i := range d.Heights {
		d.Heights[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		off += 4
	}
	for i := range d.Colors {
		d.Colors[i] = color.RGBA{R: b[off], G: b[off+1], B: b[off+2], A: b[off+3]}
		off += 4
	}
	return d, nil
}
