package world

import "endlessterrain.ai/internal/sim/terrain"

type LODState int

const (
	NotRequested LODState = iota
	Requested
	Ready
)

func (s LODState) String() string {
	switch s {
	case NotRequested:
		return "NOT_REQUESTED"
	case Requested:
		return "REQUESTED"
	case Ready:
		return "READY"
	}
	return "UNKNOWN"
}

// lodMesh caches one LOD level of one chunk. State only moves forward.
type lodMesh struct {
	index int // row in the LOD table
	lod   int // simplification level

	state LODState
	mesh  *terrain.MeshData
}

// requestIfAbsent issues the single mesh request for this level. It reports
// whether a request went out.
func (m *lodMesh) requestIfAbsent(owner *TerrainChunk) bool {
	if m.state != NotRequested {
		return false
	}
	m.state = Requested
	owner.env.meshRequested()
	owner.env.gen.RequestMeshData(MeshDataRequest{
		ChunkID:  owner.id,
		Coord:    owner.coord,
		LODIndex: m.index,
		LOD:      m.lod,
		MapData:  owner.mapData,
		Done:     owner.env.done,
	})
	return true
}

// onMesh stores a delivered mesh. Deliveries for an entry that is not
// awaiting one are ignored.
func (m *lodMesh) onMesh(mesh *terrain.MeshData) bool {
	if m.state != Requested {
		return false
	}
	m.mesh = mesh
	m.state = Ready
	return true
}
