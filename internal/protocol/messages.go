package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ViewerName      string            `json:"viewer_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	// Meshes/Textures opt in to CHUNK_MESH and CHUNK_TEXTURE payloads.
	// CHUNK_VISIBLE and CHUNK_EVICT are always sent.
	Meshes   bool `json:"meshes,omitempty"`
	Textures bool `json:"textures,omitempty"`
	MaxQueue int  `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz      int       `json:"tick_rate_hz"`
	ChunkSize       int       `json:"chunk_size"`
	MapChunkSize    int       `json:"map_chunk_size"`
	Scale           float64   `json:"scale"`
	MaxViewDistance float64   `json:"max_view_distance"`
	LODs            []LODInfo `json:"lods"`
	Seed            int64     `json:"seed"`
	Generator       string    `json:"generator,omitempty"`
}

type LODInfo struct {
	LOD             int     `json:"lod"`
	VisibleDistance float64 `json:"visible_distance"`
}

// VIEWER (client -> server): viewer ground position in world units.
type ViewerMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [2]float64 `json:"pos"`
}

// CHUNK_VISIBLE (server -> client)
type ChunkVisibleMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	Visible         bool   `json:"visible"`
}

// CHUNK_MESH (server -> client): the mesh now active for a chunk. Vertices are
// flattened xyz triples relative to the chunk centre; UVs are flattened pairs.
type ChunkMeshMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	CX              int       `json:"cx"`
	CY              int       `json:"cy"`
	LODIndex        int       `json:"lod_index"`
	LOD             int       `json:"lod"`
	Vertices        []float32 `json:"vertices"`
	Triangles       []int32   `json:"triangles"`
	UVs             []float32 `json:"uvs"`
}

// CHUNK_TEXTURE (server -> client): RGBA8 pixels, row-major, base64.
type ChunkTextureMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	RGBA            string `json:"rgba"`
}

// CHUNK_EVICT (server -> client): the chunk and everything sent for it can be dropped.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
