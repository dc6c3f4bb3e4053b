package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeViewer  = "VIEWER"
	TypeError   = "ERROR"

	TypeChunkVisible = "CHUNK_VISIBLE"
	TypeChunkMesh    = "CHUNK_MESH"
	TypeChunkTexture = "CHUNK_TEXTURE"
	TypeChunkEvict   = "CHUNK_EVICT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
