package world

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is one line of the tick log. Ran and Center depend only on the
// viewer path, which is what replays verify.
type TickLogEntry struct {
	Tick         uint64     `json:"tick"`
	Viewer       [2]float64 `json:"viewer"`
	Ran          bool       `json:"ran"`
	Center       [2]int     `json:"center"`
	Radius       int        `json:"radius,omitempty"`
	Created      int        `json:"created,omitempty"`
	Visible      int        `json:"visible"`
	Resident     int        `json:"resident"`
	Evicted      int        `json:"evicted,omitempty"`
	Applied      int        `json:"applied,omitempty"`
	MapRequests  uint64     `json:"map_requests"`
	MeshRequests uint64     `json:"mesh_requests"`
}
