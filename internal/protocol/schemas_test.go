package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"endlessterrain.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	// Round-trips a Go message through JSON so the schema sees what goes on the wire.
	wire := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	viewerSchema := compile("viewer.schema.json")
	visibleSchema := compile("chunk_visible.schema.json")
	meshSchema := compile("chunk_mesh.schema.json")
	textureSchema := compile("chunk_texture.schema.json")
	evictSchema := compile("chunk_evict.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "viewer_name":"cam1",
	  "capabilities":{"meshes":true,"textures":false,"max_queue":64}
	}`), &hello)
	validate(helloSchema, hello)

	validate(welcomeSchema, wire(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "3f1c6d9e-3b7a-4c62-9a57-0c1d2e3f4a5b",
		WorldParams: protocol.WorldParams{
			TickRateHz:      30,
			ChunkSize:       240,
			MapChunkSize:    241,
			Scale:           2.5,
			MaxViewDistance: 450,
			LODs:            []protocol.LODInfo{{LOD: 0, VisibleDistance: 200}, {LOD: 4, VisibleDistance: 450}},
			Seed:            1337,
			Generator:       "perlin",
		},
	}))

	var viewer any
	_ = json.Unmarshal([]byte(`{"type":"VIEWER","protocol_version":"1.0","pos":[120.5,-33]}`), &viewer)
	validate(viewerSchema, viewer)

	validate(visibleSchema, wire(protocol.ChunkVisibleMsg{
		Type: protocol.TypeChunkVisible, ProtocolVersion: protocol.Version, CX: -1, CY: 2, Visible: true,
	}))
	validate(meshSchema, wire(protocol.ChunkMeshMsg{
		Type:            protocol.TypeChunkMesh,
		ProtocolVersion: protocol.Version,
		CX:              0,
		CY:              0,
		LODIndex:        1,
		LOD:             4,
		Vertices:        []float32{-1, 0, 1, 1, 0, 1, -1, 0, -1, 1, 0, -1},
		Triangles:       []int32{0, 3, 2, 3, 0, 1},
		UVs:             []float32{0, 0, 0.5, 0, 0, 0.5, 0.5, 0.5},
	}))
	validate(textureSchema, wire(protocol.ChunkTextureMsg{
		Type: protocol.TypeChunkTexture, ProtocolVersion: protocol.Version, CX: 3, CY: 4, Width: 1, Height: 1, RGBA: "AAAA/w==",
	}))
	validate(evictSchema, wire(protocol.ChunkEvictMsg{
		Type: protocol.TypeChunkEvict, ProtocolVersion: protocol.Version, CX: 9, CY: -9,
	}))
	validate(errorSchema, wire(protocol.NewError(protocol.ErrRateLimit, "viewer updates too fast")))

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"VIEWER","protocol_version":"1.0","pos":[1]}`), &bad)
	if err := viewerSchema.Validate(bad); err == nil {
		t.Fatalf("expected short pos to be rejected")
	}
}
