package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"endlessterrain.ai/internal/protocol"
	"endlessterrain.ai/internal/sim/world"
)

type session struct {
	id       string
	name     string
	out      chan []byte
	replay   chan [][]byte
	meshes   bool
	textures bool
}

type Config struct {
	Params protocol.WorldParams
	// Viewer receives positions in grid space (world units / Params.Scale).
	Viewer chan<- world.Vec2

	ViewerPerSecond float64
	ViewerBurst     int
}

type Server struct {
	hub *Hub
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Params.Scale <= 0 {
		cfg.Params.Scale = 1
	}
	if cfg.ViewerPerSecond <= 0 {
		cfg.ViewerPerSecond = 30
	}
	if cfg.ViewerBurst <= 0 {
		cfg.ViewerBurst = 10
	}
	s := &Server{
		hub: hub,
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.log.Printf("session %s (%s) connected from %s", sess.id, sess.name, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. The chunk snapshot taken at registration goes out
		// in full, blocking on the socket, before any queued live message.
		go func() {
			write := func(b []byte) bool {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return false
				}
				return true
			}
			select {
			case <-ctx.Done():
				return
			case frames := <-sess.replay:
				for _, b := range frames {
					if !write(b) {
						return
					}
				}
			}
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					if !write(b) {
						return
					}
				}
			}
		}()

		select {
		case s.hub.register <- sess:
		case <-ctx.Done():
			return
		}
		defer func() {
			select {
			case s.hub.unregister <- sess:
			case <-time.After(time.Second):
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(s.cfg.ViewerPerSecond), s.cfg.ViewerBurst)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.sendError(sess, protocol.ErrProtoBadRequest, "malformed json")
				continue
			}
			if base.Type != protocol.TypeViewer {
				s.sendError(sess, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
				continue
			}
			var vm protocol.ViewerMsg
			if err := json.Unmarshal(msg, &vm); err != nil {
				s.sendError(sess, protocol.ErrProtoBadRequest, "bad VIEWER payload")
				continue
			}
			if vm.ProtocolVersion != protocol.Version {
				s.sendError(sess, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			if !finite(vm.Pos[0]) || !finite(vm.Pos[1]) {
				s.sendError(sess, protocol.ErrBadRequest, "pos must be finite")
				continue
			}
			if !limiter.Allow() {
				s.sendError(sess, protocol.ErrRateLimit, "viewer updates too fast")
				continue
			}
			s.pushViewer(world.Vec2{vm.Pos[0] / s.cfg.Params.Scale, vm.Pos[1] / s.cfg.Params.Scale})
		}
		s.log.Printf("session %s disconnected", sess.id)
	}
}

// pushViewer never blocks the reader: when the world has not caught up, the
// update is dropped and the next one wins.
func (s *Server) pushViewer(p world.Vec2) {
	if s.cfg.Viewer == nil {
		return
	}
	select {
	case s.cfg.Viewer <- p:
	default:
	}
}

func (s *Server) sendError(sess *session, code, message string) {
	sendLatest(sess.out, mustJSON(protocol.NewError(code, message)))
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}
	name := strings.TrimSpace(hello.ViewerName)
	if name == "" {
		name = "viewer"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 1024
	}
	if maxQ < 16 {
		maxQ = 16
	}
	if maxQ > 8192 {
		maxQ = 8192
	}

	sess := &session{
		id:       uuid.NewString(),
		name:     name,
		out:      make(chan []byte, maxQ),
		replay:   make(chan [][]byte, 1),
		meshes:   hello.Capabilities.Meshes,
		textures: hello.Capabilities.Textures,
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		WorldParams:     s.cfg.Params,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
