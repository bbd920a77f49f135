// Package observer serves the websocket surface: a read-only region
// and event stream for viewers, plus the automation bridge that feeds
// requests into the world loop.
package observer

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelforge.dev/internal/protocol"
	"voxelforge.dev/internal/sim/catalogs"
	"voxelforge.dev/internal/sim/encoding"
	"voxelforge.dev/internal/sim/tuning"
	"voxelforge.dev/internal/sim/world"
)

type Server struct {
	world *world.World
	cats  *catalogs.Catalogs
	tune  tuning.Tuning
	seed  int64
	log   *log.Logger

	upgrader websocket.Upgrader

	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
}

func NewServer(w *world.World, cats *catalogs.Catalogs, tune tuning.Tuning, seed int64, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cats:  cats,
		tune:  tune,
		seed:  seed,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[int]chan []byte{},
	}
}

// Emit implements world.EventSink: every connected session gets the
// event. A slow session drops its oldest pending frame instead of
// stalling the loop.
func (s *Server) Emit(ev world.Event) {
	msg := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Tick:            ev.Tick,
		Event:           ev.Type,
		Pos:             ev.Pos,
		Detail:          ev.Detail,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.subs {
		sendLatest(out, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// deliver queues b for the writer, waiting for room. Unlike events and
// region frames, a frame sent this way is never dropped; the wait ends
// when the session tears down.
func deliver(out chan []byte, done <-chan struct{}, b []byte) {
	select {
	case out <- b:
	case <-done:
	}
}

func (s *Server) subscribe() (int, chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	out := make(chan []byte, 256)
	s.subs[s.nextID] = out
	return s.nextID, out
}

func (s *Server) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.handshake(conn) {
			return
		}

		id, out := s.subscribe()
		defer s.unsubscribe(id)

		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case <-done:
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeRequest:
				s.handleRequest(msg, out, done)
			case protocol.TypeRegion:
				s.handleRegion(msg, out, done)
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		return false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.log.Printf("observer rejected: protocol %q", hello.ProtocolVersion)
		return false
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldParams: protocol.WorldParams{
			TickRateHz: s.tune.TickRateHz,
			ChunkSize:  [3]int{world.ChunkSide, s.tune.Height, world.ChunkSide},
			Height:     s.tune.Height,
			DayTicks:   s.tune.DayTicks,
			Seed:       s.seed,
		},
		BlockPalette:  s.cats.Blocks.Palette,
		PaletteDigest: s.cats.Blocks.PaletteDigest,
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}

// handleRequest feeds one bridge request into the loop and forwards
// the result when it lands. The wait is bounded by the session: if the
// world loop exits with the envelope still queued, the forwarder stops
// when the connection closes instead of leaking.
func (s *Server) handleRequest(msg []byte, out chan []byte, done <-chan struct{}) {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		s.sendResult(out, done, protocol.Result{
			Type: protocol.TypeResult, ProtocolVersion: protocol.Version,
			OK: false, Code: protocol.ErrProtoBadRequest, Reason: "malformed request",
		})
		return
	}
	resp := make(chan protocol.Result, 1)
	if !s.world.Submit(world.RequestEnvelope{Req: req, Resp: resp}) {
		s.sendResult(out, done, protocol.Result{
			Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: req.ID,
			OK: false, Code: protocol.ErrInternal, Reason: "world inbox full",
		})
		return
	}
	go func() {
		select {
		case res := <-resp:
			s.sendResult(out, done, res)
		case <-done:
		}
	}()
}

// sendResult delivers a RESULT frame without the drop-oldest policy the
// event stream uses; an applied request always gets its reply.
func (s *Server) sendResult(out chan []byte, done <-chan struct{}, res protocol.Result) {
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	deliver(out, done, b)
}

// handleRegion answers a region poll with an RLE snapshot of one
// resident chunk.
func (s *Server) handleRegion(msg []byte, out chan []byte, done <-chan struct{}) {
	var ask protocol.RegionMsg
	if err := json.Unmarshal(msg, &ask); err != nil {
		return
	}
	resp := make(chan world.RegionSnapshot, 1)
	if !s.world.RequestRegion(world.RegionRequest{CX: ask.CX, CZ: ask.CZ, Resp: resp}) {
		return
	}
	go func() {
		var snap world.RegionSnapshot
		select {
		case snap = <-resp:
		case <-done:
			return
		}
		if !snap.OK {
			s.sendResult(out, done, protocol.Result{
				Type: protocol.TypeResult, ProtocolVersion: protocol.Version,
				OK: false, Code: protocol.ErrNotLoaded, Reason: "chunk not loaded",
			})
			return
		}
		region := protocol.RegionMsg{
			Type:            protocol.TypeRegion,
			ProtocolVersion: protocol.Version,
			Tick:            snap.Tick,
			CX:              ask.CX,
			CZ:              ask.CZ,
			Height:          snap.Height,
			Blocks:          encoding.EncodeRLE(snap.Blocks),
			SkyLight:        encoding.EncodeRLEBytes(snap.Sky),
			BlockLight:      encoding.EncodeRLEBytes(snap.BlockLit),
		}
		for _, p := range snap.Entities {
			region.Entities = append(region.Entities, [3]int{p.X, p.Y, p.Z})
		}
		b, err := json.Marshal(region)
		if err != nil {
			return
		}
		sendLatest(out, b)
	}()
}
