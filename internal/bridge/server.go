package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Stream message envelope: {"type":"scene"|"diff","payload":{...}}.
type streamEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type streamAck struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Server exposes the live bridge over a websocket endpoint at /stream.
// Messages are queued; the frame loop consumes them at its ingest stage.
type Server struct {
	log      *zap.Logger
	bridge   *Bridge
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func NewServer(log *zap.Logger, b *Bridge) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:    log,
		bridge: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 12,
			// The editor runs on the developer's machine; any origin is fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start listens in a background goroutine. Use Shutdown to stop.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("bridge server stopped", zap.Error(err))
		}
	}()
	s.log.Info("bridge listening", zap.String("addr", addr))
	return nil
}

// Shutdown closes the listener and in-flight connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	s.log.Info("editor connected", zap.String("remote", conn.RemoteAddr().String()))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("editor stream error", zap.Error(err))
			} else {
				s.log.Info("editor disconnected")
			}
			return
		}
		ack := s.consume(data)
		if err := conn.WriteJSON(ack); err != nil {
			s.log.Warn("ack write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) consume(data []byte) streamAck {
	var env streamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return streamAck{Type: "error", Error: fmt.Sprintf("bad envelope: %v", err)}
	}
	switch env.Type {
	case "scene":
		s.bridge.QueueScene(env.Payload)
		return streamAck{Type: "ack"}
	case "diff":
		batch, err := ParseDiffBatch(env.Payload)
		if err != nil {
			return streamAck{Type: "error", Error: err.Error()}
		}
		s.bridge.QueueDiff(env.Payload)
		return streamAck{Type: "ack", Sequence: batch.Sequence}
	default:
		return streamAck{Type: "error", Error: fmt.Sprintf("unknown message type %q", env.Type)}
	}
}
