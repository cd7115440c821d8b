package driver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Server accepts worker connections on a single WebSocket endpoint,
// generalizing the teacher's internal/gateway.Server (*http.ServeMux +
// websocket.Upgrader, registerClient/unregisterClient, BroadcastEvent)
// from its chat-client registry to the browser-worker agent pool.
type Server struct {
	pool     *Pool
	upgrader websocket.Upgrader
	logger   *slog.Logger

	onConnected    func(agentID string)
	onDisconnected func(agentID string)
}

func NewServer(pool *Pool, logger *slog.Logger) *Server {
	return &Server{
		pool:   pool,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// OnConnected/OnDisconnected register fan-out hooks (e.g. into
// internal/controlplane's event stream, protocol.AgentEventConnected).
func (s *Server) OnConnected(fn func(agentID string))    { s.onConnected = fn }
func (s *Server) OnDisconnected(fn func(agentID string)) { s.onDisconnected = fn }

// Pool exposes the registry for callers needing PickAgent/Send.
func (s *Server) Pool() *Pool { return s.pool }

// BuildMux registers the worker-facing WebSocket endpoint.
func (s *Server) BuildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/driver/ws", s.handleConnect)
	return mux
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("driver: websocket upgrade failed", "error", err)
		return
	}
	s.serve(r.Context(), conn)
}

// serve runs the full handshake + read loop for one worker connection,
// terminating it (and rejecting its waiters) when the socket closes.
func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	agentID, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn("driver: handshake failed", "error", err)
		conn.Close()
		return
	}

	agent := newAgent(agentID, conn)
	agent.setStatus(StatusIdle)
	s.pool.add(agent)
	if s.onConnected != nil {
		s.onConnected(agentID)
	}
	s.logger.Info("driver: agent connected", "agent", agentID)

	defer func() {
		s.pool.Disconnect(agentID)
		if s.onDisconnected != nil {
			s.onDisconnected(agentID)
		}
		s.logger.Info("driver: agent disconnected", "agent", agentID)
	}()

	s.readLoop(agent)
}

// handshake implements spec.md §4.3 "Handshake": worker sends
// HANDSHAKE{agentId}; driver assigns a unique id and replies
// WELCOME{agentId}; worker confirms with HANDSHAKE_ACK.
func (s *Server) handshake(conn *websocket.Conn) (string, error) {
	var hs inboundFrame
	if err := conn.ReadJSON(&hs); err != nil {
		return "", fmt.Errorf("driver: read handshake: %w", err)
	}
	if hs.Type != frameHandshake {
		return "", fmt.Errorf("driver: expected HANDSHAKE, got %s", hs.Type)
	}

	id := s.pool.uniqueID(hs.AgentID)
	if err := conn.WriteJSON(welcomeFrame{Type: frameWelcome, AgentID: id}); err != nil {
		return "", fmt.Errorf("driver: write WELCOME: %w", err)
	}

	var ack inboundFrame
	if err := conn.ReadJSON(&ack); err != nil {
		return "", fmt.Errorf("driver: read HANDSHAKE_ACK: %w", err)
	}
	if ack.Type != frameHandshakeAck {
		return "", fmt.Errorf("driver: expected HANDSHAKE_ACK, got %s", ack.Type)
	}
	return id, nil
}

// readLoop dispatches PING/RESPONSE/EVENT/LOG/STATUS frames until the
// socket closes.
func (s *Server) readLoop(agent *Agent) {
	for {
		var frame inboundFrame
		if err := agent.conn.ReadJSON(&frame); err != nil {
			return
		}
		agent.touchLastSeen()

		switch frame.Type {
		case framePing:
			_ = agent.writeJSON(inboundFrame{Type: framePong})
		case frameResponse:
			agent.resolveResponse(frame.ID, frame.OK, frame.Result, frame.Error)
		case frameStatus:
			if frame.Status == string(StatusIdle) {
				agent.release()
			}
		case frameEvent, frameLog:
			// Forwarded to observability; no correlation needed.
		}
	}
}

// PruneLoop runs Pool.PruneStale on a fixed interval until ctx is done,
// matching the worker's 10s PING cadence against the 60s stale threshold
// (spec.md §4.3 "Heartbeat").
func (s *Server) PruneLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pool.PruneStale()
		}
	}
}
