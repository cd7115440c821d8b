package controlplane

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

// Server accepts control-plane connections on RouteControlPlane (separate
// from the agent-pool's gorilla/websocket listener in internal/driver, per
// DESIGN.md's "two real WS deps get distinct homes" decision) and dispatches
// run.pause.request/run.context.supply/run.abort/run.status/run.subscribe.
type Server struct {
	registry *Registry
	logger   *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // runID -> subscriberID -> channel
}

func NewServer(registry *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:    registry,
		logger:      logger,
		subscribers: make(map[string]map[string]chan Event),
	}
}

// Publish fan-outs an Event to every run.subscribe caller watching runID.
// The pause, supply-context and abort handlers below publish run.paused,
// run.resumed and run.aborted themselves; a Control Loop configured with
// this Server as its Publisher publishes run.started, run.iteration and
// its terminal event here.
func (s *Server) Publish(runID string, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers[runID] {
		select {
		case ch <- event:
		default: // slow subscriber; drop rather than block the loop
		}
	}
}

func (s *Server) subscribe(runID string) (string, chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[runID] == nil {
		s.subscribers[runID] = make(map[string]chan Event)
	}
	id := uuid.NewString()
	ch := make(chan Event, 32)
	s.subscribers[runID][id] = ch
	return id, ch
}

func (s *Server) unsubscribe(runID, subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subs, ok := s.subscribers[runID]; ok {
		if ch, ok := subs[subID]; ok {
			close(ch)
			delete(subs, subID)
		}
		if len(subs) == 0 {
			delete(s.subscribers, runID)
		}
	}
}

// Handler returns the http.HandlerFunc to register at a control-plane
// route (e.g. "/v1/control").
func (s *Server) Handler() http.HandlerFunc {
	return s.handleConnect
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("controlplane accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	var writeMu sync.Mutex // coder/websocket forbids concurrent writers; the
	// event-relay goroutine spawned by run.subscribe and this read loop's
	// own responses both write to conn, so every write goes through here.
	var activeSubs []string // runID:subID pairs to clean up on disconnect
	defer func() {
		for _, key := range activeSubs {
			runID, subID, ok := splitSubKey(key)
			if ok {
				s.unsubscribe(runID, subID)
			}
		}
	}()

	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return wsjson.Write(ctx, conn, v)
	}

	for {
		var req Request
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		resp := s.dispatch(ctx, conn, &req, &activeSubs, writeJSON)
		if resp == nil {
			continue // run.subscribe streams events instead of a single response
		}
		if err := writeJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, req *Request, activeSubs *[]string, writeJSON func(any) error) *Response {
	switch req.Method {
	case protocol.MethodRequestPause:
		return s.handleRequestPause(req)
	case protocol.MethodSupplyContext:
		return s.handleSupplyContext(req)
	case protocol.MethodAbortRun:
		return s.handleAbortRun(req)
	case protocol.MethodRunStatus:
		return s.handleRunStatus(req)
	case protocol.MethodRunSubscribe:
		s.handleRunSubscribe(ctx, req, activeSubs, writeJSON)
		return nil
	default:
		return errorResponse(req.ID, "unknown method: "+req.Method)
	}
}

func (s *Server) handleRequestPause(req *Request) *Response {
	var p requestPauseParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, err.Error())
	}
	h, err := s.registry.Get(p.RunID)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	h.Supervisor.RequestPause()
	s.Publish(p.RunID, Event{Event: protocol.RunEventPaused, RunID: p.RunID})
	return okResponse(req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSupplyContext(req *Request) *Response {
	var p supplyContextParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, err.Error())
	}
	h, err := s.registry.Get(p.RunID)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	h.Supervisor.SupplyContext(p.Text)
	s.Publish(p.RunID, Event{Event: protocol.RunEventResumed, RunID: p.RunID})
	return okResponse(req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAbortRun(req *Request) *Response {
	var p abortRunParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, err.Error())
	}
	h, err := s.registry.Get(p.RunID)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	h.Supervisor.AbortRun()
	s.Publish(p.RunID, Event{Event: protocol.RunEventAborted, RunID: p.RunID})
	return okResponse(req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleRunStatus(req *Request) *Response {
	var p runStatusParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, err.Error())
	}
	if p.RunID == "" {
		return okResponse(req.ID, map[string][]string{"runIds": s.registry.Snapshot()})
	}
	h, err := s.registry.Get(p.RunID)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return okResponse(req.ID, h.Run.Summary())
}

func (s *Server) handleRunSubscribe(ctx context.Context, req *Request, activeSubs *[]string, writeJSON func(any) error) {
	var p runSubscribeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		_ = writeJSON(errorResponse(req.ID, err.Error()))
		return
	}
	if _, err := s.registry.Get(p.RunID); err != nil {
		_ = writeJSON(errorResponse(req.ID, err.Error()))
		return
	}

	subID, ch := s.subscribe(p.RunID)
	*activeSubs = append(*activeSubs, joinSubKey(p.RunID, subID))

	_ = writeJSON(okResponse(req.ID, map[string]bool{"subscribed": true}))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := writeJSON(event); err != nil {
					return
				}
			}
		}
	}()
}

func okResponse(id string, result any) *Response {
	data, _ := json.Marshal(result)
	return &Response{ID: id, Result: data}
}

func errorResponse(id, msg string) *Response {
	return &Response{ID: id, Error: msg}
}

func joinSubKey(runID, subID string) string { return runID + "\x00" + subID }

func splitSubKey(key string) (runID, subID string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
