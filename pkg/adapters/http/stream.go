package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// allSessions is the subscription key of clients that follow every session.
const allSessions = ""

// Event is one SSE frame.
type Event struct {
	Name string
	Data json.RawMessage
}

// StreamManager fans lifecycle events out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{} // session ID -> channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a client for sessionID ("" follows every session).
func (sm *StreamManager) Subscribe(sessionID string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan Event]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of connected clients.
func (sm *StreamManager) Subscribers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	n := 0
	for _, subs := range sm.subscribers {
		n += len(subs)
	}
	return n
}

// Broadcast sends one event to the session's clients and to the followers
// of every session. Slow clients miss events.
func (sm *StreamManager) Broadcast(sessionID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		sm.logger.Warn("event encode failed", "event", event, "err", err)
		return
	}
	msg := Event{Name: event, Data: data}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, key := range []string{sessionID, allSessions} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("sse client buffer full, dropping event", "session_id", sessionID)
			}
		}
		if sessionID == allSessions {
			break
		}
	}
}

// Hooks returns lifecycle hooks that publish every engine event.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) {
			sm.Broadcast(e.SessionID, string(e.Type), e)
		},
		OnScreen: func(_ context.Context, e *domain.ScreenEvent) {
			sm.Broadcast(e.SessionID, string(e.Type), e)
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			sm.Broadcast(e.SessionID, string(e.Type), e)
		},
		OnResolve: func(_ context.Context, e *domain.ResolveEvent) {
			sm.Broadcast(e.SessionID, string(e.Type), e)
		},
	}
}

// SubscribeEvents handles GET /v1/events (SSE). The optional session_id
// query parameter restricts the stream to one session, which ends after its
// resolve event.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("sse client connected", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Name, msg.Data)
			flusher.Flush()
			if sessionID != allSessions && msg.Name == string(domain.EventResolve) {
				return
			}
		}
	}
}
