package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/sluice/pkg/domain"
)

// allSchedules is the subscription key of clients that did not filter.
const allSchedules = "*"

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // schedule -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      slog.New(slog.DiscardHandler),
	}
}

// Subscribe registers a client. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(schedule string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[schedule]; !ok {
		sm.subscribers[schedule] = make(map[chan<- string]struct{})
	}
	sm.subscribers[schedule][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[schedule]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, schedule)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of schedule and to unfiltered ones.
func (sm *StreamManager) Broadcast(schedule string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{schedule, allSchedules} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "schedule", schedule)
			}
		}
	}
}

// Hooks broadcasts controller lifecycle events to the server's SSE clients.
func (s *Server) Hooks() domain.LifecycleHooks {
	return StreamHooks(s.Streams)
}

// StreamHooks broadcasts controller lifecycle events to the clients of sm.
// Register it on the engine of an in-process run.
func StreamHooks(sm *StreamManager) domain.LifecycleHooks {
	publish := func(schedule string, event any) {
		data, err := json.Marshal(event)
		if err != nil {
			sm.logger.Error("Event encode failed", "err", err)
			return
		}
		sm.Broadcast(schedule, string(data))
	}
	node := func(_ context.Context, e *domain.NodeEvent) { publish(e.Schedule, e) }
	job := func(_ context.Context, e *domain.JobEvent) { publish(e.Schedule, e) }
	return domain.LifecycleHooks{
		OnNodeEnter:   node,
		OnNodeLeave:   node,
		OnOperator:    func(_ context.Context, e *domain.OperatorEvent) { publish(e.Schedule, e) },
		OnJobSubmit:   job,
		OnJobFinished: job,
		OnRunEnd:      func(_ context.Context, e *domain.RunEvent) { publish(e.Schedule, e) },
	}
}

// subscribeEvents handles GET /events?schedule=<name> (SSE).
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	schedule := r.URL.Query().Get("schedule")
	if schedule == "" {
		schedule = allSchedules
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(schedule)
	defer cancel()

	s.logger.Info("SSE: Subscribed", "schedule", schedule)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "schedule", schedule)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
