package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
)

// allAgents is the topic of subscribers without an agent filter.
const allAgents = ""

// Delivery is the SSE payload for one update delivery.
type Delivery struct {
	EventID   string    `json:"eventId"`
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	Attempts  int       `json:"attempts"`
	Processed bool      `json:"processed"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// StreamManager handles active SSE connections, keyed by consumer agent.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // Agent -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for agent ("" for every agent).
// The returned function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(agent string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[agent]; !ok {
		sm.subscribers[agent] = make(map[chan<- string]struct{})
	}
	sm.subscribers[agent][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[agent]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, agent)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of agent and to unfiltered subscribers.
func (sm *StreamManager) Broadcast(agent string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, topic := range []string{agent, allAgents} {
		for ch := range sm.subscribers[topic] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "agent", agent)
			}
		}
		if agent == allAgents {
			break
		}
	}
}

// Hooks returns an OnDelivery hook that broadcasts every delivery.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDelivery: func(ctx context.Context, e *domain.DeliveryEvent) {
			d := Delivery{
				EventID:   e.EventID,
				Type:      e.EventType,
				Target:    e.Target,
				Attempts:  e.Attempts,
				Processed: e.Processed,
				At:        e.Timestamp,
			}
			if e.Err != nil {
				d.Error = e.Err.Error()
			}
			if b, err := json.Marshal(d); err == nil {
				sm.Broadcast(e.Target, string(b))
			}
		},
	}
}

// SubscribeEvents handles the GET /events request (SSE). ?agent= filters by consumer.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if !s.streamAuth.Valid(r.Header.Get(APIKeyHeader)) {
		writeJSON(w, http.StatusUnauthorized, domain.NewErrorResponse(nil, domain.ErrUnauthorized()), s.logger)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	agent := r.URL.Query().Get("agent")
	s.logger.Info("SSE: Subscribing to deliveries", "agent", agent)

	ch, cancel := s.streams.Subscribe(agent)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: delivery\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
