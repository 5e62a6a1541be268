package server

import (
	"context"
	"sync"

	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
)

// Conn abstracts a subscriber's socket.
type Conn interface {
	// Read reads a single frame.
	Read(ctx context.Context) ([]byte, error)
	// Write sends a single frame.
	Write(ctx context.Context, data []byte) error
	Close() error
	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Subscriber is one socket following a thread.
type Subscriber struct {
	Conn     Conn
	UserID   protocol.UserID
	ThreadID protocol.ThreadID
	Outgoing chan []byte
}

// Hub tracks the subscribers of every thread and fans events out to them.
type Hub struct {
	threads map[protocol.ThreadID]map[*Subscriber]bool
	mu      sync.RWMutex
	log     zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		threads: make(map[protocol.ThreadID]map[*Subscriber]bool),
		log:     log,
	}
}

// Register adds a subscriber to its thread.
func (h *Hub) Register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.threads[sub.ThreadID]
	if !ok {
		subs = make(map[*Subscriber]bool)
		h.threads[sub.ThreadID] = subs
	}
	subs[sub] = true
}

// Unregister removes a subscriber. After it returns no broadcast will send
// on the subscriber's Outgoing channel.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.threads[sub.ThreadID]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.threads, sub.ThreadID)
	}
}

// ClientCount returns the number of subscribers of a thread.
func (h *Hub) ClientCount(thread protocol.ThreadID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[thread])
}

// Broadcast queues data for every subscriber of a thread. Subscribers whose
// queue is full miss the frame.
func (h *Hub) Broadcast(thread protocol.ThreadID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.threads[thread] {
		select {
		case sub.Outgoing <- data:
		default:
			h.log.Warn().
				Str("thread", string(thread)).
				Str("remote", sub.Conn.RemoteAddr()).
				Msg("subscriber queue full, skipping")
		}
	}
}

// BroadcastEvent encodes ev and broadcasts it to a thread.
func (h *Hub) BroadcastEvent(thread protocol.ThreadID, ev protocol.Event) error {
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	h.Broadcast(thread, data)
	return nil
}

// CloseAll closes every subscriber's socket.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, subs := range h.threads {
		for sub := range subs {
			_ = sub.Conn.Close()
		}
	}
}
