// Package server is an in-memory thread server for local runs and tests. It
// serves the message-creation, mark-read and history endpoints and pushes
// events to WebSocket subscribers.
package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxMessageLength is the longest accepted body, in characters.
	DefaultMaxMessageLength = 2000
	// maxFormBytes bounds a creation request's form.
	maxFormBytes = 1 << 20
)

// ErrServerStopped is returned by Start after Stop.
var ErrServerStopped = errors.New("server stopped")

// Config configures a Server.
type Config struct {
	// Address to listen on, e.g. ":8000".
	Address          string
	MaxMessageLength int
	// RatePerSecond and Burst limit message creation per user.
	RatePerSecond float64
	Burst         int
	Logger        zerolog.Logger
}

// Server is the thread server.
type Server struct {
	address   string
	maxLength int
	listener  net.Listener
	server    *http.Server
	hub       *Hub
	store     *Store
	limiters  *limiterPool
	log       zerolog.Logger
	ready     chan struct{}
	quit      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// New creates a new Server instance.
func New(cfg Config) *Server {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	log := cfg.Logger.With().Str("component", "server").Logger()
	return &Server{
		address:   cfg.Address,
		maxLength: cfg.MaxMessageLength,
		hub:       NewHub(log),
		store:     NewStore(),
		limiters:  newLimiterPool(cfg.RatePerSecond, cfg.Burst),
		log:       log,
		ready:     make(chan struct{}),
		quit:      make(chan struct{}),
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/chat/thread/{threadID}/", s.handleCreate)
	r.Post("/chat/api/mark-thread-read/{threadID}/", s.handleMarkRead)
	r.Get("/chat/api/thread/{threadID}/messages/", s.handleHistory)
	r.Get("/ws/chat/{threadID}/", s.handleSocket)
	return r
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		_ = listener.Close()
		return ErrServerStopped
	default:
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler()}
	srv := s.server
	s.mu.Unlock()
	close(s.ready)

	s.log.Info().Str("addr", listener.Addr().String()).Msg("thread server started")

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return ErrServerStopped
}

// Ready is closed once Start is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the server and disconnects every subscriber.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		srv := s.server
		s.mu.Unlock()
		if srv != nil {
			_ = srv.Close()
		}

		s.hub.CloseAll()
		s.wg.Wait()
		s.log.Info().Msg("thread server stopped")
	})
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of sockets subscribed to a thread.
func (s *Server) ClientCount(thread protocol.ThreadID) int {
	return s.hub.ClientCount(thread)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	thread := protocol.ThreadID(chi.URLParam(r, "threadID"))
	user, name, ok := identify(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	body := strings.TrimSpace(r.FormValue("body"))
	if body == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if utf8.RuneCountInString(body) > s.maxLength {
		writeError(w, http.StatusBadRequest, "Message too long")
		return
	}
	if !s.limiters.allow(user) {
		writeError(w, http.StatusTooManyRequests, "Too many messages")
		return
	}

	msg := s.store.Create(thread, user, name, body)
	s.log.Debug().
		Str("thread", string(thread)).
		Int64("message_id", msg.ID).
		Str("request_id", r.Header.Get("X-Request-ID")).
		Msg("message created")

	if err := s.hub.BroadcastEvent(thread, protocol.ChatMessageEvent(msg)); err != nil {
		s.log.Error().Err(err).Msg("failed to broadcast message")
	}
	writeJSON(w, http.StatusOK, protocol.Response{Success: true, Message: &msg})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	thread := protocol.ThreadID(chi.URLParam(r, "threadID"))
	user, _, ok := identify(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Authentication required")
		return
	}
	s.markRead(thread, user)
	writeJSON(w, http.StatusOK, protocol.Response{Success: true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	thread := protocol.ThreadID(chi.URLParam(r, "threadID"))
	if _, _, ok := identify(r); !ok {
		writeError(w, http.StatusForbidden, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, protocol.Response{Success: true, Messages: s.store.Messages(thread)})
}

// markRead marks the thread read for user and tells subscribers.
func (s *Server) markRead(thread protocol.ThreadID, user protocol.UserID) {
	for _, id := range s.store.MarkRead(thread, user) {
		if err := s.hub.BroadcastEvent(thread, protocol.MessageReadEvent(id)); err != nil {
			s.log.Error().Err(err).Msg("failed to broadcast read receipt")
		}
	}
}

// identify returns the caller's identity from the X-User-ID header, or the
// user_id query parameter for sockets opened by browsers.
func identify(r *http.Request) (protocol.UserID, string, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		return 0, "", false
	}
	id, err := protocol.ParseUserID(raw)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, r.Header.Get("X-User-Name"), true
}

func writeJSON(w http.ResponseWriter, status int, resp protocol.Response) {
	data, err := resp.Encode()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, text string) {
	writeJSON(w, status, protocol.Response{Success: false, Error: text})
}

// limiterPool holds one creation limiter per user.
type limiterPool struct {
	mu    sync.Mutex
	m     map[protocol.UserID]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{
		m:     make(map[protocol.UserID]*rate.Limiter),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

func (p *limiterPool) allow(user protocol.UserID) bool {
	p.mu.Lock()
	l, ok := p.m[user]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.m[user] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
