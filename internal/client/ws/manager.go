// Package ws keeps a thread's WebSocket subscription alive and dispatches the
// events it carries.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
)

// DefaultReconnectDelay is the fixed wait before each reconnect attempt.
const DefaultReconnectDelay = 3 * time.Second

var (
	// ErrUnavailable is returned when a socket cannot be set up for the
	// configured page. Real-time updates are then absent.
	ErrUnavailable = errors.New("real-time updates unavailable")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("manager closed")
)

// Handler receives what a Manager observes. Methods are called from the
// manager's goroutines, one at a time, in delivery order.
type Handler interface {
	HandleEvent(ev protocol.Event)
	HandleState(s State)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	OnEvent func(protocol.Event)
	OnState func(State)
}

func (h HandlerFuncs) HandleEvent(ev protocol.Event) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

func (h HandlerFuncs) HandleState(s State) {
	if h.OnState != nil {
		h.OnState(s)
	}
}

// Timer is a scheduled reconnect.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// BaseURL is the http(s) URL of the page hosting the thread.
	BaseURL  string
	ThreadID protocol.ThreadID
	// Header is sent with every handshake.
	Header http.Header
	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// MaxRetries caps consecutive failed attempts. Zero retries forever.
	MaxRetries uint64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces the gobwas dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithScheduler replaces time.AfterFunc for reconnect timers.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.schedule = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager owns the socket of one thread: it connects, reads, reconnects after
// unplanned drops and stops for good on Close.
type Manager struct {
	url      string
	header   http.Header
	handler  Handler
	dialer   Dialer
	schedule Scheduler
	policy   backoff.BackOff
	log      zerolog.Logger

	// emu serializes handler calls.
	emu sync.Mutex

	mu      sync.Mutex
	state   State
	started bool
	closed  bool
	conn    Conn
	cancel  context.CancelFunc
	timer   Timer
	attempt int
	wg      sync.WaitGroup
}

// NewManager creates a Manager in the Disconnected state. It returns an error
// wrapping ErrUnavailable when no socket URL can be derived from cfg.
func NewManager(cfg ManagerConfig, handler Handler, opts ...Option) (*Manager, error) {
	u, err := SocketURL(cfg.BaseURL, cfg.ThreadID)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	m := &Manager{
		url:      u,
		header:   cfg.Header.Clone(),
		handler:  handler,
		dialer:   GobwasDialer{},
		schedule: afterFunc,
		policy:   backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), cfg.MaxRetries),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "socket").Str("thread", string(cfg.ThreadID)).Logger()
	return m, nil
}

// SocketURL derives {ws|wss}://<host>/ws/chat/<thread_id>/ from the page URL.
func SocketURL(baseURL string, threadID protocol.ThreadID) (string, error) {
	if threadID == "" {
		return "", fmt.Errorf("%w: missing thread id", ErrUnavailable)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var scheme string
	switch strings.ToLower(base.Scheme) {
	case "http", "ws":
		scheme = "ws"
	case "https", "wss":
		scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrUnavailable, base.Scheme)
	}
	if base.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrUnavailable)
	}

	u := url.URL{
		Scheme: scheme,
		Host:   base.Host,
		Path:   "/ws/chat/" + url.PathEscape(string(threadID)) + "/",
	}
	return u.String(), nil
}

// URL returns the socket URL.
func (m *Manager) URL() string {
	return m.url
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins connecting. Calling it again is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	m.connect()
	return nil
}

// Close stops reconnecting, closes any open socket and waits for the read
// goroutine to exit. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.state = StateClosing
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	cancel := m.cancel
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.emitState(StateClosing)

	// The socket goes first so it can still send its close frame; canceling
	// tears the connection down without one.
	var err error
	if conn != nil {
		err = conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
	m.emitState(StateDisconnected)

	m.log.Debug().Msg("socket closed")
	return err
}

func (m *Manager) connect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.attempt++
	attempt := m.attempt
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateConnecting
	m.wg.Add(1)
	m.mu.Unlock()

	m.emitState(StateConnecting)
	m.log.Debug().Int("attempt", attempt).Str("url", m.url).Msg("connecting")
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	conn, err := m.dialer.Dial(ctx, m.url, m.header)
	if err != nil {
		m.drop(err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempt = 0
	m.policy.Reset()
	m.mu.Unlock()

	m.emitState(StateOpen)
	m.log.Info().Msg("socket open")

	for {
		data, err := conn.Read()
		if err != nil {
			_ = conn.Close()
			m.drop(err)
			return
		}

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			m.log.Warn().Err(err).Int("size", len(data)).Msg("dropping frame")
			continue
		}
		m.emitEvent(ev)
	}
}

// drop records an unplanned disconnect and schedules one reconnect.
func (m *Manager) drop(cause error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateDisconnected

	delay := m.policy.NextBackOff()
	if delay != backoff.Stop {
		m.timer = m.schedule(delay, m.connect)
	}
	attempt := m.attempt
	m.mu.Unlock()

	m.emitState(StateDisconnected)
	if delay == backoff.Stop {
		m.log.Error().Err(cause).Int("attempt", attempt).Msg("giving up reconnecting")
		return
	}
	m.log.Warn().Err(cause).Dur("delay", delay).Msg("socket disconnected, reconnecting")
}

func (m *Manager) emitState(s State) {
	m.emu.Lock()
	defer m.emu.Unlock()
	m.handler.HandleState(s)
}

func (m *Manager) emitEvent(ev protocol.Event) {
	m.emu.Lock()
	defer m.emu.Unlock()
	m.handler.HandleEvent(ev)
}
