package ws_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/omochice/threadchat/internal/client/ws"
	"github.com/omochice/threadchat/pkg/protocol"
)

type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) Read() ([]byte, error) {
	select {
	case <-c.done:
		return nil, io.EOF
	default:
	}
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fakeDialer hands out conns in order, then fails.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	err   error
}

func (d *fakeDialer) Dial(_ context.Context, url string, _ http.Header) (ws.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if len(d.conns) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records reconnects instead of running them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) ws.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) timer(t *testing.T, i int) *fakeTimer {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.timers) {
		t.Fatalf("timer %d not scheduled (have %d)", i, len(s.timers))
	}
	return s.timers[i]
}

// recorder collects what a Manager reports.
type recorder struct {
	states chan ws.State
	events chan protocol.Event
}

func newRecorder() *recorder {
	return &recorder{
		states: make(chan ws.State, 64),
		events: make(chan protocol.Event, 64),
	}
}

func (r *recorder) HandleEvent(ev protocol.Event) { r.events <- ev }
func (r *recorder) HandleState(s ws.State)        { r.states <- s }

func (r *recorder) expectStates(t *testing.T, want ...ws.State) {
	t.Helper()
	for i, w := range want {
		select {
		case got := <-r.states:
			if got != w {
				t.Fatalf("state %d = %v, want %v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for state %v", w)
		}
	}
}

func (r *recorder) nextEvent(t *testing.T) protocol.Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return protocol.Event{}
	}
}

func (r *recorder) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case s := <-r.states:
		t.Fatalf("unexpected state %v", s)
	case ev := <-r.events:
		t.Fatalf("unexpected event %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
