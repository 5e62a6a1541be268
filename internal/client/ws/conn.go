package ws

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Dialer opens a socket to url. The connection lives until it is closed or
// ctx is canceled.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Conn is a read-only socket to the server.
type Conn interface {
	// Read blocks until the next data frame arrives and returns its payload.
	Read() ([]byte, error)
	Close() error
}

// GobwasDialer dials with github.com/gobwas/ws.
type GobwasDialer struct{}

// Dial performs the WebSocket handshake.
func (GobwasDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d := ws.Dialer{}
	if len(header) > 0 {
		d.Header = ws.HandshakeHeaderHTTP(header)
	}

	conn, br, _, err := d.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	c := &gobwasConn{conn: conn, br: br}
	c.stop = context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	return c, nil
}

// gobwasConn wraps net.Conn for a client-side WebSocket.
type gobwasConn struct {
	conn net.Conn
	// br holds bytes the server sent right after the handshake, if any.
	br   *bufio.Reader
	stop func() bool

	// wmu serializes pong and close frames.
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *gobwasConn) Read() ([]byte, error) {
	var r io.Reader = c.conn
	if c.br != nil {
		r = c.br
	}
	rw := struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{mu: &c.wmu, w: c.conn}}

	data, _, err := wsutil.ReadServerData(rw)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *gobwasConn) Close() error {
	c.closeOnce.Do(func() {
		if !c.stop() {
			// The context already tore the connection down.
			return
		}
		c.wmu.Lock()
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.wmu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
