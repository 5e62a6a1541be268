// Package ws adapts server-side gorilla/websocket connections to the thread
// server's Conn interface.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGrace bounds how long Close waits to send the close frame.
const closeGrace = time.Second

// Conn adapts *websocket.Conn. Frames are JSON text messages.
type Conn struct {
	conn       *websocket.Conn
	remoteAddr string

	// gorilla allows one concurrent writer.
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a websocket.Conn with the peer address taken from the conn.
func NewConn(conn *websocket.Conn) *Conn {
	return NewConnWithAddr(conn, conn.RemoteAddr().String())
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, addr string) *Conn {
	return &Conn{conn: conn, remoteAddr: addr}
}

// Read returns the next data frame. Only the context's deadline is honored;
// cancel by closing the connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Write sends data as one text frame.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	// A zero deadline clears any previous one.
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and closes the connection.
func (c *Conn) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode sends a close frame with code and text, then closes the
// connection. Only the first call has an effect.
func (c *Conn) CloseWithCode(code int, text string) error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, text)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
