package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/omochice/threadchat/internal/transport/ws"
)

var upgrader = websocket.Upgrader{}

// serve upgrades one connection, wraps it and hands it to fn.
func serve(t *testing.T, fn func(*ws.Conn)) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fn(ws.NewConn(c))
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })
	return peer
}

func TestConn_Read(t *testing.T) {
	received := make(chan string, 1)
	peer := serve(t, func(c *ws.Conn) {
		defer c.Close()
		data, err := c.Read(context.Background())
		if err != nil {
			received <- "error: " + err.Error()
			return
		}
		received <- string(data)
	})

	if err := peer.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Errorf("Read() = %q, want %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for read")
	}
}

func TestConn_WriteSendsTextFrame(t *testing.T) {
	peer := serve(t, func(c *ws.Conn) {
		defer c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Write(ctx, []byte(`{"type":"message_read","message_id":1}`))
		_, _ = c.Read(context.Background())
	})

	kind, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if kind != websocket.TextMessage {
		t.Errorf("frame type = %d, want text", kind)
	}
	if string(data) != `{"type":"message_read","message_id":1}` {
		t.Errorf("payload = %q", data)
	}
}

func TestConn_CloseWithCode(t *testing.T) {
	peer := serve(t, func(c *ws.Conn) {
		if c.RemoteAddr() == "" {
			t.Error("RemoteAddr() returned empty string")
		}
		_ = c.CloseWithCode(4001, "unauthorized")
		if err := c.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	_, _, err := peer.ReadMessage()
	if !websocket.IsCloseError(err, 4001) {
		t.Errorf("ReadMessage() error = %v, want close 4001", err)
	}
}
