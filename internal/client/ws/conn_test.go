package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/omochice/threadchat/internal/client/ws"
	"github.com/omochice/threadchat/pkg/protocol"
)

var upgrader = websocket.Upgrader{}

func TestGobwasDialer_ReadAndClose(t *testing.T) {
	gotHeader := make(chan string, 1)
	closeCode := make(chan int, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader <- r.Header.Get("X-User-ID")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_ = c.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		_ = c.WriteMessage(websocket.TextMessage, []byte(chatFrame))

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closeCode <- ce.Code
				} else {
					closeCode <- -1
				}
				return
			}
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, err := ws.GobwasDialer{}.Dial(context.Background(), url, http.Header{"X-User-ID": []string{"7"}})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if h := <-gotHeader; h != "7" {
		t.Errorf("handshake X-User-ID = %q, want 7", h)
	}

	data, err := conn.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	ev, err := protocol.DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if ev.Message.Body != "Hi back" {
		t.Errorf("Body = %q, want %q", ev.Message.Body, "Hi back")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case code := <-closeCode:
		if code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d, want %d", code, websocket.CloseNormalClosure)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the close frame")
	}
}

func TestGobwasDialer_ContextCancelUnblocksRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_, _, _ = c.ReadMessage()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, err := ws.GobwasDialer{}.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := conn.Read()
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Read() returned nil error after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() still blocked after cancel")
	}
}

func TestManager_OverRealSocket(t *testing.T) {
	paths := make(chan string, 4)
	closeCode := make(chan int, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.TextMessage, []byte(readFrame))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closeCode <- ce.Code
				} else {
					closeCode <- -1
				}
				return
			}
		}
	}))
	defer server.Close()

	rec := newRecorder()
	m, err := ws.NewManager(ws.ManagerConfig{BaseURL: server.URL, ThreadID: "t1"}, rec)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec.expectStates(t, ws.StateConnecting, ws.StateOpen)
	if p := <-paths; p != "/ws/chat/t1/" {
		t.Errorf("path = %q, want /ws/chat/t1/", p)
	}
	if ev := rec.nextEvent(t); ev.Type != protocol.EventTypeMessageRead || ev.MessageID != 42 {
		t.Errorf("event = %+v, want message_read 42", ev)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	rec.expectStates(t, ws.StateClosing, ws.StateDisconnected)

	select {
	case code := <-closeCode:
		if code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d, want %d", code, websocket.CloseNormalClosure)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the socket close")
	}
}
