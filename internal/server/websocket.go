package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	transportws "github.com/omochice/threadchat/internal/transport/ws"
	"github.com/omochice/threadchat/pkg/protocol"
)

const (
	// writeTimeout bounds each frame write to a subscriber.
	writeTimeout = 10 * time.Second
	// outgoingBuffer is the per-subscriber queue length.
	outgoingBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSocket subscribes the caller to a thread. Opening the socket marks
// the thread read for the caller.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	thread := protocol.ThreadID(chi.URLParam(r, "threadID"))
	user, _, ok := identify(r)
	if !ok {
		s.log.Warn().Str("thread", string(thread)).Msg("unauthenticated socket")
		http.Error(w, "Authentication required", http.StatusForbidden)
		return
	}

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}
	conn := transportws.NewConnWithAddr(c, r.RemoteAddr)

	sub := &Subscriber{
		Conn:     conn,
		UserID:   user,
		ThreadID: thread,
		Outgoing: make(chan []byte, outgoingBuffer),
	}

	// Registration and Stop are ordered by s.mu so CloseAll sees every
	// subscriber that Stop waits for.
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		_ = conn.CloseWithCode(websocket.CloseGoingAway, "")
		return
	default:
	}
	s.hub.Register(sub)
	s.wg.Add(2)
	s.mu.Unlock()

	s.log.Info().Str("thread", string(thread)).Str("user", user.String()).Msg("subscriber connected")
	go s.readLoop(sub)
	go s.writeLoop(sub)

	s.markRead(thread, user)
}

// readLoop discards inbound frames until the socket closes.
func (s *Server) readLoop(sub *Subscriber) {
	defer s.wg.Done()
	defer func() {
		s.hub.Unregister(sub)
		close(sub.Outgoing)
		_ = sub.Conn.Close()
		s.log.Info().Str("thread", string(sub.ThreadID)).Str("user", sub.UserID.String()).Msg("subscriber disconnected")
	}()

	for {
		if _, err := sub.Conn.Read(context.Background()); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("socket read failed")
			}
			return
		}
	}
}

func (s *Server) writeLoop(sub *Subscriber) {
	defer s.wg.Done()
	for data := range sub.Outgoing {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := sub.Conn.Write(ctx, data)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("remote", sub.Conn.RemoteAddr()).Msg("failed to write to subscriber")
			_ = sub.Conn.Close()
			// Drain so readLoop's close of Outgoing is the only exit path.
			for range sub.Outgoing {
			}
			return
		}
	}
}
