package server

import (
	"sync"
	"time"

	"github.com/omochice/threadchat/pkg/protocol"
)

// Store keeps every thread's messages in memory. IDs are issued from one
// counter, so they increase within each thread and are never reused.
type Store struct {
	mu      sync.Mutex
	lastID  int64
	threads map[protocol.ThreadID][]*protocol.Message
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		threads: make(map[protocol.ThreadID][]*protocol.Message),
		now:     time.Now,
	}
}

// Create stores a new message and returns it.
func (s *Store) Create(thread protocol.ThreadID, sender protocol.UserID, senderName, body string) protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	m := &protocol.Message{
		ID:         s.lastID,
		SenderID:   sender,
		SenderName: senderName,
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	s.threads[thread] = append(s.threads[thread], m)
	return *m
}

// Messages returns a copy of a thread's messages, oldest first.
func (s *Store) Messages(thread protocol.ThreadID) []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.threads[thread]
	out := make([]protocol.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}
	return out
}

// MarkRead marks every unread message that reader did not send as read and
// returns the IDs it changed.
func (s *Store) MarkRead(thread protocol.ThreadID, reader protocol.UserID) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	now := s.now().UTC()
	for _, m := range s.threads[thread] {
		if m.SenderID == reader || m.Read {
			continue
		}
		at := now
		m.ReadAt = &at
		m.Read = true
		ids = append(ids, m.ID)
	}
	return ids
}

func copyMessage(m *protocol.Message) protocol.Message {
	c := *m
	if m.ReadAt != nil {
		at := *m.ReadAt
		c.ReadAt = &at
	}
	return c
}
