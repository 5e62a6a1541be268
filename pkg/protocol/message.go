// Package protocol defines the JSON payloads exchanged with a chat thread's
// HTTP endpoints and WebSocket feed.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// UserID identifies a participant. The server issues it; the client treats it
// as opaque apart from equality.
type UserID int64

// String returns the decimal form used in headers and URLs.
func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// ParseUserID parses the decimal form produced by String.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(n), nil
}

// ThreadID identifies a conversation. It scopes messages and socket
// subscriptions.
type ThreadID string

// ErrInvalidMessage is returned when a message payload lacks the fields every
// server-issued message carries.
var ErrInvalidMessage = errors.New("invalid message")

// Message is the canonical, server-issued representation of a chat message.
// Once a message has an ID the ID never changes and is never reused within
// its thread. Clients only ever change Read.
type Message struct {
	ID         int64      `json:"id"`
	SenderID   UserID     `json:"sender_id"`
	SenderName string     `json:"sender_name,omitempty"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	Read       bool       `json:"read,omitempty"`
}

// Validate reports whether m looks like a message the server issued.
func (m *Message) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrInvalidMessage)
	}
	return nil
}

// normalize folds read_at into Read so callers only look at one field.
func (m *Message) normalize() {
	if m.ReadAt != nil {
		m.Read = true
	}
}
