package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/omochice/threadchat/pkg/protocol"
)

// Style selects how a message bubble is drawn.
type Style int

const (
	StyleReceived Style = iota
	StyleSent
)

// String returns the string representation of Style
func (s Style) String() string {
	switch s {
	case StyleSent:
		return "sent"
	case StyleReceived:
		return "received"
	default:
		return "unknown"
	}
}

// Receipt is the read-receipt indicator shown on own messages.
type Receipt int

const (
	ReceiptNone Receipt = iota
	ReceiptDelivered
	ReceiptRead
)

// String returns the string representation of Receipt
func (r Receipt) String() string {
	switch r {
	case ReceiptDelivered:
		return "delivered"
	case ReceiptRead:
		return "read"
	default:
		return "none"
	}
}

// Node is the displayable form of a message.
type Node struct {
	ID      int64
	Style   Style
	Author  string
	Text    string
	Time    string
	Receipt Receipt
}

// Render maps a message to its display node. Own messages are drawn as sent
// and carry a receipt; everything else is drawn as received without one.
// The body is treated as plain data: terminal control sequences are removed.
func Render(msg protocol.Message, own bool, loc *time.Location) Node {
	n := Node{
		ID:   msg.ID,
		Text: sanitize(msg.Body),
		Time: FormatTime(msg.CreatedAt, loc),
	}
	if own {
		n.Style = StyleSent
		n.Receipt = ReceiptDelivered
		if msg.Read {
			n.Receipt = ReceiptRead
		}
		return n
	}
	n.Style = StyleReceived
	n.Author = sanitize(msg.SenderName)
	return n
}

// FormatTime formats t as zero-padded HH:MM in loc (local time when nil).
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
