package chat_test

import (
	"testing"
	"time"

	"github.com/omochice/threadchat/internal/chat"
	"github.com/omochice/threadchat/pkg/protocol"
)

func TestRender(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)

	tests := []struct {
		name        string
		msg         protocol.Message
		own         bool
		wantStyle   chat.Style
		wantReceipt chat.Receipt
		wantText    string
	}{
		{
			name:        "own unread message",
			msg:         protocol.Message{ID: 42, SenderID: 7, Body: "Hello", CreatedAt: created},
			own:         true,
			wantStyle:   chat.StyleSent,
			wantReceipt: chat.ReceiptDelivered,
			wantText:    "Hello",
		},
		{
			name:        "own read message",
			msg:         protocol.Message{ID: 42, SenderID: 7, Body: "Hello", CreatedAt: created, Read: true},
			own:         true,
			wantStyle:   chat.StyleSent,
			wantReceipt: chat.ReceiptRead,
			wantText:    "Hello",
		},
		{
			name:        "received message never has a receipt",
			msg:         protocol.Message{ID: 43, SenderID: 9, Body: "Hi back", CreatedAt: created, Read: true},
			wantStyle:   chat.StyleReceived,
			wantReceipt: chat.ReceiptNone,
			wantText:    "Hi back",
		},
		{
			name:        "escape sequences are data",
			msg:         protocol.Message{ID: 44, SenderID: 9, Body: "\x1b[2J\x1b[31mred\x1b[0m\a line\nnext", CreatedAt: created},
			wantStyle:   chat.StyleReceived,
			wantReceipt: chat.ReceiptNone,
			wantText:    "red line\nnext",
		},
		{
			name:        "markup is kept as text",
			msg:         protocol.Message{ID: 45, SenderID: 9, Body: "<b>hi</b>", CreatedAt: created},
			wantStyle:   chat.StyleReceived,
			wantReceipt: chat.ReceiptNone,
			wantText:    "<b>hi</b>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := chat.Render(tt.msg, tt.own, time.UTC)
			if n.ID != tt.msg.ID {
				t.Errorf("ID = %d, want %d", n.ID, tt.msg.ID)
			}
			if n.Style != tt.wantStyle {
				t.Errorf("Style = %v, want %v", n.Style, tt.wantStyle)
			}
			if n.Receipt != tt.wantReceipt {
				t.Errorf("Receipt = %v, want %v", n.Receipt, tt.wantReceipt)
			}
			if n.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", n.Text, tt.wantText)
			}
			if n.Time != "10:05" {
				t.Errorf("Time = %q, want 10:05", n.Time)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2024, 1, 1, 1, 2, 0, 0, time.UTC)

	if got := chat.FormatTime(ts, time.UTC); got != "01:02" {
		t.Errorf("FormatTime(UTC) = %q, want 01:02", got)
	}
	if got := chat.FormatTime(ts, tokyo); got != "10:02" {
		t.Errorf("FormatTime(JST) = %q, want 10:02", got)
	}
}

func TestList_AppendOncePerID(t *testing.T) {
	l := chat.NewList()
	if !l.Append(chat.Entry{Message: protocol.Message{ID: 1}}) {
		t.Fatal("first Append() = false")
	}
	if l.Append(chat.Entry{Message: protocol.Message{ID: 1, Body: "again"}}) {
		t.Fatal("second Append() of same id = true")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
	e, ok := l.Get(1)
	if !ok || e.Message.Body != "" {
		t.Errorf("Get(1) = %+v, %v; first entry must win", e, ok)
	}
	if _, ok := l.Get(2); ok {
		t.Error("Get(2) found a missing entry")
	}
}
