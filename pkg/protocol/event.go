package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType represents the type of a socket event
type EventType int

const (
	EventTypeUnknown EventType = iota
	EventTypeChatMessage
	EventTypeMessageRead
)

// String returns the wire name of the event type
func (t EventType) String() string {
	switch t {
	case EventTypeChatMessage:
		return "chat_message"
	case EventTypeMessageRead:
		return "message_read"
	default:
		return "unknown"
	}
}

// eventTypeFromWire maps a wire name to EventType.
// Unrecognized names map to EventTypeUnknown so callers can drop them.
func eventTypeFromWire(name string) EventType {
	switch name {
	case "chat_message":
		return EventTypeChatMessage
	case "message_read":
		return EventTypeMessageRead
	default:
		return EventTypeUnknown
	}
}

var (
	// ErrMalformedEvent is returned for frames that are not a well-formed event.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEventType is returned for well-formed frames whose type is not handled.
	ErrUnknownEventType = errors.New("unknown event type")
)

// Event is a parsed inbound socket frame.
// Message is set for EventTypeChatMessage, MessageID for EventTypeMessageRead.
type Event struct {
	Type      EventType
	Message   Message
	MessageID int64
}

// ChatMessageEvent builds a chat_message event.
func ChatMessageEvent(m Message) Event {
	return Event{Type: EventTypeChatMessage, Message: m}
}

// MessageReadEvent builds a message_read event.
func MessageReadEvent(id int64) Event {
	return Event{Type: EventTypeMessageRead, MessageID: id}
}

type wireEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID int64    `json:"message_id,omitempty"`
}

// Encode encodes the event into its JSON frame
func (e Event) Encode() ([]byte, error) {
	w := wireEvent{Type: e.Type.String()}
	switch e.Type {
	case EventTypeChatMessage:
		m := e.Message
		w.Message = &m
	case EventTypeMessageRead:
		w.MessageID = e.MessageID
	default:
		return nil, fmt.Errorf("failed to encode event: %w", ErrUnknownEventType)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent decodes a JSON frame into an Event.
// It returns an error wrapping ErrMalformedEvent or ErrUnknownEventType
// when the frame must be dropped.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := Event{Type: eventTypeFromWire(w.Type)}
	switch ev.Type {
	case EventTypeChatMessage:
		if w.Message == nil {
			return Event{}, fmt.Errorf("%w: chat_message without message", ErrMalformedEvent)
		}
		if err := w.Message.Validate(); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		w.Message.normalize()
		ev.Message = *w.Message
	case EventTypeMessageRead:
		if w.MessageID <= 0 {
			return Event{}, fmt.Errorf("%w: message_read without message_id", ErrMalformedEvent)
		}
		ev.MessageID = w.MessageID
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
	}
	return ev, nil
}
