// Package chat provides the synchronization core of a thread view: the
// rendered message list, the submission lifecycle and the merge of events
// pushed over the socket. It is transport and UI agnostic.
package chat

import (
	"time"

	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
)

// Surface is the page the core drives. Implementations own the input field,
// the submit control and the scrollable message region.
type Surface interface {
	// SetBusy disables the submit control and shows a busy label, or
	// restores both when busy is false.
	SetBusy(busy bool)
	// ResetInput clears the input field and its auto-sized height.
	ResetInput()
	// FocusInput returns focus to the input field.
	FocusInput()
	// ScrollToBottom moves the message region to its end.
	ScrollToBottom(smooth bool)
	// Alert shows a user-visible failure notice.
	Alert(text string)
}

// Notifier plays the cue for an incoming message.
type Notifier interface {
	Notify() error
}

// Outcome reports what HandleEvent did with an event.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeAppended
	OutcomeDuplicate
	OutcomeMarked
	OutcomeUnknown
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAppended:
		return "appended"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeMarked:
		return "marked"
	default:
		return "unknown"
	}
}

// Config holds the collaborators of a Session.
type Config struct {
	// Self is the current user's identity.
	Self protocol.UserID
	// Surface is required.
	Surface Surface
	// Notifier is optional.
	Notifier Notifier
	// Location for timestamps; local time when nil.
	Location *time.Location
	Logger   zerolog.Logger
	// OnRemoteAppend, if set, is called after a message from another
	// participant has been appended.
	OnRemoteAppend func(protocol.Message)
}

// Session is the state of one thread view. It is not safe for concurrent use:
// every method must be called from the goroutine that owns the view.
type Session struct {
	self     protocol.UserID
	surface  Surface
	notifier Notifier
	loc      *time.Location
	log      zerolog.Logger
	onRemote func(protocol.Message)

	list    *List
	pending *Submission
}

// NewSession creates a Session with an empty list.
func NewSession(cfg Config) *Session {
	return &Session{
		self:     cfg.Self,
		surface:  cfg.Surface,
		notifier: cfg.Notifier,
		loc:      cfg.Location,
		log:      cfg.Logger.With().Str("component", "session").Logger(),
		onRemote: cfg.OnRemoteAppend,
		list:     NewList(),
	}
}

// Self returns the current user's identity.
func (s *Session) Self() protocol.UserID {
	return s.self
}

// Nodes returns the rendered list in order.
func (s *Session) Nodes() []Node {
	return s.list.Nodes()
}

// Len returns the number of rendered messages.
func (s *Session) Len() int {
	return s.list.Len()
}

// Entry returns the rendered entry for a message ID.
func (s *Session) Entry(id int64) (Entry, bool) {
	e, ok := s.list.Get(id)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Load renders the messages already in the thread when the view opens and
// jumps to the bottom without animation. History goes ahead of anything
// accepted before it arrived.
func (s *Session) Load(history []protocol.Message) {
	entries := make([]Entry, 0, len(history))
	for _, m := range history {
		entries = append(entries, Entry{Message: m, Node: Render(m, m.SenderID == s.self, s.loc)})
	}
	s.list.Seed(entries)
	for _, m := range history {
		if !m.Read {
			continue
		}
		if e, ok := s.list.Get(m.ID); ok {
			markRead(e)
		}
	}
	s.surface.ScrollToBottom(false)
}

// HandleEvent merges an event pushed over the socket into the list.
//
// A chat_message from the current user is presumed to be the echo of a
// message this view already appended when its submission settled, and is
// ignored. This also hides messages the same user sends from another session.
func (s *Session) HandleEvent(ev protocol.Event) Outcome {
	switch ev.Type {
	case protocol.EventTypeChatMessage:
		return s.handleChatMessage(ev.Message)
	case protocol.EventTypeMessageRead:
		return s.handleMessageRead(ev.MessageID)
	default:
		s.log.Debug().Stringer("type", ev.Type).Msg("ignoring event")
		return OutcomeUnknown
	}
}

func (s *Session) handleChatMessage(m protocol.Message) Outcome {
	if m.SenderID == s.self {
		s.log.Debug().Int64("message_id", m.ID).Msg("ignoring own echo")
		return OutcomeIgnored
	}
	if !s.append(m) {
		s.log.Debug().Int64("message_id", m.ID).Msg("dropping redelivered message")
		return OutcomeDuplicate
	}
	s.notify()
	s.surface.ScrollToBottom(true)
	if s.onRemote != nil {
		s.onRemote(m)
	}
	return OutcomeAppended
}

func (s *Session) handleMessageRead(id int64) Outcome {
	e, ok := s.list.Get(id)
	if !ok {
		s.log.Debug().Int64("message_id", id).Msg("read receipt for unrendered message")
		return OutcomeIgnored
	}
	markRead(e)
	return OutcomeMarked
}

func markRead(e *Entry) {
	e.Message.Read = true
	if e.Node.Receipt == ReceiptDelivered {
		e.Node.Receipt = ReceiptRead
	}
}

func (s *Session) append(m protocol.Message) bool {
	return s.list.Append(Entry{
		Message: m,
		Node:    Render(m, m.SenderID == s.self, s.loc),
	})
}

func (s *Session) notify() {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(); err != nil {
		s.log.Debug().Err(err).Msg("notification cue failed")
	}
}
