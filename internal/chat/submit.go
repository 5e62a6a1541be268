package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/omochice/threadchat/pkg/protocol"
)

// Creator performs the message-creation request and returns the canonical
// message the server stored.
type Creator interface {
	CreateMessage(ctx context.Context, body, requestID string) (protocol.Message, error)
}

// Submission is the token for the one submission in flight.
type Submission struct {
	RequestID string
	Body      string
}

// Pending reports whether a submission is in flight.
func (s *Session) Pending() bool {
	return s.pending != nil
}

// BeginSubmit starts a submission of body. It returns false without side
// effects when the trimmed body is empty. On success the submit control is
// busy until SettleSubmit is called with the returned token.
func (s *Session) BeginSubmit(body string) (Submission, bool) {
	if strings.TrimSpace(body) == "" {
		return Submission{}, false
	}
	if s.pending != nil {
		// The surface disables submission while busy, so this is a caller bug.
		s.log.Warn().Str("request_id", s.pending.RequestID).Msg("submission already in flight")
		return Submission{}, false
	}

	sub := Submission{RequestID: uuid.New().String(), Body: body}
	s.pending = &sub
	s.surface.SetBusy(true)
	s.log.Debug().Str("request_id", sub.RequestID).Msg("submitting message")
	return sub, true
}

// SettleSubmit completes the submission identified by sub with the result of
// the creation request. The submit control is restored whatever the outcome.
func (s *Session) SettleSubmit(sub Submission, msg protocol.Message, err error) {
	if s.pending == nil || s.pending.RequestID != sub.RequestID {
		s.log.Warn().Str("request_id", sub.RequestID).Msg("settling unknown submission")
		return
	}
	s.pending = nil
	defer s.surface.SetBusy(false)

	if err != nil {
		s.log.Error().Err(err).Str("request_id", sub.RequestID).Msg("failed to send message")
		s.surface.Alert(alertText(err))
		return
	}

	if !s.append(msg) {
		// The socket delivered it first; the list already shows it.
		s.log.Debug().Int64("message_id", msg.ID).Msg("submitted message already rendered")
	}
	s.surface.ResetInput()
	s.surface.ScrollToBottom(true)
	s.surface.FocusInput()
}

// Submit runs a whole submission on the calling goroutine. Empty bodies are a
// no-op. The returned error is the creation failure, already shown on the
// surface.
func (s *Session) Submit(ctx context.Context, creator Creator, body string) error {
	sub, ok := s.BeginSubmit(body)
	if !ok {
		return nil
	}
	msg, err := creator.CreateMessage(ctx, sub.Body, sub.RequestID)
	s.SettleSubmit(sub, msg, err)
	return err
}

// serverMessager is implemented by errors that carry text from the server.
type serverMessager interface {
	ServerMessage() string
}

func alertText(err error) string {
	var sm serverMessager
	if errors.As(err, &sm) {
		text := sm.ServerMessage()
		if text == "" {
			text = "Unknown error"
		}
		return "Failed to send message: " + text
	}
	return "Failed to send message. Please try again."
}
