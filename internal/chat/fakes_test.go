package chat_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/omochice/threadchat/internal/chat"
	"github.com/omochice/threadchat/pkg/protocol"
)

// fakeSurface records every call the core makes on the page.
type fakeSurface struct {
	busy    bool
	busyLog []bool
	input   string
	focused int
	scrolls []bool
	alerts  []string
	resets  int
}

func (f *fakeSurface) SetBusy(busy bool) {
	f.busy = busy
	f.busyLog = append(f.busyLog, busy)
}

func (f *fakeSurface) ResetInput() {
	f.input = ""
	f.resets++
}

func (f *fakeSurface) FocusInput() {
	f.focused++
}

func (f *fakeSurface) ScrollToBottom(smooth bool) {
	f.scrolls = append(f.scrolls, smooth)
}

func (f *fakeSurface) Alert(text string) {
	f.alerts = append(f.alerts, text)
}

var _ chat.Surface = (*fakeSurface)(nil)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify() error {
	f.calls++
	return f.err
}

// fakeCreator answers creation requests and records what it was asked.
type fakeCreator struct {
	bodies []string
	reply  protocol.Message
	err    error
	// during runs inside the request, while the submission is in flight.
	during func()
}

func (f *fakeCreator) CreateMessage(ctx context.Context, body, requestID string) (protocol.Message, error) {
	f.bodies = append(f.bodies, body)
	if requestID == "" {
		return protocol.Message{}, errors.New("missing request id")
	}
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return protocol.Message{}, f.err
	}
	return f.reply, nil
}

// serverError mimics the client package's response error.
type serverError struct{ text string }

func (e *serverError) Error() string         { return fmt.Sprintf("server rejected message: %s", e.text) }
func (e *serverError) ServerMessage() string { return e.text }

func newSession(self protocol.UserID) (*chat.Session, *fakeSurface, *fakeNotifier) {
	surface := &fakeSurface{}
	notifier := &fakeNotifier{}
	s := chat.NewSession(chat.Config{
		Self:     self,
		Surface:  surface,
		Notifier: notifier,
	})
	return s, surface, notifier
}
