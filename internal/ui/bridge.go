package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/omochice/threadchat/internal/client/ws"
	"github.com/omochice/threadchat/pkg/protocol"
)

// Sender posts a message into a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Handler forwards what a ws.Manager observes to the program, so the session
// is only ever touched from the program's event loop.
func Handler(s Sender) ws.Handler {
	return ws.HandlerFuncs{
		OnEvent: func(ev protocol.Event) {
			s.Send(EventMsg{Event: ev})
		},
		OnState: func(st ws.State) {
			s.Send(StateMsg{State: st})
		},
	}
}
