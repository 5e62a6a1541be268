// Package ui is the terminal thread view. Its Model is the chat.Surface the
// synchronization core drives.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/omochice/threadchat/internal/chat"
	"github.com/omochice/threadchat/internal/client/ws"
	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
)

const (
	// maxInputHeight caps the composer's auto-sized height, in lines.
	maxInputHeight = 6
	// chromeHeight is the rows used by the title, alert and help lines.
	chromeHeight = 3
)

// EventMsg carries a socket event into the program.
type EventMsg struct {
	Event protocol.Event
}

// StateMsg carries a connection state change into the program.
type StateMsg struct {
	State ws.State
}

type submitResultMsg struct {
	sub chat.Submission
	msg protocol.Message
	err error
}

type historyMsg struct {
	msgs []protocol.Message
	err  error
}

// HistoryFunc loads the messages already in the thread.
type HistoryFunc func(ctx context.Context) ([]protocol.Message, error)

// Config configures a Model.
type Config struct {
	Title    string
	Self     protocol.UserID
	Creator  chat.Creator
	History  HistoryFunc
	Notifier chat.Notifier
	// SubmitTimeout bounds each creation request; zero means none.
	SubmitTimeout time.Duration
	// Live is false when real-time updates are unavailable.
	Live           bool
	Location       *time.Location
	Logger         zerolog.Logger
	OnRemoteAppend func(protocol.Message)
	// OnLoaded is called once on the event loop, after the history has been
	// rendered or has failed to load. Live updates should start from here so
	// they land after the history.
	OnLoaded func()
}

// Model is the bubbletea model of one thread view.
type Model struct {
	session *chat.Session
	creator chat.Creator
	history HistoryFunc
	timeout time.Duration
	title   string
	live    bool
	log     zerolog.Logger

	onLoaded func()
	loaded   bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width, height int
	busy          bool
	alert         string
	state         ws.State
	// toBottom is set by ScrollToBottom and applied after the next render.
	toBottom   bool
	lastSmooth bool
}

// New creates the thread view.
func New(cfg Config) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.CharLimit = 2000
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.SetHeight(1)
	// Enter submits; Alt+Enter or Ctrl+J break the line.
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		creator:  cfg.Creator,
		history:  cfg.History,
		timeout:  cfg.SubmitTimeout,
		title:    cfg.Title,
		live:     cfg.Live,
		log:      cfg.Logger.With().Str("component", "ui").Logger(),
		onLoaded: cfg.OnLoaded,
		viewport: viewport.New(0, 0),
		input:    ta,
		spinner:  sp,
	}
	m.session = chat.NewSession(chat.Config{
		Self:           cfg.Self,
		Surface:        m,
		Notifier:       cfg.Notifier,
		Location:       cfg.Location,
		Logger:         cfg.Logger,
		OnRemoteAppend: cfg.OnRemoteAppend,
	})
	return m
}

// Session returns the view's synchronization state.
func (m *Model) Session() *chat.Session {
	return m.session
}

// Init loads the thread history.
func (m *Model) Init() tea.Cmd {
	load := m.history
	return tea.Batch(textarea.Blink, func() tea.Msg {
		if load == nil {
			return historyMsg{}
		}
		msgs, err := load(context.Background())
		return historyMsg{msgs: msgs, err: err}
	})
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(msg.Width)
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.session.HandleEvent(msg.Event)
		m.refresh()
		return m, nil

	case StateMsg:
		m.state = msg.State
		return m, nil

	case submitResultMsg:
		m.session.SettleSubmit(msg.sub, msg.msg, msg.err)
		m.layout()
		m.refresh()
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("failed to load history")
			m.Alert("Failed to load messages.")
		}
		m.session.Load(msg.msgs)
		m.refresh()
		if !m.loaded {
			m.loaded = true
			if m.onLoaded != nil {
				m.onLoaded()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.alert = ""

	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		if m.busy {
			return m, nil
		}
		sub, ok := m.session.BeginSubmit(m.input.Value())
		if !ok {
			return m, nil
		}
		return m, tea.Batch(m.submit(sub), m.spinner.Tick)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.layout()
	return m, cmd
}

// submit runs the creation request off the event loop.
func (m *Model) submit(sub chat.Submission) tea.Cmd {
	creator, timeout := m.creator, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		msg, err := creator.CreateMessage(ctx, sub.Body, sub.RequestID)
		return submitResultMsg{sub: sub, msg: msg, err: err}
	}
}

// View renders the thread view.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(stateBadge(m.state, m.live))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.alert != "" {
		b.WriteString(alertStyle.Render(m.alert))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " Sending…")
	} else {
		b.WriteString(helpStyle.Render("enter send • alt+enter newline • pgup/pgdn scroll • esc quit"))
	}
	return b.String()
}

// SetBusy implements chat.Surface.
func (m *Model) SetBusy(busy bool) {
	m.busy = busy
}

// ResetInput implements chat.Surface.
func (m *Model) ResetInput() {
	m.input.Reset()
	m.input.SetHeight(1)
}

// FocusInput implements chat.Surface.
func (m *Model) FocusInput() {
	m.input.Focus()
}

// ScrollToBottom implements chat.Surface. Terminals cannot animate, so the
// smooth flag only affects logging.
func (m *Model) ScrollToBottom(smooth bool) {
	m.toBottom = true
	m.lastSmooth = smooth
}

// Alert implements chat.Surface.
func (m *Model) Alert(text string) {
	m.alert = text
}

// layout sizes the composer to its content and gives the rest to the list.
func (m *Model) layout() {
	lines := m.input.LineCount()
	if lines < 1 {
		lines = 1
	}
	if lines > maxInputHeight {
		lines = maxInputHeight
	}
	m.input.SetHeight(lines)

	h := m.height - chromeHeight - lines
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

// refresh re-renders the list into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(renderList(m.session.Nodes(), m.width))
	if m.toBottom {
		m.viewport.GotoBottom()
		m.log.Debug().Bool("smooth", m.lastSmooth).Msg("scrolled to bottom")
		m.toBottom = false
	}
}
