package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/threadchat/internal/chat"
	"github.com/omochice/threadchat/internal/client/ws"
	"github.com/omochice/threadchat/internal/logging"
	"github.com/omochice/threadchat/internal/notify"
	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the thread as it changes; lines read from stdin are sent",
	RunE:  runTail,
}

var flagReadOnly bool

func init() {
	tailCmd.Flags().BoolVar(&flagReadOnly, "read-only", false, "do not send stdin lines")
}

// lineSurface is a chat.Surface for a plain terminal.
type lineSurface struct {
	out io.Writer
}

func (s lineSurface) SetBusy(bool)        {}
func (s lineSurface) ResetInput()         {}
func (s lineSurface) FocusInput()         {}
func (s lineSurface) ScrollToBottom(bool) {}

func (s lineSurface) Alert(text string) {
	fmt.Fprintf(s.out, "! %s\n", text)
}

// printer writes list entries as they are appended.
type printer struct {
	out     io.Writer
	session *chat.Session
	printed int
}

func (p *printer) flush() {
	nodes := p.session.Nodes()
	for _, n := range nodes[p.printed:] {
		who := n.Author
		if n.Style == chat.StyleSent {
			who = "you"
		}
		fmt.Fprintf(p.out, "[%s] %s: %s\n", n.Time, who, n.Text)
	}
	p.printed = len(nodes)
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, closeLog, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	if cfg.LogFile == "" {
		out = os.Stderr
	}
	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFile == "", out)
	if err != nil {
		return err
	}
	log.Logger = logger

	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier chat.Notifier = notify.Silent{}
	if cfg.SoundEnabled() {
		notifier = notify.New(os.Stdout)
	}
	session := chat.NewSession(chat.Config{
		Self:     cfg.Self(),
		Surface:  lineSurface{out: os.Stdout},
		Notifier: notifier,
		Logger:   logger,
	})
	pr := &printer{out: os.Stdout, session: session}

	history, err := c.History(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load history")
	}
	session.Load(history)
	pr.flush()

	// The session is owned by this goroutine; everything else feeds it
	// through channels.
	events := make(chan protocol.Event, 16)
	mgr, err := ws.NewManager(ws.ManagerConfig{
		BaseURL:        cfg.BaseURL,
		ThreadID:       cfg.Thread(),
		Header:         cfg.Header(),
		ReconnectDelay: cfg.ReconnectDelay(),
		MaxRetries:     uint64(cfg.MaxRetries),
	}, ws.HandlerFuncs{
		OnEvent: func(ev protocol.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		},
		OnState: func(s ws.State) {
			logger.Info().Stringer("state", s).Msg("socket state changed")
		},
	}, ws.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := mgr.Start(); err != nil {
		return err
	}
	defer mgr.Close()

	lines := make(chan string)
	if !flagReadOnly {
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if session.HandleEvent(ev) == chat.OutcomeMarked {
				fmt.Fprintf(os.Stdout, "(read: message %d)\n", ev.MessageID)
			}
			pr.flush()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			// Failures are already reported through the surface.
			_ = session.Submit(ctx, c, line)
			pr.flush()
		}
	}
}
