package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/omochice/threadchat/internal/chat"
	"github.com/omochice/threadchat/internal/client"
	"github.com/omochice/threadchat/internal/client/ws"
	"github.com/omochice/threadchat/internal/logging"
	"github.com/omochice/threadchat/internal/notify"
	"github.com/omochice/threadchat/internal/ui"
	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the view, so logs only go to a file.
	out, closeLog, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	logger, err := logging.Setup(cfg.LogLevel, false, out)
	if err != nil {
		return err
	}
	log.Logger = logger

	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	live := true
	if _, err := ws.SocketURL(cfg.BaseURL, cfg.Thread()); err != nil {
		// The view still works without live updates.
		logger.Warn().Err(err).Msg("real-time updates unavailable")
		live = false
	}

	var notifier chat.Notifier = notify.Silent{}
	if cfg.SoundEnabled() {
		notifier = notify.New(os.Stdout)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Assigned before the program runs; called once the history is shown.
	var startSocket func()

	model := ui.New(ui.Config{
		Title:         fmt.Sprintf("Thread %s", cfg.ThreadID),
		Self:          cfg.Self(),
		Creator:       c,
		History:       c.History,
		Notifier:      notifier,
		SubmitTimeout: cfg.SubmitTimeout(),
		Live:          live,
		Logger:        logger,
		OnRemoteAppend: func(protocol.Message) {
			go markRead(ctx, c, logger)
		},
		OnLoaded: func() {
			if startSocket != nil {
				// Off the event loop: state changes are sent back into it.
				go startSocket()
			}
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if live {
		mgr, err := ws.NewManager(ws.ManagerConfig{
			BaseURL:        cfg.BaseURL,
			ThreadID:       cfg.Thread(),
			Header:         cfg.Header(),
			ReconnectDelay: cfg.ReconnectDelay(),
			MaxRetries:     uint64(cfg.MaxRetries),
		}, ui.Handler(p), ws.WithLogger(logger))
		if err != nil {
			return err
		}
		startSocket = func() {
			if err := mgr.Start(); err != nil {
				logger.Error().Err(err).Msg("failed to start socket")
			}
		}
		defer mgr.Close()
	}
	go markRead(ctx, c, logger)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run thread view: %w", err)
	}
	return nil
}

func markRead(ctx context.Context, c *client.Client, logger zerolog.Logger) {
	if err := c.MarkThreadRead(ctx); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("failed to mark thread read")
	}
}
