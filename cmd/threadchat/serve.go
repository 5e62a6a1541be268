package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/threadchat/internal/logging"
	"github.com/omochice/threadchat/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory thread server for local use",
	RunE:  runServe,
}

var (
	flagAddr      string
	flagRate      float64
	flagBurst     int
	flagMaxLength int
)

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&flagAddr, "addr", ":8000", "address to listen on")
	flags.Float64Var(&flagRate, "rate", 5, "messages per second allowed per user")
	flags.IntVar(&flagBurst, "burst", 10, "message burst allowed per user")
	flags.IntVar(&flagMaxLength, "max-length", server.DefaultMaxMessageLength, "longest accepted message, in characters")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := logging.Setup(flagLogLevel, true, os.Stderr)
	if err != nil {
		return err
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Address:          flagAddr,
		MaxMessageLength: flagMaxLength,
		RatePerSecond:    flagRate,
		Burst:            flagBurst,
		Logger:           logger,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if !errors.Is(err, server.ErrServerStopped) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		srv.Stop()
		<-errChan
	}
	return nil
}
