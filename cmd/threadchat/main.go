package main

import (
	"fmt"
	"time"

	"github.com/omochice/threadchat/internal/client"
	"github.com/omochice/threadchat/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "threadchat",
	Short:        "Real-time chat for one thread",
	SilenceUsage: true,
	RunE:         runTUI,
}

var (
	flagConfig         string
	flagBaseURL        string
	flagThread         string
	flagUser           int64
	flagUserName       string
	flagCookie         string
	flagCSRFToken      string
	flagReconnectDelay time.Duration
	flagMaxRetries     int
	flagLogLevel       string
	flagLogFile        string
	flagNoSound        bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "config file (default ~/.threadchat/config.toml)")
	flags.StringVar(&flagBaseURL, "base-url", "", "site hosting the thread, e.g. http://localhost:8000")
	flags.StringVar(&flagThread, "thread", "", "thread id to open")
	flags.Int64Var(&flagUser, "user", 0, "current user id")
	flags.StringVar(&flagUserName, "user-name", "", "display name sent to the server")
	flags.StringVar(&flagCookie, "cookie", "", "session cookie forwarded on every request")
	flags.StringVar(&flagCSRFToken, "csrf-token", "", "CSRF token sent with new messages")
	flags.DurationVar(&flagReconnectDelay, "reconnect-delay", 0, "fixed wait before reconnecting (default 3s)")
	flags.IntVar(&flagMaxRetries, "max-retries", -1, "consecutive reconnect attempts before giving up; 0 retries forever")
	flags.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&flagLogFile, "log-file", "", "append logs to this file")
	flags.BoolVar(&flagNoSound, "no-sound", false, "disable the incoming-message cue")

	rootCmd.AddCommand(tailCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("threadchat failed")
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if flags.Changed("thread") {
		cfg.ThreadID = flagThread
	}
	if flags.Changed("user") {
		cfg.UserID = flagUser
	}
	if flags.Changed("user-name") {
		cfg.UserName = flagUserName
	}
	if flags.Changed("cookie") {
		cfg.Cookie = flagCookie
	}
	if flags.Changed("csrf-token") {
		cfg.CSRFToken = flagCSRFToken
	}
	if flags.Changed("reconnect-delay") {
		cfg.ReconnectDelayMs = int(flagReconnectDelay / time.Millisecond)
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = flagMaxRetries
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	if flagNoSound {
		off := false
		cfg.Sound = &off
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*client.Client, error) {
	c, err := client.New(client.Options{
		BaseURL:   cfg.BaseURL,
		ThreadID:  cfg.Thread(),
		CSRFToken: cfg.CSRFToken,
		Header:    cfg.Header(),
		Timeout:   cfg.SubmitTimeout(),
		Logger:    log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
