// Package config loads the client's TOML configuration file.
// The file lives at ~/.threadchat/config.toml by default, but can be
// overridden with the --config flag. CLI flags take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/omochice/threadchat/pkg/protocol"
)

const (
	DefaultReconnectDelayMs = 3000
	DefaultSubmitTimeoutMs  = 30000
	DefaultLogLevel         = "info"
)

// Config represents the client configuration file.
type Config struct {
	// BaseURL is the site hosting the thread, e.g. https://example.org.
	BaseURL string `toml:"base_url"`

	// ThreadID is the thread to open.
	ThreadID string `toml:"thread_id"`

	// UserID is the current user's identity. Required.
	UserID int64 `toml:"user_id"`

	// UserName is sent as X-User-Name when set.
	UserName string `toml:"user_name"`

	// CSRFToken is sent with message creation when set.
	CSRFToken string `toml:"csrf_token"`

	// Cookie is forwarded verbatim on every request and handshake.
	Cookie string `toml:"cookie"`

	// Headers are extra request headers.
	Headers map[string]string `toml:"headers"`

	// ReconnectDelayMs is the fixed wait before each reconnect.
	// Default: 3000
	ReconnectDelayMs int `toml:"reconnect_delay_ms"`

	// MaxRetries caps consecutive failed reconnects. 0 retries forever.
	MaxRetries int `toml:"max_retries"`

	// SubmitTimeoutMs bounds the message-creation request. 0 disables it.
	// Default: 30000
	SubmitTimeoutMs *int `toml:"submit_timeout_ms"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// LogFile receives logs. Empty discards them in the TUI and uses stderr
	// elsewhere.
	LogFile string `toml:"log_file"`

	// Sound plays a cue for incoming messages.
	// Default: true
	Sound *bool `toml:"sound"`
}

// DefaultConfigPath returns the default config file location: ~/.threadchat/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".threadchat", "config.toml"), nil
}

// Load reads a TOML config file from the given path.
//
// If path is empty the default location is tried, and a missing file yields
// an empty Config. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ReconnectDelayMs <= 0 {
		c.ReconnectDelayMs = DefaultReconnectDelayMs
	}
	if c.SubmitTimeoutMs == nil {
		v := DefaultSubmitTimeoutMs
		c.SubmitTimeoutMs = &v
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Sound == nil {
		v := true
		c.Sound = &v
	}
}

// Validate reports the first setting that prevents the client from starting.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.ThreadID == "" {
		return errors.New("thread_id is required")
	}
	if c.UserID <= 0 {
		return errors.New("user_id is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative: %d", c.MaxRetries)
	}
	if c.SubmitTimeoutMs != nil && *c.SubmitTimeoutMs < 0 {
		return fmt.Errorf("submit_timeout_ms must not be negative: %d", *c.SubmitTimeoutMs)
	}
	return nil
}

// Self returns the configured user identity.
func (c *Config) Self() protocol.UserID {
	return protocol.UserID(c.UserID)
}

// Thread returns the configured thread.
func (c *Config) Thread() protocol.ThreadID {
	return protocol.ThreadID(c.ThreadID)
}

// ReconnectDelay returns reconnect_delay_ms as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// SubmitTimeout returns submit_timeout_ms as a duration; zero means none.
func (c *Config) SubmitTimeout() time.Duration {
	if c.SubmitTimeoutMs == nil {
		return 0
	}
	return time.Duration(*c.SubmitTimeoutMs) * time.Millisecond
}

// SoundEnabled reports whether the incoming-message cue is on.
func (c *Config) SoundEnabled() bool {
	return c.Sound == nil || *c.Sound
}

// Header builds the headers sent with every request and handshake: the
// identity headers understood by the development server, the cookie and any
// extra headers.
func (c *Config) Header() http.Header {
	h := http.Header{}
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	if c.UserID > 0 {
		h.Set("X-User-ID", c.Self().String())
	}
	if c.UserName != "" {
		h.Set("X-User-Name", c.UserName)
	}
	if c.Cookie != "" {
		h.Set("Cookie", c.Cookie)
	}
	return h
}
