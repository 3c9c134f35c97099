package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.botboard/config.toml.
type Config struct {
	BackendURL string `toml:"backend_url"`
	APIKey     string `toml:"api_key"`

	// Poll intervals in seconds. Zero means "use default".
	ConversationPollSecs int `toml:"conversation_poll_secs"`
	ListPollSecs         int `toml:"list_poll_secs"`
	StatsPollSecs        int `toml:"stats_poll_secs"`

	PageSize      int `toml:"page_size"`
	MessageWindow int `toml:"message_window"`
	PreloadCount  int `toml:"preload_count"`

	// Rows from the bottom of the message pane within which the viewer
	// still counts as "at bottom".
	ScrollThreshold int `toml:"scroll_threshold"`
	// Rows from the end of the conversation list that trigger the next page.
	LoadMoreProximity int `toml:"load_more_proximity"`
}

// Defaults applied when a field is unset in the config file.
const (
	DefaultBackendURL        = "http://localhost:8000"
	DefaultConversationPoll  = 10 * time.Second
	DefaultListPoll          = 10 * time.Second
	DefaultStatsPoll         = 6 * time.Second
	DefaultPageSize          = 50
	DefaultMessageWindow     = 100
	DefaultPreloadCount      = 5
	DefaultScrollThreshold   = 4
	DefaultLoadMoreProximity = 8
)

// Load reads config from the given path and applies defaults.
// A missing file yields the default config without error.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MessageWindow <= 0 {
		c.MessageWindow = DefaultMessageWindow
	}
	if c.PreloadCount <= 0 {
		c.PreloadCount = DefaultPreloadCount
	}
	if c.ScrollThreshold <= 0 {
		c.ScrollThreshold = DefaultScrollThreshold
	}
	if c.LoadMoreProximity <= 0 {
		c.LoadMoreProximity = DefaultLoadMoreProximity
	}
}

// ConversationPoll returns the active-conversation poll interval.
func (c *Config) ConversationPoll() time.Duration {
	if c.ConversationPollSecs > 0 {
		return time.Duration(c.ConversationPollSecs) * time.Second
	}
	return DefaultConversationPoll
}

// ListPoll returns the conversation-list poll interval.
func (c *Config) ListPoll() time.Duration {
	if c.ListPollSecs > 0 {
		return time.Duration(c.ListPollSecs) * time.Second
	}
	return DefaultListPoll
}

// StatsPoll returns the live-statistics poll interval.
func (c *Config) StatsPoll() time.Duration {
	if c.StatsPollSecs > 0 {
		return time.Duration(c.StatsPollSecs) * time.Second
	}
	return DefaultStatsPoll
}
