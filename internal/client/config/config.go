package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brandstaetter/brandybox/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	confDir, _        = os.UserConfigDir()
	DefaultDir        = filepath.Join(confDir, "brandybox")
	DefaultConfigPath = filepath.Join(DefaultDir, "config.json")
	DefaultSyncDir    = filepath.Join(home, "brandyBox")
	DefaultServerURL  = "https://brandybox.example.org"
)

// SyncConfig holds the engine tunables. Zero values fall back to the
// defaults from DefaultSyncConfig.
type SyncConfig struct {
	IntervalSecs     int     `json:"interval_secs"`
	RetrySecs        int     `json:"retry_secs"`
	Workers          int     `json:"workers"`
	RequestsPerSec   float64 `json:"requests_per_sec"`
	MaxRemoteDeletes int     `json:"max_remote_deletes"`
}

type Config struct {
	SyncDir      string     `json:"sync_dir"`
	Email        string     `json:"email"`
	ServerURL    string     `json:"server_url,omitempty"` // manual override; empty means automatic
	LanURL       string     `json:"lan_url,omitempty"`    // probed before the public URL in automatic mode
	RefreshToken string     `json:"refresh_token,omitempty"`
	Sync         SyncConfig `json:"sync"`
	Path         string     `json:"-"`
}

// DefaultSyncConfig returns the engine tunables used when the config file
// doesn't set them.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		IntervalSecs:     60,
		RetrySecs:        15,
		Workers:          8,
		RequestsPerSec:   10, // backend allows 600 requests/minute
		MaxRemoteDeletes: 50,
	}
}

func (c *Config) Validate() error {
	if c.Email == "" {
		return errors.New("config: email is required")
	}
	if c.SyncDir == "" {
		return errors.New("config: sync dir is required")
	}

	resolved, err := utils.ResolvePath(c.SyncDir)
	if err != nil {
		return fmt.Errorf("config: invalid sync dir %q: %w", c.SyncDir, err)
	}
	c.SyncDir = resolved

	c.Sync = c.Sync.withDefaults()
	return nil
}

func (s SyncConfig) withDefaults() SyncConfig {
	def := DefaultSyncConfig()
	if s.IntervalSecs <= 0 {
		s.IntervalSecs = def.IntervalSecs
	}
	if s.RetrySecs <= 0 {
		s.RetrySecs = def.RetrySecs
	}
	if s.Workers <= 0 {
		s.Workers = def.Workers
	}
	if s.RequestsPerSec <= 0 {
		s.RequestsPerSec = def.RequestsPerSec
	}
	if s.MaxRemoteDeletes <= 0 {
		s.MaxRemoteDeletes = def.MaxRemoteDeletes
	}
	return s
}

// Save writes the config as JSON. 0600 because it holds the refresh token.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Load reads a config file. The caller decides whether a missing file is an
// error (daemon) or a prompt to log in (CLI).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}

// StatePath returns the sync state file location associated with a config file.
func StatePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "sync_state.json")
}

// LockPath returns the single-instance lock file location.
func LockPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "instance.lock")
}

// LogPath returns the daemon log file location.
func LogPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "client.log")
}
