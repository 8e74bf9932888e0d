package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Mavwarf/anchorpatch/internal/paths"
)

// DefaultLockTimeout is the default wait for a concurrent run, in seconds.
const DefaultLockTimeout = 10

// Journal backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Webhook posts a JSON run report after every apply.
type Webhook struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// MQTT publishes a JSON run report to a broker topic after every apply.
type MQTT struct {
	Broker   string `json:"broker"`              // e.g. "tcp://localhost:1883"
	Topic    string `json:"topic"`               // e.g. "anchorpatch/{outcome}"
	ClientID string `json:"client_id,omitempty"` // prefix; the run ID is appended
	QoS      int    `json:"qos,omitempty"`
	Retain   bool   `json:"retain,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Notify groups the optional run-outcome sinks.
type Notify struct {
	Webhook *Webhook `json:"webhook,omitempty"`
	MQTT    *MQTT    `json:"mqtt,omitempty"`
}

// Config holds global settings. Plans are not part of the config; they are
// separate documents passed per run.
type Config struct {
	Journal            bool   `json:"journal"`
	JournalBackend     string `json:"journal_backend,omitempty"`
	Backup             bool   `json:"backup,omitempty"`
	Lock               bool   `json:"lock"`
	LockTimeoutSeconds int    `json:"lock_timeout_seconds,omitempty"`
	Notify             Notify `json:"notify,omitempty"`

	// Source is the file the config was read from; empty for defaults.
	Source string `json:"-"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Journal:            true,
		JournalBackend:     BackendSQLite,
		Lock:               true,
		LockTimeoutSeconds: DefaultLockTimeout,
	}
}

// UnmarshalJSON sets defaults then decodes the JSON structure.
// Go's json.Unmarshal merges into existing struct fields, so only
// values present in JSON override the defaults.
func (c *Config) UnmarshalJSON(data []byte) error {
	*c = Default()
	type Alias Config
	return json.Unmarshal(data, (*Alias)(c))
}

// Validate rejects settings that cannot be acted on.
func (c Config) Validate() error {
	switch c.JournalBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("journal_backend %q: want %q or %q", c.JournalBackend, BackendFile, BackendSQLite)
	}
	if c.LockTimeoutSeconds < 0 {
		return fmt.Errorf("lock_timeout_seconds must not be negative (got %d)", c.LockTimeoutSeconds)
	}
	if w := c.Notify.Webhook; w != nil && w.URL == "" {
		return fmt.Errorf("notify.webhook: url is required")
	}
	if m := c.Notify.MQTT; m != nil {
		if m.Broker == "" || m.Topic == "" {
			return fmt.Errorf("notify.mqtt: broker and topic are required")
		}
		if m.QoS < 0 || m.QoS > 2 {
			return fmt.Errorf("notify.mqtt: qos must be 0, 1 or 2 (got %d)", m.QoS)
		}
	}
	return nil
}

// Load reads and parses a config file. It tries, in order:
//  1. explicitPath (if non-empty; must exist)
//  2. anchorpatch-config.json next to the running binary
//  3. ~/.config/anchorpatch/anchorpatch-config.json
//
// When none exists the defaults are returned.
func Load(explicitPath string) (Config, error) {
	if explicitPath != "" {
		return readConfig(explicitPath)
	}

	// Next to binary
	exe, err := os.Executable()
	if err == nil {
		p := filepath.Join(filepath.Dir(exe), paths.ConfigFileName)
		if _, err := os.Stat(p); err == nil {
			return readConfig(p)
		}
	}

	// User config directory
	home, err := os.UserHomeDir()
	if err == nil {
		var p string
		if runtime.GOOS == "windows" {
			p = filepath.Join(home, "AppData", "Roaming", paths.AppDirName, paths.ConfigFileName)
		} else {
			p = filepath.Join(home, ".config", paths.AppDirName, paths.ConfigFileName)
		}
		if _, err := os.Stat(p); err == nil {
			return readConfig(p)
		}
	}

	return Default(), nil
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}
