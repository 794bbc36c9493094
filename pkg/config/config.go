// Package config manages sbdl settings.
// It follows XDG specifications for locating the settings file.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

// DefaultParallel is the number of projects downloaded at once.
const DefaultParallel = 4

// Settings are the user-tunable options persisted in config.json.
type Settings struct {
	// OutputDir is where downloaded projects are written. Empty means the
	// projects are only summarized.
	OutputDir string `json:"output_dir,omitempty"`
	// Buffered disables fine-grained progress.
	Buffered bool `json:"buffered,omitempty"`
	// Parallel bounds concurrent downloads.
	Parallel int `json:"parallel,omitempty"`
	// APIHost overrides the Scratch metadata host.
	APIHost string `json:"api_host,omitempty"`
	// ProjectHost overrides the Scratch payload host.
	ProjectHost string `json:"project_host,omitempty"`
	// UserAgent overrides the User-Agent header.
	UserAgent string `json:"user_agent,omitempty"`
}

// Set assigns the setting named by its JSON key.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "output_dir":
		s.OutputDir = value
	case "buffered":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		s.Buffered = b
	case "parallel":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %q", key, value)
		}
		s.Parallel = n
	case "api_host":
		s.APIHost = value
	case "project_host":
		s.ProjectHost = value
	case "user_agent":
		s.UserAgent = value
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}

// ParseAssignment splits "key=value".
func ParseAssignment(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), nil
}

func (s Settings) withDefaults() Settings {
	if s.Parallel <= 0 {
		s.Parallel = DefaultParallel
	}
	if s.UserAgent == "" {
		s.UserAgent = UserAgent()
	}
	return s
}

// Config locates and holds the sbdl settings.
// Mutable
type Config struct {
	configDir string
	settings  *settingsFile
}

// Init initializes the configuration using XDG base directories.
func Init() *Config {
	return New(filepath.Join(xdg.ConfigHome, "sbdl"))
}

// New creates a Config rooted at dir.
func New(dir string) *Config {
	return &Config{
		configDir: dir,
		settings:  newSettingsFile(filepath.Join(dir, "config.json")),
	}
}

func (c *Config) GetConfigDir() string    { return c.configDir }
func (c *Config) GetSettingsPath() string { return c.settings.path }

// Settings returns the current settings with defaults filled in.
func (c *Config) Settings() (Settings, error) {
	s, err := c.settings.Get()
	if err != nil {
		return Settings{}, err
	}
	return s.withDefaults(), nil
}

// Update applies fn to the stored settings and saves them.
func (c *Config) Update(fn func(*Settings) error) error {
	if err := c.settings.Modify(fn); err != nil {
		return err
	}
	return c.settings.Save()
}
