package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level application configuration. It holds the static
// pieces of the deployment: paths, the control listener, browser launch
// options and the folder scan list. Runtime-mutable settings (target
// address, polling window) live in the settings store instead.
type Config struct {
	LogLevel string   `yaml:"log_level"`
	StateDir string   `yaml:"state_dir"`
	Listen   string   `yaml:"listen"`
	Browser  Browser  `yaml:"browser"`
	Folders  []Folder `yaml:"folders"`
}

// Browser holds browser launch options.
type Browser struct {
	// Headless controls the session used for scanning. The manual-login
	// window is always headful regardless of this setting.
	Headless bool `yaml:"headless"`
	// Binary optionally pins the browser executable. When empty the
	// launcher probes CHROME_BINARY, GOOGLE_CHROME_SHIM and PATH.
	Binary string `yaml:"binary"`
}

// Folder is one webmail folder to scan. Order in the list is the scan
// order within a tick.
type Folder struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultFolders is the folder list used when the configuration does not
// supply one.
var DefaultFolders = []Folder{
	{Name: "Inbox", URL: "https://outlook.office.com/mail/inbox"},
	{Name: "Junk Email", URL: "https://outlook.office.com/mail/junkemail"},
}

// Load reads and parses a YAML configuration file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		StateDir: "automation_state",
		Listen:   "127.0.0.1:8780",
		Browser:  Browser{Headless: true},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.Folders = DefaultFolders
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Folders) == 0 {
		cfg.Folders = DefaultFolders
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	for i, f := range c.Folders {
		label := f.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if f.Name == "" {
			return fmt.Errorf("folder %s: name is required", label)
		}
		if f.URL == "" {
			return fmt.Errorf("folder %s: url is required", label)
		}
	}
	return nil
}
