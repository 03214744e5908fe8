// Package config holds the defaults for both tools and loads the optional
// TOML file that overrides them.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultTimeout   = 20 * time.Second
	DefaultWorkDir   = "temp_pdfs" // downloads land here until combined
	DefaultUserAgent = "notetools-combine/1.0"
	DefaultAddr      = ":40123"
	DefaultFormPage  = "file_submission_DLD.html"
)

// Combine configures the combine command.
type Combine struct {
	Timeout     Duration `toml:"timeout"`
	WorkDir     string   `toml:"work_dir"`
	UserAgent   string   `toml:"user_agent"`
	ResolveHTML bool     `toml:"resolve_html"`
	KeepFiles   bool     `toml:"keep_files"`
}

// Receive configures the upload receiver.
type Receive struct {
	Addr     string `toml:"addr"`
	Dir      string `toml:"dir"`
	FormPage string `toml:"form_page"`
}

type Config struct {
	Combine Combine `toml:"combine"`
	Receive Receive `toml:"receive"`
}

// Duration lets TOML files say timeout = "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Combine: Combine{
			Timeout:   Duration{DefaultTimeout},
			WorkDir:   DefaultWorkDir,
			UserAgent: DefaultUserAgent,
		},
		Receive: Receive{
			Addr:     DefaultAddr,
			Dir:      ".",
			FormPage: DefaultFormPage,
		},
	}
}

// Load returns Default overlaid with the TOML file at path. An empty path
// returns the defaults unchanged. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Combine.Timeout.Duration <= 0 {
		return fmt.Errorf("config: combine.timeout must be positive, got %s", c.Combine.Timeout.Duration)
	}
	if c.Combine.WorkDir == "" {
		return fmt.Errorf("config: combine.work_dir is required")
	}
	if c.Receive.Addr == "" {
		return fmt.Errorf("config: receive.addr is required")
	}
	if c.Receive.FormPage == "" {
		return fmt.Errorf("config: receive.form_page is required")
	}
	return nil
}
