// Package config loads and validates the TOML configuration. Resolution
// order: explicit --config path, ~/.config/docpipe/config.toml, then
// ./docpipe.toml. A missing file yields the defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Config is the full application configuration.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Source    SourceConfig    `toml:"source"`
	Translate TranslateConfig `toml:"translate"`
	Render    RenderConfig    `toml:"render"`
	Runner    RunnerConfig    `toml:"runner"`
	Logging   LoggingConfig   `toml:"logging"`
}

// PathsConfig locates the docs tree and the log directory.
type PathsConfig struct {
	DocsDir string `toml:"docs_dir"`
	LogDir  string `toml:"log_dir"`
}

// SourceConfig describes the documentation site to fetch from.
type SourceConfig struct {
	BaseURL           string `toml:"base_url"`
	ContentsPath      string `toml:"contents_path"`
	UserAgent         string `toml:"user_agent"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`
}

// TranslateConfig configures the translation API and the completeness
// heuristic.
type TranslateConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	SourceLang        string  `toml:"source_lang"`
	TargetLang        string  `toml:"target_lang"`
	TargetScript      string  `toml:"target_script"`
	SkipThreshold     float64 `toml:"skip_threshold"`
	MaxChunkChars     int     `toml:"max_chunk_chars"`
	RequestTimeoutSec int     `toml:"request_timeout_sec"`
}

// RenderConfig configures the headless-browser print engine.
type RenderConfig struct {
	BrowserBin       string `toml:"browser_bin"`
	RenderTimeoutSec int    `toml:"render_timeout_sec"`
}

// RunnerConfig tunes retry, pacing, and the disk-space guard shared by all
// stages.
type RunnerConfig struct {
	RetryAttempts    int `toml:"retry_attempts"`
	RetryBaseDelayMs int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `toml:"retry_max_delay_ms"`
	MinFreeMB        int `toml:"min_free_mb"`
	ItemDelayMs      int `toml:"item_delay_ms"`
}

// LoggingConfig selects log output format and verbosity.
type LoggingConfig struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DocsDir: "~/python_docs",
			LogDir:  "~/python_docs/logs",
		},
		Source: SourceConfig{
			BaseURL:           "https://docs.python.org/3",
			ContentsPath:      "contents.html",
			RequestTimeoutSec: 60,
		},
		Translate: TranslateConfig{
			Model:             "gpt-4o-mini",
			SourceLang:        "English",
			TargetLang:        "Russian",
			TargetScript:      "Cyrillic",
			SkipThreshold:     0.35,
			MaxChunkChars:     4500,
			RequestTimeoutSec: 60,
		},
		Render: RenderConfig{
			RenderTimeoutSec: 60,
		},
		Runner: RunnerConfig{
			RetryAttempts:    3,
			RetryBaseDelayMs: 500,
			RetryMaxDelayMs:  10000,
			MinFreeMB:        100,
			ItemDelayMs:      500,
		},
		Logging: LoggingConfig{
			Format: "console",
			Level:  "info",
		},
	}
}

// Load reads configuration from the given path or the standard locations.
// It returns the parsed config, the path it resolved to, and whether a file
// existed there.
func Load(path string) (*Config, string, bool, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) && path == "" {
			cfg.normalize()
			return cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.normalize()
	return cfg, resolved, true, nil
}

func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		return expandPath(explicit)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".config", "docpipe", "config.toml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	return "docpipe.toml", nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// normalize fills derived and environment-supplied values after parsing.
func (c *Config) normalize() {
	if c.Translate.APIKey == "" {
		c.Translate.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if expanded, err := expandPath(c.Paths.DocsDir); err == nil {
		c.Paths.DocsDir = expanded
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DocsDir, "logs")
	} else if expanded, err := expandPath(c.Paths.LogDir); err == nil {
		c.Paths.LogDir = expanded
	}
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
}

// CreateSample writes the annotated sample configuration to path, refusing
// to overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// TargetScript resolves the configured script name to its range table.
func (c *TranslateConfig) Script() (*unicode.RangeTable, bool) {
	table, ok := unicode.Scripts[c.TargetScript]
	return table, ok
}

// RequestTimeout returns the source HTTP timeout as a duration.
func (c *SourceConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// RequestTimeout returns the translation API timeout as a duration.
func (c *TranslateConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// RenderTimeout returns the per-page print timeout as a duration.
func (c *RenderConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSec) * time.Second
}

// RetryBaseDelay returns the backoff seed as a duration.
func (c *RunnerConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap as a duration.
func (c *RunnerConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// ItemDelay returns the politeness pause as a duration.
func (c *RunnerConfig) ItemDelay() time.Duration {
	return time.Duration(c.ItemDelayMs) * time.Millisecond
}

// MinFreeBytes returns the disk-space floor in bytes.
func (c *RunnerConfig) MinFreeBytes() uint64 {
	return uint64(c.MinFreeMB) << 20
}
