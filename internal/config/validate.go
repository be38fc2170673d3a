package config

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

// Validate checks the configuration for values that would make a run fail
// in a confusing way later. It does not require the API key; only the
// translate stage needs that, and it is checked at stage start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DocsDir) == "" {
		return fmt.Errorf("paths.docs_dir must not be empty")
	}

	parsed, err := url.Parse(c.Source.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("source.base_url is not a valid absolute URL: %q", c.Source.BaseURL)
	}
	if strings.TrimSpace(c.Source.ContentsPath) == "" {
		return fmt.Errorf("source.contents_path must not be empty")
	}
	if c.Source.RequestTimeoutSec <= 0 {
		return fmt.Errorf("source.request_timeout_sec must be positive")
	}

	for field, value := range map[string]string{
		"translate.source_lang": c.Translate.SourceLang,
		"translate.target_lang": c.Translate.TargetLang,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", field)
		}
	}
	if _, ok := c.Translate.Script(); !ok {
		return fmt.Errorf("translate.target_script %q is not a known Unicode script", c.Translate.TargetScript)
	}
	if c.Translate.SkipThreshold <= 0 || c.Translate.SkipThreshold > 1 {
		return fmt.Errorf("translate.skip_threshold must be in (0, 1], got %v", c.Translate.SkipThreshold)
	}
	if c.Translate.MaxChunkChars <= 0 {
		return fmt.Errorf("translate.max_chunk_chars must be positive")
	}
	if strings.TrimSpace(c.Translate.Model) == "" {
		return fmt.Errorf("translate.model must not be empty")
	}
	if err := c.Translate.ValidateLanguageTags(); err != nil {
		return err
	}

	if c.Runner.RetryAttempts < 1 {
		return fmt.Errorf("runner.retry_attempts must be at least 1")
	}
	if c.Runner.RetryBaseDelayMs < 0 || c.Runner.RetryMaxDelayMs < 0 {
		return fmt.Errorf("runner retry delays must not be negative")
	}
	if c.Runner.MinFreeMB < 0 {
		return fmt.Errorf("runner.min_free_mb must not be negative")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	return nil
}

// ValidateLanguageTags checks source and target languages against BCP 47
// when they are given as tags rather than plain names. Plain names like
// "English" are allowed for the prompt, so a parse failure is only an error
// for strings that look like tags.
func (c *TranslateConfig) ValidateLanguageTags() error {
	for field, value := range map[string]string{
		"translate.source_lang": c.SourceLang,
		"translate.target_lang": c.TargetLang,
	} {
		if len(value) > 3 || strings.Contains(value, " ") {
			continue
		}
		if _, err := language.Parse(value); err != nil {
			return fmt.Errorf("%s: %q is not a valid language tag: %w", field, value, err)
		}
	}
	return nil
}
