package main

import (
	"fmt"
	"log/slog"

	"docpipe/internal/config"
	"docpipe/internal/logging"
)

// commandContext lazily resolves configuration and the logger so commands
// like "config init" can run before any config file exists.
type commandContext struct {
	configPath string

	cfg    *config.Config
	logger *slog.Logger
}

func (cc *commandContext) ensureConfig() (*config.Config, error) {
	if cc.cfg != nil {
		return cc.cfg, nil
	}
	cfg, resolved, _, err := config.Load(cc.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	cc.cfg = cfg
	return cfg, nil
}

func (cc *commandContext) ensureLogger() (*slog.Logger, error) {
	if cc.logger != nil {
		return cc.logger, nil
	}
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewForRun(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return nil, err
	}
	cc.logger = logger
	return logger, nil
}
