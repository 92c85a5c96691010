package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ragforge/corerag/internal/config"
	"github.com/ragforge/corerag/internal/logging"
	"github.com/ragforge/corerag/internal/rag"
)

// isTerminal reports whether stdout is an interactive terminal, so status
// and search output can drop ANSI color codes when piped or redirected.
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// openFacade loads configuration, sets up logging, and returns a Facade
// already in StateReady alongside the Config it was built from. cleanup
// runs logging teardown; callers must also call facade.Shutdown.
func openFacade(ctx context.Context) (*rag.Facade, *config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = cfg.LogLevel
	}
	if cfg.LogFile != "" {
		logCfg.FilePath = cfg.LogFile
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	facade := rag.New(cfg, logger)
	if err := facade.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return facade, cfg, cleanup, nil
}
