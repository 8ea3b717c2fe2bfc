package cli

import (
	"context"
	"fmt"

	"github.com/tracelight/callscope/callscope/pkg/xlog"
	"github.com/tracelight/callscope/library/go/core/log"
)

////////////////////////////////////////////////////////////////////////////////

type Config struct {
	LogLevel string
}

func (c *Config) fillDefault() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

////////////////////////////////////////////////////////////////////////////////

type App struct {
	logger  xlog.Logger
	context context.Context
	cancel  func()
}

func New(config *Config) (*App, error) {
	config.fillDefault()

	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	logger, err := NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{logger, ctx, cancel}, nil
}

////////////////////////////////////////////////////////////////////////////////

func (a *App) Shutdown() {
	a.cancel()
}

func (a *App) Logger() xlog.Logger {
	return a.logger
}

func (a *App) ContextLogger() log.Logger {
	return a.logger.WithContext(a.context)
}

func (a *App) Context() context.Context {
	return a.context
}

////////////////////////////////////////////////////////////////////////////////
