package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	model    *config.Model
	registry *registry.Registry
}

// NewApp is the constructor for the main application. It loads the pipeline
// through the given loader and returns a fully initialized App instance with
// its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.Overrides, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	logger.Debug("Pipeline loaded and translated into unified model.",
		"rules", len(model.Rules), "params", len(model.Params.Keys()))

	reg, err := registry.FromModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to populate rule registry: %w", err)
	}
	logger.Debug("Rule registry populated from config model.")

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		model:    model,
		registry: reg,
	}, nil
}

// Registry returns the application's rule registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
