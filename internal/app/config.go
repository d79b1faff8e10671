package app

import (
	"errors"
	"runtime"
)

// Config holds everything an App instance needs to run one pipeline.
type Config struct {
	// PipelinePath is an .hcl file or a directory of .hcl files.
	PipelinePath string

	// Targets are the output paths to bring up to date. When empty the
	// outputs of the first rule in the pipeline become the targets.
	Targets []string

	// Overrides are raw key=value parameter overrides from the command
	// line; they take priority over every params block.
	Overrides map[string]string

	Workers    int
	DryRun     bool
	Force      bool
	Watch      bool
	ReportPath string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a configuration and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 0 {
		return nil, errors.New("Workers cannot be negative")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DryRun && cfg.Force {
		return nil, errors.New("DryRun and Force are mutually exclusive")
	}
	if cfg.DryRun && cfg.Watch {
		return nil, errors.New("Watch cannot be combined with DryRun")
	}
	return &cfg, nil
}
