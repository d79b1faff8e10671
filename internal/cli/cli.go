package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/pipegridgo/internal/app"
	"github.com/specialistvlad/pipegridgo/internal/fsutil"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// setFlags collects repeated -set key=value parameter overrides.
type setFlags map[string]string

func (s setFlags) String() string {
	parts := make([]string, 0, len(s))
	for k, v := range s {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (s setFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid -set value %q, expected key=value", raw)
	}
	s[key] = value
	return nil
}

// Parse processes command-line arguments. It returns a populated app config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("pipegridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
PipeGridGo - A declarative, file-based pipeline runner.

Usage:
  pipegridgo [options] [TARGET...]

Arguments:
  TARGET
    Output paths to bring up to date. Without targets, the outputs of the
    first rule in the pipeline are built.

Options:
`)
		flagSet.PrintDefaults()
	}

	overrides := setFlags{}
	pipelineFlag := flagSet.String("pipeline", "", "Path to a pipeline .hcl file or a directory of .hcl files.")
	pFlag := flagSet.String("p", "", "Path to a pipeline .hcl file or directory (shorthand).")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 uses the number of CPUs.")
	jFlag := flagSet.Int("j", 0, "Number of concurrent workers (shorthand).")
	dryRunFlag := flagSet.Bool("n", false, "Dry run: report planned actions without executing anything.")
	forceFlag := flagSet.Bool("f", false, "Force: re-run every instantiation regardless of timestamps.")
	watchFlag := flagSet.Bool("watch", false, "Re-run the pipeline whenever a source file changes.")
	reportFlag := flagSet.String("report", "", "Write the run report as YAML to this path.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.Var(overrides, "set", "Override a pipeline parameter as key=value. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *pipelineFlag
	if path == "" {
		path = *pFlag
	}
	if path == "" {
		path = discoverPipeline()
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	workers := *workersFlag
	if workers == 0 {
		workers = *jFlag
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath: path,
		Targets:      flagSet.Args(),
		Overrides:    overrides,
		Workers:      workers,
		DryRun:       *dryRunFlag,
		Force:        *forceFlag,
		Watch:        *watchFlag,
		ReportPath:   *reportFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

// discoverPipeline looks for the conventional pipeline locations in the
// working directory.
func discoverPipeline() string {
	for _, candidate := range []string{"pipeline.hcl", "pipeline"} {
		if fsutil.Exists(candidate) {
			return candidate
		}
	}
	return ""
}
