package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
)

// ErrActionFailed is returned when an action's process exits non-zero.
var ErrActionFailed = errors.New("action failed")

// Invocation carries everything an action needs at execution time: the raw
// command template and the resolved values its placeholders refer to.
type Invocation struct {
	Shell     string
	Inputs    []string
	Outputs   []string
	Wildcards pattern.Binding
	Params    *config.Store
	Threads   int
	LogPath   string
}

// Result describes one completed action invocation.
type Result struct {
	Command  string
	ExitCode int
	Output   string
	LogPath  string
}

// Shell executes actions through `sh -c`, capturing combined output.
type Shell struct{}

// NewShell creates a Shell action runner.
func NewShell() *Shell {
	return &Shell{}
}

// Run interpolates and executes the invocation's command. Output parent
// directories are created beforehand. On failure, outputs written by the
// failed action are removed so a later run cannot mistake them for up to
// date; the Result still carries the captured output for the report.
func (s *Shell) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	cmdline, err := Interpolate(inv.Shell, inv)
	if err != nil {
		return nil, err
	}

	for _, out := range inv.Outputs {
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating output directory for %q: %w", out, err)
			}
		}
	}
	if inv.LogPath != "" {
		if dir := filepath.Dir(inv.LogPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating log directory for %q: %w", inv.LogPath, err)
			}
		}
	}

	before := outputStates(inv.Outputs)

	logger.Debug("Invoking action.", "command", cmdline)
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	runErr := cmd.Run()

	res := &Result{
		Command: cmdline,
		Output:  buf.String(),
		LogPath: inv.LogPath,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if inv.LogPath != "" {
		if err := os.WriteFile(inv.LogPath, buf.Bytes(), 0o644); err != nil {
			logger.Warn("Failed to write action log.", "path", inv.LogPath, "error", err)
		}
	}

	if runErr != nil {
		removeFreshOutputs(ctx, inv.Outputs, before)
		return res, fmt.Errorf("%w: %s (exit %d)", ErrActionFailed, cmdline, res.ExitCode)
	}
	return res, nil
}

// outputStates snapshots the mtimes of outputs that already exist.
func outputStates(outputs []string) map[string]time.Time {
	states := make(map[string]time.Time, len(outputs))
	for _, out := range outputs {
		if info, err := os.Stat(out); err == nil {
			states[out] = info.ModTime()
		}
	}
	return states
}

// removeFreshOutputs deletes outputs created or rewritten by a failed action,
// leaving untouched any output file the action never got to.
func removeFreshOutputs(ctx context.Context, outputs []string, before map[string]time.Time) {
	logger := ctxlog.FromContext(ctx)
	for _, out := range outputs {
		info, err := os.Stat(out)
		if err != nil {
			continue
		}
		prev, existed := before[out]
		if existed && info.ModTime().Equal(prev) {
			continue
		}
		logger.Debug("Removing output of failed action.", "path", out)
		if err := os.Remove(out); err != nil {
			logger.Warn("Failed to remove output of failed action.", "path", out, "error", err)
		}
	}
}
