// Package report collects the per-instantiation outcome of a pipeline run
// into a single serializable document.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is the outcome of one rule instantiation.
type Entry struct {
	ID        string            `yaml:"id"`
	Rule      string            `yaml:"rule"`
	Wildcards map[string]string `yaml:"wildcards,omitempty"`
	State     string            `yaml:"state"`
	Reason    string            `yaml:"reason,omitempty"`
	Error     string            `yaml:"error,omitempty"`
	Command   string            `yaml:"command,omitempty"`
	Duration  time.Duration     `yaml:"duration"`
	Log       string            `yaml:"log,omitempty"`
}

// Run is the full report of one pipeline run: entries appear in dependency
// order, ties broken by rule registration order.
type Run struct {
	ID        string        `yaml:"id"`
	Targets   []string      `yaml:"targets"`
	Mode      string        `yaml:"mode"`
	StartedAt time.Time     `yaml:"started_at"`
	Duration  time.Duration `yaml:"duration"`
	Status    string        `yaml:"status"`
	Entries   []Entry       `yaml:"entries"`
}

// New creates a report for a run starting now.
func New(targets []string, mode string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Targets:   targets,
		Mode:      mode,
		StartedAt: time.Now(),
		Status:    StatusOK,
	}
}

// Add appends an entry; a failed entry flips the overall status.
func (r *Run) Add(e Entry) {
	if e.State == "failed" {
		r.Status = StatusFailed
	}
	r.Entries = append(r.Entries, e)
}

// Failed reports whether any entry failed.
func (r *Run) Failed() bool {
	return r.Status == StatusFailed
}

// Counts returns how many entries finished in each terminal state.
func (r *Run) Counts() (done, failed, skipped int) {
	for _, e := range r.Entries {
		switch e.State {
		case "done":
			done++
		case "failed":
			failed++
		case "skipped":
			skipped++
		}
	}
	return
}

// Encode writes the report as YAML.
func (r *Run) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r)
}

// WriteFile writes the report as YAML to the given path.
func (r *Run) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	defer f.Close()
	return r.Encode(f)
}
