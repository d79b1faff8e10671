package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/registry"
	"github.com/specialistvlad/pipegridgo/internal/report"
)

func newRegistry(t *testing.T, rules ...*config.Rule) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for i, rule := range rules {
		rule.Pos = i
		if rule.Threads == 0 {
			rule.Threads = 1
		}
		require.NoError(t, reg.Register(rule))
	}
	return reg
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x\n"), 0o644))
	}
}

// execute resolves the targets and runs them, returning the report and the
// executor so tests can inspect the final graph.
func execute(t *testing.T, reg *registry.Registry, mode Mode, workers int, targets ...string) (*report.Run, *Executor) {
	t.Helper()
	b := dag.NewBuilder(reg)
	g, err := b.Resolve(context.Background(), targets...)
	require.NoError(t, err)
	e := New(g, b, config.NewStore(nil), workers)
	rep, err := e.Run(context.Background(), mode)
	require.NoError(t, err)
	return rep, e
}

func entryByID(t *testing.T, rep *report.Run, id string) report.Entry {
	t.Helper()
	for _, e := range rep.Entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("no report entry with id %q", id)
	return report.Entry{}
}

func TestRunChain(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cat raw.txt > {output}"},
		&config.Rule{Name: "final", Input: []string{"prep.txt"}, Output: []string{"final.txt"}, Shell: "cat {input} > {output}"},
	)

	rep, _ := execute(t, reg, Normal, 2, "final.txt")
	assert.False(t, rep.Failed())
	done, failed, skipped := rep.Counts()
	assert.Equal(t, 2, done)
	assert.Zero(t, failed)
	assert.Zero(t, skipped)
	assert.FileExists(t, "final.txt")

	// Entries come out in dependency order.
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "rule.prep", rep.Entries[0].ID)
	assert.Equal(t, "rule.final", rep.Entries[1].ID)
	assert.Equal(t, "cat prep.txt > final.txt", rep.Entries[1].Command)
}

func TestRunFailureSkipsDependents(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "good", Input: []string{"raw.txt"}, Output: []string{"good.txt"}, Shell: "cp raw.txt {output}"},
		&config.Rule{Name: "bad", Input: []string{"raw.txt"}, Output: []string{"bad.txt"}, Shell: "exit 3"},
		&config.Rule{Name: "after", Input: []string{"bad.txt"}, Output: []string{"after.txt"}, Shell: "true"},
	)

	rep, _ := execute(t, reg, Normal, 2, "good.txt", "after.txt")
	assert.True(t, rep.Failed())
	done, failed, skipped := rep.Counts()
	assert.Equal(t, 1, done, "the independent branch still runs")
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)

	bad := entryByID(t, rep, "rule.bad")
	assert.Contains(t, bad.Error, "(exit 3)")

	after := entryByID(t, rep, "rule.after")
	assert.Equal(t, "skipped", after.State)
	assert.Equal(t, "upstream failed: rule.bad", after.Reason)
	assert.NoFileExists(t, "after.txt")
}

func TestRunSecondTimeSkipsUpToDate(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cp raw.txt {output}"},
	)

	rep, _ := execute(t, reg, Normal, 1, "prep.txt")
	done, _, _ := rep.Counts()
	require.Equal(t, 1, done)

	rep, _ = execute(t, reg, Normal, 1, "prep.txt")
	done, _, skipped := rep.Counts()
	assert.Zero(t, done)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "up to date", rep.Entries[0].Reason)
}

func TestRunStaleInputReruns(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "prep.txt")
	// The input is newer than the existing output.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes("prep.txt", past, past))
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cp raw.txt {output}"},
	)

	rep, _ := execute(t, reg, Normal, 1, "prep.txt")
	done, _, skipped := rep.Counts()
	assert.Equal(t, 1, done)
	assert.Zero(t, skipped)
}

func TestRunUpstreamRanForcesDownstream(t *testing.T) {
	chdir(t, t.TempDir())
	// final.txt exists and is newer than prep.txt, but prep must re-run
	// because raw.txt changed, which in turn invalidates final.
	touch(t, "prep.txt")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes("prep.txt", past, past))
	touch(t, "raw.txt", "final.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cp raw.txt {output}"},
		&config.Rule{Name: "final", Input: []string{"prep.txt"}, Output: []string{"final.txt"}, Shell: "cp {input} {output}"},
	)

	rep, _ := execute(t, reg, Normal, 1, "final.txt")
	done, _, skipped := rep.Counts()
	assert.Equal(t, 2, done)
	assert.Zero(t, skipped)
}

func TestRunForceRerunsEverything(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cp raw.txt {output}"},
	)

	_, _ = execute(t, reg, Normal, 1, "prep.txt")
	rep, _ := execute(t, reg, Force, 1, "prep.txt")
	done, _, skipped := rep.Counts()
	assert.Equal(t, 1, done)
	assert.Zero(t, skipped)
}

func TestRunCheckpointDiscovery(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "merged.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "split", Checkpoint: true, Input: []string{"merged.txt"}, Output: []string{"parts/{part}.txt"},
			Shell: "for p in 1 2 3; do echo $p > parts/$p.txt; done"},
		&config.Rule{Name: "gz", Input: []string{"parts/{part}.txt"}, Output: []string{"parts/{part}.txt.gz"},
			Shell: "gzip -c {input} > {output}"},
		&config.Rule{Name: "pack", Input: []string{"parts/{part}.txt.gz"}, Output: []string{"packed.tar"}, WildcardsFrom: "split",
			Shell: "tar cf {output} {input}"},
	)

	rep, e := execute(t, reg, Normal, 2, "packed.tar")
	require.False(t, rep.Failed())
	assert.FileExists(t, "packed.tar")
	assert.FileExists(t, "parts/2.txt.gz")

	// checkpoint, three discovered gz instantiations, then pack.
	done, _, _ := rep.Counts()
	assert.Equal(t, 5, done)
	require.Len(t, e.graph.Nodes, 5)
	assert.Equal(t, "rule.pack", rep.Entries[len(rep.Entries)-1].ID)
	assert.Equal(t, map[string]string{"part": "2"}, entryByID(t, rep, "rule.gz[part=2]").Wildcards)
}

func TestRunSkippedCheckpointStillDiscovers(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "merged.txt", "parts/1.txt", "parts/2.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "split", Checkpoint: true, Input: []string{"merged.txt"}, Output: []string{"parts/{part}.txt"},
			Shell: "false"},
		&config.Rule{Name: "count", Input: []string{"parts/{part}.txt"}, Output: []string{"count.txt"}, WildcardsFrom: "split",
			Shell: "ls {input} | wc -l > {output}"},
	)

	// Inputs predate the parts on disk, so the checkpoint is up to date and
	// its action (which would fail) never runs; discovery still happens.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes("merged.txt", past, past))

	rep, _ := execute(t, reg, Normal, 1, "count.txt")
	require.False(t, rep.Failed())
	assert.FileExists(t, "count.txt")
	cp := entryByID(t, rep, "checkpoint.split")
	assert.Equal(t, "skipped", cp.State)
	assert.Equal(t, "up to date", cp.Reason)
}

func TestRunReevaluationSkipsConsumerOfFailedProducer(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "merged.txt")

	// The deferred consumer's expanded input is produced by an
	// instantiation that already failed by the time the checkpoint settles;
	// recomputing its readiness must not treat the failed dep as satisfied.
	reg := newRegistry(t,
		&config.Rule{Name: "mk", Output: []string{"mid/{p}.txt"}, Shell: "exit 1"},
		&config.Rule{Name: "split", Checkpoint: true, Input: []string{"merged.txt"}, Output: []string{"parts/{p}.txt"},
			Shell: "echo 1 > parts/1.txt"},
		&config.Rule{Name: "pack", Input: []string{"mid/{p}.txt"}, Output: []string{"packed.txt"}, WildcardsFrom: "split",
			Shell: "touch {output}"},
	)

	rep, _ := execute(t, reg, Normal, 1, "mid/1.txt", "packed.txt")
	assert.True(t, rep.Failed())
	assert.Equal(t, "failed", entryByID(t, rep, "rule.mk[p=1]").State)

	pack := entryByID(t, rep, "rule.pack")
	assert.Equal(t, "skipped", pack.State)
	assert.Equal(t, "upstream failed: rule.mk[p=1]", pack.Reason)
	assert.NoFileExists(t, "packed.txt")

	done, failed, skipped := rep.Counts()
	assert.Equal(t, 1, done, "the checkpoint itself still runs")
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)
}

func TestRunCheckpointZeroFilesFails(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "merged.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "split", Checkpoint: true, Input: []string{"merged.txt"}, Output: []string{"parts/{part}.txt"},
			Shell: "mkdir -p parts"},
		&config.Rule{Name: "pack", Input: []string{"parts/{part}.txt"}, Output: []string{"packed.tar"}, WildcardsFrom: "split",
			Shell: "true"},
	)

	rep, _ := execute(t, reg, Normal, 1, "packed.tar")
	assert.True(t, rep.Failed())
	cp := entryByID(t, rep, "checkpoint.split")
	assert.Equal(t, "failed", cp.State)
	assert.Contains(t, cp.Error, "no files")
	pack := entryByID(t, rep, "rule.pack")
	assert.Equal(t, "skipped", pack.State)
}

func TestRunWritesLogFile(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"},
			Shell: "echo hello; cp raw.txt {output}", Log: "logs/prep.log"},
	)

	rep, _ := execute(t, reg, Normal, 1, "prep.txt")
	require.False(t, rep.Failed())
	assert.Equal(t, "logs/prep.log", rep.Entries[0].Log)
	data, err := os.ReadFile("logs/prep.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestRunCancellation(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "slow", Input: []string{"raw.txt"}, Output: []string{"slow.txt"}, Shell: "sleep 30"},
	)

	b := dag.NewBuilder(reg)
	g, err := b.Resolve(context.Background(), "slow.txt")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rep, err := New(g, b, config.NewStore(nil), 1).Run(ctx, Normal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, rep.Failed(), "the interrupted action counts as failed")
}

func TestDryRunExecutesNothing(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cp raw.txt {output}"},
		&config.Rule{Name: "final", Input: []string{"prep.txt"}, Output: []string{"final.txt"}, Shell: "cp {input} {output}"},
	)

	rep, _ := execute(t, reg, DryRun, 1, "final.txt")
	assert.NoFileExists(t, "prep.txt")
	assert.NoFileExists(t, "final.txt")
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "would run", rep.Entries[0].Reason)
	assert.Equal(t, "cp raw.txt prep.txt", rep.Entries[0].Command)
	assert.Equal(t, "would run", rep.Entries[1].Reason)
}

func TestDryRunReportsUpToDate(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	reg := newRegistry(t,
		&config.Rule{Name: "prep", Input: []string{"raw.txt"}, Output: []string{"prep.txt"}, Shell: "cp raw.txt {output}"},
	)

	_, _ = execute(t, reg, Normal, 1, "prep.txt")
	rep, _ := execute(t, reg, DryRun, 1, "prep.txt")
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "skipped", rep.Entries[0].State)
	assert.Equal(t, "up to date", rep.Entries[0].Reason)
}

func TestRunThreadsSerializeHeavyActions(t *testing.T) {
	chdir(t, t.TempDir())
	touch(t, "raw.txt")

	// Each instantiation claims both worker slots, so they must run one at
	// a time; concurrent appends would interleave the marker pairs.
	reg := newRegistry(t,
		&config.Rule{Name: "heavy", Threads: 2, Input: []string{"raw.txt"}, Output: []string{"out/{n}.txt"},
			Shell: "echo start-{wildcards.n} >> trace.txt; sleep 0.1; echo end-{wildcards.n} >> trace.txt; touch {output}"},
	)

	rep, _ := execute(t, reg, Normal, 2, "out/1.txt", "out/2.txt")
	require.False(t, rep.Failed())

	data, err := os.ReadFile("trace.txt")
	require.NoError(t, err)
	lines := string(data)
	assert.Contains(t, []string{
		"start-1\nend-1\nstart-2\nend-2\n",
		"start-2\nend-2\nstart-1\nend-1\n",
	}, lines)
}
