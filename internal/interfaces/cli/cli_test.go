package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ligandnet/internal/config"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
	"github.com/turtacn/ligandnet/internal/testutil"
	"github.com/turtacn/ligandnet/pkg/errors"
)

func writeSeries(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, m := range []*testutil.MolSpec{
		testutil.Phenyl(),
		testutil.Substituted("toluene", "C"),
		testutil.Substituted("fluorobenzene", "F"),
		testutil.Substituted("chlorobenzene", "Cl"),
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.Title+".sdf"), []byte(testutil.SDF(m)), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type stubFlags map[string]bool

func (s stubFlags) Changed(name string) bool { return s[name] }

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "ligandnet", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"build", "score", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "log-level", "output", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Equal(t, OutputText, cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	_, _, err := run(t, "-o", "xml", "build", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, _, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "build", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"A", "LONG"}, [][]string{{"xyz", "1"}, {"b"}})
	want := "A    LONG\n" +
		"---  ----\n" +
		"xyz  1   \n" +
		"b        \n"
	assert.Equal(t, want, out)
	assert.Empty(t, FormatTable(nil, nil))
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ligandnet "+Version)

	stdout, _, err = run(t, "-o", "json", "version")
	require.NoError(t, err)
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.Commit)
}

// ─────────────────────────────────────────────────────────────────────────────
// build
// ─────────────────────────────────────────────────────────────────────────────

func TestBuildCmd_WritesNetwork(t *testing.T) {
	src := writeSeries(t)
	out := filepath.Join(t.TempDir(), "results")

	stdout, stderr, err := run(t, "-o", "json", "build", src,
		"--output-dir", out, "-n", "series", "--cutoff", "0", "--yaml", "-p", "2", "--cache", "memory")
	require.NoError(t, err)
	assert.Contains(t, stderr, "OK: network written to")

	var summary buildSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 4, summary.Ligands)
	assert.NotEmpty(t, summary.RunID)
	assert.GreaterOrEqual(t, len(summary.Edges), 3, "a connected network over 4 ligands has at least 3 edges")
	assert.Equal(t, filepath.Join(out, "series_score_with_connection.txt"), summary.RecordsPath)
	assert.FileExists(t, summary.RecordsPath)
	assert.FileExists(t, summary.YAMLPath)
	assert.Empty(t, summary.MetricsPath)
}

func TestBuildCmd_TableOutputAndMetrics(t *testing.T) {
	src := writeSeries(t)
	out := t.TempDir()
	metrics := filepath.Join(out, "run.prom")

	stdout, _, err := run(t, "build", src, "--output-dir", out, "--cutoff", "0", "-T", "--metrics-file", metrics)
	require.NoError(t, err)
	assert.Contains(t, stdout, "LIGAND A")
	assert.Contains(t, stdout, "SOURCE")
	assert.Contains(t, stdout, "computed")

	raw, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ligandnet_ligands_loaded 4")
}

func TestBuildCmd_Errors(t *testing.T) {
	t.Run("missing directory argument", func(t *testing.T) {
		_, _, err := run(t, "build")
		require.Error(t, err)
	})

	t.Run("empty directory is an IO error", func(t *testing.T) {
		_, _, err := run(t, "build", t.TempDir(), "--output-dir", t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.IsIOError(err))
		assert.Equal(t, 66, errors.ExitCodeFor(err))
	})

	t.Run("unknown cycle mode", func(t *testing.T) {
		_, _, err := run(t, "build", writeSeries(t), "--cycle-mode", "spiral")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeNetworkConfig))
	})

	t.Run("zero workers fails validation", func(t *testing.T) {
		_, _, err := run(t, "build", writeSeries(t), "-p", "0")
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrConfigValidation)
		assert.Equal(t, 78, errors.ExitCodeFor(err))
	})
}

func TestBuildOptions_ApplyOnlyChanged(t *testing.T) {
	cfg := config.NewDefaultConfig()
	before := *cfg
	opts := &buildOptions{parallel: 8, cutoff: 0.9, name: "ignored"}

	require.NoError(t, opts.apply(stubFlags{}, cfg))
	assert.Equal(t, before.Matrix, cfg.Matrix)
	assert.Equal(t, before.Network, cfg.Network)
	assert.Equal(t, before.Output, cfg.Output)

	opts = &buildOptions{
		parallel:        8,
		cutoff:          0.9,
		noCycleCover:    true,
		loose:           true,
		correspondences: "maps.yaml",
		metricsFile:     "m.prom",
		hub:             "phenyl.sdf",
	}
	require.NoError(t, opts.apply(stubFlags{
		"parallel": true, "cutoff": true, "no-cycle-cover": true, "loose": true,
		"correspondences": true, "metrics-file": true, "hub": true,
	}, cfg))

	assert.Equal(t, 8, cfg.Matrix.Parallelism)
	assert.Equal(t, 0.9, cfg.Network.Cutoff)
	assert.False(t, cfg.Network.CycleRedundancy)
	assert.Equal(t, scoring.ModeLoose, cfg.Scoring.Mode)
	assert.Equal(t, config.MatcherStatic, cfg.Matcher.Kind)
	assert.Equal(t, "maps.yaml", cfg.Matcher.Correspondences)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "m.prom", cfg.Metrics.TextfilePath)
	assert.Equal(t, "phenyl.sdf", cfg.Network.Hub)
	assert.Equal(t, before.Output.Name, cfg.Output.Name)
}

// ─────────────────────────────────────────────────────────────────────────────
// score
// ─────────────────────────────────────────────────────────────────────────────

func TestScoreCmd(t *testing.T) {
	src := writeSeries(t)
	a := filepath.Join(src, "phenyl.sdf")
	b := filepath.Join(src, "toluene.sdf")

	stdout, _, err := run(t, "score", a, b)
	require.NoError(t, err)
	assert.Contains(t, stdout, "RULE")
	assert.Contains(t, stdout, string(scoring.RuleSizeRatio))
	assert.Contains(t, stdout, "mcs_size")

	stdout, _, err = run(t, "-o", "json", "score", a, b)
	require.NoError(t, err)
	var report struct {
		A       string  `json:"a"`
		Score   float64 `json:"score"`
		MCSSize int     `json:"mcs_size"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, a, report.A)
	assert.Equal(t, 6, report.MCSSize)
	assert.Greater(t, report.Score, 0.0)
	assert.LessOrEqual(t, report.Score, 1.0)
}

func TestScoreCmd_Errors(t *testing.T) {
	_, _, err := run(t, "score", "only-one.sdf")
	require.Error(t, err)

	src := writeSeries(t)
	_, _, err = run(t, "score", filepath.Join(src, "absent.sdf"), filepath.Join(src, "phenyl.sdf"))
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestScoreReport_TableRows(t *testing.T) {
	r := &scoreReport{Result: scoring.Result{
		Score:     0,
		Breakdown: map[scoring.RuleName]float64{scoring.RuleSizeRatio: 0.5, scoring.RuleCharge: 0},
		Vetoed:    true,
		VetoedBy:  scoring.RuleCharge,
		MCSSize:   4,
	}}
	rows := r.TableRows()
	assert.Equal(t, []string{"charge", "0.00000"}, rows[0])
	assert.Equal(t, []string{"size_ratio", "0.50000"}, rows[1])
	assert.Contains(t, rows, []string{"vetoed_by", "charge"})
	assert.Equal(t, []string{"score", "0.00000"}, rows[len(rows)-1])
}
