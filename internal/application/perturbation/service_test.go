package perturbation_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/ligandnet/internal/application/perturbation"
	"github.com/turtacn/ligandnet/internal/config"
	"github.com/turtacn/ligandnet/internal/domain/network"
	"github.com/turtacn/ligandnet/internal/testutil"
	apperrors "github.com/turtacn/ligandnet/pkg/errors"
)

func runConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.Name = "series"
	// Every pair is a candidate so the run never depends on exact scores.
	cfg.Network.Cutoff = 0
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func TestService_Run(t *testing.T) {
	src := t.TempDir()
	writeSeries(t, src)

	cfg := runConfig(t)
	cfg.Output.YAML = true
	cfg.Metrics.Enabled = true
	cfg.Matrix.Parallelism = 3
	cfg.Cache.Backend = config.CacheMemory

	log := testutil.NewMockLogger()
	svc, err := perturbation.NewService(cfg, log)
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), perturbation.RunRequest{SourceDir: src})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 5, res.Collection.Len())
	assert.Equal(t, 5, res.Matrix.N())
	assert.Len(t, res.Edges, 10)
	assert.GreaterOrEqual(t, len(network.Selected(res.Edges)), 4)

	lines := readLines(t, res.RecordsPath)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "series_score_with_connection.txt"), res.RecordsPath)
	assert.Equal(t, network.RecordHeader, lines[0])
	assert.Len(t, lines, 11)

	raw, err := os.ReadFile(res.YAMLPath)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Len(t, doc["nodes"], 5)

	metrics, err := os.ReadFile(res.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "ligandnet_ligands_loaded 5")
	assert.Contains(t, string(metrics), `ligandnet_cache_misses_total{backend="memory"} 10`)

	assert.True(t, log.HasMessage("info", "run finished"))
}

func TestService_RunDefaultsDoNotSelectEveryCandidate(t *testing.T) {
	src := t.TempDir()
	writeSeries(t, src)

	run := func(cfg *config.Config) (selected, candidates int) {
		t.Helper()
		cfg.Output.Dir = t.TempDir()
		svc, err := perturbation.NewService(cfg, nil)
		require.NoError(t, err)
		res, err := svc.Run(context.Background(), perturbation.RunRequest{SourceDir: src})
		require.NoError(t, err)
		for _, e := range res.Edges {
			if e.Score >= cfg.Network.Cutoff {
				candidates++
			}
		}
		return len(network.Selected(res.Edges)), candidates
	}

	cfg := config.NewDefaultConfig()
	require.Equal(t, string(network.CycleCover), cfg.Network.CycleMode)
	selected, candidates := run(cfg)
	require.Greater(t, candidates, 5, "phenyl and the halobenzenes form a dense candidate graph")
	assert.Less(t, selected, candidates)
	assert.GreaterOrEqual(t, selected, 4)

	greedy := config.NewDefaultConfig()
	greedy.Network.CycleMode = string(network.CycleGreedy)
	selected, candidates = run(greedy)
	assert.Equal(t, candidates, selected, "unbounded greedy keeps every candidate")
}

func TestService_RunIsDeterministicAcrossParallelism(t *testing.T) {
	src := t.TempDir()
	writeSeries(t, src)

	var records [][]string
	for _, k := range []int{1, 4} {
		cfg := runConfig(t)
		cfg.Network.Cutoff = network.DefaultCutoff
		cfg.Matrix.Parallelism = k
		svc, err := perturbation.NewService(cfg, nil)
		require.NoError(t, err)
		res, err := svc.Run(context.Background(), perturbation.RunRequest{SourceDir: src})
		require.NoError(t, err)
		records = append(records, readLines(t, res.RecordsPath))
	}
	assert.Equal(t, records[0], records[1])
}

func TestService_LinksFile(t *testing.T) {
	src := t.TempDir()
	writeSeries(t, src)
	links := filepath.Join(t.TempDir(), "links.txt")
	require.NoError(t, os.WriteFile(links, []byte(
		"# forced pair\nphenyl.sdf toluene.sdf 0.12345 force\nphenyl.sdf naphthalene.sdf\n"), 0o644))

	cfg := runConfig(t)
	cfg.Network.LinksFile = links
	svc, err := perturbation.NewService(cfg, nil)
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), perturbation.RunRequest{SourceDir: src})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "naphthalene.sdf")

	i, ok := res.Collection.Lookup("phenyl.sdf")
	require.True(t, ok)
	j, ok := res.Collection.Lookup("toluene.sdf")
	require.True(t, ok)
	if i > j {
		i, j = j, i
	}
	for _, e := range res.Edges {
		if e.I == i && e.J == j {
			assert.Equal(t, 0.12345, e.Score)
			assert.True(t, e.Selected)
			assert.Equal(t, network.SourceOverride, e.Source)
		}
	}
}

func TestService_RunErrors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		svc, err := perturbation.NewService(runConfig(t), nil)
		require.NoError(t, err)
		_, err = svc.Run(context.Background(), perturbation.RunRequest{SourceDir: t.TempDir()})
		assert.True(t, apperrors.IsIOError(err))
	})

	t.Run("unknown hub", func(t *testing.T) {
		src := t.TempDir()
		writeSeries(t, src)
		cfg := runConfig(t)
		cfg.Network.Hub = "benzamide.sdf"
		svc, err := perturbation.NewService(cfg, nil)
		require.NoError(t, err)
		_, err = svc.Run(context.Background(), perturbation.RunRequest{SourceDir: src})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNetworkConfig))
	})

	t.Run("missing links file", func(t *testing.T) {
		src := t.TempDir()
		writeSeries(t, src)
		cfg := runConfig(t)
		cfg.Network.LinksFile = filepath.Join(src, "absent.txt")
		svc, err := perturbation.NewService(cfg, nil)
		require.NoError(t, err)
		_, err = svc.Run(context.Background(), perturbation.RunRequest{SourceDir: src})
		assert.True(t, apperrors.IsIOError(err))
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := runConfig(t)
		cfg.Matrix.Parallelism = 0
		_, err := perturbation.NewService(cfg, nil)
		assert.Error(t, err)
		_, err = perturbation.NewService(nil, nil)
		assert.Error(t, err)
	})
}

func TestService_ScoreFiles(t *testing.T) {
	src := t.TempDir()
	writeSeries(t, src)
	svc, err := perturbation.NewService(runConfig(t), nil)
	require.NoError(t, err)

	ab, err := svc.ScoreFiles(context.Background(), filepath.Join(src, "phenyl.sdf"), filepath.Join(src, "toluene.sdf"))
	require.NoError(t, err)
	ba, err := svc.ScoreFiles(context.Background(), filepath.Join(src, "toluene.sdf"), filepath.Join(src, "phenyl.sdf"))
	require.NoError(t, err)

	assert.Equal(t, 6, ab.MCSSize)
	assert.Equal(t, ab.Score, ba.Score)
	assert.Greater(t, ab.Score, 0.0)

	_, err = svc.ScoreFiles(context.Background(), filepath.Join(src, "absent.sdf"), filepath.Join(src, "phenyl.sdf"))
	assert.True(t, apperrors.IsIOError(err))
}
