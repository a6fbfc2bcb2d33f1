package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ligandnet/internal/config"
	"github.com/turtacn/ligandnet/internal/domain/network"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, config.NewDefaultConfig().Validate())
}

func TestConfig_Validate_Invalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "text" }, "log.format"},
		{"patterns", func(c *config.Config) { c.Input.Patterns = nil }, "input.patterns"},
		{"cutoff", func(c *config.Config) { c.Network.Cutoff = 1.5 }, "network.cutoff"},
		{"cycle mode", func(c *config.Config) { c.Network.CycleMode = "random" }, "network.cycle_mode"},
		{"max degree", func(c *config.Config) { c.Network.MaxDegree = -1 }, "network.max_degree"},
		{"budget", func(c *config.Config) { c.Network.CycleEdgeBudget = -2 }, "network.cycle_edge_budget"},
		{"matcher kind", func(c *config.Config) { c.Matcher.Kind = "rdkit" }, "matcher.kind"},
		{"static without file", func(c *config.Config) { c.Matcher.Kind = config.MatcherStatic }, "matcher.correspondences"},
		{"parallelism", func(c *config.Config) { c.Matrix.Parallelism = 0 }, "matrix.parallelism"},
		{"cache backend", func(c *config.Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr", func(c *config.Config) {
			c.Cache.Backend = config.CacheRedis
			c.Cache.Redis.Addr = ""
		}, "cache.redis"},
		{"metrics namespace", func(c *config.Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, "metrics.namespace"},
		{"output name", func(c *config.Config) { c.Output.Name = "" }, "output.name"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfig_ToNetwork(t *testing.T) {
	t.Parallel()
	resolve := func(name string) (int, bool) {
		if name == "phenyl.sdf" {
			return 2, true
		}
		return 0, false
	}

	cfg := config.NewDefaultConfig()
	got, err := cfg.ToNetwork(resolve)
	require.NoError(t, err)
	assert.Equal(t, network.DefaultConfig(), got)

	cfg.Network.Hub = "phenyl.sdf"
	cfg.Network.CycleMode = "Greedy"
	cfg.Network.MaxDegree = 3
	got, err = cfg.ToNetwork(resolve)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Hub)
	assert.Equal(t, network.CycleGreedy, got.CycleMode)
	assert.Equal(t, 3, got.MaxDegree)

	cfg.Network.Hub = "missing.sdf"
	_, err = cfg.ToNetwork(resolve)
	assert.ErrorContains(t, err, "missing.sdf")
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Matrix.Parallelism = 8
	cfg.Output.Name = "run1"
	config.ApplyDefaults(cfg)

	assert.Equal(t, 8, cfg.Matrix.Parallelism)
	assert.Equal(t, "run1", cfg.Output.Name)
	assert.Equal(t, config.DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, config.CacheNone, cfg.Cache.Backend)
	assert.NotEmpty(t, cfg.Scoring.Substitution.Table)
	assert.Len(t, cfg.Scoring.RingSize.Bands, 3)
}

func TestApplyDefaults_Nil(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { config.ApplyDefaults(nil) })
}
