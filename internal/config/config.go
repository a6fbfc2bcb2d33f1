// Package config defines the configuration of a ligandnet run.  No I/O or
// parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/ligandnet/internal/domain/network"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
	"github.com/turtacn/ligandnet/internal/infrastructure/database/redis"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// InputConfig selects molecule files inside the source directory.
type InputConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// NetworkConfig is the file form of network.Config.  The hub is named by
// ligand and resolved once the collection is loaded.
type NetworkConfig struct {
	Cutoff          float64 `mapstructure:"cutoff"`
	Hub             string  `mapstructure:"hub"`
	CycleRedundancy bool    `mapstructure:"cycle_redundancy"`
	CycleMode       string  `mapstructure:"cycle_mode"` // "greedy" | "cover"
	MaxDegree       int     `mapstructure:"max_degree"`
	CycleEdgeBudget int     `mapstructure:"cycle_edge_budget"`
	LinksFile       string  `mapstructure:"links_file"`
}

// Matcher kinds.
const (
	MatcherCoordinate = "coordinate"
	MatcherStatic     = "static"
)

// MatcherConfig selects and tunes the structure matcher.
type MatcherConfig struct {
	Kind       string        `mapstructure:"kind"` // "coordinate" | "static"
	TimeBudget time.Duration `mapstructure:"time_budget"`
	PairRadius float64       `mapstructure:"pair_radius"`
	// Correspondences is the YAML file read by the static matcher.
	Correspondences string `mapstructure:"correspondences"`
}

// MatrixConfig controls score-matrix construction.
type MatrixConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig holds the optional pair-score cache.
type CacheConfig struct {
	Backend string            `mapstructure:"backend"` // "none" | "memory" | "redis"
	TTL     time.Duration     `mapstructure:"ttl"`
	Prefix  string            `mapstructure:"prefix"`
	Redis   redis.RedisConfig `mapstructure:"redis"`
}

// MetricsConfig holds Prometheus textfile export parameters.
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Namespace    string `mapstructure:"namespace"`
	TextfilePath string `mapstructure:"textfile_path"`
}

// OutputConfig names the result files.
type OutputConfig struct {
	Dir  string `mapstructure:"dir"`
	Name string `mapstructure:"name"`
	YAML bool   `mapstructure:"yaml"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration of a run.
type Config struct {
	Log     logging.LogConfig `mapstructure:"log"`
	Input   InputConfig       `mapstructure:"input"`
	Scoring scoring.Config    `mapstructure:"scoring"`
	Network NetworkConfig     `mapstructure:"network"`
	Matcher MatcherConfig     `mapstructure:"matcher"`
	Matrix  MatrixConfig      `mapstructure:"matrix"`
	Cache   CacheConfig       `mapstructure:"cache"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
	Output  OutputConfig      `mapstructure:"output"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem found.  Rule weights are checked by
// scoring.Config.Validate when the engine is built.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if len(c.Input.Patterns) == 0 {
		return fmt.Errorf("config: input.patterns must contain at least one pattern")
	}

	if c.Network.Cutoff < 0 || c.Network.Cutoff > 1 {
		return fmt.Errorf("config: network.cutoff %g is out of range [0, 1]", c.Network.Cutoff)
	}
	if _, err := network.ParseCycleMode(c.Network.CycleMode); err != nil {
		return fmt.Errorf("config: network.cycle_mode %q is invalid; expected greedy|cover", c.Network.CycleMode)
	}
	if c.Network.MaxDegree < 0 {
		return fmt.Errorf("config: network.max_degree must be ≥ 0, got %d", c.Network.MaxDegree)
	}
	if c.Network.CycleEdgeBudget < 0 {
		return fmt.Errorf("config: network.cycle_edge_budget must be ≥ 0, got %d", c.Network.CycleEdgeBudget)
	}

	switch c.Matcher.Kind {
	case MatcherCoordinate:
	case MatcherStatic:
		if c.Matcher.Correspondences == "" {
			return fmt.Errorf("config: matcher.correspondences is required for the static matcher")
		}
	default:
		return fmt.Errorf("config: matcher.kind %q is invalid; expected coordinate|static", c.Matcher.Kind)
	}
	if c.Matcher.TimeBudget < 0 {
		return fmt.Errorf("config: matcher.time_budget must not be negative")
	}

	if c.Matrix.Parallelism < 1 {
		return fmt.Errorf("config: matrix.parallelism must be ≥ 1, got %d", c.Matrix.Parallelism)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if err := c.Cache.Redis.Validate(); err != nil {
			return fmt.Errorf("config: cache.redis: %w", err)
		}
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected none|memory|redis", c.Cache.Backend)
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	if c.Output.Name == "" {
		return fmt.Errorf("config: output.name is required")
	}

	return nil
}

// ToNetwork converts the file form into network.Config, resolving the hub
// name with resolve.
func (c *Config) ToNetwork(resolve network.Resolver) (network.Config, error) {
	mode, err := network.ParseCycleMode(c.Network.CycleMode)
	if err != nil {
		return network.Config{}, err
	}
	out := network.Config{
		Cutoff:          c.Network.Cutoff,
		Hub:             network.NoHub,
		CycleRedundancy: c.Network.CycleRedundancy,
		CycleMode:       mode,
		MaxDegree:       c.Network.MaxDegree,
		CycleEdgeBudget: c.Network.CycleEdgeBudget,
	}
	if c.Network.Hub != "" {
		idx, ok := resolve(c.Network.Hub)
		if !ok {
			return network.Config{}, fmt.Errorf("config: network.hub %q is not a loaded ligand", c.Network.Hub)
		}
		out.Hub = idx
	}
	return out, nil
}
