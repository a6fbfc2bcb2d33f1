package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/mcs"
	"github.com/turtacn/ligandnet/internal/domain/network"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultMatcherKind = MatcherCoordinate
	DefaultTimeBudget  = 20 * time.Second

	DefaultParallelism = 1

	DefaultCacheBackend = CacheNone
	DefaultCacheTTL     = 24 * time.Hour
	DefaultCachePrefix  = "ligandnet:score:"

	DefaultMetricsNamespace = "ligandnet"

	DefaultOutputDir  = "."
	DefaultOutputName = "out"
)

// NewDefaultConfig returns a complete configuration equal to what Load
// produces from an empty file.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Scoring: scoring.DefaultConfig(),
		Network: NetworkConfig{
			Cutoff:          network.DefaultCutoff,
			CycleRedundancy: true,
			CycleMode:       string(network.CycleCover),
		},
		Matcher: MatcherConfig{TimeBudget: DefaultTimeBudget},
	}
	cfg.Cache.Redis.Mode = "standalone"
	cfg.Cache.Redis.Addr = "localhost:6379"
	ApplyDefaults(cfg)
	return cfg
}

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field that has no meaningful zero.
// Booleans and numeric rule weights are registered with viper instead, see
// setDefaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}

	// ── Input ─────────────────────────────────────────────────────────────────
	if len(cfg.Input.Patterns) == 0 {
		cfg.Input.Patterns = append([]string(nil), ligand.DefaultPatterns...)
	}

	// ── Scoring ───────────────────────────────────────────────────────────────
	if cfg.Scoring.Mode == "" {
		cfg.Scoring.Mode = scoring.ModeStrict
	}
	if cfg.Scoring.Lambda == 0 {
		cfg.Scoring.Lambda = scoring.DefaultLambda
	}
	if cfg.Scoring.Substitution.Table == nil {
		cfg.Scoring.Substitution.Table = scoring.DefaultSubstitutionTable()
	}
	if cfg.Scoring.RingSize.Bands == nil {
		cfg.Scoring.RingSize.Bands = scoring.DefaultRingBands()
	}

	// ── Network ───────────────────────────────────────────────────────────────
	if cfg.Network.CycleMode == "" {
		cfg.Network.CycleMode = string(network.CycleCover)
	}

	// ── Matcher ───────────────────────────────────────────────────────────────
	if cfg.Matcher.Kind == "" {
		cfg.Matcher.Kind = DefaultMatcherKind
	}
	if cfg.Matcher.PairRadius == 0 {
		cfg.Matcher.PairRadius = mcs.DefaultPairRadius
	}

	// ── Matrix ────────────────────────────────────────────────────────────────
	if cfg.Matrix.Parallelism == 0 {
		cfg.Matrix.Parallelism = DefaultParallelism
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = DefaultCachePrefix
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Output ────────────────────────────────────────────────────────────────
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Output.Name == "" {
		cfg.Output.Name = DefaultOutputName
	}
}

// setDefaults registers every scalar whose default is not its zero value.
// Registration also makes the key visible to AutomaticEnv.
func setDefaults(v *viper.Viper) {
	s := scoring.DefaultConfig()

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("scoring.mode", string(s.Mode))
	v.SetDefault("scoring.lambda", s.Lambda)
	v.SetDefault("scoring.min_atoms.enabled", s.MinAtoms.Enabled)
	v.SetDefault("scoring.min_atoms.fraction", s.MinAtoms.Fraction)
	v.SetDefault("scoring.min_atoms.count", s.MinAtoms.Count)
	v.SetDefault("scoring.substitution.enabled", s.Substitution.Enabled)
	v.SetDefault("scoring.substitution.default", s.Substitution.Default)
	for key, t := range map[string]scoring.Toggle{
		"heterocycle":    s.Heterocycle,
		"sulfonamide":    s.Sulfonamide,
		"methyl_to_ring": s.MethylToRing,
		"hybridization":  s.Hybridization,
	} {
		v.SetDefault("scoring."+key+".enabled", t.Enabled)
		v.SetDefault("scoring."+key+".weight", t.Weight)
	}
	v.SetDefault("scoring.ring_size.enabled", s.RingSize.Enabled)
	v.SetDefault("scoring.charge.enabled", s.Charge.Enabled)
	v.SetDefault("scoring.charge.mismatch_score", s.Charge.MismatchScore)
	v.SetDefault("scoring.three_d.enabled", s.ThreeD.Enabled)
	v.SetDefault("scoring.three_d.max_distance", s.ThreeD.MaxDistance)

	v.SetDefault("network.cutoff", network.DefaultCutoff)
	v.SetDefault("network.hub", "")
	v.SetDefault("network.cycle_redundancy", true)
	v.SetDefault("network.cycle_mode", string(network.CycleCover))
	v.SetDefault("network.max_degree", 0)
	v.SetDefault("network.cycle_edge_budget", 0)
	v.SetDefault("network.links_file", "")

	v.SetDefault("matcher.kind", DefaultMatcherKind)
	v.SetDefault("matcher.time_budget", DefaultTimeBudget)
	v.SetDefault("matcher.pair_radius", mcs.DefaultPairRadius)
	v.SetDefault("matcher.correspondences", "")

	v.SetDefault("matrix.parallelism", DefaultParallelism)

	v.SetDefault("cache.backend", DefaultCacheBackend)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.prefix", DefaultCachePrefix)
	v.SetDefault("cache.redis.mode", "standalone")
	v.SetDefault("cache.redis.addr", "localhost:6379")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.name", DefaultOutputName)
	v.SetDefault("output.yaml", false)
}
