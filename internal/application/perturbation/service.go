package perturbation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/turtacn/ligandnet/internal/config"
	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/mcs"
	"github.com/turtacn/ligandnet/internal/domain/network"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
	"github.com/turtacn/ligandnet/internal/infrastructure/database/redis"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// RecordsSuffix and YAMLSuffix are appended to the output name.
const (
	RecordsSuffix = "_score_with_connection.txt"
	YAMLSuffix    = "_network.yaml"
	MetricsSuffix = "_metrics.prom"
)

// RunRequest names the directory holding the ligand files.
type RunRequest struct {
	SourceDir string
}

// RunResult is everything a run produced.
type RunResult struct {
	RunID      string
	Collection *ligand.Collection
	Matrix     *ScoreMatrix
	Edges      []network.Edge
	Warnings   []string

	RecordsPath string
	YAMLPath    string
	MetricsPath string
}

// Names returns the ligand names in node order.
func (r *RunResult) Names() []string { return r.Collection.Names() }

// Service runs load, matrix, overrides, network and output in that order.
type Service struct {
	cfg     *config.Config
	logger  logging.Logger
	matcher mcs.Matcher
	cache   ScoreCache
}

// ServiceOption replaces a collaborator the configuration would build.
type ServiceOption func(*Service)

// UseMatcher bypasses matcher construction from configuration.
func UseMatcher(m mcs.Matcher) ServiceOption {
	return func(s *Service) { s.matcher = m }
}

// UseCache bypasses cache construction from configuration.
func UseCache(c ScoreCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// NewService validates cfg and returns a Service.
func NewService(cfg *config.Config, logger logging.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeValidation, "configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid configuration")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{cfg: cfg, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run builds the network for the ligands in req.SourceDir and writes the
// configured outputs.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString()}
	log := s.logger.With(logging.RunID(res.RunID))
	log.Info("run started", logging.String("source", req.SourceDir))

	engine, err := scoring.NewEngine(s.cfg.Scoring)
	if err != nil {
		return nil, err
	}

	collector, metrics, err := s.newMetrics()
	if err != nil {
		return nil, err
	}

	coll, err := ligand.NewLoader(log, s.cfg.Input.Patterns...).Load(ctx, req.SourceDir)
	if err != nil {
		return nil, err
	}
	res.Collection = coll
	metrics.LigandsLoaded.WithLabelValues().Set(float64(coll.Len()))

	matrix, err := s.buildMatrix(ctx, log, engine, metrics, coll)
	if err != nil {
		return nil, err
	}
	res.Matrix = matrix

	overrides, warnings, err := s.loadOverrides(coll)
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	for _, w := range warnings {
		log.Warn("link override skipped", logging.String("reason", w))
	}

	netCfg, err := s.cfg.ToNetwork(coll.Lookup)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNetworkConfig, "invalid network configuration")
	}
	edges, err := network.NewBuilder(log).Build(matrix, coll.Len(), netCfg, overrides)
	prometheus.RecordNetwork(metrics, countCandidates(edges, netCfg.Cutoff), len(network.Selected(edges)), countForced(edges), err)
	if err != nil {
		return nil, err
	}
	res.Edges = edges

	if err := s.writeOutputs(res, collector); err != nil {
		return nil, err
	}
	log.Info("run finished",
		logging.Int("ligands", coll.Len()),
		logging.Int("selected", len(network.Selected(edges))),
		logging.String("records", res.RecordsPath))
	return res, nil
}

// ScoreFiles scores the first ligand of each file against each other.
func (s *Service) ScoreFiles(ctx context.Context, pathA, pathB string) (scoring.Result, error) {
	engine, err := scoring.NewEngine(s.cfg.Scoring)
	if err != nil {
		return scoring.Result{}, err
	}
	a, err := firstLigand(pathA)
	if err != nil {
		return scoring.Result{}, err
	}
	b, err := firstLigand(pathB)
	if err != nil {
		return scoring.Result{}, err
	}
	matcher, name, err := s.newMatcher()
	if err != nil {
		return scoring.Result{}, err
	}
	mb, err := NewMatrixBuilder(engine, matcher,
		WithTimeBudget(s.cfg.Matcher.TimeBudget),
		WithMatcherName(name),
		WithLogger(s.logger))
	if err != nil {
		return scoring.Result{}, err
	}
	return mb.ScorePair(ctx, a, b)
}

func firstLigand(path string) (*ligand.Ligand, error) {
	ligs, err := ligand.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(ligs) == 0 {
		return nil, errors.New(errors.ErrCodeLigandIO, "no molecule in file").WithDetail("path=" + path)
	}
	return ligs[0], nil
}

func (s *Service) buildMatrix(ctx context.Context, log logging.Logger, engine *scoring.Engine, metrics *prometheus.NetworkMetrics, coll *ligand.Collection) (*ScoreMatrix, error) {
	matcher, name, err := s.newMatcher()
	if err != nil {
		return nil, err
	}
	cache, closeCache := s.newCache(log)
	defer closeCache()

	mb, err := NewMatrixBuilder(engine, matcher,
		WithParallelism(s.cfg.Matrix.Parallelism),
		WithTimeBudget(s.cfg.Matcher.TimeBudget),
		WithCache(cache),
		WithMetrics(metrics),
		WithLogger(log),
		WithMatcherName(name))
	if err != nil {
		return nil, err
	}
	return mb.Build(ctx, coll)
}

func (s *Service) newMatcher() (mcs.Matcher, string, error) {
	if s.matcher != nil {
		return s.matcher, "custom", nil
	}
	coord := mcs.NewCoordinateMatcher(
		mcs.WithPairRadius(s.cfg.Matcher.PairRadius),
		mcs.WithLogger(s.logger))
	if s.cfg.Matcher.Kind != config.MatcherStatic {
		return coord, config.MatcherCoordinate, nil
	}
	static, err := mcs.LoadStaticMatcher(s.cfg.Matcher.Correspondences, coord)
	if err != nil {
		return nil, "", err
	}
	return static, config.MatcherStatic, nil
}

// newCache never fails: an unreachable Redis only disables caching.
func (s *Service) newCache(log logging.Logger) (ScoreCache, func()) {
	noop := func() {}
	if s.cache != nil {
		return s.cache, noop
	}
	switch s.cfg.Cache.Backend {
	case config.CacheMemory:
		return NewMemoryCache(), noop
	case config.CacheRedis:
		rcfg := s.cfg.Cache.Redis
		client, err := redis.NewClient(&rcfg, log)
		if err != nil {
			log.Warn("redis score cache disabled", logging.Err(err))
			return nil, noop
		}
		rc := redis.NewRedisCache(client, log,
			redis.WithPrefix(s.cfg.Cache.Prefix),
			redis.WithDefaultTTL(s.cfg.Cache.TTL))
		return NewRedisScoreCache(rc, s.cfg.Cache.TTL, log), func() { _ = client.Close() }
	}
	return nil, noop
}

func (s *Service) newMetrics() (prometheus.MetricsCollector, *prometheus.NetworkMetrics, error) {
	if !s.cfg.Metrics.Enabled {
		return nil, prometheus.NewNopMetrics(), nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace: s.cfg.Metrics.Namespace,
	}, s.logger)
	if err != nil {
		return nil, nil, err
	}
	return collector, prometheus.NewNetworkMetrics(collector), nil
}

func (s *Service) loadOverrides(coll *ligand.Collection) ([]network.Override, []string, error) {
	path := s.cfg.Network.LinksFile
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeLigandIO, "cannot open links file").WithDetail("path=" + path)
	}
	defer f.Close()
	return network.ParseOverrides(f, coll.Lookup)
}

func (s *Service) writeOutputs(res *RunResult, collector prometheus.MetricsCollector) error {
	out := s.cfg.Output
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeLigandIO, "cannot create output directory").WithDetail("dir=" + out.Dir)
	}
	names := res.Names()

	res.RecordsPath = filepath.Join(out.Dir, out.Name+RecordsSuffix)
	if err := writeFile(res.RecordsPath, func(w io.Writer) error {
		return network.WriteRecords(w, res.Edges, names)
	}); err != nil {
		return err
	}

	if out.YAML {
		res.YAMLPath = filepath.Join(out.Dir, out.Name+YAMLSuffix)
		if err := writeFile(res.YAMLPath, func(w io.Writer) error {
			return network.WriteYAML(w, res.Edges, names)
		}); err != nil {
			return err
		}
	}

	if collector != nil {
		res.MetricsPath = s.cfg.Metrics.TextfilePath
		if res.MetricsPath == "" {
			res.MetricsPath = filepath.Join(out.Dir, out.Name+MetricsSuffix)
		}
		if err := collector.WriteTextfile(res.MetricsPath); err != nil {
			return errors.Wrap(err, errors.ErrCodeLigandIO, "cannot write metrics")
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLigandIO, "cannot create output file").WithDetail("path=" + path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrCodeLigandIO, fmt.Sprintf("cannot write %s", path))
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeLigandIO, fmt.Sprintf("cannot close %s", path))
	}
	return nil
}

func countCandidates(edges []network.Edge, cutoff float64) int {
	n := 0
	for _, e := range edges {
		if e.Score >= cutoff || e.Forced {
			n++
		}
	}
	return n
}

func countForced(edges []network.Edge) int {
	n := 0
	for _, e := range edges {
		if e.Forced {
			n++
		}
	}
	return n
}
