package perturbation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/mcs"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// MatrixBuilder scores every unordered ligand pair exactly once.
type MatrixBuilder struct {
	engine      *scoring.Engine
	matcher     mcs.Matcher
	matcherName string
	matcherKey  string
	cache       ScoreCache
	metrics     *prometheus.NetworkMetrics
	logger      logging.Logger
	parallelism int
	timeBudget  time.Duration
}

// MatrixOption configures a MatrixBuilder.
type MatrixOption func(*MatrixBuilder)

// WithParallelism sets the worker count.  Values below one mean one.
func WithParallelism(k int) MatrixOption {
	return func(b *MatrixBuilder) {
		if k < 1 {
			k = 1
		}
		b.parallelism = k
	}
}

// WithTimeBudget bounds each structure match.
func WithTimeBudget(d time.Duration) MatrixOption {
	return func(b *MatrixBuilder) { b.timeBudget = d }
}

func WithCache(c ScoreCache) MatrixOption {
	return func(b *MatrixBuilder) { b.cache = c }
}

func WithMetrics(m *prometheus.NetworkMetrics) MatrixOption {
	return func(b *MatrixBuilder) {
		if m != nil {
			b.metrics = m
		}
	}
}

func WithLogger(l logging.Logger) MatrixOption {
	return func(b *MatrixBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMatcherName labels pair metrics.
func WithMatcherName(name string) MatrixOption {
	return func(b *MatrixBuilder) { b.matcherName = name }
}

// WithMatcherKey overrides the matcher identity folded into cache keys.  The
// default is mcs.IdentityOf(matcher).
func WithMatcherKey(key string) MatrixOption {
	return func(b *MatrixBuilder) {
		if key != "" {
			b.matcherKey = key
		}
	}
}

// NewMatrixBuilder returns a sequential builder unless WithParallelism says
// otherwise.
func NewMatrixBuilder(engine *scoring.Engine, matcher mcs.Matcher, opts ...MatrixOption) (*MatrixBuilder, error) {
	if engine == nil {
		return nil, errors.New(errors.ErrCodeRuleConfigInvalid, "scoring engine is nil")
	}
	if matcher == nil {
		return nil, errors.New(errors.ErrCodeMatchFailure, "structure matcher is nil")
	}
	b := &MatrixBuilder{
		engine:      engine,
		matcher:     matcher,
		matcherName: "custom",
		matcherKey:  mcs.IdentityOf(matcher),
		metrics:     prometheus.NewNopMetrics(),
		logger:      logging.NewNopLogger(),
		parallelism: 1,
	}
	for _, o := range opts {
		o(b)
	}
	b.logger = b.logger.Named("matrix")
	return b, nil
}

// Parallelism returns the configured worker count.
func (b *MatrixBuilder) Parallelism() int { return b.parallelism }

// scored is one worker output, merged by pair key.
type scored struct {
	key    int
	result scoring.Result
}

// Build scores the collection.  Any pair failure aborts the build and the
// first error is returned; no partial matrix is ever returned.
func (b *MatrixBuilder) Build(ctx context.Context, c *ligand.Collection) (*ScoreMatrix, error) {
	if c == nil {
		return nil, errors.New(errors.ErrCodeLigandType, "collection is nil")
	}
	ligands := c.Ligands()
	n := len(ligands)
	pairs := pairsOf(n)
	m := newScoreMatrix(n)

	workers := b.parallelism
	if workers > len(pairs) {
		workers = len(pairs)
	}
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	b.logger.Info("building score matrix",
		logging.Int("ligands", n),
		logging.Int("pairs", len(pairs)),
		logging.Int("workers", workers))

	var err error
	if workers == 1 {
		err = b.sequential(ctx, ligands, pairs, m)
	} else {
		err = b.parallel(ctx, ligands, pairs, m, workers)
	}
	if err != nil {
		b.logger.Error("score matrix build aborted", logging.Err(err))
		return nil, err
	}

	elapsed := time.Since(start)
	prometheus.RecordMatrixBuild(b.metrics, workers, elapsed)
	b.logger.Info("score matrix built", logging.Int("pairs", len(pairs)), logging.Duration("elapsed", elapsed))
	return m, nil
}

func (b *MatrixBuilder) sequential(ctx context.Context, ligands []*ligand.Ligand, pairs []Pair, m *ScoreMatrix) error {
	for _, p := range pairs {
		r, err := b.ScorePair(ctx, ligands[p.I], ligands[p.J])
		if err != nil {
			return err
		}
		m.results[pairIndex(m.n, p.I, p.J)] = r
	}
	return nil
}

// parallel splits pairs into contiguous chunks, one per worker.  Workers
// write only to their own slice; the matrix is filled after Wait.
func (b *MatrixBuilder) parallel(ctx context.Context, ligands []*ligand.Ligand, pairs []Pair, m *ScoreMatrix, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	outputs := make([][]scored, workers)
	chunk := (len(pairs) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(pairs) {
			hi = len(pairs)
		}
		if lo >= hi {
			continue
		}
		w, part := w, pairs[lo:hi]
		g.Go(func() error {
			out := make([]scored, 0, len(part))
			for _, p := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := b.ScorePair(gctx, ligands[p.I], ligands[p.J])
				if err != nil {
					return err
				}
				out = append(out, scored{key: pairIndex(m.n, p.I, p.J), result: r})
			}
			outputs[w] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outputs {
		for _, s := range out {
			m.results[s.key] = s.result
		}
	}
	return nil
}

// ScorePair matches and scores one ordered pair, through the cache when one
// is configured.
func (b *MatrixBuilder) ScorePair(ctx context.Context, x, y *ligand.Ligand) (scoring.Result, error) {
	start := time.Now()
	compute := func(ctx context.Context) (scoring.Result, error) {
		return b.compute(ctx, x, y)
	}

	var (
		r   scoring.Result
		err error
	)
	if b.cache != nil {
		var hit bool
		r, hit, err = b.cache.GetOrCompute(ctx, CacheKey(b.engine.ConfigHash(), b.matcherKey, x, y), compute)
		if err == nil {
			prometheus.RecordCacheAccess(b.metrics, b.cache.Backend(), hit)
		}
	} else {
		r, err = compute(ctx)
	}

	outcome := prometheus.OutcomeScored
	switch {
	case errors.IsMatchTimeout(err):
		outcome = prometheus.OutcomeTimeout
	case err != nil:
		outcome = prometheus.OutcomeFailed
	case r.Vetoed:
		outcome = prometheus.OutcomeVetoed
	}
	prometheus.RecordPair(b.metrics, b.matcherName, outcome, time.Since(start))
	return r, err
}

func (b *MatrixBuilder) compute(ctx context.Context, x, y *ligand.Ligand) (scoring.Result, error) {
	three := b.engine.Config().ThreeD
	opts := mcs.Options{
		TimeBudget:    b.timeBudget,
		Use3D:         three.Enabled,
		Max3DDistance: three.MaxDistance,
	}
	corr, err := b.matcher.Match(ctx, x, y, opts)
	if err != nil {
		return scoring.Result{}, pairError(err, x, y)
	}
	r, err := b.engine.Score(corr, x, y)
	if err != nil {
		return scoring.Result{}, pairError(err, x, y)
	}
	b.logger.Debug("pair scored",
		logging.Pair(x.ID, y.ID),
		logging.Float64("score", r.Score),
		logging.Int("mcs_size", r.MCSSize))
	return r, nil
}

// pairError keeps the kind of err and names the pair.
func pairError(err error, x, y *ligand.Ligand) error {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeMatchFailure
	}
	return errors.Wrap(err, code, fmt.Sprintf("pair %s/%s", x.Name, y.Name))
}
