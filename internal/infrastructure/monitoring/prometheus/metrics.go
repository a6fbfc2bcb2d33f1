package prometheus

import (
	"time"
)

// Pair outcomes recorded by PairsScoredTotal.
const (
	OutcomeScored  = "scored"
	OutcomeVetoed  = "vetoed"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
)

// NetworkMetrics holds every metric of a network-building run.
type NetworkMetrics struct {
	// Matrix
	PairsScoredTotal    CounterVec
	PairScoreDuration   HistogramVec
	MatrixBuildDuration HistogramVec
	MatrixWorkers       GaugeVec

	// Cache
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	// Network
	LigandsLoaded GaugeVec
	NetworkEdges  GaugeVec
	NetworkBuilds CounterVec
}

// Default Buckets
var (
	DefaultPairDurationBuckets   = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 20}
	DefaultMatrixDurationBuckets = []float64{.01, .1, 1, 5, 10, 30, 60, 300, 900, 3600}
)

// NewNetworkMetrics registers all metrics on collector.
func NewNetworkMetrics(collector MetricsCollector) *NetworkMetrics {
	m := &NetworkMetrics{}

	m.PairsScoredTotal = collector.RegisterCounter("pairs_scored_total", "Ligand pairs scored", "outcome")
	m.PairScoreDuration = collector.RegisterHistogram("pair_score_duration_seconds", "Structure match plus rule evaluation per pair", DefaultPairDurationBuckets, "matcher")
	m.MatrixBuildDuration = collector.RegisterHistogram("matrix_build_duration_seconds", "Score matrix build duration", DefaultMatrixDurationBuckets, "mode")
	m.MatrixWorkers = collector.RegisterGauge("matrix_workers", "Workers used by the last matrix build")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Score cache hits", "backend")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Score cache misses", "backend")

	m.LigandsLoaded = collector.RegisterGauge("ligands_loaded", "Ligands in the collection")
	m.NetworkEdges = collector.RegisterGauge("network_edges", "Edges of the last network", "state")
	m.NetworkBuilds = collector.RegisterCounter("network_builds_total", "Network builds", "status")

	return m
}

// NewNopMetrics returns metrics backed by no-op vectors.
func NewNopMetrics() *NetworkMetrics {
	return &NetworkMetrics{
		PairsScoredTotal:    noopCounterVec{},
		PairScoreDuration:   noopHistogramVec{},
		MatrixBuildDuration: noopHistogramVec{},
		MatrixWorkers:       noopGaugeVec{},
		CacheHitsTotal:      noopCounterVec{},
		CacheMissesTotal:    noopCounterVec{},
		LigandsLoaded:       noopGaugeVec{},
		NetworkEdges:        noopGaugeVec{},
		NetworkBuilds:       noopCounterVec{},
	}
}

// Helpers

func RecordPair(m *NetworkMetrics, matcher, outcome string, d time.Duration) {
	m.PairsScoredTotal.WithLabelValues(outcome).Inc()
	m.PairScoreDuration.WithLabelValues(matcher).Observe(d.Seconds())
}

func RecordCacheAccess(m *NetworkMetrics, backend string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(backend).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(backend).Inc()
	}
}

func RecordMatrixBuild(m *NetworkMetrics, workers int, d time.Duration) {
	mode := "sequential"
	if workers > 1 {
		mode = "parallel"
	}
	m.MatrixWorkers.WithLabelValues().Set(float64(workers))
	m.MatrixBuildDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func RecordNetwork(m *NetworkMetrics, candidates, selected, forced int, err error) {
	if err != nil {
		m.NetworkBuilds.WithLabelValues("failed").Inc()
		return
	}
	m.NetworkBuilds.WithLabelValues("ok").Inc()
	m.NetworkEdges.WithLabelValues("candidate").Set(float64(candidates))
	m.NetworkEdges.WithLabelValues("selected").Set(float64(selected))
	m.NetworkEdges.WithLabelValues("forced").Set(float64(forced))
}
