// Package perturbation orchestrates a network-building run: it scores every
// ligand pair into a ScoreMatrix, sequentially or across a worker pool, and
// hands the matrix to the network builder.
package perturbation

import (
	"math"

	"github.com/turtacn/ligandnet/internal/domain/scoring"
)

// Pair identifies an unordered ligand pair, I < J.
type Pair struct {
	I, J int
}

// ScoreMatrix holds the scoring result of every unordered pair of N ligands.
// It is immutable once built.
type ScoreMatrix struct {
	n       int
	results []scoring.Result
}

func newScoreMatrix(n int) *ScoreMatrix {
	return &ScoreMatrix{n: n, results: make([]scoring.Result, n*(n-1)/2)}
}

// pairIndex maps i < j onto the packed upper triangle.
func pairIndex(n, i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*n - i*(i+1)/2 + (j - i - 1)
}

// pairsOf lists every pair in ascending i, then ascending j.
func pairsOf(n int) []Pair {
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{I: i, J: j})
		}
	}
	return pairs
}

// N returns the number of ligands.
func (m *ScoreMatrix) N() int { return m.n }

// Pairs lists the scored pairs in matrix order.
func (m *ScoreMatrix) Pairs() []Pair { return pairsOf(m.n) }

func (m *ScoreMatrix) valid(i, j int) bool {
	return i != j && i >= 0 && j >= 0 && i < m.n && j < m.n
}

// At returns the configured-mode score of i and j.  The diagonal and
// out-of-range indices read as zero.
func (m *ScoreMatrix) At(i, j int) float64 {
	if !m.valid(i, j) {
		return 0
	}
	return m.results[pairIndex(m.n, i, j)].Score
}

// Strict returns the strict-preset score of i and j.
func (m *ScoreMatrix) Strict(i, j int) float64 {
	if !m.valid(i, j) {
		return 0
	}
	return m.results[pairIndex(m.n, i, j)].Strict
}

// Loose returns the loose-preset score of i and j.
func (m *ScoreMatrix) Loose(i, j int) float64 {
	if !m.valid(i, j) {
		return 0
	}
	return m.results[pairIndex(m.n, i, j)].Loose
}

// Result returns the full scoring result of i and j.
func (m *ScoreMatrix) Result(i, j int) (scoring.Result, bool) {
	if !m.valid(i, j) {
		return scoring.Result{}, false
	}
	return m.results[pairIndex(m.n, i, j)], true
}

// Equal reports whether both matrices hold bit-identical results.
func (m *ScoreMatrix) Equal(other *ScoreMatrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.n != other.n {
		return false
	}
	for k := range m.results {
		if !sameResult(m.results[k], other.results[k]) {
			return false
		}
	}
	return true
}

func sameResult(a, b scoring.Result) bool {
	if !sameFloat(a.Score, b.Score) || !sameFloat(a.Strict, b.Strict) || !sameFloat(a.Loose, b.Loose) {
		return false
	}
	if a.Vetoed != b.Vetoed || a.VetoedBy != b.VetoedBy || a.MCSSize != b.MCSSize ||
		a.ClippedSize != b.ClippedSize || a.Mapping != b.Mapping {
		return false
	}
	if len(a.Breakdown) != len(b.Breakdown) {
		return false
	}
	for name, v := range a.Breakdown {
		w, ok := b.Breakdown[name]
		if !ok || !sameFloat(v, w) {
			return false
		}
	}
	return true
}

func sameFloat(a, b float64) bool { return math.Float64bits(a) == math.Float64bits(b) }
