// Package network selects the perturbation graph from a ligand score matrix:
// candidate filtering, a spanning backbone (maximum spanning tree or radial
// hub), optional cycle redundancy and link overrides.
package network

import (
	"strings"

	"github.com/turtacn/ligandnet/pkg/errors"
)

// NoHub disables the radial topology.
const NoHub = -1

// DefaultCutoff is the minimum score for a pair to be a candidate edge.
const DefaultCutoff = 0.4

// CycleMode selects how redundant edges are added after the backbone.
type CycleMode string

const (
	// CycleGreedy adds the best remaining candidates, highest score first,
	// subject to MaxDegree and CycleEdgeBudget.
	CycleGreedy CycleMode = "greedy"
	// CycleCover starts from every candidate and drops the weakest edges
	// while the graph stays connected and every node that lay on a cycle
	// still does.
	CycleCover CycleMode = "cover"
)

// ParseCycleMode accepts greedy or cover, case-insensitively.
func ParseCycleMode(s string) (CycleMode, error) {
	m := CycleMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case CycleGreedy, CycleCover:
		return m, nil
	}
	return "", errors.New(errors.ErrCodeNetworkConfig, "unsupported cycle mode: "+s)
}

// Config controls network construction.
type Config struct {
	Cutoff          float64
	Hub             int
	CycleRedundancy bool
	CycleMode       CycleMode
	// MaxDegree limits greedy cycle edges per node; 0 means unlimited.
	MaxDegree int
	// CycleEdgeBudget limits the number of greedy cycle edges; 0 means unlimited.
	CycleEdgeBudget int
}

// DefaultConfig returns cutoff 0.4, no hub and cycle cover redundancy.
func DefaultConfig() Config {
	return Config{
		Cutoff:          DefaultCutoff,
		Hub:             NoHub,
		CycleRedundancy: true,
		CycleMode:       CycleCover,
	}
}

// Validate checks cfg against a graph of n nodes.
func (c Config) Validate(n int) error {
	switch {
	case c.Cutoff < 0 || c.Cutoff > 1:
		return errors.Newf(errors.ErrCodeNetworkConfig, "cutoff must be in [0, 1], got %g", c.Cutoff)
	case c.Hub != NoHub && (c.Hub < 0 || c.Hub >= n):
		return errors.Newf(errors.ErrCodeNetworkConfig, "hub %d outside [0, %d)", c.Hub, n)
	case c.MaxDegree < 0 || c.CycleEdgeBudget < 0:
		return errors.New(errors.ErrCodeNetworkConfig, "max degree and cycle budget must not be negative")
	}
	if c.CycleRedundancy {
		if _, err := ParseCycleMode(string(c.CycleMode)); err != nil {
			return err
		}
	}
	return nil
}
