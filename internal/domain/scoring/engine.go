// Package scoring turns an atom correspondence between two ligands into a
// similarity score in [0, 1] by running a fixed pipeline of chemistry rules.
package scoring

import (
	"math"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/mcs"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// Result is the outcome of scoring one ordered pair.
type Result struct {
	// Score is Strict or Loose depending on the configured mode.
	Score  float64 `json:"score"`
	Strict float64 `json:"strict"`
	Loose  float64 `json:"loose"`

	// Breakdown holds the standalone factor of every enabled rule.
	Breakdown map[RuleName]float64 `json:"breakdown"`

	Vetoed   bool     `json:"vetoed,omitempty"`
	VetoedBy RuleName `json:"vetoed_by,omitempty"`

	MCSSize     int    `json:"mcs_size"`
	ClippedSize int    `json:"clipped_size"`
	Mapping     string `json:"mapping,omitempty"`
	// MappingAll adds the hydrogens carried by mapped heavy atoms.
	MappingAll string `json:"mapping_all,omitempty"`
}

// Engine scores pairs with a validated configuration.  It is immutable and
// safe for concurrent use.
type Engine struct {
	cfg   Config
	hash  string
	gate  Rule
	rules []Rule
	floor Rule
}

// NewEngine validates cfg and prepares the rule pipeline.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, hash: cfg.Hash()}
	if cfg.RingSize.Enabled {
		e.gate = ringSizeRule{bands: append([]RingBand(nil), cfg.RingSize.Bands...)}
	}
	e.rules = append(e.rules, sizeRatioRule{})
	if cfg.MinAtoms.Enabled {
		e.floor = minAtomsRule{cfg: cfg.MinAtoms}
	}
	if cfg.Substitution.Enabled {
		e.rules = append(e.rules, newSubstitutionRule(cfg.Substitution))
	}
	if cfg.Heterocycle.Enabled {
		e.rules = append(e.rules, heterocycleRule{weight: cfg.Heterocycle.Weight})
	}
	if cfg.Sulfonamide.Enabled {
		e.rules = append(e.rules, sulfonamideRule{weight: cfg.Sulfonamide.Weight})
	}
	if cfg.MethylToRing.Enabled {
		e.rules = append(e.rules, methylToRingRule{weight: cfg.MethylToRing.Weight})
	}
	if cfg.Hybridization.Enabled {
		e.rules = append(e.rules, hybridizationRule{weight: cfg.Hybridization.Weight})
	}
	if cfg.Charge.Enabled {
		e.rules = append(e.rules, chargeRule{mismatch: cfg.Charge.MismatchScore})
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// ConfigHash identifies the rule configuration for cache keys.
func (e *Engine) ConfigHash() string { return e.hash }

// Score evaluates corr between a and b.  A veto anywhere yields exactly 0
// in both presets, except the minimum-atoms floor which only zeroes Strict.
func (e *Engine) Score(corr *mcs.Correspondence, a, b *ligand.Ligand) (Result, error) {
	if err := checkInputs(corr, a, b); err != nil {
		return Result{}, err
	}

	heavy := corr.Heavy(a, b)
	res := Result{
		Breakdown: make(map[RuleName]float64, 9),
		MCSSize:   heavy.Size(),
		Mapping:   heavy.String(),
	}
	res.MappingAll = heavy.AllAtomMapping(a, b)
	if e.cfg.ThreeD.Enabled {
		heavy = heavy.ClipByDistance(a, b, e.cfg.ThreeD.MaxDistance)
	}
	res.ClippedSize = heavy.Size()

	pc := &pairContext{
		a: a, b: b, corr: heavy,
		nA: a.HeavyAtomCount(), nB: b.HeavyAtomCount(),
		lambda: e.cfg.Lambda,
	}

	if e.gate != nil {
		f := e.gate.Evaluate(pc)
		res.Breakdown[e.gate.Name()] = f
		if f == 0 {
			res.Vetoed, res.VetoedBy = true, e.gate.Name()
			return res, nil
		}
	}

	product := 1.0
	for _, r := range e.rules {
		f := r.Evaluate(pc)
		res.Breakdown[r.Name()] = f
		product *= f
		if f == 0 && !res.Vetoed {
			res.Vetoed, res.VetoedBy = true, r.Name()
		}
	}

	res.Loose = clamp(product)
	res.Strict = res.Loose
	if e.floor != nil {
		f := e.floor.Evaluate(pc)
		res.Breakdown[e.floor.Name()] = f
		if f == 0 {
			res.Strict = 0
			if e.cfg.Mode == ModeStrict && !res.Vetoed {
				res.Vetoed, res.VetoedBy = true, e.floor.Name()
			}
		}
	}

	res.Score = res.Strict
	if e.cfg.Mode == ModeLoose {
		res.Score = res.Loose
	}
	return res, nil
}

func checkInputs(corr *mcs.Correspondence, a, b *ligand.Ligand) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if corr == nil {
		return errors.New(errors.ErrCodeLigandInput, "correspondence is nil")
	}
	if a.HeavyAtomCount() == 0 || b.HeavyAtomCount() == 0 {
		return errors.Newf(errors.ErrCodeLigandInput, "pair %s/%s has a ligand without heavy atoms", a.Name, b.Name)
	}
	if err := corr.Validate(a, b); err != nil {
		return errors.Wrap(err, errors.ErrCodeLigandInput, "correspondence does not fit the ligand pair")
	}
	return nil
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
