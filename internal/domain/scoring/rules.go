package scoring

import (
	"math"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/mcs"
)

// RuleName identifies one stage of the pipeline in Result.Breakdown.
type RuleName string

const (
	RuleRingSize      RuleName = "ring_size"
	RuleSizeRatio     RuleName = "size_ratio"
	RuleMinAtoms      RuleName = "min_atoms"
	RuleSubstitution  RuleName = "atomic_substitution"
	RuleHeterocycle   RuleName = "heterocycle"
	RuleSulfonamide   RuleName = "sulfonamide"
	RuleMethylToRing  RuleName = "methyl_to_ring"
	RuleHybridization RuleName = "hybridization"
	RuleCharge        RuleName = "charge"
)

// pairContext is the per-pair view shared by all rules.  corr holds only
// heavy-atom pairs and has already been clipped.
type pairContext struct {
	a, b   *ligand.Ligand
	corr   *mcs.Correspondence
	nA, nB int
	lambda float64
}

func (pc *pairContext) mappedA(i int) bool { _, ok := pc.corr.MappedA(i); return ok }
func (pc *pairContext) mappedB(j int) bool { _, ok := pc.corr.MappedB(j); return ok }

// Rule returns a multiplier in [0, 1].  Zero is a veto.
type Rule interface {
	Name() RuleName
	Evaluate(pc *pairContext) float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Size
// ─────────────────────────────────────────────────────────────────────────────

type sizeRatioRule struct{}

func (sizeRatioRule) Name() RuleName { return RuleSizeRatio }

func (sizeRatioRule) Evaluate(pc *pairContext) float64 {
	return math.Exp(-pc.lambda * float64(pc.nA+pc.nB-2*pc.corr.Size()))
}

type minAtomsRule struct{ cfg MinAtomsRule }

func (minAtomsRule) Name() RuleName { return RuleMinAtoms }

func (r minAtomsRule) Evaluate(pc *pairContext) float64 {
	m := pc.corr.Size()
	if r.cfg.Count > 0 && m < r.cfg.Count && (pc.nA >= r.cfg.Count || pc.nB >= r.cfg.Count) {
		return 0
	}
	smaller := pc.nA
	if pc.nB < smaller {
		smaller = pc.nB
	}
	if float64(m) < r.cfg.Fraction*float64(smaller) {
		return 0
	}
	return 1
}

// ─────────────────────────────────────────────────────────────────────────────
// Atomic substitution
// ─────────────────────────────────────────────────────────────────────────────

type substitutionRule struct {
	def   float64
	table map[[2]string]float64
}

func newSubstitutionRule(cfg SubstitutionRule) substitutionRule {
	t := make(map[[2]string]float64, len(cfg.Table))
	for _, w := range cfg.Table {
		t[elementKey(w.A, w.B)] = w.Weight
	}
	return substitutionRule{def: cfg.Default, table: t}
}

func (substitutionRule) Name() RuleName { return RuleSubstitution }

func (r substitutionRule) weight(x, y string) float64 {
	if w, ok := r.table[elementKey(x, y)]; ok {
		return w
	}
	return r.def
}

func (r substitutionRule) Evaluate(pc *pairContext) float64 {
	sum := 0.0
	for _, p := range pc.corr.Pairs {
		ea, eb := pc.a.Atoms[p.A].Element, pc.b.Atoms[p.B].Element
		if ea != eb {
			sum += r.weight(ea, eb)
		}
	}
	return math.Exp(-pc.lambda * sum)
}

// ─────────────────────────────────────────────────────────────────────────────
// Structural transformations
// ─────────────────────────────────────────────────────────────────────────────

// heterocycleRule penalizes growing an aromatic heterocycle other than a
// five-membered ring with a single O or N.
type heterocycleRule struct{ weight float64 }

func (heterocycleRule) Name() RuleName { return RuleHeterocycle }

func (r heterocycleRule) Evaluate(pc *pairContext) float64 {
	if grownHeterocycle(pc.a, pc.mappedA) || grownHeterocycle(pc.b, pc.mappedB) {
		return math.Exp(-pc.lambda * r.weight)
	}
	return 1
}

func grownHeterocycle(l *ligand.Ligand, mapped func(int) bool) bool {
	for _, ring := range l.Rings {
		if !ring.Aromatic {
			continue
		}
		complete := true
		var hetero []string
		for _, idx := range ring.Atoms {
			if !mapped(idx) {
				complete = false
			}
			if el := l.Atoms[idx].Element; el != "C" {
				hetero = append(hetero, el)
			}
		}
		if complete || len(hetero) == 0 {
			continue
		}
		tolerated := ring.Size() == 5 && len(hetero) == 1 && (hetero[0] == "O" || hetero[0] == "N")
		if !tolerated {
			return true
		}
	}
	return false
}

// sulfonamideRule penalizes a sulfonamide that is entirely unmapped, i.e.
// introduced in one step rather than grown.
type sulfonamideRule struct{ weight float64 }

func (sulfonamideRule) Name() RuleName { return RuleSulfonamide }

func (r sulfonamideRule) Evaluate(pc *pairContext) float64 {
	if unmappedSulfonamide(pc.a, pc.mappedA) || unmappedSulfonamide(pc.b, pc.mappedB) {
		return math.Exp(-pc.lambda * r.weight)
	}
	return 1
}

func unmappedSulfonamide(l *ligand.Ligand, mapped func(int) bool) bool {
	for i, a := range l.Atoms {
		if a.Element != "S" || mapped(i) {
			continue
		}
		var oxygens, nitrogens int
		clean := true
		for _, n := range a.Neighbors {
			switch l.Atoms[n].Element {
			case "O":
				oxygens++
			case "N":
				nitrogens++
			default:
				continue
			}
			if mapped(n) {
				clean = false
			}
		}
		if clean && oxygens >= 2 && nitrogens >= 1 {
			return true
		}
	}
	return false
}

// methylToRingRule penalizes mapping an acyclic carbon onto a ring atom.
type methylToRingRule struct{ weight float64 }

func (methylToRingRule) Name() RuleName { return RuleMethylToRing }

func (r methylToRingRule) Evaluate(pc *pairContext) float64 {
	for _, p := range pc.corr.Pairs {
		x, y := pc.a.Atoms[p.A], pc.b.Atoms[p.B]
		if acyclicCarbon(x) && y.InRing || acyclicCarbon(y) && x.InRing {
			return math.Exp(-pc.lambda * r.weight)
		}
	}
	return 1
}

func acyclicCarbon(a ligand.Atom) bool { return a.Element == "C" && !a.InRing }

type hybridizationRule struct{ weight float64 }

func (hybridizationRule) Name() RuleName { return RuleHybridization }

func (r hybridizationRule) Evaluate(pc *pairContext) float64 {
	count := 0
	for _, p := range pc.corr.Pairs {
		if pc.a.Atoms[p.A].Hybridization != pc.b.Atoms[p.B].Hybridization {
			count++
		}
	}
	return math.Exp(-r.weight * pc.lambda * float64(count))
}

type chargeRule struct{ mismatch float64 }

func (chargeRule) Name() RuleName { return RuleCharge }

func (r chargeRule) Evaluate(pc *pairContext) float64 {
	if pc.a.NetCharge() != pc.b.NetCharge() {
		return r.mismatch
	}
	return 1
}

// ─────────────────────────────────────────────────────────────────────────────
// Ring size gate
// ─────────────────────────────────────────────────────────────────────────────

// ringSizeRule vetoes a mapped pair when both atoms are ring atoms of
// incompatible bands, or when both grow an unmapped aliphatic ring of
// incompatible bands from the same mapped position.
type ringSizeRule struct{ bands []RingBand }

func (ringSizeRule) Name() RuleName { return RuleRingSize }

func (r ringSizeRule) band(size int) int {
	for i, b := range r.bands {
		if b.Contains(size) {
			return i
		}
	}
	return -size
}

func (r ringSizeRule) Evaluate(pc *pairContext) float64 {
	for _, p := range pc.corr.Pairs {
		x, y := pc.a.Atoms[p.A], pc.b.Atoms[p.B]
		if x.InRing && y.InRing && r.band(x.SmallestRing) != r.band(y.SmallestRing) {
			return 0
		}
		gx := grownRingSize(pc.a, p.A, pc.mappedA)
		gy := grownRingSize(pc.b, p.B, pc.mappedB)
		if gx > 0 && gy > 0 && r.band(gx) != r.band(gy) {
			return 0
		}
	}
	return 1
}

// grownRingSize returns the smallest ring size among unmapped, non-aromatic
// ring neighbours of idx, or 0 when there are none.
func grownRingSize(l *ligand.Ligand, idx int, mapped func(int) bool) int {
	best := 0
	for _, n := range l.Atoms[idx].Neighbors {
		a := l.Atoms[n]
		if mapped(n) || !a.InRing || a.Aromatic {
			continue
		}
		if best == 0 || a.SmallestRing < best {
			best = a.SmallestRing
		}
	}
	return best
}
