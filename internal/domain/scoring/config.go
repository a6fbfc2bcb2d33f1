package scoring

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/turtacn/ligandnet/pkg/errors"
)

// DefaultLambda is the fixed exponent scale shared by every rule.
const DefaultLambda = 0.1

// Mode selects which preset produces Result.Score.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeLoose  Mode = "loose"
)

// IsValid checks if the mode is valid.
func (m Mode) IsValid() bool { return m == ModeStrict || m == ModeLoose }

func (m Mode) String() string { return string(m) }

// ParseMode parses a string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m.IsValid() {
		return m, nil
	}
	return "", errors.New(errors.ErrCodeRuleConfigInvalid, "unsupported scoring mode: "+s)
}

// Toggle enables a penalty rule and sets its weight.
type Toggle struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Weight  float64 `mapstructure:"weight" yaml:"weight"`
}

// MinAtomsRule vetoes pairs whose shared substructure is too small.  Either
// bound may be disabled by setting it to zero.
type MinAtomsRule struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Fraction of the smaller ligand's heavy-atom count.
	Fraction float64 `mapstructure:"fraction" yaml:"fraction"`
	// Count is an absolute floor, applied only when either ligand has at
	// least Count heavy atoms.
	Count int `mapstructure:"count" yaml:"count"`
}

// SubstitutionWeight is one entry of the element substitution table.  The
// entry is symmetric in A and B.
type SubstitutionWeight struct {
	A      string  `mapstructure:"a" yaml:"a"`
	B      string  `mapstructure:"b" yaml:"b"`
	Weight float64 `mapstructure:"weight" yaml:"weight"`
}

// SubstitutionRule penalizes mapped atom pairs with differing elements.
type SubstitutionRule struct {
	Enabled bool                 `mapstructure:"enabled" yaml:"enabled"`
	Default float64              `mapstructure:"default" yaml:"default"`
	Table   []SubstitutionWeight `mapstructure:"table" yaml:"table"`
}

// RingBand is an inclusive ring-size range; Max of zero means unbounded.
type RingBand struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

// Contains reports whether size falls in the band.
func (b RingBand) Contains(size int) bool {
	return size >= b.Min && (b.Max == 0 || size <= b.Max)
}

// RingSizeRule vetoes mappings that turn a ring of one band into another.
type RingSizeRule struct {
	Enabled bool       `mapstructure:"enabled" yaml:"enabled"`
	Bands   []RingBand `mapstructure:"bands" yaml:"bands"`
}

// ChargeRule multiplies the score by MismatchScore when net charges differ.
type ChargeRule struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	MismatchScore float64 `mapstructure:"mismatch_score" yaml:"mismatch_score"`
}

// ThreeD clips mapped pairs farther apart than MaxDistance before scoring.
type ThreeD struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxDistance float64 `mapstructure:"max_distance" yaml:"max_distance"`
}

// Config enumerates every rule of the pipeline.  It is validated once, when
// the Engine is built.
type Config struct {
	Mode          Mode             `mapstructure:"mode" yaml:"mode"`
	Lambda        float64          `mapstructure:"lambda" yaml:"lambda"`
	MinAtoms      MinAtomsRule     `mapstructure:"min_atoms" yaml:"min_atoms"`
	Substitution  SubstitutionRule `mapstructure:"substitution" yaml:"substitution"`
	Heterocycle   Toggle           `mapstructure:"heterocycle" yaml:"heterocycle"`
	Sulfonamide   Toggle           `mapstructure:"sulfonamide" yaml:"sulfonamide"`
	MethylToRing  Toggle           `mapstructure:"methyl_to_ring" yaml:"methyl_to_ring"`
	Hybridization Toggle           `mapstructure:"hybridization" yaml:"hybridization"`
	RingSize      RingSizeRule     `mapstructure:"ring_size" yaml:"ring_size"`
	Charge        ChargeRule       `mapstructure:"charge" yaml:"charge"`
	ThreeD        ThreeD           `mapstructure:"three_d" yaml:"three_d"`
}

// DefaultSubstitutionTable holds the calibrated halogen weights.
func DefaultSubstitutionTable() []SubstitutionWeight {
	return []SubstitutionWeight{
		{A: "F", B: "Cl", Weight: 0.5},
		{A: "Cl", B: "Br", Weight: 0.15},
		{A: "Cl", B: "I", Weight: 0.35},
		{A: "Br", B: "I", Weight: 0.15},
		{A: "F", B: "Br", Weight: 0.5},
		{A: "F", B: "I", Weight: 0.5},
	}
}

// DefaultRingBands separates three-, four- and five-or-more-membered rings.
func DefaultRingBands() []RingBand {
	return []RingBand{{Min: 3, Max: 3}, {Min: 4, Max: 4}, {Min: 5, Max: 0}}
}

// DefaultConfig returns the strict preset with every rule enabled.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeStrict,
		Lambda:        DefaultLambda,
		MinAtoms:      MinAtomsRule{Enabled: true, Fraction: 0.5, Count: 4},
		Substitution:  SubstitutionRule{Enabled: true, Default: 0.5, Table: DefaultSubstitutionTable()},
		Heterocycle:   Toggle{Enabled: true, Weight: 4},
		Sulfonamide:   Toggle{Enabled: true, Weight: 4},
		MethylToRing:  Toggle{Enabled: true, Weight: 4},
		Hybridization: Toggle{Enabled: true, Weight: 1},
		RingSize:      RingSizeRule{Enabled: true, Bands: DefaultRingBands()},
		Charge:        ChargeRule{Enabled: true, MismatchScore: 0},
		ThreeD:        ThreeD{Enabled: false, MaxDistance: 1000},
	}
}

// StrictConfig is DefaultConfig.
func StrictConfig() Config { return DefaultConfig() }

// LooseConfig is DefaultConfig reporting the loose preset as Score.
func LooseConfig() Config {
	c := DefaultConfig()
	c.Mode = ModeLoose
	return c
}

// Validate checks ranges and band ordering.
func (c Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Newf(errors.ErrCodeRuleConfigInvalid, format, args...)
	}
	if !c.Mode.IsValid() {
		return invalid("unsupported scoring mode %q", c.Mode)
	}
	if c.Lambda <= 0 {
		return invalid("lambda must be positive, got %g", c.Lambda)
	}
	if c.MinAtoms.Fraction < 0 || c.MinAtoms.Fraction > 1 {
		return invalid("min_atoms.fraction must be in [0, 1], got %g", c.MinAtoms.Fraction)
	}
	if c.MinAtoms.Count < 0 {
		return invalid("min_atoms.count must not be negative")
	}
	if c.Substitution.Default < 0 {
		return invalid("substitution.default must not be negative")
	}
	seen := make(map[[2]string]bool)
	for _, w := range c.Substitution.Table {
		if w.A == "" || w.B == "" || w.A == w.B {
			return invalid("substitution entry %s/%s must name two different elements", w.A, w.B)
		}
		if w.Weight < 0 {
			return invalid("substitution weight for %s/%s must not be negative", w.A, w.B)
		}
		k := elementKey(w.A, w.B)
		if seen[k] {
			return invalid("duplicate substitution entry %s/%s", w.A, w.B)
		}
		seen[k] = true
	}
	for name, t := range map[string]Toggle{
		"heterocycle": c.Heterocycle, "sulfonamide": c.Sulfonamide,
		"methyl_to_ring": c.MethylToRing, "hybridization": c.Hybridization,
	} {
		if t.Weight < 0 {
			return invalid("%s.weight must not be negative", name)
		}
	}
	if c.RingSize.Enabled {
		if len(c.RingSize.Bands) == 0 {
			return invalid("ring_size.bands must not be empty")
		}
		for i, b := range c.RingSize.Bands {
			if b.Min < 3 || (b.Max != 0 && b.Max < b.Min) {
				return invalid("ring band %d-%d is malformed", b.Min, b.Max)
			}
			if i > 0 {
				prev := c.RingSize.Bands[i-1]
				if prev.Max == 0 || prev.Max >= b.Min {
					return invalid("ring bands must be ascending and disjoint")
				}
			}
		}
	}
	if c.Charge.MismatchScore < 0 || c.Charge.MismatchScore > 1 {
		return invalid("charge.mismatch_score must be in [0, 1], got %g", c.Charge.MismatchScore)
	}
	if c.ThreeD.Enabled && c.ThreeD.MaxDistance <= 0 {
		return invalid("three_d.max_distance must be positive")
	}
	return nil
}

// Hash returns a short digest of the configuration.  Score caches include it
// in their keys so a change of weights never serves stale values.  Mode is
// excluded since both presets are computed on every call.
func (c Config) Hash() string {
	cp := c
	cp.Mode = ""
	cp.Substitution.Table = append([]SubstitutionWeight(nil), c.Substitution.Table...)
	sort.Slice(cp.Substitution.Table, func(i, j int) bool {
		ki, kj := elementKey(cp.Substitution.Table[i].A, cp.Substitution.Table[i].B), elementKey(cp.Substitution.Table[j].A, cp.Substitution.Table[j].B)
		if ki[0] != kj[0] {
			return ki[0] < kj[0]
		}
		return ki[1] < kj[1]
	})
	raw, err := yaml.Marshal(cp)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", cp))
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

func elementKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
