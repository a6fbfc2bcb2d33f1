// Package mcs defines the structure-matcher contract consumed by the scoring
// engine: an atom correspondence between two ligands, the options a matcher
// honours, and two adapters (coordinate-based and file-backed).
package mcs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// AtomPair maps atom A of the first ligand onto atom B of the second.
type AtomPair struct {
	A int `yaml:"a"`
	B int `yaml:"b"`
}

// Correspondence is a partial injective mapping between the atoms of two
// ligands.  It is valid only for the pair it was computed for.
type Correspondence struct {
	Pairs []AtomPair

	aToB map[int]int
	bToA map[int]int
}

// NewCorrespondence indexes pairs and rejects mappings that are not
// injective or use negative indices.
func NewCorrespondence(pairs []AtomPair) (*Correspondence, error) {
	c := &Correspondence{
		Pairs: make([]AtomPair, 0, len(pairs)),
		aToB:  make(map[int]int, len(pairs)),
		bToA:  make(map[int]int, len(pairs)),
	}
	for _, p := range pairs {
		if p.A < 0 || p.B < 0 {
			return nil, errors.Newf(errors.ErrCodeMatchFailure, "negative atom index in pair %d:%d", p.A, p.B)
		}
		if _, dup := c.aToB[p.A]; dup {
			return nil, errors.Newf(errors.ErrCodeMatchFailure, "atom %d of the first ligand is mapped twice", p.A)
		}
		if _, dup := c.bToA[p.B]; dup {
			return nil, errors.Newf(errors.ErrCodeMatchFailure, "atom %d of the second ligand is mapped twice", p.B)
		}
		c.aToB[p.A] = p.B
		c.bToA[p.B] = p.A
		c.Pairs = append(c.Pairs, p)
	}
	return c, nil
}

func mustCorrespondence(pairs []AtomPair) *Correspondence {
	c, err := NewCorrespondence(pairs)
	if err != nil {
		panic(err)
	}
	return c
}

// Size returns the number of mapped pairs.
func (c *Correspondence) Size() int { return len(c.Pairs) }

// MappedA returns the image in the second ligand of atom a of the first.
func (c *Correspondence) MappedA(a int) (int, bool) {
	b, ok := c.aToB[a]
	return b, ok
}

// MappedB returns the preimage in the first ligand of atom b of the second.
func (c *Correspondence) MappedB(b int) (int, bool) {
	a, ok := c.bToA[b]
	return a, ok
}

// Validate checks every index against the two ligands.
func (c *Correspondence) Validate(a, b *ligand.Ligand) error {
	for _, p := range c.Pairs {
		if p.A >= len(a.Atoms) || p.B >= len(b.Atoms) {
			return errors.Newf(errors.ErrCodeMatchFailure, "pair %d:%d outside ligands %s/%s", p.A, p.B, a.Name, b.Name)
		}
	}
	return nil
}

// Reverse swaps the roles of the two ligands, keeping pair order.
func (c *Correspondence) Reverse() *Correspondence {
	pairs := make([]AtomPair, len(c.Pairs))
	for i, p := range c.Pairs {
		pairs[i] = AtomPair{A: p.B, B: p.A}
	}
	return mustCorrespondence(pairs)
}

// Heavy keeps only pairs in which both atoms are heavy.
func (c *Correspondence) Heavy(a, b *ligand.Ligand) *Correspondence {
	return c.filter(func(p AtomPair) bool {
		return a.Atoms[p.A].Heavy && b.Atoms[p.B].Heavy
	})
}

// ClipByDistance drops pairs whose coordinates lie more than max apart.
func (c *Correspondence) ClipByDistance(a, b *ligand.Ligand, max float64) *Correspondence {
	return c.filter(func(p AtomPair) bool {
		return a.Atoms[p.A].Distance(b.Atoms[p.B]) <= max
	})
}

func (c *Correspondence) filter(keep func(AtomPair) bool) *Correspondence {
	out := make([]AtomPair, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return mustCorrespondence(out)
}

// HeavyAtomMapping renders heavy-atom pairs as "a:b" sorted by a.
func (c *Correspondence) HeavyAtomMapping(a, b *ligand.Ligand) string {
	return c.Heavy(a, b).String()
}

// WithHydrogens extends c with the hydrogens of every mapped heavy-atom pair.
// Hydrogens bonded to a mapped pair are matched in index order, as many as
// both atoms carry; atoms c already maps are left alone.
func (c *Correspondence) WithHydrogens(a, b *ligand.Ligand) *Correspondence {
	out := append([]AtomPair(nil), c.Pairs...)
	usedA := make(map[int]bool, len(c.aToB))
	usedB := make(map[int]bool, len(c.bToA))
	for _, p := range c.Pairs {
		usedA[p.A], usedB[p.B] = true, true
	}
	for _, p := range c.Pairs {
		if p.A >= len(a.Atoms) || p.B >= len(b.Atoms) || !a.Atoms[p.A].Heavy || !b.Atoms[p.B].Heavy {
			continue
		}
		ha, hb := hydrogens(a, p.A, usedA), hydrogens(b, p.B, usedB)
		for k := 0; k < len(ha) && k < len(hb); k++ {
			out = append(out, AtomPair{A: ha[k], B: hb[k]})
			usedA[ha[k]], usedB[hb[k]] = true, true
		}
	}
	return mustCorrespondence(out)
}

func hydrogens(l *ligand.Ligand, idx int, used map[int]bool) []int {
	var out []int
	for _, n := range l.Atoms[idx].Neighbors {
		if !l.Atoms[n].Heavy && !used[n] {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// AllAtomMapping renders the heavy-atom pairs and their hydrogens as "a:b"
// sorted by a.
func (c *Correspondence) AllAtomMapping(a, b *ligand.Ligand) string {
	return c.WithHydrogens(a, b).String()
}

// String renders all pairs as "a:b" sorted by a, comma separated.
func (c *Correspondence) String() string {
	pairs := append([]AtomPair(nil), c.Pairs...)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].A < pairs[j].A })
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%d:%d", p.A, p.B)
	}
	return strings.Join(parts, ",")
}
