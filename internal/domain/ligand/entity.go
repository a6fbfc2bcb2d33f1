// Package ligand provides the domain model for small-molecule ligands: atoms,
// bonds and perceived rings read from V2000 molfiles, plus the ordered,
// bounds-checked Collection the scoring and network layers operate over.
package ligand

import (
	"math"

	"github.com/turtacn/ligandnet/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value Objects
// ─────────────────────────────────────────────────────────────────────────────

// Hybridization is the perceived orbital hybridization of an atom.
type Hybridization int

const (
	HybridUnspecified Hybridization = iota
	HybridSP
	HybridSP2
	HybridSP3
)

func (h Hybridization) String() string {
	switch h {
	case HybridSP:
		return "SP"
	case HybridSP2:
		return "SP2"
	case HybridSP3:
		return "SP3"
	default:
		return "UNSPECIFIED"
	}
}

// Bond orders as written in the molfile bond block.
const (
	BondSingle   = 1
	BondDouble   = 2
	BondTriple   = 3
	BondAromatic = 4
)

// Atom carries the parsed fields of one atom line plus perceived metadata.
// Index is the zero-based position in the atom block.
type Atom struct {
	Index   int
	Element string
	Charge  int
	// Parity is the molfile stereo parity column: 0 none, 1 odd, 2 even, 3 either.
	Parity  int
	X, Y, Z float64

	Heavy         bool
	Aromatic      bool
	InRing        bool
	SmallestRing  int
	Hybridization Hybridization
	Neighbors     []int
}

// Distance returns the Euclidean distance between the coordinates of a and b.
func (a Atom) Distance(b Atom) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Bond joins two zero-based atom indices.
type Bond struct {
	From  int
	To    int
	Order int
}

// Ring is one smallest cycle found during perception.  Atoms are sorted.
type Ring struct {
	Atoms    []int
	Aromatic bool
}

// Size returns the ring member count.
func (r Ring) Size() int { return len(r.Atoms) }

// Contains reports whether atom idx is a ring member.
func (r Ring) Contains(idx int) bool {
	for _, a := range r.Atoms {
		if a == idx {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Ligand
// ─────────────────────────────────────────────────────────────────────────────

// Ligand is one loaded molecule with a stable identity.  ID is the ordinal
// inside the owning Collection and is rewritten only by Collection.Set and
// Collection.Append.
type Ligand struct {
	ID    int
	Name  string
	Path  string
	Title string

	Atoms []Atom
	Bonds []Bond
	Rings []Ring

	// Fingerprint is the hex blake3 digest of the structure and coordinates.
	Fingerprint string

	bondIndex map[[2]int]int
}

// NewLigand builds a Ligand from raw atoms and bonds and runs perception.
func NewLigand(name string, atoms []Atom, bonds []Bond) (*Ligand, error) {
	l := &Ligand{Name: name, Atoms: atoms, Bonds: bonds}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	perceive(l)
	l.Fingerprint = computeFingerprint(l)
	return l, nil
}

// Validate checks the structural contract expected by matchers: at least one
// atom and bonds that reference existing atoms.
func (l *Ligand) Validate() error {
	if l == nil {
		return errors.New(errors.ErrCodeLigandType, "ligand is nil")
	}
	if len(l.Atoms) == 0 {
		return errors.New(errors.ErrCodeLigandInput, "ligand has no atoms").WithDetail("name=" + l.Name)
	}
	for _, b := range l.Bonds {
		if b.From < 0 || b.From >= len(l.Atoms) || b.To < 0 || b.To >= len(l.Atoms) || b.From == b.To {
			return errors.Newf(errors.ErrCodeLigandInput, "bond %d-%d references a missing atom", b.From+1, b.To+1).
				WithDetail("name=" + l.Name)
		}
	}
	return nil
}

// HeavyAtomCount returns the number of non-hydrogen atoms.
func (l *Ligand) HeavyAtomCount() int {
	n := 0
	for i := range l.Atoms {
		if l.Atoms[i].Heavy {
			n++
		}
	}
	return n
}

// NetCharge sums formal charges over all atoms.
func (l *Ligand) NetCharge() int {
	q := 0
	for i := range l.Atoms {
		q += l.Atoms[i].Charge
	}
	return q
}

// BondOrder returns the order of the bond joining i and j, or 0 when unbonded.
func (l *Ligand) BondOrder(i, j int) int {
	if k, ok := l.bondIndex[bondKey(i, j)]; ok {
		return l.Bonds[k].Order
	}
	return 0
}

// HeavyNeighbors returns the heavy-atom neighbours of atom idx.
func (l *Ligand) HeavyNeighbors(idx int) []int {
	var out []int
	for _, n := range l.Atoms[idx].Neighbors {
		if l.Atoms[n].Heavy {
			out = append(out, n)
		}
	}
	return out
}

// RingsContaining returns every perceived ring that includes atom idx.
func (l *Ligand) RingsContaining(idx int) []Ring {
	var out []Ring
	for _, r := range l.Rings {
		if r.Contains(idx) {
			out = append(out, r)
		}
	}
	return out
}

// withID returns a shallow copy carrying a new ordinal.
func (l *Ligand) withID(id int) *Ligand {
	cp := *l
	cp.ID = id
	return &cp
}

func bondKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}
