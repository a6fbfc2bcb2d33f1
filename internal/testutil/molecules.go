package testutil

import (
	"fmt"
	"math"
	"strings"
)

// AtomSpec is one atom of a hand-built molecule.
type AtomSpec struct {
	Element string
	X, Y, Z float64
	Charge  int
	Parity  int
}

// BondSpec joins two zero-based atom indices.
type BondSpec struct {
	From, To, Order int
}

// MolSpec is a minimal builder that renders V2000 molfiles for tests.
type MolSpec struct {
	Title string
	Atoms []AtomSpec
	Bonds []BondSpec
}

// AddAtom appends an atom and returns its index.
func (m *MolSpec) AddAtom(element string, x, y, z float64) int {
	m.Atoms = append(m.Atoms, AtomSpec{Element: element, X: x, Y: y, Z: z})
	return len(m.Atoms) - 1
}

// AddBond appends a bond.
func (m *MolSpec) AddBond(from, to, order int) {
	m.Bonds = append(m.Bonds, BondSpec{From: from, To: to, Order: order})
}

// MolBlock renders the molecule as a V2000 molfile.  Charges are written as
// M  CHG lines.
func (m *MolSpec) MolBlock() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n  ligandnet-test\n\n", m.Title)
	fmt.Fprintf(&sb, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(m.Atoms), len(m.Bonds))
	var charged []int
	for i, a := range m.Atoms {
		fmt.Fprintf(&sb, "%10.4f%10.4f%10.4f %-3s 0  0%3d  0  0  0  0  0  0  0  0  0\n", a.X, a.Y, a.Z, a.Element, a.Parity)
		if a.Charge != 0 {
			charged = append(charged, i)
		}
	}
	for _, b := range m.Bonds {
		fmt.Fprintf(&sb, "%3d%3d%3d  0\n", b.From+1, b.To+1, b.Order)
	}
	if len(charged) > 0 {
		fmt.Fprintf(&sb, "M  CHG%3d", len(charged))
		for _, i := range charged {
			fmt.Fprintf(&sb, " %3d %3d", i+1, m.Atoms[i].Charge)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("M  END\n")
	return sb.String()
}

// SDF renders the molecules as one SD file.
func SDF(mols ...*MolSpec) string {
	var sb strings.Builder
	for _, m := range mols {
		sb.WriteString(m.MolBlock())
		sb.WriteString("$$$$\n")
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Aligned fixtures
// ─────────────────────────────────────────────────────────────────────────────
//
// Every fixture shares the same phenyl core, centred on the origin with atom 0
// on the +x axis, so coordinate matching pairs the cores exactly.

const (
	ringBond   = 1.40
	linkLength = 1.50
)

// Phenyl returns a Kekulé benzene ring (6 heavy atoms).
func Phenyl() *MolSpec {
	m := &MolSpec{Title: "phenyl"}
	for k := 0; k < 6; k++ {
		ang := float64(k) * math.Pi / 3
		m.AddAtom("C", ringBond*math.Cos(ang), ringBond*math.Sin(ang), 0)
	}
	for k := 0; k < 6; k++ {
		order := 1
		if k%2 == 0 {
			order = 2
		}
		m.AddBond(k, (k+1)%6, order)
	}
	return m
}

// Substituted returns phenyl with a single atom of element attached to atom 0.
func Substituted(title, element string) *MolSpec {
	m := Phenyl()
	m.Title = title
	sub := m.AddAtom(element, ringBond+linkLength, 0, 0)
	m.AddBond(0, sub, 1)
	return m
}

// PhenylRing returns phenyl with a ring attached at atom 0.  elements lists
// the ring members starting at the attachment atom; aromatic rings receive
// Kekulé double bonds.
func PhenylRing(title string, elements []string, aromatic bool) *MolSpec {
	m := Phenyl()
	m.Title = title
	AttachRing(m, 0, elements, aromatic)
	return m
}

// AttachRing builds a regular ring whose first member is bonded to anchor,
// extending along +x from the anchor.  It returns the ring member indices.
func AttachRing(m *MolSpec, anchor int, elements []string, aromatic bool) []int {
	n := len(elements)
	radius := ringBond / (2 * math.Sin(math.Pi/float64(n)))
	ax := m.Atoms[anchor].X
	cx := ax + linkLength + radius
	idx := make([]int, n)
	for k, el := range elements {
		ang := math.Pi + 2*math.Pi*float64(k)/float64(n)
		idx[k] = m.AddAtom(el, cx+radius*math.Cos(ang), radius*math.Sin(ang), 0)
	}
	m.AddBond(anchor, idx[0], 1)
	orders := ringOrders(elements, aromatic)
	for k := 0; k < n; k++ {
		m.AddBond(idx[k], idx[(k+1)%n], orders[k])
	}
	return idx
}

// ringOrders places Kekulé double bonds.  Six-membered rings alternate; in
// five-membered rings the single heteroatom (or the last member) is left
// saturated.
func ringOrders(elements []string, aromatic bool) []int {
	n := len(elements)
	orders := make([]int, n)
	for k := range orders {
		orders[k] = 1
	}
	if !aromatic {
		return orders
	}
	switch n {
	case 6:
		for k := 0; k < n; k += 2 {
			orders[k] = 2
		}
	case 5:
		sat := n - 1
		for k, el := range elements {
			if el != "C" && k > 0 {
				sat = k
				break
			}
		}
		// members sat+1..sat+4 carry two doubles: (sat+1,sat+2) and (sat+3,sat+4)
		orders[(sat+1)%n] = 2
		orders[(sat+3)%n] = 2
	}
	return orders
}
