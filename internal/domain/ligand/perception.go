package ligand

import (
	"sort"
	"strconv"
	"strings"
)

// perceive fills the derived atom metadata: heavy flag, neighbours, ring
// membership, aromaticity and hybridization.  It is idempotent.
func perceive(l *Ligand) {
	l.bondIndex = make(map[[2]int]int, len(l.Bonds))
	for i := range l.Atoms {
		a := &l.Atoms[i]
		a.Index = i
		a.Element = normalizeElement(a.Element)
		a.Heavy = a.Element != "H" && a.Element != "D" && a.Element != "T"
		a.Neighbors = nil
		a.InRing, a.Aromatic, a.SmallestRing = false, false, 0
	}
	for k, b := range l.Bonds {
		l.bondIndex[bondKey(b.From, b.To)] = k
		l.Atoms[b.From].Neighbors = append(l.Atoms[b.From].Neighbors, b.To)
		l.Atoms[b.To].Neighbors = append(l.Atoms[b.To].Neighbors, b.From)
	}

	l.Rings = findRings(l)
	for ri := range l.Rings {
		l.Rings[ri].Aromatic = isAromaticRing(l, l.Rings[ri])
		for _, idx := range l.Rings[ri].Atoms {
			a := &l.Atoms[idx]
			a.InRing = true
			if a.SmallestRing == 0 || l.Rings[ri].Size() < a.SmallestRing {
				a.SmallestRing = l.Rings[ri].Size()
			}
			if l.Rings[ri].Aromatic {
				a.Aromatic = true
			}
		}
	}
	for _, b := range l.Bonds {
		if b.Order == BondAromatic {
			l.Atoms[b.From].Aromatic = true
			l.Atoms[b.To].Aromatic = true
		}
	}
	for i := range l.Atoms {
		l.Atoms[i].Hybridization = hybridizationOf(l, i)
	}
}

// findRings returns, for every bond that is not a bridge, the smallest cycle
// through it.  Duplicate cycles are collapsed.
func findRings(l *Ligand) []Ring {
	seen := make(map[string]bool)
	var rings []Ring
	for _, b := range l.Bonds {
		path := shortestPathAvoiding(l, b.From, b.To)
		if path == nil {
			continue
		}
		sort.Ints(path)
		key := ringKey(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		rings = append(rings, Ring{Atoms: path})
	}
	sort.SliceStable(rings, func(i, j int) bool {
		if rings[i].Size() != rings[j].Size() {
			return rings[i].Size() < rings[j].Size()
		}
		return ringKey(rings[i].Atoms) < ringKey(rings[j].Atoms)
	})
	return rings
}

// shortestPathAvoiding runs a BFS from src to dst that ignores the direct
// src-dst bond.  It returns the atoms on the path including both ends, or nil.
func shortestPathAvoiding(l *Ligand, src, dst int) []int {
	parent := make([]int, len(l.Atoms))
	for i := range parent {
		parent[i] = -1
	}
	parent[src] = src
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range l.Atoms[cur].Neighbors {
			if cur == src && n == dst {
				continue
			}
			if parent[n] != -1 {
				continue
			}
			parent[n] = cur
			if n == dst {
				path := []int{dst}
				for p := cur; p != src; p = parent[p] {
					path = append(path, p)
				}
				return append(path, src)
			}
			queue = append(queue, n)
		}
	}
	return nil
}

func ringKey(atoms []int) string {
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ",")
}

// isAromaticRing accepts rings written with aromatic bond orders and
// Kekulé-form five- and six-membered rings.  A six-membered ring is aromatic
// when every member has a double bond to another member; a five-membered ring
// when four members do and the fifth is N, O or S.
func isAromaticRing(l *Ligand, r Ring) bool {
	allAromatic := true
	for i, a := range r.Atoms {
		for _, b := range r.Atoms[i+1:] {
			if o := l.BondOrder(a, b); o != 0 && o != BondAromatic {
				allAromatic = false
			}
		}
	}
	if allAromatic {
		return true
	}

	var unsaturated int
	var lonePair int
	for _, a := range r.Atoms {
		if hasInRingDouble(l, r, a) {
			unsaturated++
			continue
		}
		switch l.Atoms[a].Element {
		case "N", "O", "S":
			lonePair++
		}
	}
	switch r.Size() {
	case 6:
		return unsaturated == 6
	case 5:
		return unsaturated == 4 && lonePair == 1
	}
	return false
}

func hasInRingDouble(l *Ligand, r Ring, idx int) bool {
	for _, n := range l.Atoms[idx].Neighbors {
		if !r.Contains(n) {
			continue
		}
		if o := l.BondOrder(idx, n); o == BondDouble || o == BondAromatic {
			return true
		}
	}
	return false
}

func hybridizationOf(l *Ligand, idx int) Hybridization {
	a := l.Atoms[idx]
	if !a.Heavy {
		return HybridUnspecified
	}
	var doubles, triples, aromatic int
	for _, n := range a.Neighbors {
		switch l.BondOrder(idx, n) {
		case BondDouble:
			doubles++
		case BondTriple:
			triples++
		case BondAromatic:
			aromatic++
		}
	}
	hypervalent := a.Element == "S" || a.Element == "P"
	switch {
	case hypervalent && doubles > 1:
		return HybridSP3
	case triples > 0 || doubles > 1:
		return HybridSP
	case doubles > 0 || aromatic > 0 || a.Aromatic:
		return HybridSP2
	default:
		return HybridSP3
	}
}

// normalizeElement turns "CL" or "cl" into "Cl".
func normalizeElement(e string) string {
	e = strings.TrimSpace(e)
	if e == "" {
		return e
	}
	return strings.ToUpper(e[:1]) + strings.ToLower(e[1:])
}
