package mcs

import (
	"context"
	"sort"
	"strconv"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// DefaultPairRadius is the largest distance, in Å, at which two atoms of
// pre-aligned ligands are considered the same position.
const DefaultPairRadius = 1.0

// CoordinateMatcher maps heavy atoms of pre-aligned ligands by proximity.
// Ring atoms only map to ring atoms, rings are kept only when completely
// mapped onto a ring of the same size, and stereocentres whose declared
// parities disagree are unmapped.  The result is reduced to its largest
// bond-connected component.
type CoordinateMatcher struct {
	pairRadius float64
	logger     logging.Logger
}

// CoordinateOption configures a CoordinateMatcher.
type CoordinateOption func(*CoordinateMatcher)

// WithPairRadius overrides DefaultPairRadius.
func WithPairRadius(r float64) CoordinateOption {
	return func(m *CoordinateMatcher) {
		if r > 0 {
			m.pairRadius = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) CoordinateOption {
	return func(m *CoordinateMatcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewCoordinateMatcher creates a CoordinateMatcher.
func NewCoordinateMatcher(opts ...CoordinateOption) *CoordinateMatcher {
	m := &CoordinateMatcher{pairRadius: DefaultPairRadius, logger: logging.NewNopLogger()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Identity implements Identifier.
func (m *CoordinateMatcher) Identity() string {
	return "coordinate:r=" + strconv.FormatFloat(m.pairRadius, 'g', -1, 64) + ":stereo"
}

// Match implements Matcher.
func (m *CoordinateMatcher) Match(ctx context.Context, a, b *ligand.Ligand, opts Options) (*Correspondence, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	return Timed(ctx, opts.TimeBudget, func(ctx context.Context) (*Correspondence, error) {
		return m.match(ctx, a, b)
	})
}

func checkInputs(a, b *ligand.Ligand) error {
	for _, l := range []*ligand.Ligand{a, b} {
		if err := l.Validate(); err != nil {
			return err
		}
		if l.HeavyAtomCount() == 0 {
			return errors.New(errors.ErrCodeLigandInput, "ligand has no heavy atoms").WithDetail("name=" + l.Name)
		}
	}
	return nil
}

type candidate struct {
	a, b int
	dist float64
}

func (m *CoordinateMatcher) match(ctx context.Context, a, b *ligand.Ligand) (*Correspondence, error) {
	var cands []candidate
	for i := range a.Atoms {
		ai := a.Atoms[i]
		if !ai.Heavy {
			continue
		}
		for j := range b.Atoms {
			bj := b.Atoms[j]
			if !bj.Heavy || ai.InRing != bj.InRing {
				continue
			}
			if d := ai.Distance(bj); d <= m.pairRadius {
				cands = append(cands, candidate{a: i, b: j, dist: d})
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	sort.Slice(cands, func(x, y int) bool {
		if cands[x].dist != cands[y].dist {
			return cands[x].dist < cands[y].dist
		}
		if cands[x].a != cands[y].a {
			return cands[x].a < cands[y].a
		}
		return cands[x].b < cands[y].b
	})

	aToB := make(map[int]int)
	bToA := make(map[int]int)
	for _, c := range cands {
		if _, used := aToB[c.a]; used {
			continue
		}
		if _, used := bToA[c.b]; used {
			continue
		}
		aToB[c.a] = c.b
		bToA[c.b] = c.a
	}

	for pruneIncompleteRings(a, b, aToB, bToA) || pruneInvertedCentres(a, b, aToB, bToA) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	keep := largestComponent(a, b, aToB)
	pairs := make([]AtomPair, 0, len(keep))
	for _, ia := range keep {
		pairs = append(pairs, AtomPair{A: ia, B: aToB[ia]})
	}
	m.logger.Debug("coordinate match",
		logging.String("a", a.Name), logging.String("b", b.Name), logging.Int("size", len(pairs)))
	return NewCorrespondence(pairs)
}

// pruneIncompleteRings unmaps ring atoms none of whose rings is carried onto
// a same-size ring of the other ligand.  It reports whether anything changed.
func pruneIncompleteRings(a, b *ligand.Ligand, aToB, bToA map[int]int) bool {
	completeA := completeRings(a, b, aToB)
	completeB := completeRings(b, a, bToA)
	changed := false
	for ia, ib := range aToB {
		if a.Atoms[ia].InRing && (!completeA[ia] || !completeB[ib]) {
			delete(aToB, ia)
			delete(bToA, ib)
			changed = true
		}
	}
	return changed
}

// pruneInvertedCentres unmaps stereocentres whose molfile parities disagree
// once the neighbour numbering of a is carried onto b through the mapping.
// Centres whose heavy neighbours are not all mapped onto the partner's heavy
// neighbours cannot be compared and are left alone.
func pruneInvertedCentres(a, b *ligand.Ligand, aToB, bToA map[int]int) bool {
	var inverted []int
	for ia, ib := range aToB {
		if invertedCentre(a, b, ia, ib, aToB) {
			inverted = append(inverted, ia)
		}
	}
	for _, ia := range inverted {
		delete(bToA, aToB[ia])
		delete(aToB, ia)
	}
	return len(inverted) > 0
}

func invertedCentre(a, b *ligand.Ligand, ia, ib int, aToB map[int]int) bool {
	pa, pb := a.Atoms[ia].Parity, b.Atoms[ib].Parity
	if !definiteParity(pa) || !definiteParity(pb) {
		return false
	}
	na, nb := a.HeavyNeighbors(ia), b.HeavyNeighbors(ib)
	if len(na) != len(nb) {
		return false
	}
	sort.Ints(na)
	onB := make(map[int]bool, len(nb))
	for _, n := range nb {
		onB[n] = true
	}
	images := make([]int, len(na))
	for k, n := range na {
		img, ok := aToB[n]
		if !ok || !onB[img] {
			return false
		}
		images[k] = img
	}
	// Parity is defined over ascending neighbour indices, so an odd
	// reordering of the images flips a's parity into b's numbering.
	if oddPermutation(images) {
		pa = 3 - pa
	}
	return pa != pb
}

// definiteParity reports whether p is odd (1) or even (2).
func definiteParity(p int) bool { return p == 1 || p == 2 }

func oddPermutation(xs []int) bool {
	odd := false
	for i := range xs {
		for j := i + 1; j < len(xs); j++ {
			if xs[i] > xs[j] {
				odd = !odd
			}
		}
	}
	return odd
}

// completeRings marks atoms of src lying on at least one ring whose members
// are all mapped into a single ring of dst of the same size.
func completeRings(src, dst *ligand.Ligand, mapping map[int]int) map[int]bool {
	out := make(map[int]bool)
	for _, r := range src.Rings {
		images := make([]int, 0, r.Size())
		for _, idx := range r.Atoms {
			img, ok := mapping[idx]
			if !ok {
				break
			}
			images = append(images, img)
		}
		if len(images) != r.Size() {
			continue
		}
		for _, dr := range dst.Rings {
			if dr.Size() != r.Size() {
				continue
			}
			all := true
			for _, img := range images {
				if !dr.Contains(img) {
					all = false
					break
				}
			}
			if all {
				for _, idx := range r.Atoms {
					out[idx] = true
				}
				break
			}
		}
	}
	return out
}

// largestComponent returns the mapped atoms of a in the largest component
// connected by bonds present in both ligands.  Ties go to the component
// holding the lowest atom index.  The result is sorted.
func largestComponent(a, b *ligand.Ligand, aToB map[int]int) []int {
	mapped := make([]int, 0, len(aToB))
	for ia := range aToB {
		mapped = append(mapped, ia)
	}
	sort.Ints(mapped)

	seen := make(map[int]bool, len(mapped))
	var best []int
	for _, start := range mapped {
		if seen[start] {
			continue
		}
		comp := []int{start}
		seen[start] = true
		for k := 0; k < len(comp); k++ {
			cur := comp[k]
			for _, n := range a.Atoms[cur].Neighbors {
				nb, ok := aToB[n]
				if !ok || seen[n] || b.BondOrder(aToB[cur], nb) == 0 {
					continue
				}
				seen[n] = true
				comp = append(comp, n)
			}
		}
		if len(comp) > len(best) {
			best = comp
		}
	}
	sort.Ints(best)
	return best
}
