package mcs_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/mcs"
	"github.com/turtacn/ligandnet/internal/testutil"
	apperrors "github.com/turtacn/ligandnet/pkg/errors"
)

func load(t *testing.T, m *testutil.MolSpec) *ligand.Ligand {
	t.Helper()
	l, err := ligand.ParseMolBlock(m.Title+".sdf", strings.NewReader(m.MolBlock()))
	require.NoError(t, err)
	return l
}

var (
	furan       = []string{"C", "O", "C", "C", "C"}
	cyclobutane = []string{"C", "C", "C", "C"}
)

func TestCoordinateMatcher_Sizes(t *testing.T) {
	phenyl := load(t, testutil.Phenyl())
	toluyl := load(t, testutil.Substituted("toluyl", "C"))
	chloro := load(t, testutil.Substituted("chlorophenyl", "Cl"))
	pfuran := load(t, testutil.PhenylRing("phenylfuran", furan, true))
	pcb := load(t, testutil.PhenylRing("phenylcyclobutyl", cyclobutane, false))

	cases := []struct {
		name string
		a, b *ligand.Ligand
		want int
	}{
		{"phenyl-toluyl", phenyl, toluyl, 6},
		{"toluyl-chlorophenyl", toluyl, chloro, 7},
		{"phenyl-phenylfuran", phenyl, pfuran, 6},
		{"methyl does not map onto a ring atom", toluyl, pfuran, 6},
		{"partial rings are dropped", pcb, pfuran, 6},
		{"toluyl-phenylcyclobutyl", toluyl, pcb, 6},
	}
	m := mcs.NewCoordinateMatcher()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := m.Match(context.Background(), tc.a, tc.b, mcs.Options{TimeBudget: time.Second})
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Size())
			require.NoError(t, c.Validate(tc.a, tc.b))
		})
	}
}

func TestCoordinateMatcher_MappingString(t *testing.T) {
	phenyl := load(t, testutil.Phenyl())
	toluyl := load(t, testutil.Substituted("toluyl", "C"))
	c, err := mcs.NewCoordinateMatcher().Match(context.Background(), phenyl, toluyl, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, "0:0,1:1,2:2,3:3,4:4,5:5", c.HeavyAtomMapping(phenyl, toluyl))
}

func TestCoordinateMatcher_LargestComponent(t *testing.T) {
	// A shifted substituent that lines up by coordinates but is not bonded to
	// the mapped core in the other ligand must not be kept.
	a := testutil.Substituted("a", "C")
	b := testutil.Phenyl()
	b.Title = "b"
	b.AddAtom("C", 2.9, 0, 0) // same position as a's methyl, but unbonded
	la, lb := load(t, a), load(t, b)

	c, err := mcs.NewCoordinateMatcher().Match(context.Background(), la, lb, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, c.Size())
}

func TestCoordinateMatcher_PairRadius(t *testing.T) {
	a := testutil.Substituted("a", "Cl")
	b := testutil.Substituted("b", "Cl")
	b.Atoms[6].X += 0.6
	la, lb := load(t, a), load(t, b)

	c, err := mcs.NewCoordinateMatcher(mcs.WithPairRadius(0.5)).Match(context.Background(), la, lb, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, c.Size())

	c, err = mcs.NewCoordinateMatcher().Match(context.Background(), la, lb, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, c.Size())
}

// stereo returns phenyl carrying a CHFCl stereocentre drawn flat, so only the
// parity column tells the enantiomers apart.  swapped lists Cl before F.
func stereo(title string, parity int, swapped bool) *testutil.MolSpec {
	m := testutil.Phenyl()
	m.Title = title
	c := m.AddAtom("C", 2.9, 0, 0)
	m.Atoms[c].Parity = parity
	m.AddBond(0, c, 1)
	sub := func(el string, y float64) {
		m.AddBond(c, m.AddAtom(el, 3.65, y, 0), 1)
	}
	if swapped {
		sub("Cl", -1.3)
		sub("F", 1.3)
	} else {
		sub("F", 1.3)
		sub("Cl", -1.3)
	}
	return m
}

func TestCoordinateMatcher_Stereo(t *testing.T) {
	cases := []struct {
		name string
		a, b *testutil.MolSpec
		want int
	}{
		{"same parity", stereo("r", 1, false), stereo("r2", 1, false), 9},
		{"opposite parity drops the centre and its substituents", stereo("r", 1, false), stereo("s", 2, false), 6},
		{"renumbered neighbours with the same configuration", stereo("r", 1, false), stereo("r2", 2, true), 9},
		{"renumbered neighbours with the opposite configuration", stereo("r", 1, false), stereo("s", 1, true), 6},
		{"unspecified parity", stereo("r", 1, false), stereo("x", 0, false), 9},
		{"either parity", stereo("r", 3, false), stereo("s", 2, false), 9},
	}
	m := mcs.NewCoordinateMatcher()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := load(t, tc.a), load(t, tc.b)
			c, err := m.Match(context.Background(), a, b, mcs.Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Size())

			// The verdict does not depend on which ligand comes first.
			r, err := m.Match(context.Background(), b, a, mcs.Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Size())
		})
	}
}

// withHydrogens adds one explicit hydrogen pointing outwards from each
// listed ring atom.
func withHydrogens(m *testutil.MolSpec, ring ...int) *testutil.MolSpec {
	for _, k := range ring {
		x, y := m.Atoms[k].X, m.Atoms[k].Y
		scale := (1.40 + 1.08) / 1.40
		m.AddBond(k, m.AddAtom("H", x*scale, y*scale, 0), 1)
	}
	return m
}

func TestCorrespondence_AllAtomMapping(t *testing.T) {
	phenyl := load(t, withHydrogens(testutil.Phenyl(), 0, 1, 2, 3, 4, 5))
	tol := withHydrogens(testutil.Substituted("toluyl", "C"), 1, 2, 3, 4, 5)
	for _, dy := range []float64{-0.9, 0, 0.9} {
		tol.AddBond(6, tol.AddAtom("H", 3.2, dy, 0.5), 1)
	}
	toluyl := load(t, tol)

	c, err := mcs.NewCoordinateMatcher().Match(context.Background(), phenyl, toluyl, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, "0:0,1:1,2:2,3:3,4:4,5:5", c.HeavyAtomMapping(phenyl, toluyl))
	// Phenyl's hydrogen on atom 0 has no partner: toluyl's atom 0 carries the methyl.
	assert.Equal(t, "0:0,1:1,2:2,3:3,4:4,5:5,7:7,8:8,9:9,10:10,11:11", c.AllAtomMapping(phenyl, toluyl))

	full := c.WithHydrogens(phenyl, toluyl)
	require.NoError(t, full.Validate(phenyl, toluyl))
	assert.Equal(t, 11, full.Size())
	assert.Equal(t, c.Size(), full.Heavy(phenyl, toluyl).Size())
}

func TestCoordinateMatcher_InputError(t *testing.T) {
	h, err := ligand.NewLigand("h2", []ligand.Atom{{Element: "H"}, {Element: "H", X: 0.7}}, []ligand.Bond{{From: 0, To: 1, Order: 1}})
	require.NoError(t, err)
	_, err = mcs.NewCoordinateMatcher().Match(context.Background(), h, load(t, testutil.Phenyl()), mcs.Options{})
	assert.True(t, apperrors.IsInputError(err))
}

func TestTimed(t *testing.T) {
	slow := func(ctx context.Context) (*mcs.Correspondence, error) {
		time.Sleep(200 * time.Millisecond)
		return mcs.NewCorrespondence(nil)
	}
	_, err := mcs.Timed(context.Background(), 10*time.Millisecond, slow)
	require.Error(t, err)
	assert.True(t, apperrors.IsMatchTimeout(err))

	cooperative := func(ctx context.Context) (*mcs.Correspondence, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err = mcs.Timed(context.Background(), 10*time.Millisecond, cooperative)
	assert.True(t, apperrors.IsMatchTimeout(err))

	failing := func(ctx context.Context) (*mcs.Correspondence, error) {
		return nil, assert.AnError
	}
	_, err = mcs.Timed(context.Background(), 0, failing)
	assert.True(t, apperrors.IsMatchFailure(err))
	assert.ErrorIs(t, err, assert.AnError)

	c, err := mcs.Timed(context.Background(), 0, func(ctx context.Context) (*mcs.Correspondence, error) {
		return mcs.NewCorrespondence([]mcs.AtomPair{{A: 0, B: 1}})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Size())
}

func TestCorrespondence(t *testing.T) {
	_, err := mcs.NewCorrespondence([]mcs.AtomPair{{A: 0, B: 0}, {A: 0, B: 1}})
	assert.True(t, apperrors.IsMatchFailure(err))
	_, err = mcs.NewCorrespondence([]mcs.AtomPair{{A: 0, B: 1}, {A: 2, B: 1}})
	assert.True(t, apperrors.IsMatchFailure(err))
	_, err = mcs.NewCorrespondence([]mcs.AtomPair{{A: -1, B: 1}})
	assert.True(t, apperrors.IsMatchFailure(err))

	c, err := mcs.NewCorrespondence([]mcs.AtomPair{{A: 2, B: 0}, {A: 0, B: 3}})
	require.NoError(t, err)
	assert.Equal(t, "0:3,2:0", c.String())
	b, ok := c.MappedA(2)
	assert.True(t, ok)
	assert.Equal(t, 0, b)
	a, ok := c.MappedB(3)
	assert.True(t, ok)
	assert.Equal(t, 0, a)
	_, ok = c.MappedA(1)
	assert.False(t, ok)

	r := c.Reverse()
	assert.Equal(t, "0:2,3:0", r.String())
}

func TestCorrespondence_ClipByDistance(t *testing.T) {
	a := load(t, testutil.Substituted("a", "Cl"))
	moved := testutil.Substituted("b", "Cl")
	moved.Atoms[6].Y = 3.0
	b := load(t, moved)

	pairs := make([]mcs.AtomPair, 7)
	for i := range pairs {
		pairs[i] = mcs.AtomPair{A: i, B: i}
	}
	c, err := mcs.NewCorrespondence(pairs)
	require.NoError(t, err)

	assert.Equal(t, 7, c.ClipByDistance(a, b, 1000).Size())
	assert.Equal(t, 6, c.ClipByDistance(a, b, 2).Size())
}

func TestStaticMatcher(t *testing.T) {
	phenyl := load(t, testutil.Phenyl())
	toluyl := load(t, testutil.Substituted("toluyl", "C"))
	chloro := load(t, testutil.Substituted("chlorophenyl", "Cl"))

	doc := `
pairs:
  - a: phenyl.sdf
    b: toluyl.sdf
    mapping: "0:0,1:1,2:2"
`
	m, err := mcs.NewStaticMatcher(strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	c, err := m.Match(context.Background(), phenyl, toluyl, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, "0:0,1:1,2:2", c.String())

	c, err = m.Match(context.Background(), toluyl, phenyl, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())

	_, err = m.Match(context.Background(), phenyl, chloro, mcs.Options{})
	assert.True(t, apperrors.IsMatchFailure(err))

	withFallback, err := mcs.NewStaticMatcher(strings.NewReader(doc), mcs.NewCoordinateMatcher())
	require.NoError(t, err)
	c, err = withFallback.Match(context.Background(), phenyl, chloro, mcs.Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, c.Size())
}

func TestStaticMatcher_InvalidMapping(t *testing.T) {
	_, err := mcs.NewStaticMatcher(strings.NewReader("pairs:\n  - a: x\n    b: y\n    mapping: \"0-1\"\n"), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSerialization))

	m, err := mcs.NewStaticMatcher(strings.NewReader("pairs:\n  - a: phenyl.sdf\n    b: toluyl.sdf\n    mapping: \"0:40\"\n"), nil)
	require.NoError(t, err)
	_, err = m.Match(context.Background(), load(t, testutil.Phenyl()), load(t, testutil.Substituted("toluyl", "C")), mcs.Options{})
	assert.True(t, apperrors.IsMatchFailure(err))
}

func TestMatcherIdentity(t *testing.T) {
	assert.Equal(t, mcs.NewCoordinateMatcher().Identity(), mcs.NewCoordinateMatcher(mcs.WithPairRadius(1.0)).Identity())
	assert.NotEqual(t, mcs.NewCoordinateMatcher().Identity(), mcs.NewCoordinateMatcher(mcs.WithPairRadius(0.0001)).Identity())

	docA := "pairs:\n  - a: x\n    b: y\n    mapping: \"0:0\"\n"
	docB := "pairs:\n  - a: x\n    b: y\n    mapping: \"0:1\"\n"
	sa, err := mcs.NewStaticMatcher(strings.NewReader(docA), nil)
	require.NoError(t, err)
	sa2, err := mcs.NewStaticMatcher(strings.NewReader(docA), nil)
	require.NoError(t, err)
	sb, err := mcs.NewStaticMatcher(strings.NewReader(docB), nil)
	require.NoError(t, err)
	sf, err := mcs.NewStaticMatcher(strings.NewReader(docA), mcs.NewCoordinateMatcher())
	require.NoError(t, err)

	assert.Equal(t, sa.Identity(), sa2.Identity())
	assert.NotEqual(t, sa.Identity(), sb.Identity())
	assert.NotEqual(t, sa.Identity(), sf.Identity())
	assert.Equal(t, sa.Identity(), mcs.IdentityOf(sa))
	assert.Equal(t, "custom", mcs.IdentityOf(mcs.MatchFunc(nil)))
}

func TestParseMapping(t *testing.T) {
	pairs, err := mcs.ParseMapping(" 0:0, 7:8 ")
	require.NoError(t, err)
	assert.Equal(t, []mcs.AtomPair{{A: 0, B: 0}, {A: 7, B: 8}}, pairs)

	pairs, err = mcs.ParseMapping("")
	require.NoError(t, err)
	assert.Empty(t, pairs)

	_, err = mcs.ParseMapping("0:x")
	assert.Error(t, err)
}
