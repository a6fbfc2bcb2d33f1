package ligand_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/testutil"
	apperrors "github.com/turtacn/ligandnet/pkg/errors"
)

func newTestCollection(t *testing.T) *ligand.Collection {
	t.Helper()
	c, err := ligand.NewCollection(
		parse(t, testutil.Phenyl()),
		parse(t, testutil.Substituted("toluyl", "C")),
		parse(t, testutil.Substituted("chlorophenyl", "Cl")),
	)
	require.NoError(t, err)
	return c
}

func TestCollection_At(t *testing.T) {
	c := newTestCollection(t)
	require.Equal(t, 3, c.Len())

	l, err := c.At(1)
	require.NoError(t, err)
	assert.Equal(t, "toluyl.sdf", l.Name)
	assert.Equal(t, 1, l.ID)

	for _, idx := range []int{-1, 3, c.Len() + 1} {
		_, err := c.At(idx)
		require.Error(t, err)
		assert.True(t, apperrors.IsIndexError(err), "index %d", idx)
	}
}

func TestCollection_Set(t *testing.T) {
	c := newTestCollection(t)
	repl := parse(t, testutil.Substituted("fluorophenyl", "F"))

	require.NoError(t, c.Set(0, repl))
	got, _ := c.At(0)
	assert.Equal(t, "fluorophenyl.sdf", got.Name)
	assert.Equal(t, 0, got.ID)
	i, ok := c.Lookup("fluorophenyl.sdf")
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	_, ok = c.Lookup("phenyl.sdf")
	assert.False(t, ok)

	err := c.Set(c.Len()+1, repl)
	assert.True(t, apperrors.IsIndexError(err))

	err = c.Set(0, nil)
	assert.True(t, apperrors.IsTypeError(err))
}

func TestCollection_SetWithRepeatedNames(t *testing.T) {
	x := parse(t, testutil.Phenyl())
	y := parse(t, testutil.Substituted("toluyl", "C"))
	z := parse(t, testutil.Substituted("chlorophenyl", "Cl"))
	c, err := ligand.NewCollection(x, x, y)
	require.NoError(t, err)

	// Replacing the later duplicate leaves the first one in charge.
	require.NoError(t, c.Set(1, z))
	i, ok := c.Lookup("phenyl.sdf")
	require.True(t, ok)
	assert.Equal(t, 0, i)
	i, _ = c.Lookup("chlorophenyl.sdf")
	assert.Equal(t, 1, i)

	// Replacing the first holder hands the name to the next one.
	c, err = ligand.NewCollection(x, x, y)
	require.NoError(t, err)
	require.NoError(t, c.Set(0, z))
	i, ok = c.Lookup("phenyl.sdf")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	// A replacement named like an earlier ligand does not take over the name.
	require.NoError(t, c.Set(2, z))
	i, _ = c.Lookup("chlorophenyl.sdf")
	assert.Equal(t, 0, i)
	_, ok = c.Lookup("toluyl.sdf")
	assert.False(t, ok)
}

func TestCollection_Append(t *testing.T) {
	c := newTestCollection(t)
	require.NoError(t, c.Append(parse(t, testutil.Substituted("bromophenyl", "Br"))))
	assert.Equal(t, 4, c.Len())
	last, _ := c.At(3)
	assert.Equal(t, 3, last.ID)
	assert.Equal(t, []string{"phenyl.sdf", "toluyl.sdf", "chlorophenyl.sdf", "bromophenyl.sdf"}, c.Names())

	err := c.Append(nil)
	assert.True(t, apperrors.IsTypeError(err))
	assert.Equal(t, 4, c.Len())
}

func TestCollection_IteratorEndOfSequenceIsRepeatable(t *testing.T) {
	c := newTestCollection(t)
	it := c.Iterator()
	for i := 0; i < c.Len(); i++ {
		l, err := it.Next()
		require.NoError(t, err)
		assert.Equal(t, i, l.ID)
	}
	for k := 0; k < 3; k++ {
		l, err := it.Next()
		assert.Nil(t, l)
		assert.ErrorIs(t, err, ligand.ErrEndOfSequence)
	}

	// exhausted iterators stay exhausted
	require.NoError(t, c.Append(parse(t, testutil.Phenyl())))
	_, err := it.Next()
	assert.ErrorIs(t, err, ligand.ErrEndOfSequence)

	fresh := c.Iterator()
	_, err = fresh.Next()
	assert.NoError(t, err)
}

func TestCollection_All(t *testing.T) {
	c := newTestCollection(t)
	var names []string
	for i, l := range c.All() {
		if i == 2 {
			break
		}
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"phenyl.sdf", "toluyl.sdf"}, names)

	cp := c.Ligands()
	cp[0] = nil
	first, _ := c.At(0)
	assert.NotNil(t, first)
}

func TestNewCollection_RejectsNil(t *testing.T) {
	_, err := ligand.NewCollection(nil)
	assert.True(t, apperrors.IsTypeError(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Loader
// ─────────────────────────────────────────────────────────────────────────────

func writeFixture(t *testing.T, dir, name string, m *testutil.MolSpec) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(testutil.SDF(m)), 0o644))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "toluyl.sdf", testutil.Substituted("toluyl", "C"))
	writeFixture(t, dir, "phenyl.sdf", testutil.Phenyl())
	writeFixture(t, dir, "nested/chlorophenyl.sdf", testutil.Substituted("chlorophenyl", "Cl"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	log := testutil.NewMockLogger()
	c, err := ligand.NewLoader(log).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"phenyl.sdf", "toluyl.sdf"}, c.Names())
	assert.True(t, log.HasMessage("info", "ligands loaded"))

	c, err = ligand.NewLoader(nil, "**/*.sdf").Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"chlorophenyl.sdf", "phenyl.sdf", "toluyl.sdf"}, c.Names())
}

func TestLoader_NoMoleculeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "sub/phenyl.sdf", testutil.Phenyl())

	_, err := ligand.NewLoader(nil).Load(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsIOError(err))

	_, err = ligand.NewLoader(nil).Load(context.Background(), filepath.Join(dir, "missing"))
	assert.True(t, apperrors.IsIOError(err))
}

func TestLoader_ParseFailureSurfaces(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sdf"), []byte("x\n\n\nnot counts\nM  END\n"), 0o644))

	_, err := ligand.NewLoader(nil).Load(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsInputError(err))
}
