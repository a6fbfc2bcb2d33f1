package ligand

import (
	stderrors "errors"
	"iter"

	"github.com/turtacn/ligandnet/pkg/errors"
)

// ErrEndOfSequence is returned by Iterator.Next once the last ligand has been
// yielded, and on every call after that.
var ErrEndOfSequence = stderrors.New("ligand: end of sequence")

// Collection is the ordered, bounds-checked set of ligands for one run.  It
// is not safe for concurrent mutation; readers may share it once loading is
// complete.
type Collection struct {
	ligands []*Ligand
	byName  map[string]int
}

// NewCollection builds a Collection, assigning ordinals in argument order.
func NewCollection(ligands ...*Ligand) (*Collection, error) {
	c := &Collection{byName: make(map[string]int, len(ligands))}
	for _, l := range ligands {
		if err := c.Append(l); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Len returns the number of ligands.
func (c *Collection) Len() int { return len(c.ligands) }

// At returns the ligand at ordinal i.
func (c *Collection) At(i int) (*Ligand, error) {
	if err := c.checkIndex(i); err != nil {
		return nil, err
	}
	return c.ligands[i], nil
}

// Set replaces the ligand at ordinal i.  The stored ligand is a copy of l
// whose ID is i.
func (c *Collection) Set(i int, l *Ligand) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	if l == nil {
		return errors.New(errors.ErrCodeLigandType, "replacement value is not a ligand")
	}
	old := c.ligands[i].Name
	c.ligands[i] = l.withID(i)
	if j, ok := c.byName[old]; ok && j == i {
		delete(c.byName, old)
		for k, other := range c.ligands {
			if other.Name == old {
				c.byName[old] = k
				break
			}
		}
	}
	if j, ok := c.byName[l.Name]; !ok || j > i {
		c.byName[l.Name] = i
	}
	return nil
}

// Append adds l at the end.  The stored ligand is a copy of l whose ID is the
// new ordinal.
func (c *Collection) Append(l *Ligand) error {
	if l == nil {
		return errors.New(errors.ErrCodeLigandType, "appended value is not a ligand")
	}
	i := len(c.ligands)
	c.ligands = append(c.ligands, l.withID(i))
	if c.byName == nil {
		c.byName = make(map[string]int)
	}
	if _, dup := c.byName[l.Name]; !dup {
		c.byName[l.Name] = i
	}
	return nil
}

// Lookup resolves a ligand name to its ordinal.  When two ligands share a
// name the first one wins.
func (c *Collection) Lookup(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// Names returns ligand names in ordinal order.
func (c *Collection) Names() []string {
	out := make([]string, len(c.ligands))
	for i, l := range c.ligands {
		out[i] = l.Name
	}
	return out
}

// Ligands returns a copy of the backing slice.
func (c *Collection) Ligands() []*Ligand {
	out := make([]*Ligand, len(c.ligands))
	copy(out, c.ligands)
	return out
}

// All yields (ordinal, ligand) pairs for range-over-func loops.
func (c *Collection) All() iter.Seq2[int, *Ligand] {
	return func(yield func(int, *Ligand) bool) {
		for i, l := range c.ligands {
			if !yield(i, l) {
				return
			}
		}
	}
}

// Iterator returns a fresh single-pass iterator positioned before the first
// ligand.
func (c *Collection) Iterator() *Iterator { return &Iterator{c: c} }

func (c *Collection) checkIndex(i int) error {
	if i < 0 || i >= len(c.ligands) {
		return errors.Newf(errors.ErrCodeLigandIndex, "index %d out of range [0, %d)", i, len(c.ligands))
	}
	return nil
}

// Iterator walks a Collection forward once.  After it reports
// ErrEndOfSequence it stays exhausted even if the collection grows.
type Iterator struct {
	c    *Collection
	pos  int
	done bool
}

// Next returns the next ligand or ErrEndOfSequence.
func (it *Iterator) Next() (*Ligand, error) {
	if it.done || it.pos >= it.c.Len() {
		it.done = true
		return nil, ErrEndOfSequence
	}
	l := it.c.ligands[it.pos]
	it.pos++
	return l, nil
}
