package ligand

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// DefaultPatterns match molfiles directly inside the source directory.
var DefaultPatterns = []string{"*.sdf", "*.mol"}

// Loader discovers molecule files under a directory with doublestar patterns
// and parses them into a Collection.
type Loader struct {
	patterns []string
	logger   logging.Logger
}

// NewLoader returns a Loader.  With no patterns DefaultPatterns is used.
func NewLoader(logger logging.Logger, patterns ...string) *Loader {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{patterns: patterns, logger: logger}
}

// Discover returns the sorted, de-duplicated paths under dir matching any
// pattern.
func (l *Loader) Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLigandIO, "cannot read source directory").WithDetail("dir=" + dir)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeLigandIO, "source is not a directory").WithDetail("dir=" + dir)
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range l.patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid file pattern").WithDetail("pattern=" + pattern)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			st, err := fs.Stat(fsys, m)
			if err != nil || !st.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Load parses every discovered file into a new Collection, in sorted path
// order.  It fails with an IO-kind error when nothing matches.
func (l *Loader) Load(ctx context.Context, dir string) (*Collection, error) {
	paths, err := l.Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrCodeLigandIO, "no molecule files found").WithDetail("dir=" + dir)
	}

	c, _ := NewCollection()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ligands, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		for _, lig := range ligands {
			if err := c.Append(lig); err != nil {
				return nil, err
			}
			l.logger.Debug("ligand loaded",
				logging.String("name", lig.Name),
				logging.Int("heavy_atoms", lig.HeavyAtomCount()),
				logging.String("fingerprint", ShortFingerprint(lig)))
		}
	}
	l.logger.Info("ligands loaded", logging.Int("count", c.Len()), logging.String("dir", dir))
	return c, nil
}
