package mcs

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// correspondenceFile is the YAML layout written by an external chemistry
// engine:
//
//	pairs:
//	  - a: phenyl.sdf
//	    b: toluyl.sdf
//	    mapping: "0:0,1:1,2:2,3:3,4:4,5:5"
type correspondenceFile struct {
	Pairs []struct {
		A       string `yaml:"a"`
		B       string `yaml:"b"`
		Mapping string `yaml:"mapping"`
	} `yaml:"pairs"`
}

// StaticMatcher serves precomputed correspondences keyed by ligand name.
// Pairs absent from the file go to the fallback matcher, or fail with
// MatchFailure when there is none.
type StaticMatcher struct {
	pairs    map[[2]string][]AtomPair
	fallback Matcher
	digest   string
}

// LoadStaticMatcher reads a correspondence file.
func LoadStaticMatcher(path string, fallback Matcher) (*StaticMatcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLigandIO, "cannot open correspondence file").WithDetail("path=" + path)
	}
	defer f.Close()
	return NewStaticMatcher(f, fallback)
}

// NewStaticMatcher parses YAML from r.
func NewStaticMatcher(r io.Reader, fallback Matcher) (*StaticMatcher, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLigandIO, "cannot read correspondence file")
	}
	var doc correspondenceFile
	if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "invalid correspondence file")
	}
	sum := blake3.Sum256(raw)
	m := &StaticMatcher{
		pairs:    make(map[[2]string][]AtomPair, len(doc.Pairs)),
		fallback: fallback,
		digest:   hex.EncodeToString(sum[:]),
	}
	for _, p := range doc.Pairs {
		pairs, err := ParseMapping(p.Mapping)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "invalid mapping").
				WithDetail(fmt.Sprintf("pair=%s/%s", p.A, p.B))
		}
		m.pairs[[2]string{p.A, p.B}] = pairs
	}
	return m, nil
}

// Len returns the number of stored pairs.
func (m *StaticMatcher) Len() int { return len(m.pairs) }

// Identity implements Identifier.  It covers the file contents and the
// fallback matcher.
func (m *StaticMatcher) Identity() string {
	fb := "none"
	if m.fallback != nil {
		fb = IdentityOf(m.fallback)
	}
	return "static:" + m.digest + "+" + fb
}

// Match implements Matcher.  A pair stored as (b, a) is served reversed.
func (m *StaticMatcher) Match(ctx context.Context, a, b *ligand.Ligand, opts Options) (*Correspondence, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	if pairs, ok := m.pairs[[2]string{a.Name, b.Name}]; ok {
		return m.build(pairs, a, b, false)
	}
	if pairs, ok := m.pairs[[2]string{b.Name, a.Name}]; ok {
		return m.build(pairs, a, b, true)
	}
	if m.fallback != nil {
		return m.fallback.Match(ctx, a, b, opts)
	}
	return nil, errors.New(errors.ErrCodeMatchFailure, "no stored correspondence").
		WithDetail(fmt.Sprintf("pair=%s/%s", a.Name, b.Name))
}

func (m *StaticMatcher) build(pairs []AtomPair, a, b *ligand.Ligand, reversed bool) (*Correspondence, error) {
	c, err := NewCorrespondence(pairs)
	if err != nil {
		return nil, err
	}
	if reversed {
		c = c.Reverse()
	}
	if err := c.Validate(a, b); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseMapping reads "a:b,a:b" strings as produced by Correspondence.String.
func ParseMapping(s string) ([]AtomPair, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]AtomPair, 0, len(parts))
	for _, part := range parts {
		ab := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(ab) != 2 {
			return nil, fmt.Errorf("malformed pair %q", part)
		}
		a, err := strconv.Atoi(ab[0])
		if err != nil {
			return nil, fmt.Errorf("malformed pair %q: %w", part, err)
		}
		b, err := strconv.Atoi(ab[1])
		if err != nil {
			return nil, fmt.Errorf("malformed pair %q: %w", part, err)
		}
		out = append(out, AtomPair{A: a, B: b})
	}
	return out, nil
}
