package network

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/ligandnet/pkg/errors"
)

// Override forces the score and/or the selection of one pair.  A nil field
// leaves the computed value untouched.
type Override struct {
	A, B    int
	Score   *float64
	Include *bool
}

// Resolver maps a ligand identifier from a link file to its node index.
type Resolver func(name string) (int, bool)

// ParseOverrides reads a link file.  Each non-blank line that is not a
// comment reads
//
//	<ligand-a> <ligand-b> [score] [force|exclude]
//
// Lines naming an unknown ligand are skipped and reported as warnings;
// malformed lines are errors.  Later lines for the same pair win.
func ParseOverrides(r io.Reader, resolve Resolver) ([]Override, []string, error) {
	var (
		out      []Override
		warnings []string
		index    = make(map[[2]int]int)
	)
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
		if len(fields) == 0 {
			continue
		}
		ov, err := parseDirective(fields, lineNo)
		if err != nil {
			return nil, nil, err
		}
		a, okA := resolve(fields[0])
		b, okB := resolve(fields[1])
		switch {
		case !okA || !okB:
			warnings = append(warnings, fmt.Sprintf("line %d: unknown ligand in %s %s, skipped", lineNo, fields[0], fields[1]))
			continue
		case a == b:
			warnings = append(warnings, fmt.Sprintf("line %d: %s links to itself, skipped", lineNo, fields[0]))
			continue
		}
		if a > b {
			a, b = b, a
		}
		ov.A, ov.B = a, b
		if at, dup := index[[2]int{a, b}]; dup {
			out[at] = ov
			continue
		}
		index[[2]int{a, b}] = len(out)
		out = append(out, ov)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeOverrideInvalid, "read link file")
	}
	return out, warnings, nil
}

func parseDirective(fields []string, lineNo int) (Override, error) {
	var ov Override
	if len(fields) < 2 || len(fields) > 4 {
		return ov, errors.Newf(errors.ErrCodeOverrideInvalid, "line %d: expected two ligands, an optional score and an optional flag", lineNo)
	}
	for _, f := range fields[2:] {
		switch strings.ToLower(f) {
		case "force", "include":
			if ov.Include != nil {
				return ov, errors.Newf(errors.ErrCodeOverrideInvalid, "line %d: flag given twice", lineNo)
			}
			ov.Include = boolPtr(true)
		case "exclude":
			if ov.Include != nil {
				return ov, errors.Newf(errors.ErrCodeOverrideInvalid, "line %d: flag given twice", lineNo)
			}
			ov.Include = boolPtr(false)
		default:
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || ov.Score != nil {
				return ov, errors.Newf(errors.ErrCodeOverrideInvalid, "line %d: unexpected field %q", lineNo, f)
			}
			if v < 0 || v > 1 {
				return ov, errors.Newf(errors.ErrCodeOverrideInvalid, "line %d: score %g outside [0, 1]", lineNo, v)
			}
			ov.Score = &v
		}
	}
	return ov, nil
}

func boolPtr(v bool) *bool { return &v }
