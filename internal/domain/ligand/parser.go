package ligand

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/turtacn/ligandnet/pkg/errors"
)

const recordSeparator = "$$$$"

// ParseSDF reads every V2000 record in r.  Single-record input is named
// name; multi-record input is named name#1, name#2 and so on.
func ParseSDF(name string, r io.Reader) ([]*Ligand, error) {
	records, err := splitRecords(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLigandIO, "failed to read molecule data").WithDetail("name=" + name)
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeLigandParse, "no molecule record found").WithDetail("name=" + name)
	}

	out := make([]*Ligand, 0, len(records))
	for k, rec := range records {
		recName := name
		if len(records) > 1 {
			recName = fmt.Sprintf("%s#%d", name, k+1)
		}
		l, err := parseRecord(recName, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// ParseMolBlock parses the first record of r.
func ParseMolBlock(name string, r io.Reader) (*Ligand, error) {
	records, err := splitRecords(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLigandIO, "failed to read molecule data").WithDetail("name=" + name)
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeLigandParse, "no molecule record found").WithDetail("name=" + name)
	}
	return parseRecord(name, records[0])
}

// ReadFile parses every record in the molfile or SD file at path.  Ligand
// names derive from the file base name and Path is set on each.
func ReadFile(path string) ([]*Ligand, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLigandIO, "cannot open molecule file").WithDetail("path=" + path)
	}
	defer f.Close()

	ligands, err := ParseSDF(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	for _, l := range ligands {
		l.Path = path
	}
	return ligands, nil
}

// splitRecords breaks the stream on "$$$$" lines and drops blank records.
func splitRecords(r io.Reader) ([][]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var records [][]string
	var cur []string
	flush := func() {
		for _, line := range cur {
			if strings.TrimSpace(line) != "" {
				records = append(records, cur)
				break
			}
		}
		cur = nil
	}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == recordSeparator {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return records, nil
}

func parseRecord(name string, lines []string) (*Ligand, error) {
	parseErr := func(format string, args ...interface{}) error {
		return errors.Newf(errors.ErrCodeLigandParse, format, args...).WithDetail("name=" + name)
	}
	if len(lines) < 4 {
		return nil, parseErr("header block truncated: %d lines", len(lines))
	}

	counts := lines[3]
	if strings.Contains(counts, "V3000") {
		return nil, parseErr("V3000 connection tables are not supported")
	}
	nAtoms, err1 := strconv.Atoi(strings.TrimSpace(column(counts, 0, 3)))
	nBonds, err2 := strconv.Atoi(strings.TrimSpace(column(counts, 3, 6)))
	if err1 != nil || err2 != nil || nAtoms < 0 || nBonds < 0 {
		return nil, parseErr("malformed counts line %q", counts)
	}
	if len(lines) < 4+nAtoms+nBonds {
		return nil, parseErr("expected %d atom and %d bond lines", nAtoms, nBonds)
	}

	atoms := make([]Atom, nAtoms)
	for i := 0; i < nAtoms; i++ {
		a, err := parseAtomLine(lines[4+i])
		if err != nil {
			return nil, parseErr("atom %d: %v", i+1, err)
		}
		atoms[i] = a
	}

	bonds := make([]Bond, nBonds)
	for i := 0; i < nBonds; i++ {
		b, err := parseBondLine(lines[4+nAtoms+i])
		if err != nil {
			return nil, parseErr("bond %d: %v", i+1, err)
		}
		bonds[i] = b
	}

	if err := applyProperties(atoms, lines[4+nAtoms+nBonds:]); err != nil {
		return nil, parseErr("%v", err)
	}

	l, err := NewLigand(name, atoms, bonds)
	if err != nil {
		return nil, err
	}
	l.Title = strings.TrimSpace(lines[0])
	return l, nil
}

// column returns line[start:end] clipped to the line length.
func column(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

func parseAtomLine(line string) (Atom, error) {
	if len(line) < 34 {
		return Atom{}, fmt.Errorf("line too short: %q", line)
	}
	var a Atom
	var err error
	if a.X, err = strconv.ParseFloat(strings.TrimSpace(column(line, 0, 10)), 64); err != nil {
		return Atom{}, fmt.Errorf("x coordinate: %w", err)
	}
	if a.Y, err = strconv.ParseFloat(strings.TrimSpace(column(line, 10, 20)), 64); err != nil {
		return Atom{}, fmt.Errorf("y coordinate: %w", err)
	}
	if a.Z, err = strconv.ParseFloat(strings.TrimSpace(column(line, 20, 30)), 64); err != nil {
		return Atom{}, fmt.Errorf("z coordinate: %w", err)
	}
	a.Element = strings.TrimSpace(column(line, 31, 34))
	if a.Element == "" {
		return Atom{}, fmt.Errorf("missing element symbol")
	}
	a.Charge = chargeFromCode(atoiOrZero(column(line, 36, 39)))
	a.Parity = atoiOrZero(column(line, 39, 42))
	return a, nil
}

func parseBondLine(line string) (Bond, error) {
	from, err := strconv.Atoi(strings.TrimSpace(column(line, 0, 3)))
	if err != nil {
		return Bond{}, fmt.Errorf("first atom: %w", err)
	}
	to, err := strconv.Atoi(strings.TrimSpace(column(line, 3, 6)))
	if err != nil {
		return Bond{}, fmt.Errorf("second atom: %w", err)
	}
	order, err := strconv.Atoi(strings.TrimSpace(column(line, 6, 9)))
	if err != nil {
		return Bond{}, fmt.Errorf("bond type: %w", err)
	}
	return Bond{From: from - 1, To: to - 1, Order: order}, nil
}

// applyProperties handles the "M  CHG" lines of the properties block.  Any
// CHG line supersedes the charges from the atom block.
func applyProperties(atoms []Atom, lines []string) error {
	reset := false
	for _, line := range lines {
		if strings.HasPrefix(line, "M  END") {
			return nil
		}
		if !strings.HasPrefix(line, "M  CHG") {
			continue
		}
		if !reset {
			for i := range atoms {
				atoms[i].Charge = 0
			}
			reset = true
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("malformed charge line %q", line)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || len(fields) < 3+2*n {
			return fmt.Errorf("malformed charge line %q", line)
		}
		for k := 0; k < n; k++ {
			idx, err1 := strconv.Atoi(fields[3+2*k])
			q, err2 := strconv.Atoi(fields[4+2*k])
			if err1 != nil || err2 != nil || idx < 1 || idx > len(atoms) {
				return fmt.Errorf("malformed charge entry in %q", line)
			}
			atoms[idx-1].Charge = q
		}
	}
	return nil
}

// chargeFromCode decodes the atom block charge column.  Code 4 marks a
// doublet radical and carries no charge.
func chargeFromCode(code int) int {
	switch code {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	case 5:
		return -1
	case 6:
		return -2
	case 7:
		return -3
	default:
		return 0
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
