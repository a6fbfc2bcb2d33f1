package ligand

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// computeFingerprint hashes elements, charges, coordinates and bonds.  Two
// files with identical structure and geometry share a fingerprint regardless
// of name or path, which is what the score cache keys on.
func computeFingerprint(l *Ligand) string {
	h := blake3.New(32, nil)
	for _, a := range l.Atoms {
		fmt.Fprintf(h, "A %s %d %d %.4f %.4f %.4f\n", a.Element, a.Charge, a.Parity, a.X, a.Y, a.Z)
	}
	for _, b := range l.Bonds {
		fmt.Fprintf(h, "B %d %d %d\n", b.From, b.To, b.Order)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShortFingerprint returns the short form of a ligand digest used in logs.
func ShortFingerprint(l *Ligand) string {
	if len(l.Fingerprint) < 12 {
		return l.Fingerprint
	}
	return l.Fingerprint[:12]
}
