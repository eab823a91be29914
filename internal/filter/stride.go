package filter

import (
	"sort"

	"github.com/wasabipesto/nice/internal/bignum"
)

// StrideTable combines the residue filter (mod b-1) and the multi-digit
// LSD filter (mod b^k) into a single modulus via the Chinese Remainder
// Theorem, so that niceonly iteration can jump directly from one valid
// candidate to the next via a precomputed gap table instead of testing
// every integer.
type StrideTable struct {
	Modulus       uint64
	ValidResidues []uint64
	GapTable      []uint64
}

// NewStrideTable builds a stride table for base using a k-digit LSD
// filter. gcd(b-1, b^k) == 1 always holds since b and b-1 are coprime,
// so CRT applies directly: M = (b-1) * b^k.
func NewStrideTable(base, k uint32) *StrideTable {
	residue := BuildResidueFilter(base)
	lsd := BuildMultiLSDFilter(base, k)

	modulus := residue.Modulus() * lsd.Modulus()

	var validResidues []uint64
	for r := uint64(0); r < modulus; r++ {
		passesResidue := residue.valid[r%residue.Modulus()]
		passesLSD := lsd.valid[r%lsd.Modulus()]
		if passesResidue && passesLSD {
			validResidues = append(validResidues, r)
		}
	}
	sort.Slice(validResidues, func(i, j int) bool { return validResidues[i] < validResidues[j] })

	gapTable := make([]uint64, len(validResidues))
	for i := range validResidues {
		if i+1 < len(validResidues) {
			gapTable[i] = validResidues[i+1] - validResidues[i]
		} else {
			gapTable[i] = modulus - validResidues[i] + validResidues[0]
		}
	}

	return &StrideTable{Modulus: modulus, ValidResidues: validResidues, GapTable: gapTable}
}

// Empty reports whether no residue mod Modulus passes both the residue
// and LSD filters, which proves no nice number exists in this base
// without evaluating any candidate. FirstValidAtOrAfter/Next are
// undefined on an empty table.
func (t *StrideTable) Empty() bool {
	return len(t.ValidResidues) == 0
}

// FirstValidAtOrAfter returns the smallest candidate >= start whose
// residue mod Modulus is valid, along with its index into
// ValidResidues/GapTable. Callers must check Empty() first.
func (t *StrideTable) FirstValidAtOrAfter(start bignum.Uint128) (bignum.Uint128, int) {
	r := start.ModUint64(t.Modulus)

	idx := sort.Search(len(t.ValidResidues), func(i int) bool { return t.ValidResidues[i] >= r })
	if idx == len(t.ValidResidues) {
		idx = 0
	}
	target := t.ValidResidues[idx]

	var n bignum.Uint128
	if target >= r {
		n = start.AddUint64(target - r)
	} else {
		n = start.AddUint64(t.Modulus - r + target)
	}
	return n, idx
}

// Next advances from the candidate at gap-table index idx to the next
// valid candidate.
func (t *StrideTable) Next(n bignum.Uint128, idx int) (bignum.Uint128, int) {
	next := n.AddUint64(t.GapTable[idx])
	nextIdx := (idx + 1) % len(t.GapTable)
	return next, nextIdx
}
