// Package filter implements the sound-but-incomplete pre-filters that
// let the range executor skip candidates (or whole sub-ranges) that
// provably cannot be nice, before falling back to per-candidate digit
// scanning.
package filter

import "github.com/wasabipesto/nice/internal/bignum"

// ResidueFilter is the mod-(b-1) filter derived from the digit-sum
// identity: a nice number's square-cube concatenation has digit sum
// b*(b-1)/2, and a number is congruent to its digit sum mod (b-1).
type ResidueFilter struct {
	base    uint32
	modulus uint64 // base - 1
	valid   []bool // dense bitset of size modulus; valid[r] set iff r in R_b
}

// BuildResidueFilter computes R_b = { r in [0, b-1) : (r^2+r^3) mod (b-1)
// == (b*(b-1)/2) mod (b-1) }. For b == 2, b-1 == 1 and every residue
// (there is exactly one, 0) trivially passes.
func BuildResidueFilter(base uint32) *ResidueFilter {
	modulus := uint64(base - 1)
	if modulus == 0 {
		modulus = 1
	}
	target := (uint64(base) * uint64(base-1) / 2) % modulus
	valid := make([]bool, modulus)
	for r := uint64(0); r < modulus; r++ {
		v := (r*r + r*r*r) % modulus
		if v == target {
			valid[r] = true
		}
	}
	return &ResidueFilter{base: base, modulus: modulus, valid: valid}
}

// Empty reports whether no residue passes the filter, which proves no
// nice number exists for this base without evaluating any candidate.
func (f *ResidueFilter) Empty() bool {
	for _, v := range f.valid {
		if v {
			return false
		}
	}
	return true
}

// ValidResidues returns the sorted list of residues mod (base-1) that
// pass the filter.
func (f *ResidueFilter) ValidResidues() []uint64 {
	out := make([]uint64, 0, len(f.valid))
	for r, ok := range f.valid {
		if ok {
			out = append(out, uint64(r))
		}
	}
	return out
}

// Modulus returns base-1 (or 1 for base==2).
func (f *ResidueFilter) Modulus() uint64 {
	return f.modulus
}

// Passes reports whether n mod (base-1) is in R_b.
func (f *ResidueFilter) Passes(n bignum.Uint128) bool {
	r := n.ModUint64(f.modulus)
	return f.valid[r]
}

// PassesUint64 is the uint64 fast path for Passes.
func (f *ResidueFilter) PassesUint64(n uint64) bool {
	return f.valid[n%f.modulus]
}
