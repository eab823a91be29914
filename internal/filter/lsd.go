package filter

import "github.com/wasabipesto/nice/internal/bignum"

// ValidSingleLSDs returns the least-significant digits (0..base) that
// cannot be immediately ruled out: a candidate whose LSD is lsd is
// rejected if its square's LSD collides with its cube's LSD, since the
// same digit would then appear twice in the concatenation.
func ValidSingleLSDs(base uint32) []uint32 {
	var out []uint32
	for lsd := uint32(0); lsd < base; lsd++ {
		if isValidSingleLSD(lsd, base) {
			out = append(out, lsd)
		}
	}
	return out
}

func isValidSingleLSD(lsd, base uint32) bool {
	n := uint64(lsd)
	sq := (n * n) % uint64(base)
	cu := (n * n * n) % uint64(base)
	return sq != cu
}

// RecommendedK returns the number of least-significant digits the
// multi-digit LSD filter should examine: 2 for bases of 30 or more
// (where a single-digit filter catches proportionally less), 1 below
// that.
func RecommendedK(base uint32) uint32 {
	if base >= 30 {
		return 2
	}
	return 1
}

// MultiLSDFilter precomputes, for every residue s mod b^k, whether the
// low k digits of s^2 and s^3 (mod b^k) already contain a duplicate or
// a collision with each other. n^2 mod b^k and n^3 mod b^k depend only
// on n mod b^k, so this is well-defined as a function of the suffix
// alone and can be checked before any per-candidate arithmetic.
type MultiLSDFilter struct {
	base  uint32
	k     uint32
	bK    uint64
	valid []bool // dense bitset of size b^k
}

// BuildMultiLSDFilter constructs the filter for the given base and k.
func BuildMultiLSDFilter(base, k uint32) *MultiLSDFilter {
	bK := pow64(uint64(base), k)
	valid := make([]bool, bK)
	for s := uint64(0); s < bK; s++ {
		valid[s] = multiLSDPasses(s, uint64(base), bK, k)
	}
	return &MultiLSDFilter{base: base, k: k, bK: bK, valid: valid}
}

func pow64(base uint64, exp uint32) uint64 {
	r := uint64(1)
	for i := uint32(0); i < exp; i++ {
		r *= base
	}
	return r
}

// multiLSDPasses checks, for suffix s (= n mod b^k), whether the low k
// digits of s^2 and s^3 (mod b^k) are collision-free both internally and
// against each other.
func multiLSDPasses(s, base, bK uint64, k uint32) bool {
	sq := (s * s) % bK
	cu := (s * s * s) % bK
	sqDigits := digitsLSD(sq, base, k)
	cuDigits := digitsLSD(cu, base, k)

	seen := make(map[uint64]bool, int(2*k))
	for _, d := range sqDigits {
		if seen[d] {
			return false
		}
		seen[d] = true
	}
	for _, d := range cuDigits {
		if seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}

func digitsLSD(v, base uint64, k uint32) []uint64 {
	out := make([]uint64, k)
	for i := uint32(0); i < k; i++ {
		out[i] = v % base
		v /= base
	}
	return out
}

// Passes reports whether n's low-k-digit suffix passes the multi-digit
// LSD filter.
func (f *MultiLSDFilter) Passes(n bignum.Uint128) bool {
	s := n.ModUint64(f.bK)
	return f.valid[s]
}

// PassesSuffix checks a precomputed suffix value directly, used by the
// stride table which already works in residues mod b^k.
func (f *MultiLSDFilter) PassesSuffix(s uint64) bool {
	return f.valid[s]
}

// Modulus returns b^k.
func (f *MultiLSDFilter) Modulus() uint64 {
	return f.bK
}

// K returns the configured digit count.
func (f *MultiLSDFilter) K() uint32 {
	return f.k
}
