// Package kernel implements the per-candidate digit-scan kernels: given
// a candidate n and a base, determine whether n is nice (niceonly) or
// how many unique digits its square/cube concatenation contains
// (detailed). DigitScanner abstracts over the CPU and GPU
// implementations so the range executor and client pipeline are
// oblivious to which is active.
package kernel

import "github.com/wasabipesto/nice/internal/bignum"

// DigitScanner evaluates candidates against one of the two kernels.
// Implementations must agree: IsNice(n,b) == (NumUniques(n,b) == b).
type DigitScanner interface {
	// Name identifies the implementation for logging ("cpu", "gpu").
	Name() string
	// IsNice runs the niceonly kernel with early exit on first duplicate.
	IsNice(n bignum.Uint128, base uint32) bool
	// NumUniques runs the detailed kernel without early exit.
	NumUniques(n bignum.Uint128, base uint32) uint32
}

// CPUScanner is the scalar CPU implementation of DigitScanner. It is
// always available and is what the range executor falls back to if a
// GPU scanner reports itself unavailable.
type CPUScanner struct{}

func NewCPUScanner() *CPUScanner { return &CPUScanner{} }

func (CPUScanner) Name() string { return "cpu" }

// IsNice extracts digits of n^2 then n^3 one at a time, marking a 256-bit
// seen bitmask, and bails out the moment a digit repeats.
func (CPUScanner) IsNice(n bignum.Uint128, base uint32) bool {
	var seen [256]bool
	sq := n.Square()
	if !markDigitsNoDuplicate(sq, base, &seen) {
		return false
	}
	cu := bignum.Cube128(n)
	if !markDigitsNoDuplicate(cu, base, &seen) {
		return false
	}
	return popcount(&seen) == int(base)
}

// NumUniques builds the full seen bitmask without early exit and
// returns its population count.
func (CPUScanner) NumUniques(n bignum.Uint128, base uint32) uint32 {
	var seen [256]bool
	sq := n.Square()
	markDigitsAll(sq, base, &seen)
	cu := bignum.Cube128(n)
	markDigitsAll(cu, base, &seen)
	return uint32(popcount(&seen))
}

// markDigitsNoDuplicate marks each base digit of v in seen, returning
// false the instant a digit is already set.
func markDigitsNoDuplicate(v bignum.Uint256, base uint32, seen *[256]bool) bool {
	cur := v
	for {
		var rem uint64
		cur, rem = cur.DivModSmall(uint64(base))
		if seen[rem] {
			return false
		}
		seen[rem] = true
		if cur.IsZero() {
			return true
		}
	}
}

// markDigitsAll marks each base digit of v in seen with no early exit.
func markDigitsAll(v bignum.Uint256, base uint32, seen *[256]bool) {
	cur := v
	for {
		var rem uint64
		cur, rem = cur.DivModSmall(uint64(base))
		seen[rem] = true
		if cur.IsZero() {
			return
		}
	}
}

func popcount(seen *[256]bool) int {
	n := 0
	for _, v := range seen {
		if v {
			n++
		}
	}
	return n
}
