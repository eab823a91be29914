// Package rangecalc computes the search range for a numeric base: the
// half-open interval of candidates n whose square and cube, written in
// that base and concatenated, could possibly use exactly `base` digits.
package rangecalc

import "math/big"

// BaseRange is a half-open interval [Start, End) of candidates to search
// in a given base.
type BaseRange struct {
	Start, End *big.Int
}

// ForBase computes the search range for base, matching the digit-count
// case split on base mod 5: n^2 contributes roughly 2/5 of the digits and
// n^3 the other 3/5, so the exact boundary depends on which remainder
// class base falls into. Returns false if base mod 5 == 1, which has no
// valid range (the floor/ceiling of the two contributions never align).
func ForBase(base uint32) (BaseRange, bool) {
	b := big.NewInt(int64(base))
	k := uint64(base / 5)

	switch base % 5 {
	case 0:
		start := ceilingRoot(powInt(b, 3*k-1), 3)
		end := powInt(b, k)
		return BaseRange{Start: start, End: end}, true
	case 1:
		return BaseRange{}, false
	case 2:
		start := powInt(b, k)
		end := floorRoot(powInt(b, 3*k+1), 3)
		return BaseRange{Start: start, End: end}, true
	case 3:
		start := ceilingRoot(powInt(b, 3*k+1), 3)
		end := floorRoot(powInt(b, 2*k+1), 2)
		return BaseRange{Start: start, End: end}, true
	case 4:
		start := ceilingRoot(powInt(b, 2*k+1), 2)
		end := floorRoot(powInt(b, 3*k+2), 3)
		return BaseRange{Start: start, End: end}, true
	default:
		return BaseRange{}, false
	}
}

func powInt(b *big.Int, e uint64) *big.Int {
	return new(big.Int).Exp(b, new(big.Int).SetUint64(e), nil)
}

// floorRoot returns floor(n^(1/root)) for n >= 0, root >= 1, via binary
// search (big.Int has no native nth-root).
func floorRoot(n *big.Int, root int64) *big.Int {
	if n.Sign() == 0 {
		return big.NewInt(0)
	}
	lo := big.NewInt(0)
	hi := new(big.Int).Set(n)
	one := big.NewInt(1)
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Add(mid, one)
		mid.Rsh(mid, 1)
		if new(big.Int).Exp(mid, big.NewInt(root), nil).Cmp(n) <= 0 {
			lo = mid
		} else {
			hi = new(big.Int).Sub(mid, one)
		}
	}
	return lo
}

// ceilingRoot returns ceil(n^(1/root)) for n >= 0, root >= 1.
func ceilingRoot(n *big.Int, root int64) *big.Int {
	f := floorRoot(n, root)
	if new(big.Int).Exp(f, big.NewInt(root), nil).Cmp(n) == 0 {
		return f
	}
	return new(big.Int).Add(f, big.NewInt(1))
}
