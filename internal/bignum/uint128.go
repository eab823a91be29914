// Package bignum implements fixed-width unsigned integer arithmetic wide
// enough to hold the square and cube of a 128-bit candidate. Go has no
// native 128-bit or 256-bit integer type, so these are built from uint64
// limbs using the hardware add-with-carry and 64x64->128 multiply exposed
// by math/bits.
package bignum

import "math/bits"

// Uint128 is an unsigned 128-bit integer stored as two 64-bit limbs,
// least-significant first.
type Uint128 struct {
	Lo, Hi uint64
}

// NewUint128 builds a Uint128 from a uint64.
func NewUint128(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// IsZero reports whether u is zero.
func (u Uint128) IsZero() bool {
	return u.Lo == 0 && u.Hi == 0
}

// Cmp returns -1, 0, or 1 as u is less than, equal to, or greater than v.
func (u Uint128) Cmp(v Uint128) int {
	if u.Hi != v.Hi {
		if u.Hi < v.Hi {
			return -1
		}
		return 1
	}
	switch {
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// Add returns u+v, wrapping on overflow.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Lo: lo, Hi: hi}
}

// AddUint64 returns u+v for a uint64 v.
func (u Uint128) AddUint64(v uint64) Uint128 {
	lo, carry := bits.Add64(u.Lo, v, 0)
	hi, _ := bits.Add64(u.Hi, 0, carry)
	return Uint128{Lo: lo, Hi: hi}
}

// Sub returns u-v, wrapping on underflow.
func (u Uint128) Sub(v Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Lo: lo, Hi: hi}
}

// MulUint64 returns u*v as a 192-bit product (lo128, hi64). The result
// never exceeds 192 bits for the callers in this package, where v is
// always a numeric base (well under 2^32).
func (u Uint128) MulUint64(v uint64) (lo Uint128, hi uint64) {
	hi1, lo1 := bits.Mul64(u.Lo, v)
	hi2, lo2 := bits.Mul64(u.Hi, v)

	r1, carry := bits.Add64(hi1, lo2, 0)
	r2 := hi2 + carry
	return Uint128{Lo: lo1, Hi: r1}, r2
}

// DivModUint64 divides u by a small divisor v, returning quotient and
// remainder. v must be nonzero.
func (u Uint128) DivModUint64(v uint64) (q Uint128, r uint64) {
	hi, rem := bits.Div64(0, u.Hi, v)
	lo, rem := bits.Div64(rem, u.Lo, v)
	return Uint128{Lo: lo, Hi: hi}, rem
}

// ModUint64 returns u mod v for a small divisor v.
func (u Uint128) ModUint64(v uint64) uint64 {
	_, rem := u.DivModUint64(v)
	return rem
}

// String renders u in base 10 using repeated division.
func (u Uint128) String() string {
	if u.IsZero() {
		return "0"
	}
	var digits []byte
	cur := u
	for !cur.IsZero() {
		var rem uint64
		cur, rem = cur.DivModUint64(10)
		digits = append(digits, byte('0'+rem))
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// Square returns u*u as a Uint256.
func (u Uint128) Square() Uint256 {
	return Mul128(u, u)
}

// DigitsAsc returns the base-`base` digits of u, least-significant
// first.
func (u Uint128) DigitsAsc(base uint32) []uint32 {
	if u.IsZero() {
		return []uint32{0}
	}
	var digits []uint32
	cur := u
	for !cur.IsZero() {
		var rem uint64
		cur, rem = cur.DivModUint64(uint64(base))
		digits = append(digits, uint32(rem))
	}
	return digits
}
