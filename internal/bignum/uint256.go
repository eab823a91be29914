package bignum

import "math/bits"

// Uint256 is an unsigned 256-bit integer stored as four 64-bit limbs,
// least-significant first. It holds the square of any 128-bit candidate
// exactly; a cube fits whenever the candidate is below 2^85 (Cube128 keeps
// the low 256 bits of larger cubes).
type Uint256 struct {
	W [4]uint64
}

// Lo128 returns the low 128 bits of u.
func (u Uint256) Lo128() Uint128 {
	return Uint128{Lo: u.W[0], Hi: u.W[1]}
}

// IsZero reports whether u is zero.
func (u Uint256) IsZero() bool {
	return u.W[0] == 0 && u.W[1] == 0 && u.W[2] == 0 && u.W[3] == 0
}

// Cmp returns -1, 0, or 1 as u is less than, equal to, or greater than v.
func (u Uint256) Cmp(v Uint256) int {
	for i := 3; i >= 0; i-- {
		if u.W[i] != v.W[i] {
			if u.W[i] < v.W[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Add returns u+v, wrapping on overflow.
func (u Uint256) Add(v Uint256) Uint256 {
	var out Uint256
	var carry uint64
	for i := 0; i < 4; i++ {
		out.W[i], carry = bits.Add64(u.W[i], v.W[i], carry)
	}
	return out
}

// AddUint128 adds a Uint128 into u at the low limbs.
func (u Uint256) AddUint128(v Uint128) Uint256 {
	return u.Add(Uint256{W: [4]uint64{v.Lo, v.Hi, 0, 0}})
}

// Mul128 computes the full 256-bit product of two 128-bit values using
// schoolbook long multiplication over four 64-bit limbs, matching the
// limb-multiply-and-accumulate structure used for arbitrary-precision
// multiplication in fixed-width integer libraries generally (the same
// shape as the 32-bit-limb version in the reference corpus, widened to
// native 64-bit limbs since Go exposes a direct 64x64->128 multiply).
func Mul128(a, b Uint128) Uint256 {
	al := [2]uint64{a.Lo, a.Hi}
	bl := [2]uint64{b.Lo, b.Hi}

	var acc [4]uint64
	for i := 0; i < 2; i++ {
		if al[i] == 0 {
			continue
		}
		var carry uint64
		for j := 0; j < 2; j++ {
			hi, lo := bits.Mul64(al[i], bl[j])
			// add lo into acc[i+j] with carry-in from previous column
			s0, c0 := bits.Add64(acc[i+j], lo, 0)
			s1, c1 := bits.Add64(s0, carry, 0)
			acc[i+j] = s1
			carry = hi + c0 + c1
		}
		// propagate remaining carry into higher limbs
		k := i + 2
		for carry != 0 && k < 4 {
			s, c := bits.Add64(acc[k], carry, 0)
			acc[k] = s
			carry = c
			k++
		}
	}
	return Uint256{W: acc}
}

// MulSmall multiplies u by a small uint64 multiplier, returning the
// 256-bit product (the top limb is always zero for the multipliers used
// here, but is carried for symmetry).
func (u Uint256) MulSmall(v uint64) Uint256 {
	var out Uint256
	var carry uint64
	for i := 0; i < 4; i++ {
		hi, lo := bits.Mul64(u.W[i], v)
		s, c := bits.Add64(lo, carry, 0)
		out.W[i] = s
		carry = hi + c
	}
	return out
}

// DivModSmall divides u by a small nonzero divisor, returning quotient
// and remainder, processing limbs from most to least significant.
func (u Uint256) DivModSmall(v uint64) (q Uint256, r uint64) {
	var rem uint64
	var out Uint256
	for i := 3; i >= 0; i-- {
		hi, lo := rem, u.W[i]
		quot, newRem := bits.Div64(hi, lo, v)
		out.W[i] = quot
		rem = newRem
	}
	return out, rem
}

// ModSmall returns u mod v for a small nonzero divisor v.
func (u Uint256) ModSmall(v uint64) uint64 {
	_, rem := u.DivModSmall(v)
	return rem
}

// String renders u in base 10 via repeated division.
func (u Uint256) String() string {
	if u.IsZero() {
		return "0"
	}
	var digits []byte
	cur := u
	for !cur.IsZero() {
		var rem uint64
		cur, rem = cur.DivModSmall(10)
		digits = append(digits, byte('0'+rem))
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// DigitsAsc returns the base-`base` digits of u, least-significant
// first, matching the digit-extraction contract of repeatedly dividing
// by base and collecting remainders until the value reaches zero.
func (u Uint256) DigitsAsc(base uint32) []uint32 {
	if u.IsZero() {
		return []uint32{0}
	}
	var digits []uint32
	cur := u
	for !cur.IsZero() {
		var rem uint64
		cur, rem = cur.DivModSmall(uint64(base))
		digits = append(digits, uint32(rem))
	}
	return digits
}

// Cube128 returns u*u*u as a Uint256, truncating any bits beyond 256 (the
// scanner never calls this for n large enough to overflow, since the
// search range is bounded by the base's natural digit-count range).
func Cube128(u Uint128) Uint256 {
	sq := Mul128(u, u)
	return mul256by128Low(sq, u)
}

// mul256by128Low multiplies a 256-bit value by a 128-bit value and keeps
// only the low 256 bits of the true 384-bit product.
func mul256by128Low(a Uint256, b Uint128) Uint256 {
	bl := [2]uint64{b.Lo, b.Hi}
	var acc [4]uint64
	for i := 0; i < 4; i++ {
		if a.W[i] == 0 {
			continue
		}
		var carry uint64
		for j := 0; j < 2 && i+j < 4; j++ {
			hi, lo := bits.Mul64(a.W[i], bl[j])
			s0, c0 := bits.Add64(acc[i+j], lo, 0)
			s1, c1 := bits.Add64(s0, carry, 0)
			acc[i+j] = s1
			carry = hi + c0 + c1
		}
		k := i + 2
		for carry != 0 && k < 4 {
			s, c := bits.Add64(acc[k], carry, 0)
			acc[k] = s
			carry = c
			k++
		}
	}
	return Uint256{W: acc}
}
