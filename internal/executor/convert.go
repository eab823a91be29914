package executor

import (
	"math/big"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wasabipesto/nice/internal/bignum"
)

// decimalFromUint128 widens a fixed-width candidate into the
// arbitrary-precision decimal type used on the wire and in submission
// bodies, so the kernel's hot path never has to think about ranges that
// exceed 128 bits.
func decimalFromUint128(n bignum.Uint128) decimal.Decimal {
	hi := new(big.Int).Lsh(new(big.Int).SetUint64(n.Hi), 64)
	lo := new(big.Int).SetUint64(n.Lo)
	return decimal.NewFromBigInt(hi.Add(hi, lo), 0)
}

var uint128Mask = new(big.Int).SetUint64(^uint64(0))

// Uint128FromDecimal narrows an arbitrary-precision decimal field
// boundary down to the fixed-width type the kernel operates on. Fields
// are seeded to fit within 128 bits (see rangecalc), so this only
// fails if a caller hands it a value outside that contract.
func Uint128FromDecimal(d decimal.Decimal) (bignum.Uint128, error) {
	if d.Sign() < 0 {
		return bignum.Uint128{}, eris.Errorf("executor: negative range bound %s", d.String())
	}
	bi := d.BigInt()
	if bi.BitLen() > 128 {
		return bignum.Uint128{}, eris.Errorf("executor: range bound %s exceeds 128 bits", d.String())
	}
	lo := new(big.Int).And(bi, uint128Mask)
	hi := new(big.Int).Rsh(bi, 64)
	return bignum.Uint128{Lo: lo.Uint64(), Hi: hi.Uint64()}, nil
}
