package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/bignum"
)

func TestResidueFilterBase11IsEmpty(t *testing.T) {
	f := BuildResidueFilter(11)
	assert.True(t, f.Empty(), "base 11 residue filter should be empty")
}

func TestResidueFilterBase10NotEmpty(t *testing.T) {
	f := BuildResidueFilter(10)
	assert.False(t, f.Empty())
	assert.True(t, f.PassesUint64(69%9), "69 mod 9 should pass for base 10")
}

func TestResidueFilterBase2TrivialAdmitsEverything(t *testing.T) {
	f := BuildResidueFilter(2)
	assert.False(t, f.Empty())
	for n := uint64(0); n < 5; n++ {
		assert.True(t, f.PassesUint64(n))
	}
}

func TestValidSingleLSDsBase10(t *testing.T) {
	valid := ValidSingleLSDs(10)
	require.NotEmpty(t, valid)
	assert.Less(t, len(valid), 10)

	assert.NotContains(t, valid, uint32(0))
	assert.NotContains(t, valid, uint32(1))
	assert.Contains(t, valid, uint32(3))
}

func TestValidSingleLSDsSorted(t *testing.T) {
	for _, base := range []uint32{10, 12, 16, 20, 40, 50} {
		valid := ValidSingleLSDs(base)
		require.NotEmpty(t, valid, "base %d", base)
		for _, lsd := range valid {
			assert.Less(t, lsd, base)
		}
		for i := 1; i < len(valid); i++ {
			assert.Less(t, valid[i-1], valid[i])
		}
	}
}

func TestMultiLSDFilterBase40K2(t *testing.T) {
	f := BuildMultiLSDFilter(40, 2)
	assert.Equal(t, uint64(1600), f.Modulus())
	// The full 2-digit LSD check must reject at least as much as the
	// 1-digit single filter would catch, in particular 0 and 1.
	assert.False(t, f.PassesSuffix(0))
	assert.False(t, f.PassesSuffix(1))
}

func TestStrideTableBase10K1(t *testing.T) {
	table := NewStrideTable(10, 1)
	assert.Equal(t, uint64(90), table.Modulus)
	assert.NotEmpty(t, table.ValidResidues)
	assert.Equal(t, len(table.ValidResidues), len(table.GapTable))

	var total uint64
	for _, g := range table.GapTable {
		total += g
	}
	assert.Equal(t, table.Modulus, total)
}

func TestStrideTableBase40K2(t *testing.T) {
	table := NewStrideTable(40, 2)
	assert.Equal(t, uint64(62_400), table.Modulus)
	assert.Less(t, len(table.ValidResidues), int(table.Modulus))
}

func TestStrideTableBase11IsEmpty(t *testing.T) {
	table := NewStrideTable(11, RecommendedK(11))
	assert.True(t, table.Empty())
}

func TestStrideTableFirstValidAtOrAfter(t *testing.T) {
	table := NewStrideTable(10, 1)

	n, idx := table.FirstValidAtOrAfter(bignum.NewUint128(0))
	assert.Equal(t, table.ValidResidues[idx], n.ModUint64(table.Modulus))

	first := table.ValidResidues[0]
	n, idx = table.FirstValidAtOrAfter(bignum.NewUint128(first))
	assert.Equal(t, first, n.Lo)
	assert.Equal(t, 0, idx)

	n, idx = table.FirstValidAtOrAfter(bignum.NewUint128(table.Modulus + 5))
	assert.GreaterOrEqual(t, n.Lo, table.Modulus+5)
	assert.Equal(t, table.ValidResidues[idx], n.ModUint64(table.Modulus))
}

func TestMSDPrefixFilterSingleElementRange(t *testing.T) {
	r := Range{Start: bignum.NewUint128(5), End: bignum.NewUint128(6)}
	assert.False(t, HasDuplicateMSDPrefix(r, 10))
}

func TestValidRangesNeverGrowsBeyondInput(t *testing.T) {
	r := Range{Start: bignum.NewUint128(47), End: bignum.NewUint128(10000)}
	ranges := ValidRanges(r, 10)
	var total bignum.Uint128
	for _, sub := range ranges {
		total = total.Add(sub.Size())
	}
	assert.True(t, total.Cmp(r.Size()) <= 0)
}
