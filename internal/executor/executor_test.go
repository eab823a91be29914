package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/bignum"
	"github.com/wasabipesto/nice/internal/filter"
	"github.com/wasabipesto/nice/internal/kernel"
	"github.com/wasabipesto/nice/internal/model"
)

func TestRunNiceonlyFindsKnownNiceNumber(t *testing.T) {
	e := NewExecutor(kernel.NewCPUScanner(), 2)
	r := filter.Range{Start: bignum.NewUint128(1), End: bignum.NewUint128(100)}

	res, err := e.Run(context.Background(), r, 10, model.ModeNiceonly)
	require.NoError(t, err)

	found := false
	for _, n := range res.Numbers {
		if n.Number.String() == "69" {
			found = true
			assert.Equal(t, uint32(10), n.NumUniques)
		}
	}
	assert.True(t, found, "range [1,100) in base 10 must surface 69 as nice")
}

func TestRunDetailedDistributionSumsToRangeSize(t *testing.T) {
	e := NewExecutor(kernel.NewCPUScanner(), 3)
	r := filter.Range{Start: bignum.NewUint128(1), End: bignum.NewUint128(200)}

	res, err := e.Run(context.Background(), r, 10, model.ModeDetailed)
	require.NoError(t, err)

	var total uint64
	for _, count := range res.Distribution {
		total += count
	}
	assert.Equal(t, uint64(199), total)
}

func TestRunIsDeterministicAcrossThreadCounts(t *testing.T) {
	r := filter.Range{Start: bignum.NewUint128(1), End: bignum.NewUint128(500)}

	one, err := NewExecutor(kernel.NewCPUScanner(), 1).Run(context.Background(), r, 10, model.ModeDetailed)
	require.NoError(t, err)
	many, err := NewExecutor(kernel.NewCPUScanner(), 8).Run(context.Background(), r, 10, model.ModeDetailed)
	require.NoError(t, err)

	assert.Equal(t, one.Distribution, many.Distribution)
	require.Equal(t, len(one.Numbers), len(many.Numbers))
	for i := range one.Numbers {
		assert.True(t, one.Numbers[i].Number.Equal(many.Numbers[i].Number))
	}
}

func TestRunNiceonlyDeterministicAcrossThreadCounts(t *testing.T) {
	r := filter.Range{Start: bignum.NewUint128(1), End: bignum.NewUint128(5000)}

	one, err := NewExecutor(kernel.NewCPUScanner(), 1).Run(context.Background(), r, 40, model.ModeNiceonly)
	require.NoError(t, err)
	many, err := NewExecutor(kernel.NewCPUScanner(), 4).Run(context.Background(), r, 40, model.ModeNiceonly)
	require.NoError(t, err)

	require.Equal(t, len(one.Numbers), len(many.Numbers))
	for i := range one.Numbers {
		assert.True(t, one.Numbers[i].Number.Equal(many.Numbers[i].Number))
	}
}

func TestPartitionCoversRangeExactly(t *testing.T) {
	r := filter.Range{Start: bignum.NewUint128(10), End: bignum.NewUint128(37)}
	subs := partition(r, 4)

	require.NotEmpty(t, subs)
	assert.True(t, subs[0].Start.Cmp(r.Start) == 0)
	assert.True(t, subs[len(subs)-1].End.Cmp(r.End) == 0)
	for i := 1; i < len(subs); i++ {
		assert.Equal(t, 0, subs[i-1].End.Cmp(subs[i].Start), "sub-ranges must be contiguous")
	}
}
