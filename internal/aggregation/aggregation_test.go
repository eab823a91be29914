package aggregation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wasabipesto/nice/internal/model"
)

func TestComputeMergesDistributionsAcrossSubmissions(t *testing.T) {
	subs := []model.Submission{
		{Distribution: []model.UniqueCount{{NumUniques: 1, Count: 100}, {NumUniques: 2, Count: 100}}},
		{Distribution: []model.UniqueCount{{NumUniques: 1, Count: 50}, {NumUniques: 3, Count: 150}}},
	}

	rollup := Compute(subs, 10)

	assert.Equal(t, uint64(150), rollup.Distribution[1])
	assert.Equal(t, uint64(100), rollup.Distribution[2])
	assert.Equal(t, uint64(150), rollup.Distribution[3])
}

func TestComputeMeanStdevMatchesWeightedFormula(t *testing.T) {
	subs := []model.Submission{
		{Distribution: []model.UniqueCount{{NumUniques: 1, Count: 100}, {NumUniques: 2, Count: 100}}},
	}

	rollup := Compute(subs, 10)

	assert.InDelta(t, 0.15, rollup.NicenessMean, 1e-6)
	assert.InDelta(t, 0.05, rollup.NicenessStdev, 1e-6)
}

func TestDownsampleByNicenessPrefersHighestNicenessOverMagnitude(t *testing.T) {
	numbers := []model.NiceNumber{
		{Number: decimal.NewFromInt(999999), NumUniques: 2},
		{Number: decimal.NewFromInt(123), NumUniques: 9},
	}

	out := downsampleByNiceness(numbers, 10, 10)

	assert.Equal(t, "123", out[0].Number.String(), "higher niceness must sort first even though it is numerically smaller")
}

func TestDownsampleByNicenessCapsAtTopN(t *testing.T) {
	var numbers []model.NiceNumber
	for i := 0; i < 20; i++ {
		numbers = append(numbers, model.NiceNumber{Number: decimal.NewFromInt(int64(i)), NumUniques: uint32(i % 10)})
	}

	out := downsampleByNiceness(numbers, 10, 5)
	assert.Len(t, out, 5)
}

func TestComputeEmptySubmissionsYieldsZeroStats(t *testing.T) {
	rollup := Compute(nil, 10)
	assert.Equal(t, 0.0, rollup.NicenessMean)
	assert.Equal(t, 0.0, rollup.NicenessStdev)
	assert.Empty(t, rollup.Numbers)
}
